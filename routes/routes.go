package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/controllers"
	"github.com/phillip/localhub-go/metrics"
	"github.com/phillip/localhub-go/middleware"
	"github.com/phillip/localhub-go/realtime"
	"github.com/phillip/localhub-go/services"
	"github.com/phillip/localhub-go/store"
)

// Deps bundles what the handlers need beyond the config.
type Deps struct {
	Store     *store.Store
	Payments  *services.Payments
	Sponsors  *services.Sponsors
	Analytics *services.Analytics
	Hub       *realtime.Hub
	Limiter   *middleware.RateLimiter
}

// NewRouter builds the engine with the global middleware chain.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", "Last-Modified", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	SetupRoutes(r, cfg, deps)
	return r
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, deps Deps) {
	st := deps.Store

	r.GET("/health", controllers.Health(st))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// stripe calls this without a session, so it sits outside the limiter
	r.POST("/payments/webhook", controllers.PaymentWebhook(cfg, deps.Payments))

	auth := middleware.AuthMiddleware(cfg)
	optional := middleware.OptionalAuth(cfg)
	admin := middleware.RequireAdmin()

	// identity first so the limiter can key on the user
	api := r.Group("")
	api.Use(optional)
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Handler())
	}

	// public
	api.POST("/auth/register", controllers.Register(cfg))
	api.POST("/auth/login", controllers.Login(cfg))
	api.POST("/auth/refresh", controllers.RefreshToken(cfg, st))
	api.GET("/auth/me", auth, controllers.Me(st))

	users := api.Group("/users")
	users.Use(auth)
	{
		users.GET("", admin, controllers.ListUsers(cfg))
		users.GET("/:id", controllers.GetUser(st))
		users.PATCH("/:id", controllers.UpdateUser(cfg))
		users.DELETE("/:id", admin, controllers.DeleteUser(cfg))
		users.POST("/me/favorites/:businessId", controllers.AddFavorite(cfg))
		users.DELETE("/me/favorites/:businessId", controllers.RemoveFavorite(cfg))
	}

	businesses := api.Group("/businesses")
	{
		businesses.GET("", controllers.ListBusinesses(cfg))
		businesses.GET("/:id", controllers.GetBusiness(cfg, deps.Analytics))
		businesses.POST("/:id/track", controllers.TrackBusiness(cfg, deps.Analytics))
		businesses.GET("/:id/reviews", controllers.ListReviews(cfg))

		businesses.POST("", auth, controllers.CreateBusiness(cfg))
		businesses.PATCH("/:id", auth, controllers.UpdateBusiness(cfg))
		businesses.DELETE("/:id", auth, controllers.DeleteBusiness(cfg, st))
		businesses.POST("/:id/reviews", auth, controllers.UpsertReview(cfg, st))
		businesses.GET("/:id/analytics", auth, controllers.BusinessAnalytics(st, deps.Analytics))
	}

	events := api.Group("/events")
	{
		events.GET("", controllers.ListEvents(cfg))
		events.GET("/:id", controllers.GetEvent(cfg))
		events.POST("", auth, controllers.CreateEvent(cfg))
		events.PATCH("/:id", auth, controllers.UpdateEvent(cfg))
		events.DELETE("/:id", auth, controllers.DeleteEvent(cfg))
	}

	jobs := api.Group("/jobs")
	{
		jobs.GET("", controllers.ListJobs(cfg))
		jobs.GET("/:id", controllers.GetJob(cfg))
		jobs.POST("", auth, controllers.CreateJob(cfg))
		jobs.PATCH("/:id", auth, controllers.UpdateJob(cfg))
		jobs.DELETE("/:id", auth, controllers.DeleteJob(cfg))
	}

	posts := api.Group("/posts")
	{
		posts.GET("", controllers.ListPosts(cfg))
		posts.GET("/:id", controllers.GetPost(cfg))
		posts.GET("/:id/comments", controllers.ListComments(cfg))

		posts.POST("", auth, controllers.CreatePost(cfg))
		posts.PATCH("/:id", auth, controllers.UpdatePost(cfg))
		posts.DELETE("/:id", auth, controllers.DeletePost(cfg))
		posts.POST("/:id/like", auth, controllers.LikePost(cfg))
		posts.DELETE("/:id/like", auth, controllers.UnlikePost(cfg))
		posts.POST("/:id/comments", auth, controllers.CreateComment(st))
	}
	api.DELETE("/comments/:id", auth, controllers.DeleteComment(cfg, st))

	chat := api.Group("/conversations")
	chat.Use(auth)
	{
		chat.POST("", controllers.StartConversation(cfg, st))
		chat.GET("", controllers.ListConversations(st))
		chat.GET("/:id/messages", controllers.ListMessages(st))
		chat.POST("/:id/messages", controllers.SendMessage(st, deps.Hub))
		chat.POST("/:id/read", controllers.MarkConversationRead(st, deps.Hub))
	}
	// websocket upgrades skip the limiter, one connection is long lived
	r.GET("/conversations/:id/stream", auth, controllers.StreamConversation(cfg, st, deps.Hub))

	sponsors := api.Group("/sponsors")
	{
		sponsors.GET("/next", controllers.NextSponsor(deps.Sponsors))
		sponsors.POST("/:id/click", controllers.ClickSponsor(deps.Sponsors))

		sponsors.GET("", auth, admin, controllers.ListSponsors(cfg))
		sponsors.POST("", auth, admin, controllers.CreateSponsor(cfg))
		sponsors.PATCH("/:id", auth, admin, controllers.UpdateSponsor(cfg))
		sponsors.DELETE("/:id", auth, admin, controllers.DeleteSponsor(cfg))
	}

	payments := api.Group("/payments")
	{
		payments.GET("/plans", controllers.ListPlans(deps.Payments))
		payments.POST("/checkout", auth, controllers.CreateCheckout(deps.Payments))
		payments.POST("/cancel", auth, controllers.CancelSubscription(deps.Payments))
	}

	subs := api.Group("/subscriptions")
	subs.Use(auth)
	{
		subs.GET("", controllers.ListSubscriptions(cfg))
		subs.GET("/:id", controllers.GetSubscription(cfg))
	}

	adminGroup := api.Group("/admin")
	adminGroup.Use(auth, admin)
	{
		adminGroup.GET("/analytics/overview", controllers.AnalyticsOverview(deps.Analytics))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/middleware"
	"github.com/phillip/localhub-go/realtime"
	"github.com/phillip/localhub-go/routes"
	"github.com/phillip/localhub-go/scheduler"
	"github.com/phillip/localhub-go/services"
	"github.com/phillip/localhub-go/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.Log

	if err := cfg.Connect(context.Background()); err != nil {
		log.WithError(err).Fatal("mongo")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = cfg.MongoClient.Disconnect(ctx)
	}()

	st := store.New(cfg.MongoClient, cfg.DBName)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("ensure indexes")
	}
	cancel()

	provider := billing.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, log)
	deps := routes.Deps{
		Store:     st,
		Payments:  services.NewPayments(provider, st, billing.DefaultCatalog(), cfg.AppBaseURL, log),
		Sponsors:  services.NewSponsors(st, log),
		Analytics: services.NewAnalytics(st, log),
		Hub:       realtime.NewHub(cfg.CORSOrigins, log),
		Limiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log),
	}

	stop := make(chan struct{})
	deps.Limiter.StartCleanup(time.Minute, stop)

	var sched *scheduler.Scheduler
	if cfg.CronEnabled {
		if sched, err = scheduler.New(st, log); err != nil {
			log.WithError(err).Fatal("scheduler")
		}
		sched.Start()
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	close(stop)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

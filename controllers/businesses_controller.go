package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/services"
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

type businessForm struct {
	Name         string   `form:"name"`
	Category     string   `form:"category"`
	Description  string   `form:"description"`
	Address      string   `form:"address"`
	LocationName string   `form:"location_name"`
	Lat          *float64 `form:"lat"`
	Lng          *float64 `form:"lng"`
	Phone        string   `form:"phone"`
	Email        string   `form:"email"`
	Website      string   `form:"website"`
	Hours        string   `form:"hours"`
	IsActive     *bool    `form:"is_active"`
	Images       []string `form:"images"` // existing image URLs to keep
}

// ---------------- CREATE ----------------
func CreateBusiness(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Authenticated user ---
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		// --- Bind form fields ---
		var input businessForm
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		// --- Handle file uploads ---
		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}

		imageURLs, err := utils.UploadFormFiles(form, "images", utils.FolderBusinesses)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "image upload failed", err)
			return
		}
		logos, err := utils.UploadFormFiles(form, "logo", utils.FolderBusinesses)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), append(imageURLs, logos...))
			serverError(c, "logo upload failed", err)
			return
		}

		// --- Save business ---
		now := time.Now()
		business := models.Business{
			ID:                 primitive.NewObjectID(),
			OwnerID:            userID,
			Name:               input.Name,
			Category:           input.Category,
			Description:        input.Description,
			Address:            input.Address,
			LocationName:       input.LocationName,
			Phone:              input.Phone,
			Email:              input.Email,
			Website:            input.Website,
			Hours:              input.Hours,
			Images:             append([]string{}, imageURLs...),
			IsActive:           input.IsActive == nil || *input.IsActive,
			SubscriptionStatus: models.SubscriptionInactive,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if input.Lat != nil && input.Lng != nil {
			business.Coordinates = &models.Coordinates{Lat: *input.Lat, Lng: *input.Lng}
		}
		if len(logos) > 0 {
			business.Logo = logos[0]
		}

		col := cfg.Collection(store.ColBusinesses)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := col.InsertOne(ctx, business); err != nil {
			go utils.DeleteImages(logger(c, cfg), business.Assets())
			serverError(c, "could not create business", err)
			return
		}

		c.JSON(http.StatusCreated, business)
	}
}

// ---------------- LIST ----------------
func ListBusinesses(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.Collection(store.ColBusinesses)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// --- Build filter ---
		filter := businessFilter(c)

		// --- Fetch data ---
		cursor, err := col.Find(ctx, filter, paginate(c, subscribedFirst))
		if err != nil {
			serverError(c, "could not fetch businesses", err)
			return
		}

		var businesses []models.Business
		if err := cursor.All(ctx, &businesses); err != nil {
			serverError(c, "could not decode businesses", err)
			return
		}

		if len(businesses) == 0 {
			c.JSON(http.StatusOK, []models.Business{})
			return
		}

		variant := markFavorites(ctx, cfg, c, businesses)

		// --- Validators from the most recently updated business ---
		latest := businesses[0]
		for _, b := range businesses {
			if b.UpdatedAt.After(latest.UpdatedAt) {
				latest = b
			}
		}
		if utils.NotModified(c, latest.ID, latest.UpdatedAt, variant) {
			return
		}

		c.JSON(http.StatusOK, businesses)
	}
}

func businessFilter(c *gin.Context) bson.M {
	filter := bson.M{"is_active": true}
	if active, err := strconv.ParseBool(c.Query("active")); err == nil {
		filter["is_active"] = active
	}
	if q := c.Query("q"); q != "" {
		filter["name"] = bson.M{"$regex": q, "$options": "i"}
	}
	if category := c.Query("category"); category != "" {
		filter["category"] = category
	}
	if featured, err := strconv.ParseBool(c.Query("featured")); err == nil {
		filter["is_featured"] = featured
	}
	if owner := c.Query("owner_id"); owner != "" {
		if oid, err := primitive.ObjectIDFromHex(owner); err == nil {
			filter["owner_id"] = oid
		}
	}
	return filter
}

// subscribedFirst orders paying listings ahead of the rest across every page.
// is_featured is set exactly while the subscription is active.
var subscribedFirst = bson.D{{Key: "is_featured", Value: -1}, {Key: "created_at", Value: -1}}

// markFavorites flags the caller's favorites when the request is authenticated.
// It returns the cache variant for the caller: empty when anonymous, otherwise
// the user id and the version of their favorites.
func markFavorites(ctx context.Context, cfg *config.Config, c *gin.Context, businesses []models.Business) string {
	userID, _, ok := requester(c)
	if !ok {
		return ""
	}
	var user models.User
	if err := cfg.Collection(store.ColUsers).FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		logger(c, cfg).WithError(err).WithField("user_id", userID.Hex()).Warn("favorites not loaded")
		return userID.Hex()
	}
	applyFavorites(businesses, user.Favorites)
	return favoritesVariant(&user)
}

func applyFavorites(businesses []models.Business, favoriteIDs []primitive.ObjectID) {
	favorites := make(map[primitive.ObjectID]bool, len(favoriteIDs))
	for _, id := range favoriteIDs {
		favorites[id] = true
	}
	for i := range businesses {
		businesses[i].IsFavorite = favorites[businesses[i].ID]
	}
}

// favoritesVariant changes whenever the user's favorites do, since every
// favorites write also bumps updated_at.
func favoritesVariant(user *models.User) string {
	return user.ID.Hex() + ":" + strconv.FormatInt(user.UpdatedAt.UnixNano(), 10)
}

// ---------------- GET ----------------
func GetBusiness(cfg *config.Config, analytics *services.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var business models.Business
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := cfg.Collection(store.ColBusinesses).FindOne(ctx, bson.M{"_id": businessID}).Decode(&business)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}

		analytics.RecordAsync(models.SubjectBusiness, business.ID, models.CounterViews)

		businesses := []models.Business{business}
		variant := markFavorites(ctx, cfg, c, businesses)
		if utils.NotModified(c, business.ID, business.UpdatedAt, variant) {
			return
		}

		c.JSON(http.StatusOK, businesses[0])
	}
}

// ---------------- UPDATE ----------------
func UpdateBusiness(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Validate requester identity
		requesterID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		objID, ok := paramID(c, "id")
		if !ok {
			return
		}

		// Fetch existing business
		col := cfg.Collection(store.ColBusinesses)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Business
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}

		if !canModify(role, existing.OwnerID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		// Bind input (form-data for mixed text + file upload)
		var input businessForm
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "name", input.Name)
		setIfNotEmpty(update, "category", input.Category)
		setIfNotEmpty(update, "description", input.Description)
		setIfNotEmpty(update, "address", input.Address)
		setIfNotEmpty(update, "location_name", input.LocationName)
		setIfNotEmpty(update, "phone", input.Phone)
		setIfNotEmpty(update, "email", input.Email)
		setIfNotEmpty(update, "website", input.Website)
		setIfNotEmpty(update, "hours", input.Hours)
		if input.IsActive != nil {
			update["is_active"] = *input.IsActive
		}
		if input.Lat != nil {
			update["coordinates.lat"] = *input.Lat
		}
		if input.Lng != nil {
			update["coordinates.lng"] = *input.Lng
		}

		// Handle new uploads (multipart form)
		form, _ := c.MultipartForm()
		newImageURLs, err := utils.UploadFormFiles(form, "new_images", utils.FolderBusinesses)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), newImageURLs)
			serverError(c, "image upload failed", err)
			return
		}
		logos, err := utils.UploadFormFiles(form, "logo", utils.FolderBusinesses)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), append(newImageURLs, logos...))
			serverError(c, "logo upload failed", err)
			return
		}

		var removed []string
		if input.Images != nil || len(newImageURLs) > 0 {
			images := append(append([]string{}, input.Images...), newImageURLs...)
			update["images"] = images
			if input.Images != nil {
				removed = dropped(existing.Images, input.Images)
			}
		}
		if len(logos) > 0 {
			update["logo"] = logos[0]
			if existing.Logo != "" {
				removed = append(removed, existing.Logo)
			}
		}

		// Reject empty update
		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		if _, err := col.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": update}); err != nil {
			go utils.DeleteImages(logger(c, cfg), append(newImageURLs, logos...))
			serverError(c, "Could not update business", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), removed)

		var updated models.Business
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&updated); err != nil {
			serverError(c, "Failed to retrieve updated business", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Business updated successfully",
			"business": updated,
		})
	}
}

func setIfNotEmpty(update bson.M, key, value string) {
	if value != "" {
		update[key] = value
	}
}

// dropped returns the entries of before missing from after.
func dropped(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, u := range after {
		keep[u] = true
	}
	var out []string
	for _, u := range before {
		if !keep[u] {
			out = append(out, u)
		}
	}
	return out
}

// ---------------- DELETE ----------------
func DeleteBusiness(cfg *config.Config, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		existing, err := st.BusinessByID(ctx, oid)
		if err != nil {
			respondError(c, err)
			return
		}
		if !canModify(role, existing.OwnerID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		if existing.SubscriptionStatus == models.SubscriptionActive || existing.SubscriptionStatus == models.SubscriptionPastDue {
			c.JSON(http.StatusConflict, gin.H{"error": "cancel the business subscription before deleting it"})
			return
		}

		res, err := st.DeleteBusinessCascade(ctx, oid)
		if err != nil {
			respondError(c, err)
			return
		}

		go utils.DeleteImages(logger(c, cfg), res.Images)

		logger(c, cfg).WithField("business_id", oid.Hex()).
			WithField("events", res.EventsDeleted).
			WithField("jobs", res.JobsDeleted).
			Info("business deleted")

		c.JSON(http.StatusOK, gin.H{
			"message":        "business deleted successfully",
			"id":             oid.Hex(),
			"events_deleted": res.EventsDeleted,
			"jobs_deleted":   res.JobsDeleted,
		})
	}
}

// ---------------- TRACK ----------------
func TrackBusiness(cfg *config.Config, analytics *services.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Counter string `json:"counter" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !models.TrackableCounters[input.Counter] {
			respondError(c, services.ErrUnknownCounter)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := cfg.Collection(store.ColBusinesses).CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			respondError(c, err)
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}

		if err := analytics.Record(ctx, models.SubjectBusiness, oid, input.Counter); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ---------------- ANALYTICS ----------------
func BusinessAnalytics(st *store.Store, analytics *services.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		from, to, err := analytics.ParseRange(c.Query("from"), c.Query("to"))
		if err != nil {
			respondError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		business, err := st.BusinessByID(ctx, oid)
		if err != nil {
			respondError(c, err)
			return
		}
		if !canModify(role, business.OwnerID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		summary, err := analytics.Summary(ctx, models.SubjectBusiness, oid, from, to)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func AnalyticsOverview(analytics *services.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := analytics.ParseRange(c.Query("from"), c.Query("to"))
		if err != nil {
			respondError(c, err)
			return
		}
		top, _ := strconv.Atoi(c.DefaultQuery("top", "10"))

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		overview, err := analytics.Overview(ctx, models.SubjectBusiness, from, to, top)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, overview)
	}
}

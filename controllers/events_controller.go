package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

var errBusinessNotOwned = errors.New("business not found or not owned")

// checkBusinessOwner verifies the caller may attach content to the business.
func checkBusinessOwner(ctx context.Context, cfg *config.Config, businessID, userID primitive.ObjectID, role string) error {
	var b models.Business
	err := cfg.Collection(store.ColBusinesses).FindOne(ctx, bson.M{"_id": businessID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errBusinessNotOwned
	}
	if err != nil {
		return err
	}
	if !canModify(role, b.OwnerID, userID) {
		return errBusinessNotOwned
	}
	return nil
}

// ---------------- CREATE ----------------
func CreateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Authenticated user ---
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		// --- Bind form fields ---
		var input struct {
			Title       string  `form:"title" binding:"required"`
			Description string  `form:"description"`
			Location    string  `form:"location"`
			BusinessID  string  `form:"business_id"`
			StartsAt    *string `form:"starts_at"` // string for binding, convert later
			EndsAt      *string `form:"ends_at"`
			IsActive    *bool   `form:"is_active"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		startsAt, err := utils.ParseOptionalTime(input.StartsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "starts_at: " + err.Error()})
			return
		}
		endsAt, err := utils.ParseOptionalTime(input.EndsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at: " + err.Error()})
			return
		}
		if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at must not be before starts_at"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var businessID *primitive.ObjectID
		if input.BusinessID != "" {
			oid, err := primitive.ObjectIDFromHex(input.BusinessID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
				return
			}
			if err := checkBusinessOwner(ctx, cfg, oid, userID, role); err != nil {
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			businessID = &oid
		}

		// --- Handle file uploads ---
		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		imageURLs, err := utils.UploadFormFiles(form, "images", utils.FolderEvents)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "image upload failed", err)
			return
		}

		// --- Save event ---
		now := time.Now()
		event := models.Event{
			ID:          primitive.NewObjectID(),
			UserID:      userID,
			BusinessID:  businessID,
			Title:       input.Title,
			Description: input.Description,
			Location:    input.Location,
			StartsAt:    startsAt,
			EndsAt:      endsAt,
			IsActive:    input.IsActive == nil || *input.IsActive,
			Images:      append([]string{}, imageURLs...),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if _, err := cfg.Collection(store.ColEvents).InsertOne(ctx, event); err != nil {
			go utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "could not create event", err)
			return
		}

		c.JSON(http.StatusCreated, event)
	}
}

// ---------------- LIST ----------------
func ListEvents(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.Collection(store.ColEvents)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// --- Build filter ---
		filter := bson.M{"is_active": true}
		if active, err := strconv.ParseBool(c.Query("active")); err == nil {
			filter["is_active"] = active
		}
		if q := c.Query("q"); q != "" {
			filter["title"] = bson.M{"$regex": q, "$options": "i"}
		}
		if bid := c.Query("business_id"); bid != "" {
			oid, err := primitive.ObjectIDFromHex(bid)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
				return
			}
			filter["business_id"] = oid
		}

		opts := pagination(c)
		if upcoming, _ := strconv.ParseBool(c.Query("upcoming")); upcoming {
			now := time.Now()
			filter["$or"] = bson.A{
				bson.M{"starts_at": bson.M{"$gte": now}},
				bson.M{"ends_at": bson.M{"$gte": now}},
			}
			opts.SetSort(bson.D{{Key: "starts_at", Value: 1}})
		}

		// --- Fetch data ---
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			serverError(c, "could not fetch events", err)
			return
		}

		var events []models.Event
		if err := cursor.All(ctx, &events); err != nil {
			serverError(c, "could not decode events", err)
			return
		}

		if len(events) == 0 {
			c.JSON(http.StatusOK, []models.Event{})
			return
		}

		// --- Validators from the most recently updated event ---
		latest := events[0]
		for _, ev := range events {
			if ev.UpdatedAt.After(latest.UpdatedAt) {
				latest = ev
			}
		}
		if utils.NotModified(c, latest.ID, latest.UpdatedAt) {
			return
		}

		c.JSON(http.StatusOK, events)
	}
}

// ---------------- GET ----------------
func GetEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var event models.Event
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := cfg.Collection(store.ColEvents).FindOne(ctx, bson.M{"_id": eventID}).Decode(&event)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}

		if utils.NotModified(c, event.ID, event.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// ---------------- UPDATE ----------------
func UpdateEvent(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		objID, ok := paramID(c, "id")
		if !ok {
			return
		}

		col := cfg.Collection(store.ColEvents)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Event
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}

		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		// Bind input (form-data for mixed text + file upload)
		var input struct {
			Title       string   `form:"title"`
			Description string   `form:"description"`
			Location    string   `form:"location"`
			StartsAt    *string  `form:"starts_at"`
			EndsAt      *string  `form:"ends_at"`
			IsActive    *bool    `form:"is_active"`
			Images      []string `form:"images"` // existing image URLs to keep
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "title", input.Title)
		setIfNotEmpty(update, "description", input.Description)
		setIfNotEmpty(update, "location", input.Location)
		if input.IsActive != nil {
			update["is_active"] = *input.IsActive
		}

		startsAt, err := utils.ParseOptionalTime(input.StartsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "starts_at: " + err.Error()})
			return
		}
		if startsAt != nil {
			update["starts_at"] = *startsAt
		}
		endsAt, err := utils.ParseOptionalTime(input.EndsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ends_at: " + err.Error()})
			return
		}
		if endsAt != nil {
			update["ends_at"] = *endsAt
		}

		// Handle new image uploads (multipart form)
		form, _ := c.MultipartForm()
		newImageURLs, err := utils.UploadFormFiles(form, "new_images", utils.FolderEvents)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), newImageURLs)
			serverError(c, "image upload failed", err)
			return
		}

		var removed []string
		if input.Images != nil || len(newImageURLs) > 0 {
			update["images"] = append(append([]string{}, input.Images...), newImageURLs...)
			if input.Images != nil {
				removed = dropped(existing.Images, input.Images)
			}
		}

		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		if _, err := col.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": update}); err != nil {
			go utils.DeleteImages(logger(c, cfg), newImageURLs)
			serverError(c, "Could not update event", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), removed)

		var updated models.Event
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&updated); err != nil {
			serverError(c, "Failed to retrieve updated event", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Event updated successfully",
			"event":   updated,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteEvent(cfg *config.Config) gin.HandlerFunc {
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

		col := cfg.Collection(store.ColEvents)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Event
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}

		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		res, err := col.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			serverError(c, "failed to delete event", err)
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}

		go utils.DeleteImages(logger(c, cfg), existing.Images)

		c.JSON(http.StatusOK, gin.H{
			"message": "event deleted successfully",
			"id":      oid.Hex(),
		})
	}
}

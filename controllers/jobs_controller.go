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
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

var employmentTypes = map[string]bool{
	"full-time": true,
	"part-time": true,
	"contract":  true,
	"seasonal":  true,
}

// ---------------- CREATE ----------------
func CreateJob(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		var input struct {
			BusinessID     string  `form:"business_id" binding:"required"`
			Title          string  `form:"title" binding:"required"`
			Description    string  `form:"description"`
			EmploymentType string  `form:"employment_type"`
			Salary         string  `form:"salary"`
			Location       string  `form:"location"`
			ApplyURL       string  `form:"apply_url"`
			ExpiresAt      *string `form:"expires_at"`
			IsActive       *bool   `form:"is_active"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.EmploymentType != "" && !employmentTypes[input.EmploymentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employment_type must be full-time, part-time, contract or seasonal"})
			return
		}

		businessID, err := primitive.ObjectIDFromHex(input.BusinessID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
			return
		}
		expiresAt, err := utils.ParseOptionalTime(input.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at: " + err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := checkBusinessOwner(ctx, cfg, businessID, userID, role); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		imageURLs, err := utils.UploadFormFiles(form, "images", utils.FolderJobs)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "image upload failed", err)
			return
		}

		now := time.Now()
		job := models.Job{
			ID:             primitive.NewObjectID(),
			UserID:         userID,
			BusinessID:     businessID,
			Title:          input.Title,
			Description:    input.Description,
			EmploymentType: input.EmploymentType,
			Salary:         input.Salary,
			Location:       input.Location,
			ApplyURL:       input.ApplyURL,
			Images:         append([]string{}, imageURLs...),
			IsActive:       input.IsActive == nil || *input.IsActive,
			ExpiresAt:      expiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if _, err := cfg.Collection(store.ColJobs).InsertOne(ctx, job); err != nil {
			go utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "could not create job", err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

// ---------------- LIST ----------------
func ListJobs(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{"is_active": true}
		if active, err := strconv.ParseBool(c.Query("active")); err == nil {
			filter["is_active"] = active
		}
		if q := c.Query("q"); q != "" {
			filter["title"] = bson.M{"$regex": q, "$options": "i"}
		}
		if t := c.Query("employment_type"); t != "" {
			filter["employment_type"] = t
		}
		if bid := c.Query("business_id"); bid != "" {
			oid, err := primitive.ObjectIDFromHex(bid)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
				return
			}
			filter["business_id"] = oid
		}
		if open, _ := strconv.ParseBool(c.Query("open")); open {
			filter["$or"] = bson.A{
				bson.M{"expires_at": bson.M{"$exists": false}},
				bson.M{"expires_at": bson.M{"$gte": time.Now()}},
			}
		}

		cursor, err := cfg.Collection(store.ColJobs).Find(ctx, filter, pagination(c))
		if err != nil {
			serverError(c, "could not fetch jobs", err)
			return
		}
		var jobs []models.Job
		if err := cursor.All(ctx, &jobs); err != nil {
			serverError(c, "could not decode jobs", err)
			return
		}
		if len(jobs) == 0 {
			c.JSON(http.StatusOK, []models.Job{})
			return
		}

		latest := jobs[0]
		for _, j := range jobs {
			if j.UpdatedAt.After(latest.UpdatedAt) {
				latest = j
			}
		}
		if utils.NotModified(c, latest.ID, latest.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, jobs)
	}
}

// ---------------- GET ----------------
func GetJob(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var job models.Job
		if err := cfg.Collection(store.ColJobs).FindOne(ctx, bson.M{"_id": jobID}).Decode(&job); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if utils.NotModified(c, job.ID, job.UpdatedAt) {
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// ---------------- UPDATE ----------------
func UpdateJob(cfg *config.Config) gin.HandlerFunc {
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

		col := cfg.Collection(store.ColJobs)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Job
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		var input struct {
			Title          string   `form:"title"`
			Description    string   `form:"description"`
			EmploymentType string   `form:"employment_type"`
			Salary         string   `form:"salary"`
			Location       string   `form:"location"`
			ApplyURL       string   `form:"apply_url"`
			ExpiresAt      *string  `form:"expires_at"`
			IsActive       *bool    `form:"is_active"`
			Images         []string `form:"images"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if input.EmploymentType != "" && !employmentTypes[input.EmploymentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employment_type must be full-time, part-time, contract or seasonal"})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "title", input.Title)
		setIfNotEmpty(update, "description", input.Description)
		setIfNotEmpty(update, "employment_type", input.EmploymentType)
		setIfNotEmpty(update, "salary", input.Salary)
		setIfNotEmpty(update, "location", input.Location)
		setIfNotEmpty(update, "apply_url", input.ApplyURL)
		if input.IsActive != nil {
			update["is_active"] = *input.IsActive
		}
		expiresAt, err := utils.ParseOptionalTime(input.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at: " + err.Error()})
			return
		}
		if expiresAt != nil {
			update["expires_at"] = *expiresAt
		}

		form, _ := c.MultipartForm()
		newImageURLs, err := utils.UploadFormFiles(form, "new_images", utils.FolderJobs)
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
			serverError(c, "Could not update job", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), removed)

		var updated models.Job
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&updated); err != nil {
			serverError(c, "Failed to retrieve updated job", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Job updated successfully",
			"job":     updated,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteJob(cfg *config.Config) gin.HandlerFunc {
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

		col := cfg.Collection(store.ColJobs)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Job
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		if _, err := col.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
			serverError(c, "failed to delete job", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), existing.Images)

		c.JSON(http.StatusOK, gin.H{
			"message": "job deleted successfully",
			"id":      oid.Hex(),
		})
	}
}

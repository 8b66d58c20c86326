package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

// SponsorService serves the rotating sponsor slot.
type SponsorService interface {
	Next(ctx context.Context) (*models.SupportingCompany, error)
	Click(ctx context.Context, id primitive.ObjectID) error
}

// NextSponsor returns the least viewed active sponsor and counts the impression.
func NextSponsor(svc SponsorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sponsor, err := svc.Next(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, sponsor)
	}
}

func ClickSponsor(svc SponsorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := svc.Click(ctx, oid); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ---------------- ADMIN ----------------
func CreateSponsor(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name     string `form:"name" binding:"required"`
			Website  string `form:"website"`
			Tagline  string `form:"tagline"`
			IsActive *bool  `form:"is_active"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		form, err := c.MultipartForm()
		if err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form data"})
			return
		}
		logos, err := utils.UploadFormFiles(form, "logo", utils.FolderSponsors)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), logos)
			serverError(c, "logo upload failed", err)
			return
		}

		now := time.Now()
		sponsor := models.SupportingCompany{
			ID:        primitive.NewObjectID(),
			Name:      input.Name,
			Website:   input.Website,
			Tagline:   input.Tagline,
			IsActive:  input.IsActive == nil || *input.IsActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if len(logos) > 0 {
			sponsor.Logo = logos[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := cfg.Collection(store.ColSponsors).InsertOne(ctx, sponsor); err != nil {
			go utils.DeleteImages(logger(c, cfg), logos)
			serverError(c, "could not create sponsor", err)
			return
		}
		c.JSON(http.StatusCreated, sponsor)
	}
}

func ListSponsors(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
		cursor, err := cfg.Collection(store.ColSponsors).Find(ctx, bson.M{}, opts)
		if err != nil {
			serverError(c, "could not fetch sponsors", err)
			return
		}
		sponsors := []models.SupportingCompany{}
		if err := cursor.All(ctx, &sponsors); err != nil {
			serverError(c, "could not decode sponsors", err)
			return
		}
		c.JSON(http.StatusOK, sponsors)
	}
}

func UpdateSponsor(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Name     string `form:"name"`
			Website  string `form:"website"`
			Tagline  string `form:"tagline"`
			IsActive *bool  `form:"is_active"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		col := cfg.Collection(store.ColSponsors)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.SupportingCompany
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sponsor not found"})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "name", input.Name)
		setIfNotEmpty(update, "website", input.Website)
		setIfNotEmpty(update, "tagline", input.Tagline)
		if input.IsActive != nil {
			update["is_active"] = *input.IsActive
		}

		form, _ := c.MultipartForm()
		logos, err := utils.UploadFormFiles(form, "logo", utils.FolderSponsors)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), logos)
			serverError(c, "logo upload failed", err)
			return
		}
		if len(logos) > 0 {
			update["logo"] = logos[0]
		}

		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var updated models.SupportingCompany
		if err := col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": update}, opts).Decode(&updated); err != nil {
			go utils.DeleteImages(logger(c, cfg), logos)
			serverError(c, "could not update sponsor", err)
			return
		}
		if len(logos) > 0 && existing.Logo != "" {
			go utils.DeleteImages(logger(c, cfg), []string{existing.Logo})
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Sponsor updated successfully",
			"sponsor": updated,
		})
	}
}

func DeleteSponsor(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.SupportingCompany
		if err := cfg.Collection(store.ColSponsors).FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sponsor not found"})
			return
		}
		if existing.Logo != "" {
			go utils.DeleteImages(logger(c, cfg), []string{existing.Logo})
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "sponsor deleted successfully",
			"id":      oid.Hex(),
		})
	}
}

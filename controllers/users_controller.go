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

// ---------------- LIST ----------------
func ListUsers(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := bson.M{}
		if q := c.Query("q"); q != "" {
			filter["$or"] = bson.A{
				bson.M{"name": bson.M{"$regex": q, "$options": "i"}},
				bson.M{"email": bson.M{"$regex": q, "$options": "i"}},
			}
		}
		if role := c.Query("role"); role != "" {
			filter["role"] = role
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cursor, err := cfg.Collection(store.ColUsers).Find(ctx, filter, pagination(c))
		if err != nil {
			serverError(c, "could not fetch users", err)
			return
		}
		users := []models.User{}
		if err := cursor.All(ctx, &users); err != nil {
			serverError(c, "could not decode users", err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// ---------------- GET ----------------
// GetUser returns the full record to the user and admins, the public profile otherwise.
func GetUser(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := st.UserByID(ctx, oid)
		if err != nil {
			respondError(c, err)
			return
		}

		if requesterID, role, ok := requester(c); ok && canModify(role, user.ID, requesterID) {
			c.JSON(http.StatusOK, user)
			return
		}
		c.JSON(http.StatusOK, user.Public())
	}
}

// ---------------- UPDATE ----------------
func UpdateUser(cfg *config.Config) gin.HandlerFunc {
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
		if !canModify(role, oid, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		var input struct {
			Name string `form:"name"`
			Bio  string `form:"bio"`
			Role string `form:"role"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "name", input.Name)
		setIfNotEmpty(update, "bio", input.Bio)
		if input.Role != "" {
			if role != models.RoleAdmin {
				c.JSON(http.StatusForbidden, gin.H{"error": "only admins can change roles"})
				return
			}
			if input.Role != models.RoleAdmin && input.Role != models.RoleUser {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
				return
			}
			update["role"] = input.Role
		}

		form, _ := c.MultipartForm()
		avatars, err := utils.UploadFormFiles(form, "avatar", utils.FolderAvatars)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), avatars)
			serverError(c, "avatar upload failed", err)
			return
		}
		if len(avatars) > 0 {
			update["avatar"] = avatars[0]
		}

		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
		var before models.User
		if err := cfg.Collection(store.ColUsers).FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": update}, opts).Decode(&before); err != nil {
			go utils.DeleteImages(logger(c, cfg), avatars)
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if len(avatars) > 0 && before.Avatar != "" {
			go utils.DeleteImages(logger(c, cfg), []string{before.Avatar})
		}

		var updated models.User
		if err := cfg.Collection(store.ColUsers).FindOne(ctx, bson.M{"_id": oid}).Decode(&updated); err != nil {
			serverError(c, "Failed to retrieve updated user", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "User updated successfully",
			"user":    updated,
		})
	}
}

// ---------------- DELETE ----------------
func DeleteUser(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		owned, err := cfg.Collection(store.ColBusinesses).CountDocuments(ctx, bson.M{"owner_id": oid})
		if err != nil {
			serverError(c, "could not check businesses", err)
			return
		}
		if owned > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "user still owns businesses"})
			return
		}

		var existing models.User
		if err := cfg.Collection(store.ColUsers).FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if existing.Avatar != "" {
			go utils.DeleteImages(logger(c, cfg), []string{existing.Avatar})
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "user deleted successfully",
			"id":      oid.Hex(),
		})
	}
}

// ---------------- FAVORITES ----------------
func AddFavorite(cfg *config.Config) gin.HandlerFunc {
	return updateFavorites(cfg, "$addToSet")
}

func RemoveFavorite(cfg *config.Config) gin.HandlerFunc {
	return updateFavorites(cfg, "$pull")
}

func updateFavorites(cfg *config.Config, op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		businessID, ok := paramID(c, "businessId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if op == "$addToSet" {
			n, err := cfg.Collection(store.ColBusinesses).CountDocuments(ctx, bson.M{"_id": businessID})
			if err != nil || n == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
				return
			}
		}

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		update := bson.M{op: bson.M{"favorites": businessID}, "$set": bson.M{"updated_at": time.Now()}}
		var user models.User
		if err := cfg.Collection(store.ColUsers).FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&user); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		favorites := user.Favorites
		if favorites == nil {
			favorites = []primitive.ObjectID{}
		}
		c.JSON(http.StatusOK, gin.H{"favorites": favorites})
	}
}

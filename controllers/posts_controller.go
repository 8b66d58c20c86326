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

// ---------------- CREATE ----------------
func CreatePost(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		var input struct {
			Content  string `form:"content" binding:"required"`
			Category string `form:"category"`
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
		imageURLs, err := utils.UploadFormFiles(form, "images", utils.FolderPosts)
		if err != nil {
			utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "image upload failed", err)
			return
		}

		now := time.Now()
		post := models.Post{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			Content:   input.Content,
			Category:  input.Category,
			Images:    append([]string{}, imageURLs...),
			Likes:     []primitive.ObjectID{},
			CreatedAt: now,
			UpdatedAt: now,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := cfg.Collection(store.ColPosts).InsertOne(ctx, post); err != nil {
			go utils.DeleteImages(logger(c, cfg), imageURLs)
			serverError(c, "could not create post", err)
			return
		}
		c.JSON(http.StatusCreated, post)
	}
}

// ---------------- LIST ----------------
func ListPosts(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{}
		if category := c.Query("category"); category != "" {
			filter["category"] = category
		}
		if uid := c.Query("user_id"); uid != "" {
			oid, err := primitive.ObjectIDFromHex(uid)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
				return
			}
			filter["user_id"] = oid
		}
		if q := c.Query("q"); q != "" {
			filter["content"] = bson.M{"$regex": q, "$options": "i"}
		}

		cursor, err := cfg.Collection(store.ColPosts).Find(ctx, filter, pagination(c))
		if err != nil {
			serverError(c, "could not fetch posts", err)
			return
		}
		posts := []models.Post{}
		if err := cursor.All(ctx, &posts); err != nil {
			serverError(c, "could not decode posts", err)
			return
		}

		if viewer, _, ok := requester(c); ok {
			for i := range posts {
				posts[i].LikedByMe = likedBy(posts[i], viewer)
			}
		}
		c.JSON(http.StatusOK, posts)
	}
}

func likedBy(p models.Post, userID primitive.ObjectID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// ---------------- GET ----------------
func GetPost(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var post models.Post
		if err := cfg.Collection(store.ColPosts).FindOne(ctx, bson.M{"_id": postID}).Decode(&post); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		if viewer, _, ok := requester(c); ok {
			post.LikedByMe = likedBy(post, viewer)
		}
		c.JSON(http.StatusOK, post)
	}
}

// ---------------- UPDATE ----------------
func UpdatePost(cfg *config.Config) gin.HandlerFunc {
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

		col := cfg.Collection(store.ColPosts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.Post
		if err := col.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		var input struct {
			Content  string   `form:"content"`
			Category string   `form:"category"`
			Images   []string `form:"images"`
		}
		if err := c.ShouldBind(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		setIfNotEmpty(update, "content", input.Content)
		setIfNotEmpty(update, "category", input.Category)

		form, _ := c.MultipartForm()
		newImageURLs, err := utils.UploadFormFiles(form, "new_images", utils.FolderPosts)
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

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var updated models.Post
		if err := col.FindOneAndUpdate(ctx, bson.M{"_id": objID}, bson.M{"$set": update}, opts).Decode(&updated); err != nil {
			go utils.DeleteImages(logger(c, cfg), newImageURLs)
			serverError(c, "Could not update post", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), removed)

		c.JSON(http.StatusOK, gin.H{
			"message": "Post updated successfully",
			"post":    updated,
		})
	}
}

// ---------------- DELETE ----------------
// DeletePost removes the post and its comments.
func DeletePost(cfg *config.Config) gin.HandlerFunc {
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

		col := cfg.Collection(store.ColPosts)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var existing models.Post
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		if !canModify(role, existing.UserID, requesterID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		comments, err := cfg.Collection(store.ColComments).DeleteMany(ctx, bson.M{"post_id": oid})
		if err != nil {
			serverError(c, "failed to delete comments", err)
			return
		}
		if _, err := col.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
			serverError(c, "failed to delete post", err)
			return
		}
		go utils.DeleteImages(logger(c, cfg), existing.Images)

		c.JSON(http.StatusOK, gin.H{
			"message":          "post deleted successfully",
			"id":               oid.Hex(),
			"comments_deleted": comments.DeletedCount,
		})
	}
}

// ---------------- LIKES ----------------
func LikePost(cfg *config.Config) gin.HandlerFunc {
	return toggleLike(cfg, true)
}

func UnlikePost(cfg *config.Config) gin.HandlerFunc {
	return toggleLike(cfg, false)
}

// toggleLike only touches like_count when the likes set actually changes, so
// repeated likes are idempotent.
func toggleLike(cfg *config.Config, like bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		postID, ok := paramID(c, "id")
		if !ok {
			return
		}

		filter := bson.M{"_id": postID, "likes": bson.M{"$ne": userID}}
		update := bson.M{"$addToSet": bson.M{"likes": userID}, "$inc": bson.M{"like_count": 1}}
		if !like {
			filter = bson.M{"_id": postID, "likes": userID}
			update = bson.M{"$pull": bson.M{"likes": userID}, "$inc": bson.M{"like_count": -1}}
		}

		col := cfg.Collection(store.ColPosts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := col.UpdateOne(ctx, filter, update); err != nil {
			serverError(c, "could not update like", err)
			return
		}

		var post models.Post
		if err := col.FindOne(ctx, bson.M{"_id": postID}).Decode(&post); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":          post.ID.Hex(),
			"like_count":  post.LikeCount,
			"liked_by_me": likedBy(post, userID),
		})
	}
}

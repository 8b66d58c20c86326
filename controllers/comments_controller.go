package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
)

// CreateComment inserts the comment and bumps the post counter in one transaction.
func CreateComment(st *store.Store) gin.HandlerFunc {
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

		var input struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		comment := models.Comment{PostID: postID, UserID: userID, Content: input.Content}
		if err := st.CreateComment(ctx, &comment); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, comment)
	}
}

// ListComments returns a post's comments oldest first.
func ListComments(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		postID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := pagination(c).SetSort(bson.D{{Key: "created_at", Value: 1}})
		cursor, err := cfg.Collection(store.ColComments).Find(ctx, bson.M{"post_id": postID}, opts)
		if err != nil {
			serverError(c, "could not fetch comments", err)
			return
		}
		comments := []models.Comment{}
		if err := cursor.All(ctx, &comments); err != nil {
			serverError(c, "could not decode comments", err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

// DeleteComment is allowed for the comment author, the post author and admins.
func DeleteComment(cfg *config.Config, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requesterID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		commentID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		comment, err := st.CommentByID(ctx, commentID)
		if err != nil {
			respondError(c, err)
			return
		}

		allowed := canModify(role, comment.UserID, requesterID)
		if !allowed {
			var post models.Post
			opts := options.FindOne().SetProjection(bson.M{"user_id": 1})
			if err := cfg.Collection(store.ColPosts).FindOne(ctx, bson.M{"_id": comment.PostID}, opts).Decode(&post); err == nil {
				allowed = post.UserID == requesterID
			}
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		if err := st.DeleteComment(ctx, commentID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "comment deleted successfully",
			"id":      commentID.Hex(),
		})
	}
}

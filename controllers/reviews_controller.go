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
)

// UpsertReview stores the caller's single review of a business and refreshes
// the business rating.
func UpsertReview(cfg *config.Config, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		businessID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Rating  int    `json:"rating" binding:"required,min=1,max=5"`
			Comment string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		business, err := st.BusinessByID(ctx, businessID)
		if err != nil {
			respondError(c, err)
			return
		}
		if business.OwnerID == userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "owners cannot review their own business"})
			return
		}

		now := time.Now()
		filter := bson.M{"business_id": businessID, "user_id": userID}
		update := bson.M{
			"$set":         bson.M{"rating": input.Rating, "comment": input.Comment, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		}
		opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

		var review models.Review
		if err := cfg.Collection(store.ColReviews).FindOneAndUpdate(ctx, filter, update, opts).Decode(&review); err != nil {
			serverError(c, "could not save review", err)
			return
		}

		rating, count, err := st.RecomputeRating(ctx, businessID)
		if err != nil {
			logger(c, cfg).WithError(err).WithField("business_id", businessID.Hex()).Warn("rating not recomputed")
		}

		c.JSON(http.StatusOK, gin.H{
			"review":       review,
			"rating":       rating,
			"review_count": count,
		})
	}
}

func ListReviews(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cursor, err := cfg.Collection(store.ColReviews).Find(ctx, bson.M{"business_id": businessID}, pagination(c))
		if err != nil {
			serverError(c, "could not fetch reviews", err)
			return
		}
		var reviews []models.Review
		if err := cursor.All(ctx, &reviews); err != nil {
			serverError(c, "could not decode reviews", err)
			return
		}

		names, err := userNames(ctx, cfg, reviewAuthors(reviews))
		if err != nil {
			serverError(c, "could not load reviewers", err)
			return
		}

		out := make([]models.ReviewResponse, 0, len(reviews))
		for _, r := range reviews {
			out = append(out, models.ReviewResponse{
				ID:         r.ID,
				UserID:     r.UserID,
				UserName:   names[r.UserID],
				BusinessID: r.BusinessID,
				Rating:     r.Rating,
				Comment:    r.Comment,
				CreatedAt:  r.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

func reviewAuthors(reviews []models.Review) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(reviews))
	for _, r := range reviews {
		ids = append(ids, r.UserID)
	}
	return ids
}

// userNames resolves display names for a set of user ids.
func userNames(ctx context.Context, cfg *config.Config, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	opts := options.Find().SetProjection(bson.M{"name": 1})
	cursor, err := cfg.Collection(store.ColUsers).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/config"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/services"
	"github.com/phillip/localhub-go/store"
)

const maxWebhookBody = 64 << 10

// PaymentService is the subscription billing surface used by the handlers.
type PaymentService interface {
	Plans() []billing.Plan
	Checkout(ctx context.Context, who services.Requester, businessID primitive.ObjectID, planKey string) (*services.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	Cancel(ctx context.Context, who services.Requester, businessID primitive.ObjectID) (*services.CancelResult, error)
}

func ListPlans(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Plans())
	}
}

// ---------------- CHECKOUT ----------------
func CreateCheckout(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			BusinessID string `json:"business_id" binding:"required"`
			Plan       string `json:"plan" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		businessID, err := primitive.ObjectIDFromHex(input.BusinessID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		res, err := svc.Checkout(ctx, services.Requester{UserID: userID, Role: role}, businessID, input.Plan)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ---------------- WEBHOOK ----------------
// PaymentWebhook verifies the provider signature over the raw body. Bad
// signatures and malformed events get 400; other failures get 500 so the
// provider retries.
func PaymentWebhook(cfg *config.Config, svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		eventType, err := svc.HandleWebhook(ctx, payload, c.GetHeader("Stripe-Signature"))
		switch {
		case errors.Is(err, billing.ErrSignature):
			logger(c, cfg).WithError(err).Warn("webhook signature rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		case errors.Is(err, services.ErrMissingWebhookData):
			logger(c, cfg).WithError(err).WithField("event_type", eventType).Warn("webhook event rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			logger(c, cfg).WithError(err).WithField("event_type", eventType).Error("webhook handling failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true, "type": eventType})
	}
}

// ---------------- CANCEL ----------------
func CancelSubscription(svc PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input struct {
			BusinessID string `json:"business_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		businessID, err := primitive.ObjectIDFromHex(input.BusinessID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid business_id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		res, err := svc.Cancel(ctx, services.Requester{UserID: userID, Role: role}, businessID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ---------------- SUBSCRIPTIONS ----------------
// ListSubscriptions returns every subscription for admins and the caller's own otherwise.
func ListSubscriptions(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		filter := bson.M{}
		if role != models.RoleAdmin {
			filter["user_id"] = userID
		}
		if status := models.SubscriptionStatus(c.Query("status")); status != "" {
			if !status.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			filter["status"] = status
		}
		if bid := c.Query("business_id"); bid != "" {
			if oid, err := primitive.ObjectIDFromHex(bid); err == nil {
				filter["business_id"] = oid
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cursor, err := cfg.Collection(store.ColSubscriptions).Find(ctx, filter, pagination(c))
		if err != nil {
			serverError(c, "could not fetch subscriptions", err)
			return
		}
		subs := []models.Subscription{}
		if err := cursor.All(ctx, &subs); err != nil {
			serverError(c, "could not decode subscriptions", err)
			return
		}
		c.JSON(http.StatusOK, subs)
	}
}

func GetSubscription(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := requester(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		oid, ok := paramID(c, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var sub models.Subscription
		if err := cfg.Collection(store.ColSubscriptions).FindOne(ctx, bson.M{"_id": oid}).Decode(&sub); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		if !canModify(role, sub.UserID, userID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

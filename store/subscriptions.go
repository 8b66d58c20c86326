package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/localhub-go/models"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	now := time.Now()
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	sub.CreatedAt, sub.UpdatedAt = now, now
	if _, err := s.col(ColSubscriptions).InsertOne(ctx, sub); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Store) findSubscription(ctx context.Context, filter bson.M) (*models.Subscription, error) {
	var sub models.Subscription
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if err := s.col(ColSubscriptions).FindOne(ctx, filter, opts).Decode(&sub); err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *Store) SubscriptionByCheckoutSession(ctx context.Context, sessionID string) (*models.Subscription, error) {
	return s.findSubscription(ctx, bson.M{"checkout_session_id": sessionID})
}

func (s *Store) SubscriptionByProviderID(ctx context.Context, providerID string) (*models.Subscription, error) {
	return s.findSubscription(ctx, bson.M{"stripe_subscription_id": providerID})
}

// CurrentSubscription returns the newest live (active or past due) subscription of a business.
func (s *Store) CurrentSubscription(ctx context.Context, businessID primitive.ObjectID) (*models.Subscription, error) {
	return s.findSubscription(ctx, bson.M{
		"business_id":            businessID,
		"stripe_subscription_id": bson.M{"$exists": true, "$ne": ""},
		"status":                 bson.M{"$in": []models.SubscriptionStatus{models.SubscriptionActive, models.SubscriptionPastDue}},
	})
}

func (s *Store) UpdateSubscription(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	return s.setFields(ctx, ColSubscriptions, bson.M{"_id": id}, set)
}

package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the queries rely on. Safe to call on every start.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		ColUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColBusinesses: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "subscription_status", Value: 1}, {Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "is_featured", Value: -1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "subscription_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		ColReviews: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColEvents: {
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "starts_at", Value: 1}}},
		},
		ColJobs: {
			{Keys: bson.D{{Key: "business_id", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "expires_at", Value: 1}}},
		},
		ColComments: {
			{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		ColConversations: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
		ColMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		ColSponsors: {
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "views", Value: 1}}},
		},
		ColSubscriptions: {
			{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "stripe_subscription_id", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "checkout_session_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		ColAnalytics: {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "subject_id", Value: 1}, {Key: "day", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "day", Value: 1}}},
		},
	}

	for name, models := range specs {
		if _, err := s.col(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes on %s: %w", name, err)
		}
	}
	return nil
}

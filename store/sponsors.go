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

// ActiveSponsors returns every active sponsor, oldest first.
func (s *Store) ActiveSponsors(ctx context.Context) ([]models.SupportingCompany, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.col(ColSponsors).Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("find sponsors: %w", err)
	}
	var sponsors []models.SupportingCompany
	if err := cursor.All(ctx, &sponsors); err != nil {
		return nil, fmt.Errorf("decode sponsors: %w", err)
	}
	return sponsors, nil
}

// RecordSponsorView increments the view counters of one sponsor in a single
// update and returns the document after the change.
func (s *Store) RecordSponsorView(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.SupportingCompany, error) {
	update := bson.M{
		"$inc": bson.M{"views": 1, "monthly_views": 1},
		"$set": bson.M{"last_shown_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sp models.SupportingCompany
	err := s.col(ColSponsors).FindOneAndUpdate(ctx, bson.M{"_id": id, "is_active": true}, update, opts).Decode(&sp)
	if err != nil {
		return nil, notFound(err)
	}
	return &sp, nil
}

func (s *Store) IncrementSponsorClicks(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col(ColSponsors).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"clicks": 1}})
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetMonthlySponsorViews zeroes monthly_views on every sponsor.
func (s *Store) ResetMonthlySponsorViews(ctx context.Context) (int64, error) {
	res, err := s.col(ColSponsors).UpdateMany(ctx, bson.M{"monthly_views": bson.M{"$gt": 0}},
		bson.M{"$set": bson.M{"monthly_views": 0, "updated_at": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("reset monthly views: %w", err)
	}
	return res.ModifiedCount, nil
}

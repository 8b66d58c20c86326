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

func (s *Store) BusinessByID(ctx context.Context, id primitive.ObjectID) (*models.Business, error) {
	var b models.Business
	if err := s.col(ColBusinesses).FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// UpdateBusiness applies set and bumps updated_at.
func (s *Store) UpdateBusiness(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	return s.setFields(ctx, ColBusinesses, bson.M{"_id": id}, set)
}

// UpdateBusinessBySubscription mirrors provider state onto the business that
// holds the subscription.
func (s *Store) UpdateBusinessBySubscription(ctx context.Context, subscriptionID string, set bson.M) error {
	return s.setFields(ctx, ColBusinesses, bson.M{"subscription_id": subscriptionID}, set)
}

// CascadeResult reports what a business delete removed.
type CascadeResult struct {
	Business      models.Business
	EventsDeleted int64
	JobsDeleted   int64
	Images        []string // Cloudinary assets left to destroy
}

// DeleteBusinessCascade removes the business with its events, jobs, reviews
// and analytics. Children go first so a failure never leaves orphans behind a
// deleted parent. The steps are not atomic.
func (s *Store) DeleteBusinessCascade(ctx context.Context, id primitive.ObjectID) (*CascadeResult, error) {
	b, err := s.BusinessByID(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &CascadeResult{Business: *b, Images: b.Assets()}
	filter := bson.M{"business_id": id}
	projection := options.Find().SetProjection(bson.M{"images": 1})

	cursor, err := s.col(ColEvents).Find(ctx, filter, projection)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	for _, ev := range events {
		res.Images = append(res.Images, ev.Images...)
	}

	cursor, err = s.col(ColJobs).Find(ctx, filter, projection)
	if err != nil {
		return nil, fmt.Errorf("find jobs: %w", err)
	}
	var jobs []models.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	for _, j := range jobs {
		res.Images = append(res.Images, j.Images...)
	}

	del, err := s.col(ColEvents).DeleteMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete events: %w", err)
	}
	res.EventsDeleted = del.DeletedCount

	del, err = s.col(ColJobs).DeleteMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("delete jobs: %w", err)
	}
	res.JobsDeleted = del.DeletedCount

	if _, err := s.col(ColReviews).DeleteMany(ctx, filter); err != nil {
		return nil, fmt.Errorf("delete reviews: %w", err)
	}
	if err := s.DeleteAnalytics(ctx, models.SubjectBusiness, id); err != nil {
		return nil, err
	}

	if _, err := s.col(ColBusinesses).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return nil, fmt.Errorf("delete business: %w", err)
	}
	return res, nil
}

// RecomputeRating refreshes rating and review_count from the reviews collection.
func (s *Store) RecomputeRating(ctx context.Context, businessID primitive.ObjectID) (float64, int, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"business_id": businessID}},
		{"$group": bson.M{"_id": nil, "avg": bson.M{"$avg": "$rating"}, "count": bson.M{"$sum": 1}}},
	}
	cursor, err := s.col(ColReviews).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregate reviews: %w", err)
	}
	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("decode review stats: %w", err)
	}

	var avg float64
	var count int
	if len(rows) > 0 {
		avg, count = rows[0].Avg, rows[0].Count
	}
	err = s.UpdateBusiness(ctx, businessID, bson.M{"rating": avg, "review_count": count})
	return avg, count, err
}

func (s *Store) setFields(ctx context.Context, collection string, filter, set bson.M) error {
	doc := bson.M{"updated_at": time.Now()}
	for k, v := range set {
		doc[k] = v
	}
	res, err := s.col(collection).UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

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

// IncrementCounter adds n to one daily counter, creating the day on first write.
func (s *Store) IncrementCounter(ctx context.Context, kind string, subjectID primitive.ObjectID, day, counter string, n int64) error {
	filter := bson.M{"kind": kind, "subject_id": subjectID, "day": day}
	update := bson.M{
		"$inc": bson.M{"counters." + counter: n},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err := s.col(ColAnalytics).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("increment %s: %w", counter, err)
	}
	return nil
}

// AnalyticsDays loads day documents in [from, to]. A nil subject selects every
// subject of the kind.
func (s *Store) AnalyticsDays(ctx context.Context, kind string, subjectID *primitive.ObjectID, from, to string) ([]models.AnalyticsDay, error) {
	filter := bson.M{"kind": kind, "day": bson.M{"$gte": from, "$lte": to}}
	if subjectID != nil {
		filter["subject_id"] = *subjectID
	}

	opts := options.Find().SetSort(bson.D{{Key: "day", Value: 1}})
	cursor, err := s.col(ColAnalytics).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find analytics: %w", err)
	}
	var days []models.AnalyticsDay
	if err := cursor.All(ctx, &days); err != nil {
		return nil, fmt.Errorf("decode analytics: %w", err)
	}
	return days, nil
}

func (s *Store) DeleteAnalytics(ctx context.Context, kind string, subjectID primitive.ObjectID) error {
	if _, err := s.col(ColAnalytics).DeleteMany(ctx, bson.M{"kind": kind, "subject_id": subjectID}); err != nil {
		return fmt.Errorf("delete analytics: %w", err)
	}
	return nil
}

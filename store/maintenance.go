package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// DeactivateExpired flips is_active off for events that ended and jobs past
// their expiry.
func (s *Store) DeactivateExpired(ctx context.Context, now time.Time) (events, jobs int64, err error) {
	set := bson.M{"$set": bson.M{"is_active": false, "updated_at": now}}

	res, err := s.col(ColEvents).UpdateMany(ctx, bson.M{"is_active": true, "ends_at": bson.M{"$lt": now}}, set)
	if err != nil {
		return 0, 0, fmt.Errorf("expire events: %w", err)
	}
	events = res.ModifiedCount

	res, err = s.col(ColJobs).UpdateMany(ctx, bson.M{"is_active": true, "expires_at": bson.M{"$lt": now}}, set)
	if err != nil {
		return events, 0, fmt.Errorf("expire jobs: %w", err)
	}
	return events, res.ModifiedCount, nil
}

// Package store holds the Mongo queries shared by services and handlers that
// need more than a single-collection CRUD call.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names.
const (
	ColUsers         = "users"
	ColBusinesses    = "businesses"
	ColReviews       = "reviews"
	ColEvents        = "events"
	ColJobs          = "jobs"
	ColPosts         = "posts"
	ColComments      = "comments"
	ColConversations = "conversations"
	ColMessages      = "messages"
	ColSponsors      = "supporting_companies"
	ColSubscriptions = "subscriptions"
	ColAnalytics     = "analytics"
)

// ErrNotFound is returned when a lookup or update matched no document.
var ErrNotFound = errors.New("document not found")

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// withTransaction runs fn in a multi-document transaction.
func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

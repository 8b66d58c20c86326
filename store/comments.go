package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/phillip/localhub-go/models"
)

// CreateComment inserts the comment and bumps the post's comment_count in one
// transaction. ErrNotFound means the post does not exist.
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return s.insertCounted(sc, c)
	})
}

// insertCounted is the body of the CreateComment transaction. The post is
// touched first so a missing post aborts before anything is inserted.
func (s *Store) insertCounted(ctx context.Context, c *models.Comment) error {
	res, err := s.col(ColPosts).UpdateOne(ctx, bson.M{"_id": c.PostID},
		bson.M{"$inc": bson.M{"comment_count": 1}})
	if err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.col(ColComments).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var c models.Comment
	if err := s.col(ColComments).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// DeleteComment removes the comment and decrements its post's counter in one transaction.
func (s *Store) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return s.deleteCounted(sc, id)
	})
}

func (s *Store) deleteCounted(ctx context.Context, id primitive.ObjectID) error {
	var c models.Comment
	if err := s.col(ColComments).FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return notFound(err)
	}
	_, err := s.col(ColPosts).UpdateOne(ctx,
		bson.M{"_id": c.PostID, "comment_count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"comment_count": -1}})
	if err != nil {
		return fmt.Errorf("decrement comment count: %w", err)
	}
	return nil
}

package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/models"
)

func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.col(ColUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	return s.setFields(ctx, ColUsers, bson.M{"_id": id}, set)
}

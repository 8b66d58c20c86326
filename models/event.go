package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Event struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"user_id" json:"user_id"` // Organizer
	BusinessID  *primitive.ObjectID `bson:"business_id,omitempty" json:"business_id,omitempty"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description,omitempty" json:"description,omitempty"`
	Location    string              `bson:"location,omitempty" json:"location,omitempty"`
	StartsAt    *time.Time          `bson:"starts_at,omitempty" json:"starts_at,omitempty"`
	EndsAt      *time.Time          `bson:"ends_at,omitempty" json:"ends_at,omitempty"`
	IsActive    bool                `bson:"is_active" json:"is_active"`
	Images      []string            `bson:"images" json:"images"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

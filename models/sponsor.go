package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SupportingCompany is a sponsor rotated through the sponsor slot.
type SupportingCompany struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Logo         string             `bson:"logo,omitempty" json:"logo,omitempty"`
	Website      string             `bson:"website,omitempty" json:"website,omitempty"`
	Tagline      string             `bson:"tagline,omitempty" json:"tagline,omitempty"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	Views        int64              `bson:"views" json:"views"`
	MonthlyViews int64              `bson:"monthly_views" json:"monthly_views"`
	Clicks       int64              `bson:"clicks" json:"clicks"`
	LastShownAt  *time.Time         `bson:"last_shown_at,omitempty" json:"last_shown_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

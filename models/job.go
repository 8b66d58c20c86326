package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Job struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	BusinessID     primitive.ObjectID `bson:"business_id" json:"business_id"`
	Title          string             `bson:"title" json:"title"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	EmploymentType string             `bson:"employment_type,omitempty" json:"employment_type,omitempty"` // full-time, part-time, contract, seasonal
	Salary         string             `bson:"salary,omitempty" json:"salary,omitempty"`
	Location       string             `bson:"location,omitempty" json:"location,omitempty"`
	ApplyURL       string             `bson:"apply_url,omitempty" json:"apply_url,omitempty"`
	Images         []string           `bson:"images" json:"images"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	ExpiresAt      *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

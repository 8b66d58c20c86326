package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinates struct for latitude and longitude
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type Business struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Name         string             `bson:"name" json:"name"`
	Category     string             `bson:"category,omitempty" json:"category,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	LocationName string             `bson:"location_name,omitempty" json:"location_name,omitempty"`
	Coordinates  *Coordinates       `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty"`
	Website      string             `bson:"website,omitempty" json:"website,omitempty"`
	Hours        string             `bson:"hours,omitempty" json:"hours,omitempty"`
	Logo         string             `bson:"logo,omitempty" json:"logo,omitempty"`
	Images       []string           `bson:"images" json:"images"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	IsFeatured   bool               `bson:"is_featured" json:"is_featured"`
	Rating       float64            `bson:"rating" json:"rating"`
	ReviewCount  int                `bson:"review_count" json:"review_count"`

	// Mirrored from the payment provider
	SubscriptionStatus SubscriptionStatus `bson:"subscription_status" json:"subscription_status"`
	SubscriptionID     string             `bson:"subscription_id,omitempty" json:"subscription_id,omitempty"`
	StripeCustomerID   string             `bson:"stripe_customer_id,omitempty" json:"-"`
	Plan               string             `bson:"plan,omitempty" json:"plan,omitempty"`
	CurrentPeriodEnd   *time.Time         `bson:"current_period_end,omitempty" json:"current_period_end,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`

	// Enriched fields
	IsFavorite bool `json:"is_favorite,omitempty" bson:"-"`
}

// Assets returns every Cloudinary asset owned by the business.
func (b Business) Assets() []string {
	assets := append([]string{}, b.Images...)
	if b.Logo != "" {
		assets = append(assets, b.Logo)
	}
	return assets
}

// --- Review ---
type Review struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	BusinessID primitive.ObjectID `bson:"business_id" json:"business_id"`
	Rating     int                `bson:"rating" json:"rating"` // 1-5
	Comment    string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

type ReviewResponse struct {
	ID         primitive.ObjectID `json:"id"`
	UserID     primitive.ObjectID `json:"user_id"`
	UserName   string             `json:"user_name"`
	BusinessID primitive.ObjectID `json:"business_id"`
	Rating     int                `json:"rating"`
	Comment    string             `json:"comment"`
	CreatedAt  time.Time          `json:"created_at"`
}

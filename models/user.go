package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name               string               `bson:"name" json:"name"`
	Email              string               `bson:"email" json:"email"`
	PasswordHash       string               `bson:"password_hash" json:"-"`
	Role               string               `bson:"role" json:"role"`
	Avatar             string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Bio                string               `bson:"bio,omitempty" json:"bio,omitempty"`
	StripeCustomerID   string               `bson:"stripe_customer_id,omitempty" json:"-"`
	SubscriptionStatus SubscriptionStatus   `bson:"subscription_status" json:"subscription_status"`
	Favorites          []primitive.ObjectID `bson:"favorites" json:"favorites"`
	CreatedAt          time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time            `bson:"updated_at" json:"updated_at"`
}

// PublicUser is what other members see.
type PublicUser struct {
	ID     primitive.ObjectID `json:"id"`
	Name   string             `json:"name"`
	Avatar string             `json:"avatar,omitempty"`
	Bio    string             `json:"bio,omitempty"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Bio: u.Bio}
}

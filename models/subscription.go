package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionStatus is one of the four states mirrored from the payment provider.
type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled:
		return true
	}
	return false
}

// ProviderStatus maps a Stripe subscription status onto the four local states.
func ProviderStatus(s string) SubscriptionStatus {
	switch s {
	case "active", "trialing":
		return SubscriptionActive
	case "past_due", "unpaid":
		return SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return SubscriptionCanceled
	default:
		return SubscriptionInactive
	}
}

type Subscription struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BusinessID           primitive.ObjectID `bson:"business_id" json:"business_id"`
	UserID               primitive.ObjectID `bson:"user_id" json:"user_id"`
	Plan                 string             `bson:"plan" json:"plan"`
	Status               SubscriptionStatus `bson:"status" json:"status"`
	StripeSubscriptionID string             `bson:"stripe_subscription_id,omitempty" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     string             `bson:"stripe_customer_id,omitempty" json:"stripe_customer_id,omitempty"`
	CheckoutSessionID    string             `bson:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	CurrentPeriodEnd     *time.Time         `bson:"current_period_end,omitempty" json:"current_period_end,omitempty"`
	CanceledAt           *time.Time         `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

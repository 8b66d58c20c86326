package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// ErrSignature is returned when a webhook payload fails verification.
var ErrSignature = errors.New("invalid webhook signature")

// CheckoutSessionInput describes a subscription checkout for one business.
type CheckoutSessionInput struct {
	PriceID       string
	BusinessID    string
	UserID        string
	Plan          string
	CustomerID    string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Provider is the subset of the payment provider the app relies on.
type Provider interface {
	EnsurePrice(ctx context.Context, plan Plan) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*stripe.CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

// StripeProvider implements Provider on the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	log           logrus.FieldLogger

	mu     sync.Mutex
	prices map[string]string // lookup key -> price id
}

func NewStripeProvider(secretKey, webhookSecret string, log logrus.FieldLogger) *StripeProvider {
	return &StripeProvider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
		log:           log,
		prices:        make(map[string]string),
	}
}

// EnsurePrice returns the price for plan, creating product and price on first
// use. Creation is keyed by the plan's lookup key for both the price lookup
// and the idempotency keys, so racing instances converge on one price.
func (s *StripeProvider) EnsurePrice(ctx context.Context, plan Plan) (string, error) {
	key := plan.LookupKey()

	s.mu.Lock()
	id, ok := s.prices[key]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	listParams := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{key}),
		Active:     stripe.Bool(true),
	}
	listParams.Context = ctx

	it := s.api.Prices.List(listParams)
	if it.Next() {
		id = it.Price().ID
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("list prices: %w", err)
	}

	if id == "" {
		productParams := &stripe.ProductParams{
			Name: stripe.String(plan.Name),
		}
		productParams.Context = ctx
		productParams.AddMetadata("plan", plan.Key)
		productParams.SetIdempotencyKey("product-" + key)

		product, err := s.api.Products.New(productParams)
		if err != nil {
			return "", fmt.Errorf("create product: %w", err)
		}

		priceParams := &stripe.PriceParams{
			Product:    stripe.String(product.ID),
			Currency:   stripe.String(plan.Currency),
			UnitAmount: stripe.Int64(plan.UnitAmount),
			Recurring: &stripe.PriceRecurringParams{
				Interval: stripe.String(plan.Interval),
			},
			LookupKey:         stripe.String(key),
			TransferLookupKey: stripe.Bool(true),
		}
		priceParams.Context = ctx
		priceParams.SetIdempotencyKey("price-" + key)

		price, err := s.api.Prices.New(priceParams)
		if err != nil {
			return "", fmt.Errorf("create price: %w", err)
		}
		id = price.ID
		s.log.WithFields(logrus.Fields{"plan": plan.Key, "price_id": id}).Info("created provider price")
	}

	s.mu.Lock()
	s.prices[key] = id
	s.mu.Unlock()
	return id, nil
}

func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	metadata := map[string]string{
		"business_id": in.BusinessID,
		"user_id":     in.UserID,
		"plan":        in.Plan,
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.BusinessID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sess, nil
}

func (s *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

func (s *StripeProvider) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return event, nil
}

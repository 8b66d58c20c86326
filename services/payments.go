package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/metrics"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
	"github.com/phillip/localhub-go/utils"
)

type PaymentStore interface {
	BusinessByID(ctx context.Context, id primitive.ObjectID) (*models.Business, error)
	UpdateBusiness(ctx context.Context, id primitive.ObjectID, set bson.M) error
	UpdateBusinessBySubscription(ctx context.Context, subscriptionID string, set bson.M) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateUser(ctx context.Context, id primitive.ObjectID, set bson.M) error
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	SubscriptionByCheckoutSession(ctx context.Context, sessionID string) (*models.Subscription, error)
	SubscriptionByProviderID(ctx context.Context, providerID string) (*models.Subscription, error)
	CurrentSubscription(ctx context.Context, businessID primitive.ObjectID) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, id primitive.ObjectID, set bson.M) error
}

// Mailer delivers a rendered email. Delivery is best-effort.
type Mailer func(to, name, subject, body string)

// Payments forwards subscription requests to the payment provider and mirrors
// the outcome into the subscriptions, businesses and users collections.
type Payments struct {
	provider billing.Provider
	store    PaymentStore
	plans    billing.Catalog
	baseURL  string
	mail     Mailer
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPayments(provider billing.Provider, s PaymentStore, plans billing.Catalog, baseURL string, log logrus.FieldLogger) *Payments {
	return &Payments{
		provider: provider,
		store:    s,
		plans:    plans,
		baseURL:  baseURL,
		log:      log,
		now:      time.Now,
		mail: func(to, name, subject, body string) {
			utils.SendEmailAsync(log, to, name, subject, body)
		},
	}
}

// Plans lists the purchasable plans.
func (p *Payments) Plans() []billing.Plan {
	return p.plans.List()
}

type Requester struct {
	UserID primitive.ObjectID
	Role   string
}

func (r Requester) owns(b *models.Business) bool {
	return r.Role == models.RoleAdmin || b.OwnerID == r.UserID
}

type CheckoutResult struct {
	SessionID      string `json:"session_id"`
	URL            string `json:"url"`
	SubscriptionID string `json:"subscription_id"`
}

// Checkout resolves the plan's price (creating it upstream on first use) and
// opens a subscription checkout session for the business.
func (p *Payments) Checkout(ctx context.Context, who Requester, businessID primitive.ObjectID, planKey string) (*CheckoutResult, error) {
	plan, ok := p.plans.Get(planKey)
	if !ok {
		return nil, ErrUnknownPlan
	}

	b, err := p.store.BusinessByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !who.owns(b) {
		return nil, ErrNotOwner
	}
	if b.SubscriptionStatus == models.SubscriptionActive {
		return nil, ErrAlreadySubscribed
	}

	user, err := p.store.UserByID(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	priceID, err := p.provider.EnsurePrice(ctx, plan)
	if err != nil {
		return nil, err
	}

	customerID := b.StripeCustomerID
	if customerID == "" {
		customerID = user.StripeCustomerID
	}

	page := fmt.Sprintf("%s/businesses/%s", p.baseURL, businessID.Hex())
	sess, err := p.provider.CreateCheckoutSession(ctx, billing.CheckoutSessionInput{
		PriceID:       priceID,
		BusinessID:    businessID.Hex(),
		UserID:        who.UserID.Hex(),
		Plan:          plan.Key,
		CustomerID:    customerID,
		CustomerEmail: user.Email,
		SuccessURL:    page + "?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     page + "?checkout=canceled",
	})
	if err != nil {
		return nil, err
	}

	record := &models.Subscription{
		BusinessID:        businessID,
		UserID:            who.UserID,
		Plan:              plan.Key,
		Status:            models.SubscriptionInactive,
		StripeCustomerID:  customerID,
		CheckoutSessionID: sess.ID,
	}
	if err := p.store.CreateSubscription(ctx, record); err != nil {
		return nil, err
	}

	metrics.CheckoutsCreated.WithLabelValues(plan.Key).Inc()
	p.log.WithFields(logrus.Fields{
		"business_id": businessID.Hex(),
		"plan":        plan.Key,
		"session_id":  sess.ID,
	}).Info("checkout session created")

	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, SubscriptionID: record.ID.Hex()}, nil
}

// HandleWebhook verifies and applies one provider event. It returns the event
// type. Any error other than a signature failure asks the provider to retry.
func (p *Payments) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	event, err := p.provider.ParseWebhook(payload, signature)
	if err != nil {
		return "", err
	}
	eventType := string(event.Type)
	log := p.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": eventType})

	if event.Data == nil || len(event.Data.Raw) == 0 {
		metrics.WebhookEvents.WithLabelValues(eventType, "invalid").Inc()
		return eventType, ErrMissingWebhookData
	}

	switch eventType {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &sess); err == nil {
			err = p.checkoutCompleted(ctx, log, &sess)
		}

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err == nil {
			err = p.mirrorStatus(ctx, log, sub.ID, models.ProviderStatus(string(sub.Status)), sub.CurrentPeriodEnd)
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err = json.Unmarshal(event.Data.Raw, &sub); err == nil {
			err = p.mirrorStatus(ctx, log, sub.ID, models.SubscriptionCanceled, sub.CurrentPeriodEnd)
		}

	case "invoice.payment_failed", "invoice.paid":
		var inv stripe.Invoice
		if err = json.Unmarshal(event.Data.Raw, &inv); err == nil {
			if inv.Subscription == nil || inv.Subscription.ID == "" {
				log.Info("invoice without subscription ignored")
				break
			}
			status := models.SubscriptionPastDue
			if eventType == "invoice.paid" {
				status = models.SubscriptionActive
			}
			err = p.mirrorStatus(ctx, log, inv.Subscription.ID, status, 0)
		}

	default:
		log.Debug("webhook event ignored")
		metrics.WebhookEvents.WithLabelValues(eventType, "ignored").Inc()
		return eventType, nil
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(eventType, "error").Inc()
		return eventType, err
	}
	metrics.WebhookEvents.WithLabelValues(eventType, "applied").Inc()
	return eventType, nil
}

func (p *Payments) checkoutCompleted(ctx context.Context, log logrus.FieldLogger, sess *stripe.CheckoutSession) error {
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		log.WithField("session_id", sess.ID).Info("checkout without subscription ignored")
		return nil
	}
	subID := sess.Subscription.ID
	var customerID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	record, err := p.store.SubscriptionByCheckoutSession(ctx, sess.ID)
	if errors.Is(err, store.ErrNotFound) {
		record, err = p.recordFromSession(ctx, sess)
	}
	if err != nil {
		return err
	}

	now := p.now()
	if err := p.store.UpdateSubscription(ctx, record.ID, bson.M{
		"status":                 models.SubscriptionActive,
		"stripe_subscription_id": subID,
		"stripe_customer_id":     customerID,
	}); err != nil {
		return fmt.Errorf("activate subscription record: %w", err)
	}

	if err := p.store.UpdateBusiness(ctx, record.BusinessID, bson.M{
		"subscription_status": models.SubscriptionActive,
		"subscription_id":     subID,
		"stripe_customer_id":  customerID,
		"plan":                record.Plan,
		"is_featured":         true,
	}); err != nil {
		return fmt.Errorf("activate business: %w", err)
	}

	if err := p.store.UpdateUser(ctx, record.UserID, bson.M{
		"subscription_status": models.SubscriptionActive,
		"stripe_customer_id":  customerID,
	}); err != nil {
		log.WithError(err).WithField("user_id", record.UserID.Hex()).Warn("user subscription status not mirrored")
	}

	log.WithFields(logrus.Fields{
		"business_id":     record.BusinessID.Hex(),
		"subscription_id": subID,
		"activated_at":    now.Format(time.RFC3339),
	}).Info("subscription activated")

	p.notify(ctx, log, record.UserID, record.BusinessID, func(u *models.User, b *models.Business) (string, string) {
		return utils.SubscriptionActivatedEmail(u.Name, b.Name, record.Plan)
	})
	return nil
}

// recordFromSession builds the local record for a session this service did
// not create, using the metadata attached at checkout.
func (p *Payments) recordFromSession(ctx context.Context, sess *stripe.CheckoutSession) (*models.Subscription, error) {
	businessHex := sess.ClientReferenceID
	if businessHex == "" {
		businessHex = sess.Metadata["business_id"]
	}
	businessID, err := primitive.ObjectIDFromHex(businessHex)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s has no business reference", ErrMissingWebhookData, sess.ID)
	}

	b, err := p.store.BusinessByID(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("business %s: %w", businessHex, err)
	}

	userID := b.OwnerID
	if uid, err := primitive.ObjectIDFromHex(sess.Metadata["user_id"]); err == nil {
		userID = uid
	}

	record := &models.Subscription{
		BusinessID:        businessID,
		UserID:            userID,
		Plan:              sess.Metadata["plan"],
		Status:            models.SubscriptionInactive,
		CheckoutSessionID: sess.ID,
	}
	if err := p.store.CreateSubscription(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// mirrorStatus copies a provider status change onto the three local documents.
// Unknown subscriptions are logged and acknowledged.
func (p *Payments) mirrorStatus(ctx context.Context, log logrus.FieldLogger, providerID string, status models.SubscriptionStatus, periodEnd int64) error {
	log = log.WithFields(logrus.Fields{"subscription_id": providerID, "status": status})

	record, err := p.store.SubscriptionByProviderID(ctx, providerID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook for unknown subscription")
		return nil
	}
	if err != nil {
		return err
	}

	subSet := bson.M{"status": status}
	bizSet := bson.M{
		"subscription_status": status,
		"is_featured":         status == models.SubscriptionActive,
	}
	if periodEnd > 0 {
		end := time.Unix(periodEnd, 0).UTC()
		subSet["current_period_end"] = end
		bizSet["current_period_end"] = end
	}
	if status == models.SubscriptionCanceled {
		subSet["canceled_at"] = p.now()
	}

	if err := p.store.UpdateSubscription(ctx, record.ID, subSet); err != nil {
		return fmt.Errorf("mirror subscription record: %w", err)
	}
	if err := p.store.UpdateBusinessBySubscription(ctx, providerID, bizSet); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("mirror business: %w", err)
		}
		log.Warn("no business holds this subscription")
	}
	if err := p.store.UpdateUser(ctx, record.UserID, bson.M{"subscription_status": status}); err != nil {
		log.WithError(err).Warn("user subscription status not mirrored")
	}

	log.Info("subscription status mirrored")
	return nil
}

type CancelResult struct {
	SubscriptionID string                    `json:"subscription_id"`
	Status         models.SubscriptionStatus `json:"status"`
	MirrorFailures []string                  `json:"mirror_failures,omitempty"`
}

// Cancel cancels the business's live subscription upstream, then updates the
// subscription record, the business and the owner. The three writes are
// best-effort and not atomic; failures are reported, not rolled back.
func (p *Payments) Cancel(ctx context.Context, who Requester, businessID primitive.ObjectID) (*CancelResult, error) {
	b, err := p.store.BusinessByID(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !who.owns(b) {
		return nil, ErrNotOwner
	}

	record, err := p.store.CurrentSubscription(ctx, businessID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}

	if _, err := p.provider.CancelSubscription(ctx, record.StripeSubscriptionID); err != nil {
		return nil, err
	}
	metrics.SubscriptionsCanceled.Inc()

	log := p.log.WithFields(logrus.Fields{
		"business_id":     businessID.Hex(),
		"subscription_id": record.StripeSubscriptionID,
	})
	result := &CancelResult{SubscriptionID: record.StripeSubscriptionID, Status: models.SubscriptionCanceled}
	now := p.now()

	if err := p.store.UpdateSubscription(ctx, record.ID, bson.M{
		"status":      models.SubscriptionCanceled,
		"canceled_at": now,
	}); err != nil {
		log.WithError(err).Error("subscription record not updated after cancel")
		result.MirrorFailures = append(result.MirrorFailures, store.ColSubscriptions)
	}
	if err := p.store.UpdateBusiness(ctx, businessID, bson.M{
		"subscription_status": models.SubscriptionCanceled,
		"is_featured":         false,
	}); err != nil {
		log.WithError(err).Error("business not updated after cancel")
		result.MirrorFailures = append(result.MirrorFailures, store.ColBusinesses)
	}
	if err := p.store.UpdateUser(ctx, record.UserID, bson.M{
		"subscription_status": models.SubscriptionCanceled,
	}); err != nil {
		log.WithError(err).Error("user not updated after cancel")
		result.MirrorFailures = append(result.MirrorFailures, store.ColUsers)
	}

	log.Info("subscription canceled")
	p.notify(ctx, log, record.UserID, businessID, func(u *models.User, b *models.Business) (string, string) {
		return utils.SubscriptionCanceledEmail(u.Name, b.Name)
	})
	return result, nil
}

func (p *Payments) notify(ctx context.Context, log logrus.FieldLogger, userID, businessID primitive.ObjectID, render func(*models.User, *models.Business) (string, string)) {
	if p.mail == nil {
		return
	}
	u, err := p.store.UserByID(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("email skipped, user not loaded")
		return
	}
	b, err := p.store.BusinessByID(ctx, businessID)
	if err != nil {
		log.WithError(err).Warn("email skipped, business not loaded")
		return
	}
	subject, body := render(u, b)
	p.mail(u.Email, u.Name, subject, body)
}

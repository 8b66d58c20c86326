package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/store"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeStore keeps documents in maps and records every $set it receives.
type fakeStore struct {
	mu sync.Mutex

	businesses    map[primitive.ObjectID]*models.Business
	users         map[primitive.ObjectID]*models.User
	subscriptions map[primitive.ObjectID]*models.Subscription
	sponsors      []models.SupportingCompany
	days          []models.AnalyticsDay
	counters      map[string]int64

	businessSets []bson.M
	userSets     []bson.M
	subSets      []bson.M

	failUpdateBusiness error
	failUpdateUser     error
	failRecordView     func(id primitive.ObjectID) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		businesses:    map[primitive.ObjectID]*models.Business{},
		users:         map[primitive.ObjectID]*models.User{},
		subscriptions: map[primitive.ObjectID]*models.Subscription{},
		counters:      map[string]int64{},
	}
}

func (f *fakeStore) BusinessByID(_ context.Context, id primitive.ObjectID) (*models.Business, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.businesses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) UpdateBusiness(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateBusiness != nil {
		return f.failUpdateBusiness
	}
	b, ok := f.businesses[id]
	if !ok {
		return store.ErrNotFound
	}
	f.businessSets = append(f.businessSets, set)
	applyBusiness(b, set)
	return nil
}

func (f *fakeStore) UpdateBusinessBySubscription(_ context.Context, subscriptionID string, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.businesses {
		if b.SubscriptionID == subscriptionID {
			f.businessSets = append(f.businessSets, set)
			applyBusiness(b, set)
			return nil
		}
	}
	return store.ErrNotFound
}

func applyBusiness(b *models.Business, set bson.M) {
	if v, ok := set["subscription_status"].(models.SubscriptionStatus); ok {
		b.SubscriptionStatus = v
	}
	if v, ok := set["subscription_id"].(string); ok {
		b.SubscriptionID = v
	}
	if v, ok := set["stripe_customer_id"].(string); ok {
		b.StripeCustomerID = v
	}
	if v, ok := set["plan"].(string); ok {
		b.Plan = v
	}
	if v, ok := set["is_featured"].(bool); ok {
		b.IsFeatured = v
	}
	if v, ok := set["current_period_end"].(time.Time); ok {
		b.CurrentPeriodEnd = &v
	}
}

func (f *fakeStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateUser != nil {
		return f.failUpdateUser
	}
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	f.userSets = append(f.userSets, set)
	if v, ok := set["subscription_status"].(models.SubscriptionStatus); ok {
		u.SubscriptionStatus = v
	}
	if v, ok := set["stripe_customer_id"].(string); ok {
		u.StripeCustomerID = v
	}
	return nil
}

func (f *fakeStore) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	sub.CreatedAt = time.Now()
	cp := *sub
	f.subscriptions[sub.ID] = &cp
	return nil
}

func (f *fakeStore) findSub(match func(*models.Subscription) bool) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subscriptions {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) SubscriptionByCheckoutSession(_ context.Context, sessionID string) (*models.Subscription, error) {
	return f.findSub(func(s *models.Subscription) bool { return s.CheckoutSessionID == sessionID })
}

func (f *fakeStore) SubscriptionByProviderID(_ context.Context, providerID string) (*models.Subscription, error) {
	return f.findSub(func(s *models.Subscription) bool { return s.StripeSubscriptionID == providerID })
}

func (f *fakeStore) CurrentSubscription(_ context.Context, businessID primitive.ObjectID) (*models.Subscription, error) {
	return f.findSub(func(s *models.Subscription) bool {
		return s.BusinessID == businessID && s.StripeSubscriptionID != "" &&
			(s.Status == models.SubscriptionActive || s.Status == models.SubscriptionPastDue)
	})
}

func (f *fakeStore) UpdateSubscription(_ context.Context, id primitive.ObjectID, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subscriptions[id]
	if !ok {
		return store.ErrNotFound
	}
	f.subSets = append(f.subSets, set)
	if v, ok := set["status"].(models.SubscriptionStatus); ok {
		s.Status = v
	}
	if v, ok := set["stripe_subscription_id"].(string); ok {
		s.StripeSubscriptionID = v
	}
	if v, ok := set["stripe_customer_id"].(string); ok {
		s.StripeCustomerID = v
	}
	if v, ok := set["current_period_end"].(time.Time); ok {
		s.CurrentPeriodEnd = &v
	}
	if v, ok := set["canceled_at"].(time.Time); ok {
		s.CanceledAt = &v
	}
	return nil
}

func (f *fakeStore) ActiveSponsors(_ context.Context) ([]models.SupportingCompany, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SupportingCompany
	for _, sp := range f.sponsors {
		if sp.IsActive {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordSponsorView(_ context.Context, id primitive.ObjectID, at time.Time) (*models.SupportingCompany, error) {
	if f.failRecordView != nil {
		if err := f.failRecordView(id); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sponsors {
		sp := &f.sponsors[i]
		if sp.ID == id && sp.IsActive {
			sp.Views++
			sp.MonthlyViews++
			sp.LastShownAt = &at
			cp := *sp
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) IncrementSponsorClicks(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sponsors {
		if f.sponsors[i].ID == id {
			f.sponsors[i].Clicks++
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) IncrementCounter(_ context.Context, kind string, subjectID primitive.ObjectID, day, counter string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[kind+"/"+subjectID.Hex()+"/"+day+"/"+counter] += n
	return nil
}

func (f *fakeStore) AnalyticsDays(_ context.Context, kind string, subjectID *primitive.ObjectID, from, to string) ([]models.AnalyticsDay, error) {
	var out []models.AnalyticsDay
	for _, d := range f.days {
		if d.Kind != kind || d.Day < from || d.Day > to {
			continue
		}
		if subjectID != nil && d.SubjectID != *subjectID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// fakeProvider stands in for the payment provider.
type fakeProvider struct {
	EnsurePriceFunc func(ctx context.Context, plan billing.Plan) (string, error)
	CheckoutFunc    func(ctx context.Context, in billing.CheckoutSessionInput) (*stripe.CheckoutSession, error)
	CancelFunc      func(ctx context.Context, id string) (*stripe.Subscription, error)

	checkouts []billing.CheckoutSessionInput
	canceled  []string
}

func (p *fakeProvider) EnsurePrice(ctx context.Context, plan billing.Plan) (string, error) {
	if p.EnsurePriceFunc != nil {
		return p.EnsurePriceFunc(ctx, plan)
	}
	return "price_" + plan.Key, nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, in billing.CheckoutSessionInput) (*stripe.CheckoutSession, error) {
	p.checkouts = append(p.checkouts, in)
	if p.CheckoutFunc != nil {
		return p.CheckoutFunc(ctx, in)
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	p.canceled = append(p.canceled, id)
	if p.CancelFunc != nil {
		return p.CancelFunc(ctx, id)
	}
	return &stripe.Subscription{ID: id, Status: "canceled"}, nil
}

// ParseWebhook accepts the signature "valid" and decodes the payload as an event.
func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	if signature != "valid" {
		return stripe.Event{}, billing.ErrSignature
	}
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, errors.Join(billing.ErrSignature, err)
	}
	return event, nil
}

func eventJSON(eventType string, object string) []byte {
	return []byte(`{"id":"evt_test","object":"event","type":"` + eventType + `","data":{"object":` + object + `}}`)
}

package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/localhub-go/billing"
	"github.com/phillip/localhub-go/models"
	"github.com/phillip/localhub-go/services"
)

type stubPayments struct {
	checkoutErr error
	webhookErr  error
	cancelErr   error

	gotWho      services.Requester
	gotBusiness primitive.ObjectID
	gotPlan     string
	gotPayload  string
	gotSig      string
}

func (s *stubPayments) Plans() []billing.Plan { return billing.DefaultCatalog().List() }

func (s *stubPayments) Checkout(_ context.Context, who services.Requester, businessID primitive.ObjectID, planKey string) (*services.CheckoutResult, error) {
	s.gotWho, s.gotBusiness, s.gotPlan = who, businessID, planKey
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return &services.CheckoutResult{SessionID: "cs_1", URL: "https://pay.test/cs_1", SubscriptionID: "sub-row"}, nil
}

func (s *stubPayments) HandleWebhook(_ context.Context, payload []byte, signature string) (string, error) {
	s.gotPayload, s.gotSig = string(payload), signature
	return "checkout.session.completed", s.webhookErr
}

func (s *stubPayments) Cancel(_ context.Context, who services.Requester, businessID primitive.ObjectID) (*services.CancelResult, error) {
	s.gotWho, s.gotBusiness = who, businessID
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return &services.CancelResult{SubscriptionID: "sub_123", Status: models.SubscriptionCanceled, MirrorFailures: []string{"users"}}, nil
}

func paymentsRouter(svc PaymentService, userID primitive.ObjectID) *gin.Engine {
	r := gin.New()
	r.GET("/payments/plans", ListPlans(svc))
	r.POST("/payments/webhook", PaymentWebhook(testConfig(), svc))
	authed := r.Group("", as(userID, models.RoleUser))
	authed.POST("/payments/checkout", CreateCheckout(svc))
	authed.POST("/payments/cancel", CancelSubscription(svc))
	r.POST("/anon/checkout", CreateCheckout(svc))
	return r
}

func TestListPlans(t *testing.T) {
	r := paymentsRouter(&stubPayments{}, primitive.NewObjectID())
	w := perform(r, http.MethodGet, "/payments/plans", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"basic"`)
	assert.Contains(t, w.Body.String(), `"key":"premium"`)
}

func TestCreateCheckout(t *testing.T) {
	uid, bid := primitive.NewObjectID(), primitive.NewObjectID()
	svc := &stubPayments{}
	r := paymentsRouter(svc, uid)

	w := perform(r, http.MethodPost, "/payments/checkout", fmt.Sprintf(`{"business_id":%q,"plan":"basic"}`, bid.Hex()))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "https://pay.test/cs_1", body["url"])
	assert.Equal(t, "cs_1", body["session_id"])
	assert.Equal(t, uid, svc.gotWho.UserID)
	assert.Equal(t, models.RoleUser, svc.gotWho.Role)
	assert.Equal(t, bid, svc.gotBusiness)
	assert.Equal(t, "basic", svc.gotPlan)
}

func TestCreateCheckout_Rejections(t *testing.T) {
	bid := primitive.NewObjectID().Hex()
	tests := []struct {
		name string
		path string
		body string
		err  error
		want int
	}{
		{"unauthenticated", "/anon/checkout", `{"business_id":"` + bid + `","plan":"basic"}`, nil, http.StatusUnauthorized},
		{"missing plan", "/payments/checkout", `{"business_id":"` + bid + `"}`, nil, http.StatusBadRequest},
		{"bad business id", "/payments/checkout", `{"business_id":"zzz","plan":"basic"}`, nil, http.StatusBadRequest},
		{"unknown plan", "/payments/checkout", `{"business_id":"` + bid + `","plan":"gold"}`, services.ErrUnknownPlan, http.StatusBadRequest},
		{"not owner", "/payments/checkout", `{"business_id":"` + bid + `","plan":"basic"}`, services.ErrNotOwner, http.StatusForbidden},
		{"already subscribed", "/payments/checkout", `{"business_id":"` + bid + `","plan":"basic"}`, services.ErrAlreadySubscribed, http.StatusConflict},
		{"upstream failure", "/payments/checkout", `{"business_id":"` + bid + `","plan":"basic"}`, fmt.Errorf("stripe down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := paymentsRouter(&stubPayments{checkoutErr: tt.err}, primitive.NewObjectID())
			w := perform(r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestPaymentWebhook(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"handled", nil, http.StatusOK},
		{"bad signature", billing.ErrSignature, http.StatusBadRequest},
		{"missing data", fmt.Errorf("%w: business_id", services.ErrMissingWebhookData), http.StatusBadRequest},
		{"store failure", fmt.Errorf("mongo timeout"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubPayments{webhookErr: tt.err}
			r := paymentsRouter(svc, primitive.NewObjectID())

			req := newRequest(http.MethodPost, "/payments/webhook", `{"id":"evt_1"}`)
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			w := serve(r, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, `{"id":"evt_1"}`, svc.gotPayload)
			assert.Equal(t, "t=1,v1=abc", svc.gotSig)
			if tt.err == nil {
				body := decode(t, w)
				assert.Equal(t, true, body["received"])
				assert.Equal(t, "checkout.session.completed", body["type"])
			}
		})
	}
}

func TestPaymentWebhook_OversizedBody(t *testing.T) {
	svc := &stubPayments{}
	r := paymentsRouter(svc, primitive.NewObjectID())

	body := `{"id":"evt_1","pad":"` + strings.Repeat("x", maxWebhookBody) + `"}`
	req := newRequest(http.MethodPost, "/payments/webhook", body)
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := serve(r, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload too large", decode(t, w)["error"])
	assert.Empty(t, svc.gotPayload)
	assert.Empty(t, svc.gotSig)
}

func TestCancelSubscription(t *testing.T) {
	uid, bid := primitive.NewObjectID(), primitive.NewObjectID()
	svc := &stubPayments{}
	r := paymentsRouter(svc, uid)

	w := perform(r, http.MethodPost, "/payments/cancel", fmt.Sprintf(`{"business_id":%q}`, bid.Hex()))
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "canceled", body["status"])
	assert.Equal(t, []interface{}{"users"}, body["mirror_failures"])
	assert.Equal(t, bid, svc.gotBusiness)

	r = paymentsRouter(&stubPayments{cancelErr: services.ErrNoSubscription}, uid)
	w = perform(r, http.MethodPost, "/payments/cancel", fmt.Sprintf(`{"business_id":%q}`, bid.Hex()))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPost, "/payments/cancel", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

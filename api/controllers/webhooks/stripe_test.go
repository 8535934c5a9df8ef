package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/electronicjova/storefront-backend/pkg/errors"
)

const testSecret = "whsec_test"

func TestStripeWebhook_Success(t *testing.T) {
	payload, header := buildSignedEvent(t, testSecret)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(service.events) != 1 {
		t.Fatalf("expected service called once, got %d", len(service.events))
	}
	if service.events[0].Type != stripe.EventTypeCheckoutSessionCompleted {
		t.Fatalf("unexpected event type %s", service.events[0].Type)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, testSecret)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, nil)

	rec := post(handler, payload, "t=1,v1=invalid")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if len(service.events) != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestStripeWebhook_WrongSecret(t *testing.T) {
	payload, header := buildSignedEvent(t, "whsec_other")
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign secret, got %d", rec.Code)
	}
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	payload, _ := buildSignedEvent(t, testSecret)
	service := &fakeStripeWebhookService{}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, nil)

	rec := post(handler, payload, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d", rec.Code)
	}
}

func TestStripeWebhook_ServiceFailureSurfaces(t *testing.T) {
	payload, header := buildSignedEvent(t, testSecret)
	service := &fakeStripeWebhookService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	handler := StripeWebhook(service, &fakeSigningClient{secret: testSecret}, nil)

	rec := post(handler, payload, header)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 so stripe retries, got %d", rec.Code)
	}
}

func post(handler http.Handler, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func buildSignedEvent(t *testing.T, secret string) ([]byte, string) {
	t.Helper()
	session := map[string]any{
		"id":             "cs_test_" + uuid.NewString(),
		"object":         "checkout.session",
		"payment_intent": "pi_123",
		"payment_status": "paid",
		"metadata":       map[string]string{"order_id": uuid.NewString()},
	}
	rawSession, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawSession,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, buildStripeSignatureHeader(payload, secret, time.Now().Unix())
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeStripeWebhookService struct {
	events []*stripe.Event
	err    error
}

func (f *fakeStripeWebhookService) HandleEvent(_ context.Context, event *stripe.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

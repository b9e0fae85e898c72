package webhook

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/logger"
)

type testWebhookConfig struct {
	secret string
}

func (c testWebhookConfig) GetCalcomWebhookSecret() string { return c.secret }

func newTestRouter(t *testing.T, store *memStore, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reconciler := newReconciler(store, &captureBus{})
	handler := NewHandler(reconciler, testWebhookConfig{secret: secret}, logger.New("development"))

	engine := gin.New()
	handler.RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func post(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/calcom", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAppliesSignedEvent(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	secret := "whsec_test"
	router := newTestRouter(t, store, secret)

	body := []byte(`{
		"triggerEvent": "BOOKING_CREATED",
		"payload": {
			"uid": "cal_abc",
			"bookingId": 501,
			"startTime": "` + time.Now().UTC().Format(time.RFC3339) + `",
			"metadata": {"lead_id": "` + lead.ID.String() + `"}
		}
	}`)

	w := post(router, body, sign(secret, body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if got := store.get(lead.ID); got.Status != domain.StatusBooked {
		t.Fatalf("lead status = %q, want booked", got.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	router := newTestRouter(t, store, "whsec_test")

	body := []byte(`{"triggerEvent": "BOOKING_CREATED", "payload": {"uid": "cal_abc"}}`)
	w := post(router, body, "deadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := store.get(lead.ID); got.Status != domain.StatusContacted {
		t.Fatal("unauthenticated event must not touch lead state")
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	secret := "whsec_test"
	router := newTestRouter(t, newMemStore(), secret)

	body := []byte(`{not json`)
	if w := post(router, body, sign(secret, body)); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookAcksUnresolvableEvent(t *testing.T) {
	secret := "whsec_test"
	router := newTestRouter(t, newMemStore(), secret)

	// An event for a booking this system never created must still be acked,
	// or the provider will retry it forever.
	body := []byte(`{"triggerEvent": "BOOKING_CANCELLED", "payload": {"uid": "cal_stranger"}}`)
	if w := post(router, body, sign(secret, body)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestWebhookInsecureModeAcceptsUnsigned(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	router := newTestRouter(t, store, "")

	body := []byte(`{
		"triggerEvent": "BOOKING_CREATED",
		"payload": {"uid": "cal_abc", "metadata": {"lead_id": "` + lead.ID.String() + `"}}
	}`)
	if w := post(router, body, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestWebhookAlwaysAcksUUIDGarbage(t *testing.T) {
	secret := "whsec_test"
	router := newTestRouter(t, newMemStore(), secret)

	body := []byte(`{"triggerEvent": "BOOKING_CREATED", "payload": {"uid": "x", "metadata": {"lead_id": "` + uuid.NewString() + `"}}}`)
	if w := post(router, body, sign(secret, body)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

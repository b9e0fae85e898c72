package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/logger"
)

type testSMSConfig struct {
	apiURL string
}

func (c testSMSConfig) GetSMSCAPIURL() string   { return c.apiURL }
func (c testSMSConfig) GetSMSCLogin() string    { return "login" }
func (c testSMSConfig) GetSMSCPassword() string { return "secret" }
func (c testSMSConfig) GetSMSCSender() string   { return "FastLead" }

func smsLead() domain.Lead {
	return domain.Lead{Phone: "+79991234567", Channel: domain.ChannelSMS}
}

func newSMSAdapter(t *testing.T, handler http.HandlerFunc) *SMSAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewSMSAdapter(testSMSConfig{apiURL: server.URL}, logger.New("development"))
}

func TestSMSAdapterSend(t *testing.T) {
	adapter := newSMSAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("phones"); got != "+79991234567" {
			t.Errorf("phones = %q, want normalized E.164", got)
		}
		if got := r.PostForm.Get("mes"); got == "" {
			t.Error("message body missing")
		}
		w.Write([]byte(`{"id": 42, "cnt": 1}`))
	})

	result, err := adapter.Send(context.Background(), Request{Lead: smsLead(), Message: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.Provider != "smsc" || result.ProviderMessageID != "42" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSMSAdapterClassifiesGatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind apperr.Kind
	}{
		{"bad credentials are permanent", `{"error": "invalid login", "error_code": 2}`, apperr.KindPermanentProvider},
		{"bad number is permanent", `{"error": "invalid number", "error_code": 7}`, apperr.KindPermanentProvider},
		{"throttle is transient", `{"error": "too many requests", "error_code": 9}`, apperr.KindTransientProvider},
		{"temp ip block is transient", `{"error": "ip blocked", "error_code": 4}`, apperr.KindTransientProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newSMSAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := adapter.Send(context.Background(), Request{Lead: smsLead(), Message: "hello"})
			if got := apperr.GetKind(err); got != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
		})
	}
}

func TestSMSAdapterServerErrorIsTransient(t *testing.T) {
	adapter := newSMSAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})

	_, err := adapter.Send(context.Background(), Request{Lead: smsLead(), Message: "hello"})
	if !apperr.IsRetryable(err) {
		t.Fatalf("5xx must be retryable, got %v", err)
	}
}

func TestSMSAdapterRejectsInvalidPhoneBeforeNetwork(t *testing.T) {
	called := false
	adapter := newSMSAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	lead := smsLead()
	lead.Phone = "not-a-phone"
	_, err := adapter.Send(context.Background(), Request{Lead: lead, Message: "hello"})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("want validation error, got %v", err)
	}
	if called {
		t.Fatal("gateway must not be contacted for an invalid recipient")
	}
}

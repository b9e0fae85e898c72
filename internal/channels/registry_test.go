package channels

import (
	"testing"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(
		testSMSConfig{apiURL: "https://smsc.example.com/sys/send.php"},
		testEmailConfig{},
		testMessengerConfig{},
		logger.New("development"),
	)
}

type testEmailConfig struct{}

func (testEmailConfig) GetSMTPHost() string         { return "smtp.example.com" }
func (testEmailConfig) GetSMTPPort() int            { return 587 }
func (testEmailConfig) GetSMTPUsername() string     { return "user" }
func (testEmailConfig) GetSMTPPassword() string     { return "pass" }
func (testEmailConfig) GetEmailFromName() string    { return "Fast Lead" }
func (testEmailConfig) GetEmailFromAddress() string { return "noreply@example.com" }

func TestRegistryResolvesAutoDispatchChannels(t *testing.T) {
	registry := newTestRegistry(t)

	for _, ch := range domain.Channels() {
		if !ch.SupportsAutoDispatch() {
			continue
		}
		adapter, err := registry.ForChannel(ch)
		if err != nil {
			t.Fatalf("channel %q: %v", ch, err)
		}
		if adapter.Channel() != ch {
			t.Fatalf("adapter for %q reports channel %q", ch, adapter.Channel())
		}
	}
}

func TestRegistryRejectsManualChannels(t *testing.T) {
	registry := newTestRegistry(t)

	for _, ch := range []domain.Channel{domain.ChannelWeb, domain.ChannelInstagram, domain.ChannelMessenger} {
		_, err := registry.ForChannel(ch)
		if apperr.GetKind(err) != apperr.KindValidation {
			t.Fatalf("channel %q: want validation error, got %v", ch, err)
		}
	}
}

func TestRegistryRejectsUnknownChannel(t *testing.T) {
	registry := newTestRegistry(t)
	if _, err := registry.ForChannel(domain.Channel("carrier-pigeon")); err == nil {
		t.Fatal("unknown channel must not resolve")
	}
}

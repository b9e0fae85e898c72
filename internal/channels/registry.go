package channels

import (
	"fmt"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/config"
	"fastlead_backend/platform/logger"
)

// Registry resolves the adapter for a channel. Channels that never
// auto-dispatch (web, instagram, messenger) have no adapter; asking for one
// is a validation error, not a missing-configuration condition.
type Registry struct {
	adapters map[domain.Channel]Adapter
}

// NewRegistry wires one adapter per auto-dispatch channel from configuration.
func NewRegistry(sms config.SMSConfig, email config.EmailConfig, messenger config.MessengerConfig, log *logger.Logger) *Registry {
	registry := &Registry{adapters: make(map[domain.Channel]Adapter)}
	registry.register(NewSMSAdapter(sms, log))
	registry.register(NewEmailAdapter(email, log))
	registry.register(NewTelegramAdapter(messenger, log))
	registry.register(NewVKAdapter(messenger, log))
	registry.register(NewWhatsAppAdapter(messenger, log))
	return registry
}

func (r *Registry) register(adapter Adapter) {
	r.adapters[adapter.Channel()] = adapter
}

// ForChannel returns the adapter for a channel. The switch is exhaustive
// over the closed channel set so an unhandled value fails loudly instead of
// silently dropping a lead.
func (r *Registry) ForChannel(ch domain.Channel) (Adapter, error) {
	switch ch {
	case domain.ChannelSMS, domain.ChannelEmail, domain.ChannelTelegram,
		domain.ChannelVK, domain.ChannelWhatsApp:
		adapter, ok := r.adapters[ch]
		if !ok {
			return nil, fmt.Errorf("no adapter registered for channel %q", ch)
		}
		return adapter, nil
	case domain.ChannelWeb, domain.ChannelInstagram, domain.ChannelMessenger:
		return nil, apperr.Validation(fmt.Sprintf("channel %q does not support automatic dispatch", ch))
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown channel %q", ch))
	}
}

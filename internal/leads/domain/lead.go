// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lead lifecycle state. Transitions between statuses happen
// exclusively through Next; no caller mutates Status directly.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusLost      Status = "lost"
)

// Statuses lists every valid lead status.
func Statuses() []Status {
	return []Status{StatusNew, StatusContacted, StatusQualified, StatusBooked, StatusCompleted, StatusLost}
}

// IsValid reports whether the status is one of the enumerated states.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusBooked, StatusCompleted, StatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle. Terminal leads
// are never dispatched or reconciled into a different state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusLost
}

// Channel is the outbound communication medium fixed at lead creation.
// The set is closed: adapter selection is an exhaustive switch, not a
// runtime lookup table.
type Channel string

const (
	ChannelWeb       Channel = "web"
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
	ChannelVK        Channel = "vk"
	ChannelTelegram  Channel = "telegram"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelMessenger Channel = "messenger"
)

// Channels lists every valid lead channel.
func Channels() []Channel {
	return []Channel{
		ChannelWeb, ChannelSMS, ChannelEmail, ChannelVK,
		ChannelTelegram, ChannelWhatsApp, ChannelInstagram, ChannelMessenger,
	}
}

// IsValid reports whether the channel is a member of the closed set.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelWeb, ChannelSMS, ChannelEmail, ChannelVK,
		ChannelTelegram, ChannelWhatsApp, ChannelInstagram, ChannelMessenger:
		return true
	}
	return false
}

// SupportsAutoDispatch reports whether an automatic outbound contact exists
// for the channel. Web, Instagram, and generic-messenger leads surface to the
// operator dashboard instead of triggering a provider call.
func (c Channel) SupportsAutoDispatch() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelVK, ChannelTelegram, ChannelWhatsApp:
		return true
	case ChannelWeb, ChannelInstagram, ChannelMessenger:
		return false
	}
	return false
}

// RequiresPhone reports whether the channel needs a phone contact.
func (c Channel) RequiresPhone() bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// RequiresEmail reports whether the channel needs an email contact.
func (c Channel) RequiresEmail() bool {
	return c == ChannelEmail
}

// RequiresChatID reports whether the channel needs an external chat identifier.
func (c Channel) RequiresChatID() bool {
	switch c {
	case ChannelVK, ChannelTelegram, ChannelInstagram, ChannelMessenger:
		return true
	}
	return false
}

// Consent captures the lead's consent flags collected by the widget.
type Consent struct {
	GDPR      bool
	Marketing bool
}

// UTM captures campaign attribution captured at intake.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// Lead is the central entity: a contact captured through the widget,
// tracked through the outreach/booking lifecycle.
type Lead struct {
	ID       uuid.UUID
	TenantID uuid.UUID

	Name   string
	Phone  string
	Email  string
	ChatID string

	Channel Channel
	Status  Status

	BookingRef *string
	BookingURL *string
	BookedAt   *time.Time

	Source  string
	UTM     UTM
	Consent Consent

	// Metadata is the side-channel delivery record: an open, append-only
	// key/value map. Writers merge additively; keys are never removed.
	Metadata map[string]any

	// Notes is free-form operator text, replaced wholesale on update.
	Notes string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ContactedAt *time.Time
}

// HasUnresolvedBooking reports whether the lead carries a booking reference
// that has been neither cancelled nor completed. A new booking cannot be
// attached while one is unresolved.
func (l Lead) HasUnresolvedBooking() bool {
	return l.BookingRef != nil && l.Status == StatusBooked
}

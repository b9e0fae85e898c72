// Package events defines the domain events published on the in-process bus.
// Modules subscribe to these instead of importing each other's services.
package events

import (
	"github.com/google/uuid"

	"fastlead_backend/platform/events"
)

const (
	LeadCreatedEvent             = "lead.created"
	LeadContactedEvent           = "lead.contacted"
	DispatchFailedEvent          = "lead.dispatch_failed"
	OperatorReviewRequestedEvent = "lead.operator_review_requested"
	BookingAttachedEvent         = "booking.attached"
	BookingCancelledEvent        = "booking.cancelled"
	BookingCompletedEvent        = "booking.completed"
	ReconcileFailedEvent         = "webhook.reconcile_failed"
)

// LeadCreated fires after a lead is persisted, before any dispatch decision.
type LeadCreated struct {
	events.BaseEvent
	LeadID   uuid.UUID
	TenantID uuid.UUID
	Channel  string
}

func (LeadCreated) EventName() string { return LeadCreatedEvent }

// LeadContacted fires when the first outbound message is confirmed delivered
// to the provider and the lead has moved out of its initial status.
type LeadContacted struct {
	events.BaseEvent
	LeadID   uuid.UUID
	TenantID uuid.UUID
	Channel  string
}

func (LeadContacted) EventName() string { return LeadContactedEvent }

// DispatchFailed fires when the dispatch task exhausts its retries or fails
// permanently. Consumers surface it to operators; the lead status is left
// untouched so a human can still work the lead.
type DispatchFailed struct {
	events.BaseEvent
	LeadID   uuid.UUID
	TenantID uuid.UUID
	Channel  string
	Purpose  string
	Reason   string
}

func (DispatchFailed) EventName() string { return DispatchFailedEvent }

// OperatorReviewRequested fires for channels that never auto-dispatch and
// for leads whose contact data cannot satisfy any adapter.
type OperatorReviewRequested struct {
	events.BaseEvent
	LeadID   uuid.UUID
	TenantID uuid.UUID
	Channel  string
	Reason   string
}

func (OperatorReviewRequested) EventName() string { return OperatorReviewRequestedEvent }

// BookingAttached fires when a booking reference is attached to a lead,
// whether through the booking API or an inbound calendar event.
type BookingAttached struct {
	events.BaseEvent
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	BookingRef string
}

func (BookingAttached) EventName() string { return BookingAttachedEvent }

// BookingCancelled fires when a booked lead returns to the qualified pool.
type BookingCancelled struct {
	events.BaseEvent
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	BookingRef string
}

func (BookingCancelled) EventName() string { return BookingCancelledEvent }

// BookingCompleted fires when a lead reaches its terminal completed status.
type BookingCompleted struct {
	events.BaseEvent
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	BookingRef string
}

func (BookingCompleted) EventName() string { return BookingCompletedEvent }

// ReconcileFailed fires when an authenticated calendar event could not be
// applied after the reconciler's own retries.
type ReconcileFailed struct {
	events.BaseEvent
	LeadID     uuid.UUID
	TenantID   uuid.UUID
	BookingRef string
	Trigger    string
	Reason     string
}

func (ReconcileFailed) EventName() string { return ReconcileFailedEvent }

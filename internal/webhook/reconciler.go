package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// Provider trigger names.
const (
	triggerBookingCreated     = "BOOKING_CREATED"
	triggerBookingRescheduled = "BOOKING_RESCHEDULED"
	triggerBookingCancelled   = "BOOKING_CANCELLED"
	triggerBookingCompleted   = "BOOKING_COMPLETED"
	triggerMeetingEnded       = "MEETING_ENDED"
)

// Event is the normalized inbound calendar event.
type Event struct {
	Trigger    string
	BookingUID string
	BookingID  int64
	Start      *time.Time
	// LeadID is the correlation id planted in the provider-side metadata at
	// booking creation. Zero when the event was not created by this system.
	LeadID uuid.UUID
}

// Outcome reports what reconciling an event did.
type Outcome int

const (
	// OutcomeApplied means the event changed lead state.
	OutcomeApplied Outcome = iota
	// OutcomeIgnored means the event was unknown, unresolvable, or a
	// duplicate/out-of-order replay. Never an error condition.
	OutcomeIgnored
)

func (o Outcome) String() string {
	if o == OutcomeApplied {
		return "applied"
	}
	return "ignored"
}

// Reconciler applies inbound calendar events to leads. Lead resolution reads
// globally because provider events carry no tenant; every write then goes
// through the tenant-scoped transition path using the resolved lead's tenant.
type Reconciler struct {
	store repository.LeadStore
	bus   events.Bus
	log   *logger.Logger
}

func NewReconciler(store repository.LeadStore, bus events.Bus, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, bus: bus, log: log}
}

// Reconcile maps the event onto the state machine and applies it. Events
// that cannot be matched to a lead or a known trigger are ignored, not
// failed: the provider sends events for bookings this system never created.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (Outcome, error) {
	transition, ok := mapTrigger(ev)
	if !ok {
		r.log.Info("ignoring unknown webhook trigger", "trigger", ev.Trigger)
		return OutcomeIgnored, nil
	}

	lead, err := r.resolveLead(ctx, ev)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Info("webhook event matches no lead, ignoring",
			"trigger", ev.Trigger, "booking_uid", ev.BookingUID)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeIgnored, err
	}

	log := r.log.WithLead(lead.ID.String(), lead.TenantID.String())

	updated, outcome, err := r.store.ApplyTransition(ctx, lead.ID, lead.TenantID, transition)
	if apperr.IsBenign(err) {
		log.Info("webhook transition lost race, ignoring", "trigger", ev.Trigger)
		return OutcomeIgnored, nil
	}
	if err != nil {
		r.reportFailure(ctx, lead, ev, err)
		return OutcomeIgnored, err
	}
	if outcome == domain.OutcomeNoOp {
		log.Info("webhook event is a replay, ignoring", "trigger", ev.Trigger)
		return OutcomeIgnored, nil
	}

	if ev.Trigger == triggerBookingCreated && ev.BookingID != 0 {
		patch := map[string]any{"booking_provider_id": ev.BookingID}
		if err := r.store.MergeMetadata(ctx, lead.ID, lead.TenantID, patch); err != nil {
			log.Error("failed to record provider booking id", "error", err.Error())
		}
	}

	r.publishApplied(ctx, updated, ev)
	log.Info("webhook event applied", "trigger", ev.Trigger, "status", string(updated.Status))
	return OutcomeApplied, nil
}

// resolveLead tries the explicit correlation id first, then falls back to
// the booking reference.
func (r *Reconciler) resolveLead(ctx context.Context, ev Event) (domain.Lead, error) {
	if ev.LeadID != uuid.Nil {
		lead, err := r.store.GetByIDGlobal(ctx, ev.LeadID)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, err
		}
	}
	if ev.BookingUID == "" {
		return domain.Lead{}, repository.ErrNotFound
	}
	return r.store.GetByBookingRefGlobal(ctx, ev.BookingUID)
}

func mapTrigger(ev Event) (domain.Transition, bool) {
	switch ev.Trigger {
	case triggerBookingCreated:
		return domain.Transition{
			Trigger:    domain.TriggerBookingCreated,
			BookingRef: ev.BookingUID,
			BookedAt:   ev.Start,
		}, true
	case triggerBookingRescheduled:
		return domain.Transition{
			Trigger:    domain.TriggerBookingRescheduled,
			BookingRef: ev.BookingUID,
			BookedAt:   ev.Start,
		}, true
	case triggerBookingCancelled:
		return domain.Transition{
			Trigger:    domain.TriggerBookingCancelled,
			BookingRef: ev.BookingUID,
		}, true
	case triggerBookingCompleted, triggerMeetingEnded:
		return domain.Transition{
			Trigger:    domain.TriggerBookingCompleted,
			BookingRef: ev.BookingUID,
		}, true
	}
	return domain.Transition{}, false
}

func (r *Reconciler) publishApplied(ctx context.Context, lead domain.Lead, ev Event) {
	base := events.NewBaseEvent()
	switch ev.Trigger {
	case triggerBookingCreated:
		r.bus.Publish(ctx, domainevents.BookingAttached{
			BaseEvent: base, LeadID: lead.ID, TenantID: lead.TenantID, BookingRef: ev.BookingUID,
		})
	case triggerBookingCancelled:
		r.bus.Publish(ctx, domainevents.BookingCancelled{
			BaseEvent: base, LeadID: lead.ID, TenantID: lead.TenantID, BookingRef: ev.BookingUID,
		})
	case triggerBookingCompleted, triggerMeetingEnded:
		r.bus.Publish(ctx, domainevents.BookingCompleted{
			BaseEvent: base, LeadID: lead.ID, TenantID: lead.TenantID, BookingRef: ev.BookingUID,
		})
	}
}

func (r *Reconciler) reportFailure(ctx context.Context, lead domain.Lead, ev Event, cause error) {
	r.bus.Publish(ctx, domainevents.ReconcileFailed{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		TenantID:   lead.TenantID,
		BookingRef: ev.BookingUID,
		Trigger:    ev.Trigger,
		Reason:     cause.Error(),
	})
}

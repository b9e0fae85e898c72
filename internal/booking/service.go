package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// Provider is the calendar operations the service needs. *Client is the
// production implementation.
type Provider interface {
	CreateBooking(ctx context.Context, p CreateParams) (Booking, error)
	CancelBooking(ctx context.Context, id int64, reason string) error
	RescheduleBooking(ctx context.Context, id int64, newStart time.Time, reason string) (Booking, error)
	GetAvailability(ctx context.Context, from, to time.Time) ([]Slot, error)
}

// Service creates and manages bookings on behalf of leads, keeping the lead
// state machine and the provider in agreement.
type Service struct {
	store    repository.LeadStore
	provider Provider
	bus      events.Bus
	log      *logger.Logger
}

func NewService(store repository.LeadStore, provider Provider, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, provider: provider, bus: bus, log: log}
}

// BookLead books a calendar slot for the lead and attaches the booking.
// A lead with an unresolved booking is rejected before any provider call.
func (s *Service) BookLead(ctx context.Context, leadID, tenantID uuid.UUID, start time.Time, timeZone string) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.HasUnresolvedBooking() {
		return domain.Lead{}, apperr.Conflict("lead already has an unresolved booking")
	}
	if lead.Status.IsTerminal() {
		return domain.Lead{}, apperr.Conflict("lead lifecycle is finished")
	}

	booking, err := s.provider.CreateBooking(ctx, CreateParams{
		Name:     lead.Name,
		Email:    lead.Email,
		Phone:    lead.Phone,
		Start:    start,
		TimeZone: timeZone,
		LeadID:   lead.ID,
		TenantID: lead.TenantID,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	bookedAt := booking.Start
	updated, outcome, err := s.store.ApplyTransition(ctx, leadID, tenantID, domain.Transition{
		Trigger:    domain.TriggerBookingCreated,
		BookingRef: booking.UID,
		BookingURL: booking.URL,
		BookedAt:   &bookedAt,
	})
	if err != nil {
		// The provider booking exists but the lead rejected it (raced another
		// booking). Release the slot so it is not silently occupied.
		if cancelErr := s.provider.CancelBooking(ctx, booking.ID, "lead state conflict"); cancelErr != nil {
			s.log.WithLead(leadID.String(), tenantID.String()).
				Error("failed to release orphaned booking", "booking_uid", booking.UID, "error", cancelErr.Error())
		}
		return domain.Lead{}, err
	}

	// The provider's numeric ID is needed for later cancel/reschedule calls;
	// it lives in metadata rather than on the lead row.
	patch := map[string]any{"booking_provider_id": booking.ID}
	if err := s.store.MergeMetadata(ctx, leadID, tenantID, patch); err != nil {
		s.log.WithLead(leadID.String(), tenantID.String()).
			Error("failed to record provider booking id", "error", err.Error())
	}

	if outcome == domain.OutcomeApplied {
		s.bus.Publish(ctx, domainevents.BookingAttached{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     updated.ID,
			TenantID:   updated.TenantID,
			BookingRef: booking.UID,
		})
	}
	return updated, nil
}

// CancelBooking cancels the lead's active booking at the provider and moves
// the lead back to the qualified pool.
func (s *Service) CancelBooking(ctx context.Context, leadID, tenantID uuid.UUID, reason string) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !lead.HasUnresolvedBooking() {
		return domain.Lead{}, apperr.Conflict("lead has no active booking")
	}

	if providerID, ok := providerBookingID(lead); ok {
		if err := s.provider.CancelBooking(ctx, providerID, reason); err != nil {
			return domain.Lead{}, err
		}
	} else {
		s.log.WithLead(leadID.String(), tenantID.String()).
			Warn("no provider booking id recorded, cancelling lead side only")
	}

	updated, outcome, err := s.store.ApplyTransition(ctx, leadID, tenantID, domain.Transition{
		Trigger:    domain.TriggerBookingCancelled,
		BookingRef: *lead.BookingRef,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	if outcome == domain.OutcomeApplied {
		s.bus.Publish(ctx, domainevents.BookingCancelled{
			BaseEvent:  events.NewBaseEvent(),
			LeadID:     updated.ID,
			TenantID:   updated.TenantID,
			BookingRef: *lead.BookingRef,
		})
	}
	return updated, nil
}

// RescheduleBooking moves the lead's active booking to a new start time.
func (s *Service) RescheduleBooking(ctx context.Context, leadID, tenantID uuid.UUID, newStart time.Time, reason string) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID, tenantID)
	if err != nil {
		return domain.Lead{}, err
	}
	if !lead.HasUnresolvedBooking() {
		return domain.Lead{}, apperr.Conflict("lead has no active booking")
	}

	providerID, ok := providerBookingID(lead)
	if !ok {
		return domain.Lead{}, apperr.Conflict("booking has no provider id recorded")
	}

	booking, err := s.provider.RescheduleBooking(ctx, providerID, newStart, reason)
	if err != nil {
		return domain.Lead{}, err
	}

	bookedAt := booking.Start
	updated, _, err := s.store.ApplyTransition(ctx, leadID, tenantID, domain.Transition{
		Trigger:    domain.TriggerBookingRescheduled,
		BookingRef: *lead.BookingRef,
		BookedAt:   &bookedAt,
	})
	if err != nil {
		return domain.Lead{}, err
	}
	return updated, nil
}

// Availability proxies the provider's open slots.
func (s *Service) Availability(ctx context.Context, from, to time.Time) ([]Slot, error) {
	if !to.After(from) {
		return nil, apperr.Validation("availability window end must be after start")
	}
	return s.provider.GetAvailability(ctx, from, to)
}

// providerBookingID digs the provider's numeric booking handle out of the
// lead metadata. JSON round-trips numbers as float64.
func providerBookingID(lead domain.Lead) (int64, bool) {
	raw, ok := lead.Metadata["booking_provider_id"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

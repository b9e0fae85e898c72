package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// store is the persistence surface this service needs. *Repository is the
// production implementation; tests substitute an in-memory fake.
type store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, tenantID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, tenantID uuid.UUID) error
}

type Service struct {
	store store
	log   *logger.Logger
}

func NewService(store store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// RegisterSubscribers hooks the service onto the domain events that need
// operator attention. Failures stay out of the lead's own lifecycle; they
// only land here.
func (s *Service) RegisterSubscribers(bus events.Bus) {
	bus.Subscribe(domainevents.OperatorReviewRequestedEvent, events.HandlerFunc(s.onOperatorReviewRequested))
	bus.Subscribe(domainevents.DispatchFailedEvent, events.HandlerFunc(s.onDispatchFailed))
	bus.Subscribe(domainevents.ReconcileFailedEvent, events.HandlerFunc(s.onReconcileFailed))
}

func (s *Service) onOperatorReviewRequested(ctx context.Context, event events.Event) error {
	e, ok := event.(domainevents.OperatorReviewRequested)
	if !ok {
		return nil
	}
	leadID := e.LeadID
	_, err := s.store.Create(ctx, CreateParams{
		TenantID: e.TenantID,
		LeadID:   &leadID,
		Title:    "Lead needs manual contact",
		Content:  fmt.Sprintf("Lead on the %s channel needs a manual first contact: %s", e.Channel, e.Reason),
		Category: "info",
	})
	return err
}

func (s *Service) onDispatchFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(domainevents.DispatchFailed)
	if !ok {
		return nil
	}
	leadID := e.LeadID
	_, err := s.store.Create(ctx, CreateParams{
		TenantID: e.TenantID,
		LeadID:   &leadID,
		Title:    "Outbound contact failed",
		Content:  fmt.Sprintf("All %s delivery attempts failed: %s", e.Channel, e.Reason),
		Category: "error",
	})
	return err
}

func (s *Service) onReconcileFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(domainevents.ReconcileFailed)
	if !ok {
		return nil
	}
	params := CreateParams{
		TenantID: e.TenantID,
		Title:    "Calendar event could not be applied",
		Content:  fmt.Sprintf("A %s event for booking %s was rejected: %s", e.Trigger, e.BookingRef, e.Reason),
		Category: "warning",
	}
	if e.LeadID != uuid.Nil {
		leadID := e.LeadID
		params.LeadID = &leadID
	}
	_, err := s.store.Create(ctx, params)
	return err
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return s.store.List(ctx, tenantID, pageSize, (page-1)*pageSize)
}

func (s *Service) CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, tenantID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, tenantID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID uuid.UUID) error {
	return s.store.MarkAllRead(ctx, tenantID)
}

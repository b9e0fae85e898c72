package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

type memStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
}

func newMemStore(leads ...domain.Lead) *memStore {
	s := &memStore{leads: make(map[uuid.UUID]domain.Lead)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *memStore) Create(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error) {
	return domain.Lead{}, errors.New("not implemented")
}

func (s *memStore) GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.TenantID != tenantID {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *memStore) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error) {
	return nil, errors.New("not implemented")
}

func (s *memStore) GetByIDGlobal(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *memStore) GetByBookingRefGlobal(ctx context.Context, ref string) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lead := range s.leads {
		if lead.BookingRef != nil && *lead.BookingRef == ref {
			return lead, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (s *memStore) ApplyTransition(ctx context.Context, id, tenantID uuid.UUID, tr domain.Transition) (domain.Lead, domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.TenantID != tenantID {
		return domain.Lead{}, domain.OutcomeNoOp, repository.ErrNotFound
	}
	next, outcome, err := domain.Next(lead, tr)
	if err != nil {
		return lead, outcome, err
	}
	if outcome == domain.OutcomeApplied {
		s.leads[id] = next
	}
	return next, outcome, nil
}

func (s *memStore) MergeMetadata(ctx context.Context, id, tenantID uuid.UUID, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.TenantID != tenantID {
		return repository.ErrNotFound
	}
	if lead.Metadata == nil {
		lead.Metadata = make(map[string]any)
	}
	for k, v := range patch {
		lead.Metadata[k] = v
	}
	s.leads[id] = lead
	return nil
}

func (s *memStore) get(id uuid.UUID) domain.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leads[id]
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *captureBus) Subscribe(eventName string, handler events.Handler) {}

func (b *captureBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.EventName())
	}
	return names
}

func contactedLead() domain.Lead {
	return domain.Lead{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "Ivan",
		Channel:  domain.ChannelTelegram,
		Status:   domain.StatusContacted,
	}
}

func newReconciler(store *memStore, bus *captureBus) *Reconciler {
	return NewReconciler(store, bus, logger.New("development"))
}

func TestReconcileBookingCreatedResolvesByLeadID(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	bus := &captureBus{}
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	outcome, err := newReconciler(store, bus).Reconcile(context.Background(), Event{
		Trigger:    "BOOKING_CREATED",
		BookingUID: "cal_abc",
		BookingID:  501,
		Start:      &start,
		LeadID:     lead.ID,
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, want applied", outcome)
	}

	got := store.get(lead.ID)
	if got.Status != domain.StatusBooked || got.BookingRef == nil || *got.BookingRef != "cal_abc" {
		t.Fatalf("lead = %+v", got)
	}
	if got.Metadata["booking_provider_id"] != int64(501) {
		t.Fatalf("provider id not recorded: %v", got.Metadata)
	}
	if names := bus.names(); len(names) != 1 || names[0] != domainevents.BookingAttachedEvent {
		t.Fatalf("events = %v", names)
	}
}

func TestReconcileResolvesByBookingRefWithoutLeadID(t *testing.T) {
	lead := contactedLead()
	ref := "cal_abc"
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	store := newMemStore(lead)

	outcome, err := newReconciler(store, &captureBus{}).Reconcile(context.Background(), Event{
		Trigger:    "BOOKING_CANCELLED",
		BookingUID: "cal_abc",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, want applied", outcome)
	}
	if got := store.get(lead.ID); got.Status != domain.StatusQualified {
		t.Fatalf("status = %q, want qualified", got.Status)
	}
}

func TestReconcileUnknownTriggerIgnored(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)

	outcome, err := newReconciler(store, &captureBus{}).Reconcile(context.Background(), Event{
		Trigger: "FORM_SUBMITTED",
		LeadID:  lead.ID,
	})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("outcome = %v, err = %v, want ignored/nil", outcome, err)
	}
}

func TestReconcileUnresolvableEventIgnored(t *testing.T) {
	store := newMemStore()

	outcome, err := newReconciler(store, &captureBus{}).Reconcile(context.Background(), Event{
		Trigger:    "BOOKING_CREATED",
		BookingUID: "cal_stranger",
		LeadID:     uuid.New(),
	})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("outcome = %v, err = %v, want ignored/nil", outcome, err)
	}
}

func TestReconcileDuplicateDeliveryIgnored(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	bus := &captureBus{}
	r := newReconciler(store, bus)
	start := time.Now().UTC()
	ev := Event{Trigger: "BOOKING_CREATED", BookingUID: "cal_abc", Start: &start, LeadID: lead.ID}

	if outcome, _ := r.Reconcile(context.Background(), ev); outcome != OutcomeApplied {
		t.Fatal("first delivery must apply")
	}
	outcome, err := r.Reconcile(context.Background(), ev)
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("duplicate delivery: outcome = %v, err = %v, want ignored/nil", outcome, err)
	}
	if names := bus.names(); len(names) != 1 {
		t.Fatalf("duplicate must not publish again, events = %v", names)
	}
}

func TestReconcileOutOfOrderCancelBeforeCreate(t *testing.T) {
	lead := contactedLead()
	store := newMemStore(lead)
	r := newReconciler(store, &captureBus{})
	start := time.Now().UTC()

	// Cancellation arrives before the creation it cancels.
	outcome, err := r.Reconcile(context.Background(), Event{
		Trigger: "BOOKING_CANCELLED", BookingUID: "cal_abc", LeadID: lead.ID,
	})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("early cancel: outcome = %v, err = %v, want ignored/nil", outcome, err)
	}

	// The late creation still applies normally.
	outcome, err = r.Reconcile(context.Background(), Event{
		Trigger: "BOOKING_CREATED", BookingUID: "cal_abc", Start: &start, LeadID: lead.ID,
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("late create: outcome = %v, err = %v, want applied/nil", outcome, err)
	}
}

func TestReconcileConflictingBookingReportsFailure(t *testing.T) {
	lead := contactedLead()
	ref := "cal_first"
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	store := newMemStore(lead)
	bus := &captureBus{}
	start := time.Now().UTC()

	outcome, err := newReconciler(store, bus).Reconcile(context.Background(), Event{
		Trigger: "BOOKING_CREATED", BookingUID: "cal_second", Start: &start, LeadID: lead.ID,
	})
	if err == nil {
		t.Fatal("second booking while one is unresolved must error")
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %v, want ignored", outcome)
	}
	if names := bus.names(); len(names) != 1 || names[0] != domainevents.ReconcileFailedEvent {
		t.Fatalf("events = %v, want reconcile failed", names)
	}
	if got := store.get(lead.ID); *got.BookingRef != "cal_first" {
		t.Fatal("original booking must be untouched")
	}
}

func TestReconcileCompletedIsTerminal(t *testing.T) {
	lead := contactedLead()
	ref := "cal_abc"
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	store := newMemStore(lead)
	bus := &captureBus{}
	r := newReconciler(store, bus)

	outcome, err := r.Reconcile(context.Background(), Event{
		Trigger: "BOOKING_COMPLETED", BookingUID: "cal_abc",
	})
	if err != nil || outcome != OutcomeApplied {
		t.Fatalf("outcome = %v, err = %v", outcome, err)
	}
	if got := store.get(lead.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}

	// A late reschedule for a finished booking is ignored.
	start := time.Now().UTC()
	outcome, err = r.Reconcile(context.Background(), Event{
		Trigger: "BOOKING_RESCHEDULED", BookingUID: "cal_abc", Start: &start,
	})
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("late reschedule: outcome = %v, err = %v, want ignored/nil", outcome, err)
	}
}

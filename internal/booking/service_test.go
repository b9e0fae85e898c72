package booking

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
	"fastlead_backend/platform/apperr"
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

type fakeProvider struct {
	createCalls int
	cancelCalls []int64
	createErr   error
	booking     Booking
}

func (p *fakeProvider) CreateBooking(ctx context.Context, params CreateParams) (Booking, error) {
	p.createCalls++
	if p.createErr != nil {
		return Booking{}, p.createErr
	}
	return p.booking, nil
}

func (p *fakeProvider) CancelBooking(ctx context.Context, id int64, reason string) error {
	p.cancelCalls = append(p.cancelCalls, id)
	return nil
}

func (p *fakeProvider) RescheduleBooking(ctx context.Context, id int64, newStart time.Time, reason string) (Booking, error) {
	b := p.booking
	b.Start = newStart
	return b, nil
}

func (p *fakeProvider) GetAvailability(ctx context.Context, from, to time.Time) ([]Slot, error) {
	return []Slot{{Start: from}}, nil
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

func qualifiedLead() domain.Lead {
	return domain.Lead{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "Ivan",
		Email:    "ivan@example.com",
		Channel:  domain.ChannelEmail,
		Status:   domain.StatusQualified,
	}
}

func testBooking() Booking {
	return Booking{
		ID:    501,
		UID:   "cal_abc123",
		URL:   "https://meet.example.com/abc",
		Start: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBookLeadAttachesBooking(t *testing.T) {
	lead := qualifiedLead()
	store := newMemStore(lead)
	provider := &fakeProvider{booking: testBooking()}
	bus := &captureBus{}
	service := NewService(store, provider, bus, logger.New("development"))

	updated, err := service.BookLead(context.Background(), lead.ID, lead.TenantID, testBooking().Start, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if updated.Status != domain.StatusBooked {
		t.Fatalf("status = %q, want booked", updated.Status)
	}
	if updated.BookingRef == nil || *updated.BookingRef != "cal_abc123" {
		t.Fatal("booking ref must be attached")
	}

	stored := store.get(lead.ID)
	if got, ok := stored.Metadata["booking_provider_id"].(int64); !ok || got != 501 {
		t.Fatalf("provider booking id not recorded: %v", stored.Metadata)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != domainevents.BookingAttachedEvent {
		t.Fatalf("events = %v, want booking attached", bus.events)
	}
}

func TestBookLeadRejectsUnresolvedBookingBeforeProviderCall(t *testing.T) {
	lead := qualifiedLead()
	ref := "cal_existing"
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	provider := &fakeProvider{booking: testBooking()}
	service := NewService(newMemStore(lead), provider, &captureBus{}, logger.New("development"))

	_, err := service.BookLead(context.Background(), lead.ID, lead.TenantID, time.Now(), "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("want conflict, got %v", err)
	}
	if provider.createCalls != 0 {
		t.Fatal("provider must not be called when a booking is unresolved")
	}
}

func TestBookLeadReleasesOrphanedBookingOnStateConflict(t *testing.T) {
	lead := qualifiedLead()
	store := newMemStore(lead)
	provider := &fakeProvider{booking: testBooking()}
	service := NewService(store, provider, &captureBus{}, logger.New("development"))

	// Another booking lands between the service's read and its write.
	otherRef := "cal_raced"
	now := time.Now()
	if _, _, err := store.ApplyTransition(context.Background(), lead.ID, lead.TenantID, domain.Transition{
		Trigger: domain.TriggerBookingCreated, BookingRef: otherRef, BookedAt: &now,
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := service.BookLead(context.Background(), lead.ID, lead.TenantID, time.Now(), "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("want conflict, got %v", err)
	}
	if len(provider.cancelCalls) != 1 || provider.cancelCalls[0] != 501 {
		t.Fatalf("orphaned provider booking must be released, cancel calls = %v", provider.cancelCalls)
	}
}

func TestCancelBookingReturnsLeadToQualified(t *testing.T) {
	lead := qualifiedLead()
	ref := "cal_abc123"
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	lead.Metadata = map[string]any{"booking_provider_id": float64(501)}
	store := newMemStore(lead)
	provider := &fakeProvider{booking: testBooking()}
	bus := &captureBus{}
	service := NewService(store, provider, bus, logger.New("development"))

	updated, err := service.CancelBooking(context.Background(), lead.ID, lead.TenantID, "client asked")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != domain.StatusQualified {
		t.Fatalf("status = %q, want qualified", updated.Status)
	}
	if updated.BookingRef == nil {
		t.Fatal("booking ref must be retained for history")
	}
	if len(provider.cancelCalls) != 1 {
		t.Fatal("provider cancel must be called")
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != domainevents.BookingCancelledEvent {
		t.Fatalf("events = %v, want booking cancelled", bus.events)
	}
}

func TestRescheduleUpdatesBookedTimeOnly(t *testing.T) {
	lead := qualifiedLead()
	ref := "cal_abc123"
	oldTime := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	lead.Status = domain.StatusBooked
	lead.BookingRef = &ref
	lead.BookedAt = &oldTime
	lead.Metadata = map[string]any{"booking_provider_id": float64(501)}
	store := newMemStore(lead)
	service := NewService(store, &fakeProvider{booking: testBooking()}, &captureBus{}, logger.New("development"))

	newTime := time.Date(2026, 9, 2, 14, 0, 0, 0, time.UTC)
	updated, err := service.RescheduleBooking(context.Background(), lead.ID, lead.TenantID, newTime, "moved")
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.Status != domain.StatusBooked {
		t.Fatalf("status = %q, reschedule must not change status", updated.Status)
	}
	if updated.BookedAt == nil || !updated.BookedAt.Equal(newTime) {
		t.Fatalf("booked_at = %v, want %v", updated.BookedAt, newTime)
	}
}

package service

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
	"fastlead_backend/internal/tasks"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

type fakeStore struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
}

func newFakeStore(leads ...domain.Lead) *fakeStore {
	s := &fakeStore{leads: make(map[uuid.UUID]domain.Lead)}
	for _, l := range leads {
		s.leads[l.ID] = l
	}
	return s
}

func (s *fakeStore) Create(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := domain.Lead{
		ID:        uuid.New(),
		TenantID:  params.TenantID,
		Name:      params.Name,
		Phone:     params.Phone,
		Email:     params.Email,
		ChatID:    params.ChatID,
		Channel:   params.Channel,
		Status:    domain.StatusNew,
		Source:    params.Source,
		UTM:       params.UTM,
		Consent:   params.Consent,
		Metadata:  params.Payload,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.TenantID != tenantID {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *fakeStore) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Lead, 0)
	for _, lead := range s.leads {
		if lead.TenantID == tenantID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyTransition(ctx context.Context, id, tenantID uuid.UUID, tr domain.Transition) (domain.Lead, domain.Outcome, error) {
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

func (s *fakeStore) UpdateNotes(ctx context.Context, id, tenantID uuid.UUID, notes string) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok || lead.TenantID != tenantID {
		return domain.Lead{}, repository.ErrNotFound
	}
	lead.Notes = notes
	s.leads[id] = lead
	return lead, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []domain.Lead
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, lead domain.Lead) (tasks.TaskHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, lead)
	return tasks.TaskHandle{ID: tasks.DispatchTaskID(lead.ID, tasks.PurposeInitialContact)}, d.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func newService(store *fakeStore, dispatcher *fakeDispatcher, bus *recordingBus) *Service {
	return New(store, dispatcher, bus, logger.New("development"))
}

func validInput(channel domain.Channel) CreateLeadInput {
	in := CreateLeadInput{
		TenantID: uuid.New(),
		Name:     "Ivan Petrov",
		Channel:  channel,
		Source:   "https://example.ru/landing",
		Consent:  domain.Consent{GDPR: true, Marketing: true},
	}
	switch {
	case channel.RequiresPhone():
		in.Phone = "+79991234567"
	case channel.RequiresEmail():
		in.Email = "ivan@example.ru"
	case channel.RequiresChatID():
		in.ChatID = "100200300"
	default:
		in.Email = "ivan@example.ru"
	}
	return in
}

func TestCreateLeadValidationMatrix(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateLeadInput)
		wantErr bool
	}{
		{"sms with phone", func(in *CreateLeadInput) {}, false},
		{"unknown channel", func(in *CreateLeadInput) { in.Channel = "fax" }, true},
		{"no contact at all", func(in *CreateLeadInput) { in.Phone = "" }, true},
		{"sms without phone", func(in *CreateLeadInput) {
			in.Phone = ""
			in.Email = "ivan@example.ru"
		}, true},
		{"email channel without email", func(in *CreateLeadInput) {
			in.Channel = domain.ChannelEmail
		}, true},
		{"telegram without chat id", func(in *CreateLeadInput) {
			in.Channel = domain.ChannelTelegram
		}, true},
		{"telegram with chat id", func(in *CreateLeadInput) {
			in.Channel = domain.ChannelTelegram
			in.ChatID = "100200300"
		}, false},
		{"whatsapp without marketing consent", func(in *CreateLeadInput) {
			in.Channel = domain.ChannelWhatsApp
			in.Consent.Marketing = false
		}, true},
		{"web with only email", func(in *CreateLeadInput) {
			in.Channel = domain.ChannelWeb
			in.Phone = ""
			in.Email = "ivan@example.ru"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(domain.ChannelSMS)
			tt.mutate(&in)

			svc := newService(newFakeStore(), &fakeDispatcher{}, &recordingBus{})
			_, _, err := svc.CreateLead(context.Background(), in)
			if tt.wantErr {
				if !apperr.Is(err, apperr.KindValidation) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateLead: %v", err)
			}
		})
	}
}

func TestCreateLeadNormalizesPhoneAndDispatches(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	bus := &recordingBus{}
	svc := newService(store, dispatcher, bus)

	in := validInput(domain.ChannelSMS)
	in.Phone = "8 (999) 123-45-67"

	lead, nextAction, err := svc.CreateLead(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if lead.Phone != "+79991234567" {
		t.Fatalf("phone = %q, want E.164", lead.Phone)
	}
	if lead.Status != domain.StatusNew {
		t.Fatalf("status = %q, want new", lead.Status)
	}
	if nextAction != "send_sms" {
		t.Fatalf("nextAction = %q", nextAction)
	}

	if len(dispatcher.calls) != 1 || dispatcher.calls[0].ID != lead.ID {
		t.Fatalf("dispatcher calls = %+v", dispatcher.calls)
	}
	if len(bus.events) != 1 || bus.events[0].EventName() != domainevents.LeadCreatedEvent {
		t.Fatalf("events = %+v", bus.events)
	}
}

func TestCreateLeadSurvivesDispatchFailure(t *testing.T) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{err: errors.New("queue unreachable")}
	svc := newService(store, dispatcher, &recordingBus{})

	lead, _, err := svc.CreateLead(context.Background(), validInput(domain.ChannelSMS))
	if err != nil {
		t.Fatalf("CreateLead must not fail on a dispatch scheduling error: %v", err)
	}
	if _, err := store.GetByID(context.Background(), lead.ID, lead.TenantID); err != nil {
		t.Fatal("lead must be persisted despite the dispatch failure")
	}
}

func TestQualifyMovesContactedLead(t *testing.T) {
	lead := domain.Lead{ID: uuid.New(), TenantID: uuid.New(), Channel: domain.ChannelSMS, Status: domain.StatusContacted}
	store := newFakeStore(lead)
	svc := newService(store, &fakeDispatcher{}, &recordingBus{})

	got, err := svc.Qualify(context.Background(), lead.ID, lead.TenantID)
	if err != nil {
		t.Fatalf("Qualify: %v", err)
	}
	if got.Status != domain.StatusQualified {
		t.Fatalf("status = %q, want qualified", got.Status)
	}

	// A second qualify is an idempotent no-op.
	got, err = svc.Qualify(context.Background(), lead.ID, lead.TenantID)
	if err != nil || got.Status != domain.StatusQualified {
		t.Fatalf("repeat qualify: status = %q, err = %v", got.Status, err)
	}
}

func TestMarkLostIsManualOnly(t *testing.T) {
	lead := domain.Lead{ID: uuid.New(), TenantID: uuid.New(), Channel: domain.ChannelSMS, Status: domain.StatusNew}
	store := newFakeStore(lead)
	svc := newService(store, &fakeDispatcher{}, &recordingBus{})

	got, err := svc.MarkLost(context.Background(), lead.ID, lead.TenantID)
	if err != nil {
		t.Fatalf("MarkLost: %v", err)
	}
	if got.Status != domain.StatusLost {
		t.Fatalf("status = %q, want lost", got.Status)
	}

	if _, err := svc.Qualify(context.Background(), uuid.New(), lead.TenantID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown lead: err = %v, want not found", err)
	}
}

func TestSetNotes(t *testing.T) {
	lead := domain.Lead{ID: uuid.New(), TenantID: uuid.New(), Channel: domain.ChannelSMS, Status: domain.StatusNew}
	store := newFakeStore(lead)
	svc := newService(store, &fakeDispatcher{}, &recordingBus{})

	got, err := svc.SetNotes(context.Background(), lead.ID, lead.TenantID, "called back, asked for evening slot")
	if err != nil {
		t.Fatalf("SetNotes: %v", err)
	}
	if got.Notes != "called back, asked for evening slot" {
		t.Fatalf("notes = %q", got.Notes)
	}
}

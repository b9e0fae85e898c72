// Package service implements the lead intake boundary and the manual
// operator operations on the lead lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/internal/tasks"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
	"fastlead_backend/platform/phone"
)

// Store is the persistence surface this service needs. *repository.Repository
// is the production implementation.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (domain.Lead, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error)
	ApplyTransition(ctx context.Context, id, tenantID uuid.UUID, tr domain.Transition) (domain.Lead, domain.Outcome, error)
	UpdateNotes(ctx context.Context, id, tenantID uuid.UUID, notes string) (domain.Lead, error)
}

// Dispatcher decides the outbound contact for a freshly created lead.
// *dispatch.Orchestrator is the production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead domain.Lead) (tasks.TaskHandle, error)
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	bus        events.Bus
	log        *logger.Logger
}

func New(store Store, dispatcher Dispatcher, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, bus: bus, log: log}
}

// CreateLeadInput carries the widget submission after transport decoding.
type CreateLeadInput struct {
	TenantID uuid.UUID
	Name     string
	Phone    string
	Email    string
	ChatID   string
	Channel  domain.Channel
	Source   string
	UTM      domain.UTM
	Consent  domain.Consent
	Payload  map[string]any
}

// CreateLead validates the submission, persists the lead in its initial
// status, and hands it to the dispatcher. The returned next action tells the
// widget what happens to the lead now.
//
// A dispatch scheduling failure does not fail the creation: the lead is
// already persisted and an operator can still work it by hand.
func (s *Service) CreateLead(ctx context.Context, in CreateLeadInput) (domain.Lead, string, error) {
	if err := validateIntake(in); err != nil {
		return domain.Lead{}, "", err
	}

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		TenantID: in.TenantID,
		Name:     in.Name,
		Phone:    phone.NormalizeE164(in.Phone),
		Email:    in.Email,
		ChatID:   in.ChatID,
		Channel:  in.Channel,
		Source:   in.Source,
		UTM:      in.UTM,
		Consent:  in.Consent,
		Payload:  in.Payload,
	})
	if err != nil {
		return domain.Lead{}, "", err
	}
	log := s.log.WithLead(lead.ID.String(), lead.TenantID.String())
	log.Info("lead created", "channel", string(lead.Channel))

	s.bus.Publish(ctx, domainevents.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Channel:   string(lead.Channel),
	})

	if _, err := s.dispatcher.Dispatch(ctx, lead); err != nil {
		log.Error("failed to schedule dispatch for new lead", "error", err.Error())
	}

	return lead, NextAction(lead.Channel), nil
}

// NextAction maps a channel to the action the system takes after intake.
func NextAction(ch domain.Channel) string {
	switch ch {
	case domain.ChannelWeb:
		return "open_chat"
	case domain.ChannelSMS:
		return "send_sms"
	case domain.ChannelEmail:
		return "send_email"
	case domain.ChannelVK:
		return "send_vk_message"
	case domain.ChannelTelegram:
		return "send_telegram_message"
	case domain.ChannelWhatsApp:
		return "send_whatsapp_message"
	default:
		return "manual_review"
	}
}

func validateIntake(in CreateLeadInput) error {
	if !in.Channel.IsValid() {
		return apperr.Validation(fmt.Sprintf("unknown channel %q", in.Channel))
	}
	if in.Phone == "" && in.Email == "" && in.ChatID == "" {
		return apperr.Validation("at least one contact method (phone, email, or chat id) is required")
	}
	if in.Channel.RequiresPhone() && in.Phone == "" {
		return apperr.Validation(fmt.Sprintf("phone is required for the %s channel", in.Channel))
	}
	if in.Channel.RequiresEmail() && in.Email == "" {
		return apperr.Validation(fmt.Sprintf("email is required for the %s channel", in.Channel))
	}
	if in.Channel.RequiresChatID() && in.ChatID == "" {
		return apperr.Validation(fmt.Sprintf("chat id is required for the %s channel", in.Channel))
	}
	if in.Channel == domain.ChannelWhatsApp && !in.Consent.Marketing {
		return apperr.Validation("marketing consent is required for the whatsapp channel")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error) {
	return s.store.List(ctx, tenantID, limit, offset)
}

// Qualify applies the manual qualification decision. Re-qualifying a lead
// that already moved on is a no-op, not an error.
func (s *Service) Qualify(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	return s.applyManual(ctx, id, tenantID, domain.TriggerManualQualification)
}

// MarkLost drops the lead on an explicit operator decision.
func (s *Service) MarkLost(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	return s.applyManual(ctx, id, tenantID, domain.TriggerManualLost)
}

func (s *Service) applyManual(ctx context.Context, id, tenantID uuid.UUID, trigger domain.Trigger) (domain.Lead, error) {
	lead, outcome, err := s.store.ApplyTransition(ctx, id, tenantID, domain.Transition{Trigger: trigger})
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, err
	}
	if outcome == domain.OutcomeNoOp {
		s.log.WithLead(id.String(), tenantID.String()).Info("manual transition was a no-op",
			"trigger", string(trigger), "status", string(lead.Status))
	}
	return lead, nil
}

// SetNotes replaces the operator notes on the lead.
func (s *Service) SetNotes(ctx context.Context, id, tenantID uuid.UUID, notes string) (domain.Lead, error) {
	lead, err := s.store.UpdateNotes(ctx, id, tenantID, notes)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

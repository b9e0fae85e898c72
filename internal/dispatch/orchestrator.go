// Package dispatch decides whether a lead gets an automatic outbound
// contact, schedules it on the task queue, and applies the success and
// failure paths when the queue executes it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"fastlead_backend/internal/channels"
	domainevents "fastlead_backend/internal/events"
	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/internal/leads/repository"
	"fastlead_backend/internal/tasks"
	"fastlead_backend/platform/apperr"
	"fastlead_backend/platform/events"
	"fastlead_backend/platform/logger"
)

// AdapterResolver resolves the delivery adapter for a channel.
// *channels.Registry is the production implementation.
type AdapterResolver interface {
	ForChannel(ch domain.Channel) (channels.Adapter, error)
}

// Enqueuer schedules dispatch tasks. *tasks.Client is the production
// implementation.
type Enqueuer interface {
	EnqueueLeadDispatch(ctx context.Context, leadID, tenantID uuid.UUID, purpose string) (tasks.TaskHandle, error)
}

// Orchestrator owns the dispatch decision and the task execution paths.
type Orchestrator struct {
	store     repository.LeadStore
	resolver  AdapterResolver
	enqueuer  Enqueuer
	bus       events.Bus
	templates *Templates
	policy    tasks.RetryPolicy
	log       *logger.Logger
}

func NewOrchestrator(
	store repository.LeadStore,
	resolver AdapterResolver,
	enqueuer Enqueuer,
	bus events.Bus,
	templates *Templates,
	policy tasks.RetryPolicy,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		resolver:  resolver,
		enqueuer:  enqueuer,
		bus:       bus,
		templates: templates,
		policy:    policy,
		log:       log,
	}
}

// Dispatch is the decision point after lead creation. Channels without an
// automatic contact, and leads whose contact data no adapter accepts, go to
// operator review instead of the queue. Validation runs eagerly here so a
// doomed task is never enqueued.
func (o *Orchestrator) Dispatch(ctx context.Context, lead domain.Lead) (tasks.TaskHandle, error) {
	log := o.log.WithLead(lead.ID.String(), lead.TenantID.String())

	if lead.Status != domain.StatusNew && lead.Status != domain.StatusQualified {
		return tasks.TaskHandle{}, apperr.Conflict(
			fmt.Sprintf("lead in status %q is not dispatchable", lead.Status))
	}

	if !lead.Channel.SupportsAutoDispatch() {
		o.requestOperatorReview(ctx, lead, "channel has no automatic contact")
		log.Info("lead routed to operator review", "channel", string(lead.Channel))
		return tasks.TaskHandle{}, nil
	}

	adapter, err := o.resolver.ForChannel(lead.Channel)
	if err != nil {
		return tasks.TaskHandle{}, err
	}
	if err := adapter.Validate(lead); err != nil {
		o.requestOperatorReview(ctx, lead, err.Error())
		log.Warn("lead failed adapter validation, routed to operator review", "reason", err.Error())
		return tasks.TaskHandle{}, nil
	}

	handle, err := o.enqueuer.EnqueueLeadDispatch(ctx, lead.ID, lead.TenantID, tasks.PurposeInitialContact)
	if err != nil {
		return tasks.TaskHandle{}, fmt.Errorf("enqueue dispatch for lead %s: %w", lead.ID, err)
	}
	return handle, nil
}

// HandleTask executes a dispatch task. Error semantics follow the queue
// contract: nil for success and benign no-ops, asynq.SkipRetry-wrapped
// errors for permanent failures, anything else retries.
func (o *Orchestrator) HandleTask(ctx context.Context, task *asynq.Task) error {
	payload, err := tasks.ParseLeadDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("malformed dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	leadID, tenantID, err := parseIDs(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := o.log.WithLead(payload.LeadID, payload.TenantID)

	lead, err := o.store.GetByID(ctx, leadID, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("dispatch task for unknown lead, dropping")
		return fmt.Errorf("lead not found: %w", asynq.SkipRetry)
	}
	if err != nil {
		return err // store unavailable, retry
	}

	// Re-check state at execution time: the lead may have been contacted,
	// booked, or lost while the task sat in the queue.
	if lead.Status != domain.StatusNew && lead.Status != domain.StatusQualified {
		log.Info("lead no longer dispatchable, skipping", "status", string(lead.Status))
		return nil
	}

	adapter, err := o.resolver.ForChannel(lead.Channel)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	message, err := o.templates.Render(payload.Purpose, lead)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// Soft timeout: the adapter call gets less than the queue's hard limit
	// so the success bookkeeping below still fits inside it.
	sendCtx, cancel := context.WithTimeout(ctx, o.policy.SoftTimeout)
	defer cancel()

	result, err := adapter.Send(sendCtx, channels.Request{Lead: lead, Message: message})
	if err != nil {
		return o.classifySendError(log, lead, err)
	}

	return o.applySuccess(ctx, log, lead, payload.Purpose, result)
}

// applySuccess moves the lead to contacted and records the delivery. The
// transition is idempotent, so a redelivered task resolves to a no-op.
func (o *Orchestrator) applySuccess(ctx context.Context, log *logger.Logger, lead domain.Lead, purpose string, result channels.Result) error {
	updated, outcome, err := o.store.ApplyTransition(ctx, lead.ID, lead.TenantID,
		domain.Transition{Trigger: domain.TriggerOutboundContactSucceeded})
	if apperr.IsBenign(err) {
		log.Info("contact transition lost race, treating as applied elsewhere")
		return nil
	}
	if err != nil {
		return err
	}

	ch := string(lead.Channel)
	patch := map[string]any{
		ch + "_status":     "sent",
		ch + "_message_id": result.ProviderMessageID,
		ch + "_sent_at":    time.Now().UTC().Format(time.RFC3339),
	}
	if err := o.store.MergeMetadata(ctx, lead.ID, lead.TenantID, patch); err != nil {
		// The contact itself succeeded; losing the delivery record is not
		// worth a resend.
		log.Error("failed to record dispatch metadata", "error", err.Error())
	}

	if outcome == domain.OutcomeApplied {
		o.bus.Publish(ctx, domainevents.LeadContacted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    updated.ID,
			TenantID:  updated.TenantID,
			Channel:   string(updated.Channel),
		})
	}

	log.Info("lead contacted", "provider", result.Provider)
	return nil
}

func (o *Orchestrator) classifySendError(log *logger.Logger, lead domain.Lead, err error) error {
	switch {
	case apperr.IsRetryable(err):
		log.Warn("dispatch attempt failed, will retry", "error", err.Error())
		return err
	case apperr.IsBenign(err):
		return nil
	default:
		// Validation and permanent provider failures: retrying cannot help.
		log.Error("dispatch failed permanently", "error", err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

// HandleDeadLetter is invoked by the queue when a dispatch task permanently
// fails. The lead status is deliberately left untouched so an operator can
// still work the lead by hand.
func (o *Orchestrator) HandleDeadLetter(ctx context.Context, task *asynq.Task, cause error) {
	payload, err := tasks.ParseLeadDispatchPayload(task)
	if err != nil {
		o.log.Error("dead-lettered task has malformed payload", "error", err.Error())
		return
	}
	leadID, tenantID, err := parseIDs(payload)
	if err != nil {
		o.log.Error("dead-lettered task has malformed ids", "error", err.Error())
		return
	}
	log := o.log.WithLead(payload.LeadID, payload.TenantID)

	reason := "dispatch failed"
	if cause != nil {
		reason = cause.Error()
	}

	channel := "dispatch"
	lead, err := o.store.GetByID(ctx, leadID, tenantID)
	if err == nil {
		channel = string(lead.Channel)
	}

	patch := map[string]any{
		channel + "_status":    "failed",
		channel + "_error":     reason,
		channel + "_failed_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := o.store.MergeMetadata(ctx, leadID, tenantID, patch); err != nil {
		log.Error("failed to record dispatch failure", "error", err.Error())
	}

	o.bus.Publish(ctx, domainevents.DispatchFailed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		TenantID:  tenantID,
		Channel:   channel,
		Purpose:   payload.Purpose,
		Reason:    reason,
	})
	log.Error("dispatch dead-lettered", "reason", reason)
}

func (o *Orchestrator) requestOperatorReview(ctx context.Context, lead domain.Lead, reason string) {
	o.bus.Publish(ctx, domainevents.OperatorReviewRequested{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Channel:   string(lead.Channel),
		Reason:    reason,
	})
}

func parseIDs(payload tasks.LeadDispatchPayload) (uuid.UUID, uuid.UUID, error) {
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid lead id %q", payload.LeadID)
	}
	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid tenant id %q", payload.TenantID)
	}
	return leadID, tenantID, nil
}

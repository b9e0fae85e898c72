package repository

import (
	"context"

	"fastlead_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadStore is the lead persistence contract consumed by the dispatch
// orchestrator, the booking service, and the webhook reconciler. The
// concrete implementation is *Repository; tests substitute in-memory fakes.
type LeadStore interface {
	Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error)

	// Reconciler-only global reads; see Repository.GetByIDGlobal.
	GetByIDGlobal(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetByBookingRefGlobal(ctx context.Context, bookingRef string) (domain.Lead, error)

	// ApplyTransition is the single write path for lead status. It runs the
	// state machine inside a conditional-update cycle.
	ApplyTransition(ctx context.Context, id, tenantID uuid.UUID, tr domain.Transition) (domain.Lead, domain.Outcome, error)

	// MergeMetadata merges delivery metadata additively.
	MergeMetadata(ctx context.Context, id, tenantID uuid.UUID, patch map[string]any) error
}

var _ LeadStore = (*Repository)(nil)

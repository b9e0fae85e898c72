package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"fastlead_backend/internal/leads/domain"
	"fastlead_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

const (
	// maxCASAttempts bounds the read-compute-write cycle on conditional
	// update conflicts. The lead store's conditional write is the sole
	// serialization mechanism; no locks are held across calls.
	maxCASAttempts = 3

	// storeRetryAttempts bounds the store-access retry on connection
	// failures. This is distinct from task-level retry.
	storeRetryAttempts = 3
	storeRetryDelay    = 100 * time.Millisecond
)

const leadColumns = `
	id, tenant_id, name, phone, email, chat_id, channel, status,
	booking_ref, booking_url, booked_at,
	source, utm_source, utm_medium, utm_campaign, utm_content, utm_term,
	consent_gdpr, consent_marketing, metadata, notes,
	created_at, updated_at, contacted_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateLeadParams holds the fields set by the intake boundary.
type CreateLeadParams struct {
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

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	metadata := params.Payload
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err = r.withStoreRetry(ctx, "create lead", func() error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO leads (
				tenant_id, name, phone, email, chat_id, channel, status,
				source, utm_source, utm_medium, utm_campaign, utm_content, utm_term,
				consent_gdpr, consent_marketing, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING `+leadColumns,
			params.TenantID, params.Name, params.Phone, params.Email, params.ChatID,
			string(params.Channel), string(domain.StatusNew),
			params.Source, params.UTM.Source, params.UTM.Medium, params.UTM.Campaign,
			params.UTM.Content, params.UTM.Term,
			params.Consent.GDPR, params.Consent.Marketing, metadataJSON,
		)
		var scanErr error
		lead, scanErr = scanLead(row)
		return scanErr
	})
	return lead, err
}

func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	var lead domain.Lead
	err := r.withStoreRetry(ctx, "get lead", func() error {
		row := r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+`
			FROM leads
			WHERE id = $1 AND tenant_id = $2
		`, id, tenantID)
		var scanErr error
		lead, scanErr = scanLead(row)
		return scanErr
	})
	return lead, err
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

// GetByIDGlobal resolves a lead without tenant scoping. Reconciler-only:
// inbound calendar events carry no tenant, and their authenticity is
// established by the webhook signature. All writes still go through the
// tenant-scoped conditional-update path using the resolved lead's tenant.
func (r *Repository) GetByIDGlobal(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	var lead domain.Lead
	err := r.withStoreRetry(ctx, "get lead global", func() error {
		row := r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+`
			FROM leads
			WHERE id = $1
		`, id)
		var scanErr error
		lead, scanErr = scanLead(row)
		return scanErr
	})
	return lead, err
}

// GetByBookingRefGlobal resolves a lead by its booking reference without
// tenant scoping. Reconciler-only; see GetByIDGlobal.
func (r *Repository) GetByBookingRefGlobal(ctx context.Context, bookingRef string) (domain.Lead, error) {
	var lead domain.Lead
	err := r.withStoreRetry(ctx, "get lead by booking ref", func() error {
		row := r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+`
			FROM leads
			WHERE booking_ref = $1
			ORDER BY updated_at DESC
			LIMIT 1
		`, bookingRef)
		var scanErr error
		lead, scanErr = scanLead(row)
		return scanErr
	})
	return lead, err
}

// ApplyTransition runs the read-compute-write cycle: load the lead, compute
// the next state through the state machine, and persist it conditionally on
// the status being unchanged since the read. A lost race re-reads and
// re-applies; the transition itself is idempotent, so a replay against the
// winner's state resolves to a no-op.
func (r *Repository) ApplyTransition(ctx context.Context, id, tenantID uuid.UUID, tr domain.Transition) (domain.Lead, domain.Outcome, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		lead, err := r.GetByID(ctx, id, tenantID)
		if err != nil {
			return domain.Lead{}, domain.OutcomeNoOp, err
		}

		next, outcome, err := domain.Next(lead, tr)
		if err != nil || outcome == domain.OutcomeNoOp {
			return lead, outcome, err
		}

		persisted, err := r.updateConditional(ctx, next, lead.Status)
		if err != nil {
			return domain.Lead{}, domain.OutcomeNoOp, err
		}
		if persisted {
			return next, domain.OutcomeApplied, nil
		}
		// Another writer won; re-read and re-apply.
	}

	return domain.Lead{}, domain.OutcomeNoOp,
		apperr.StateConflict("conditional update lost " + string(tr.Trigger) + " race repeatedly")
}

// updateConditional persists the computed state only if the stored status
// still matches the status observed at read time.
func (r *Repository) updateConditional(ctx context.Context, next domain.Lead, expected domain.Status) (bool, error) {
	var tag pgconn.CommandTag
	err := r.withStoreRetry(ctx, "conditional update", func() error {
		var execErr error
		tag, execErr = r.pool.Exec(ctx, `
			UPDATE leads
			SET status = $1, booking_ref = $2, booking_url = $3, booked_at = $4,
				contacted_at = $5, updated_at = now()
			WHERE id = $6 AND tenant_id = $7 AND status = $8
		`, string(next.Status), next.BookingRef, next.BookingURL, next.BookedAt,
			next.ContactedAt, next.ID, next.TenantID, string(expected))
		return execErr
	})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MergeMetadata merges the patch into the lead's side-channel metadata.
// The merge is additive at the database (jsonb ||), so concurrent writers
// touching different keys cannot erase each other's entries.
func (r *Repository) MergeMetadata(ctx context.Context, id, tenantID uuid.UUID, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	return r.withStoreRetry(ctx, "merge metadata", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE leads
			SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb, updated_at = now()
			WHERE id = $2 AND tenant_id = $3
		`, patchJSON, id, tenantID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateNotes replaces the operator notes and returns the updated lead.
func (r *Repository) UpdateNotes(ctx context.Context, id, tenantID uuid.UUID, notes string) (domain.Lead, error) {
	var lead domain.Lead
	err := r.withStoreRetry(ctx, "update notes", func() error {
		row := r.pool.QueryRow(ctx, `
			UPDATE leads
			SET notes = $1, updated_at = now()
			WHERE id = $2 AND tenant_id = $3
			RETURNING `+leadColumns, notes, id, tenantID)
		var scanErr error
		lead, scanErr = scanLead(row)
		return scanErr
	})
	return lead, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var (
		lead         domain.Lead
		channel      string
		status       string
		metadataJSON []byte
	)

	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Email, &lead.ChatID,
		&channel, &status,
		&lead.BookingRef, &lead.BookingURL, &lead.BookedAt,
		&lead.Source, &lead.UTM.Source, &lead.UTM.Medium, &lead.UTM.Campaign,
		&lead.UTM.Content, &lead.UTM.Term,
		&lead.Consent.GDPR, &lead.Consent.Marketing, &metadataJSON, &lead.Notes,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.ContactedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	lead.Channel = domain.Channel(channel)
	lead.Status = domain.Status(status)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &lead.Metadata); err != nil {
			return domain.Lead{}, err
		}
	}

	return lead, nil
}

// withStoreRetry retries the operation a small, bounded number of times on
// connection-class failures and classifies a final failure as
// StoreUnavailable. Query-level errors (no rows, constraint violations)
// pass through untouched.
func (r *Repository) withStoreRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < storeRetryAttempts; attempt++ {
		err = fn()
		if err == nil || !isConnectionError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return apperr.StoreUnavailable(op+" cancelled", ctx.Err())
		case <-time.After(storeRetryDelay):
		}
	}
	return apperr.StoreUnavailable(op+" failed after retries", err)
}

// classifyStoreErr maps connection-class failures to StoreUnavailable;
// query-level errors pass through untouched.
func classifyStoreErr(err error) error {
	if isConnectionError(err) {
		return apperr.StoreUnavailable("store query failed", err)
	}
	return err
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

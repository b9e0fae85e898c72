// Package notification surfaces lifecycle failures and review requests to
// the operator dashboard. It subscribes to domain events; no other module
// calls it directly.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fastlead_backend/platform/apperr"
)

type Notification struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenantId"`
	LeadID    *uuid.UUID `json:"leadId,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Category  string     `json:"category"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CreateParams struct {
	TenantID uuid.UUID
	LeadID   *uuid.UUID
	Title    string
	Content  string
	Category string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, tenant_id, lead_id, title, content, category, is_read, created_at`

func (r *Repository) Create(ctx context.Context, p CreateParams) (Notification, error) {
	if p.TenantID == uuid.Nil {
		return Notification{}, apperr.Validation("tenantId is required")
	}
	if p.Title == "" || p.Content == "" {
		return Notification{}, apperr.Validation("title and content are required")
	}
	category := p.Category
	if category == "" {
		category = "info"
	}

	var n Notification
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (tenant_id, lead_id, title, content, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+notificationColumns,
		p.TenantID, p.LeadID, p.Title, p.Content, category,
	).Scan(&n.ID, &n.TenantID, &n.LeadID, &n.Title, &n.Content, &n.Category, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return Notification{}, apperr.Internal(fmt.Sprintf("create notification failed: %v", err))
	}
	return n, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications failed: %v", err))
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.LeadID, &n.Title, &n.Content, &n.Category, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notification failed: %v", err))
		}
		items = append(items, n)
	}
	if rows.Err() != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rows.Err()))
	}
	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE tenant_id = $1 AND is_read = FALSE
	`, tenantID).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err))
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err))
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context, tenantID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET is_read = TRUE, read_at = now()
		WHERE tenant_id = $1 AND is_read = FALSE
	`, tenantID)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err))
	}
	return nil
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// EmailQueueRepository handles writes to email_queue and the status
// transitions performed by the dispatcher worker.
type EmailQueueRepository struct {
	db *database.DB
}

// NewEmailQueueRepository creates a new EmailQueueRepository.
func NewEmailQueueRepository(db *database.DB) *EmailQueueRepository {
	return &EmailQueueRepository{db: db}
}

// Enqueue inserts a new queued email.
func (r *EmailQueueRepository) Enqueue(ctx context.Context, email *QueuedEmail) error {
	varsJSON, err := json.Marshal(email.Variables)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal variables snapshot")
	}

	query := `
		INSERT INTO email_queue
		    (tenant_id, email_template_id, rule_id, recipient_email, recipient_name,
		     subject, body_html, body_text, variables, status, send_at,
		     attempts, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		email.TenantID,
		email.EmailTemplateID,
		email.RuleID,
		email.RecipientEmail,
		email.RecipientName,
		email.Subject,
		email.BodyHTML,
		email.BodyText,
		varsJSON,
		email.Status,
		email.SendAt,
		email.Attempts,
		email.MaxAttempts,
	).Scan(&email.ID, &email.CreatedAt, &email.UpdatedAt)
}

// GetByID retrieves a queued email within a tenant.
func (r *EmailQueueRepository) GetByID(ctx context.Context, id, tenantID string) (*QueuedEmail, error) {
	query := queueSelect + `
		WHERE id = $1 AND tenant_id = $2
	`

	email, err := r.scanEmail(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("queued_email", id)
	}
	return email, err
}

// ListByTenant returns queued emails for a tenant, newest first, optionally
// filtered by status.
func (r *EmailQueueRepository) ListByTenant(ctx context.Context, tenantID string, status *string, limit int) ([]*QueuedEmail, error) {
	query := queueSelect + `
		WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, tenantID, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list queued emails")
	}
	defer rows.Close()

	return r.scanEmails(rows)
}

// DuePending returns pending emails whose send_at has passed and which still
// have retry budget, oldest due first.
func (r *EmailQueueRepository) DuePending(ctx context.Context, limit int) ([]*QueuedEmail, error) {
	query := queueSelect + `
		WHERE status = 'pending'
		  AND send_at <= NOW()
		  AND attempts < max_attempts
		ORDER BY send_at ASC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to fetch due emails")
	}
	defer rows.Close()

	return r.scanEmails(rows)
}

// MarkSent records a successful hand-off to the delivery channel.
func (r *EmailQueueRepository) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE email_queue
		SET status     = 'sent',
		    attempts   = attempts + 1,
		    sent_at    = NOW(),
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark email sent")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("queued_email", id)
	}
	return nil
}

// Reschedule consumes one attempt and pushes send_at to the next retry time.
// The row stays pending so a later dispatch pass picks it up again.
func (r *EmailQueueRepository) Reschedule(ctx context.Context, id string, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE email_queue
		SET attempts   = attempts + 1,
		    send_at    = $2,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, nextAttemptAt, lastError)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to reschedule email")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("queued_email", id)
	}
	return nil
}

// MarkFailed terminally fails an email after its retry budget is spent.
func (r *EmailQueueRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE email_queue
		SET status     = 'failed',
		    attempts   = attempts + 1,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, lastError)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark email failed")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("queued_email", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

const queueSelect = `
	SELECT id, tenant_id, email_template_id, rule_id, recipient_email,
	       recipient_name, subject, body_html, body_text, variables,
	       status, send_at, attempts, max_attempts, last_error, sent_at,
	       created_at, updated_at
	FROM email_queue
`

func (r *EmailQueueRepository) scanEmail(row ruleScanner) (*QueuedEmail, error) {
	email := &QueuedEmail{}
	var varsJSON []byte

	err := row.Scan(
		&email.ID,
		&email.TenantID,
		&email.EmailTemplateID,
		&email.RuleID,
		&email.RecipientEmail,
		&email.RecipientName,
		&email.Subject,
		&email.BodyHTML,
		&email.BodyText,
		&varsJSON,
		&email.Status,
		&email.SendAt,
		&email.Attempts,
		&email.MaxAttempts,
		&email.LastError,
		&email.SentAt,
		&email.CreatedAt,
		&email.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &email.Variables); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal variables snapshot")
		}
	}
	return email, nil
}

func (r *EmailQueueRepository) scanEmails(rows pgx.Rows) ([]*QueuedEmail, error) {
	var emails []*QueuedEmail
	for rows.Next() {
		email, err := r.scanEmail(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan queued email")
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

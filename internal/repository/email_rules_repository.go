package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// EmailRulesRepository handles CRUD and matching for workflow_email_rules.
type EmailRulesRepository struct {
	db *database.DB
}

// NewEmailRulesRepository creates a new EmailRulesRepository.
func NewEmailRulesRepository(db *database.DB) *EmailRulesRepository {
	return &EmailRulesRepository{db: db}
}

// Create inserts a new email rule.
func (r *EmailRulesRepository) Create(ctx context.Context, rule *EmailRule) error {
	query := `
		INSERT INTO workflow_email_rules
		    (tenant_id, workflow_id, stage_id, email_template_id,
		     recipient_type, custom_recipient_email, send_delay_hours, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		rule.TenantID,
		rule.WorkflowID,
		rule.StageID,
		rule.EmailTemplateID,
		rule.RecipientType,
		rule.CustomRecipientEmail,
		rule.SendDelayHours,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

// GetByID retrieves a rule by primary key within a tenant.
func (r *EmailRulesRepository) GetByID(ctx context.Context, id, tenantID string) (*EmailRule, error) {
	query := `
		SELECT id, tenant_id, workflow_id, stage_id, email_template_id,
		       recipient_type, custom_recipient_email, send_delay_hours,
		       is_active, created_at, updated_at
		FROM workflow_email_rules
		WHERE id = $1 AND tenant_id = $2
	`

	rule, err := r.scanRule(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("email_rule", id)
	}
	return rule, err
}

// List returns all rules for a tenant, optionally filtered by workflow.
func (r *EmailRulesRepository) List(ctx context.Context, tenantID string, workflowID *string) ([]*EmailRule, error) {
	query := `
		SELECT id, tenant_id, workflow_id, stage_id, email_template_id,
		       recipient_type, custom_recipient_email, send_delay_hours,
		       is_active, created_at, updated_at
		FROM workflow_email_rules
		WHERE tenant_id = $1 AND ($2::uuid IS NULL OR workflow_id = $2)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID, workflowID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list email rules")
	}
	defer rows.Close()

	return r.scanRules(rows)
}

// FindMatching returns the active rules that fire for a stage-completion
// event: tenant and workflow must match, and the rule is either bound to the
// completed stage or is an any-stage rule (stage_id IS NULL). A nil stageID
// represents a workflow-level event and matches only any-stage rules.
// An empty result is normal, not an error.
func (r *EmailRulesRepository) FindMatching(ctx context.Context, tenantID, workflowID string, stageID *string) ([]*EmailRule, error) {
	query := `
		SELECT id, tenant_id, workflow_id, stage_id, email_template_id,
		       recipient_type, custom_recipient_email, send_delay_hours,
		       is_active, created_at, updated_at
		FROM workflow_email_rules
		WHERE tenant_id = $1
		  AND workflow_id = $2
		  AND is_active = TRUE
		  AND (stage_id IS NULL OR stage_id = $3)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, tenantID, workflowID, stageID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to find matching email rules")
	}
	defer rows.Close()

	return r.scanRules(rows)
}

// Update persists changes to an existing rule.
func (r *EmailRulesRepository) Update(ctx context.Context, rule *EmailRule) error {
	query := `
		UPDATE workflow_email_rules
		SET stage_id               = $3,
		    email_template_id      = $4,
		    recipient_type         = $5,
		    custom_recipient_email = $6,
		    send_delay_hours       = $7,
		    is_active              = $8,
		    updated_at             = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.ID,
		rule.TenantID,
		rule.StageID,
		rule.EmailTemplateID,
		rule.RecipientType,
		rule.CustomRecipientEmail,
		rule.SendDelayHours,
		rule.IsActive,
	).Scan(&rule.UpdatedAt)

	if err == pgx.ErrNoRows {
		return errors.NotFound("email_rule", rule.ID)
	}
	return err
}

// Delete removes an email rule.
func (r *EmailRulesRepository) Delete(ctx context.Context, id, tenantID string) error {
	query := `
		DELETE FROM workflow_email_rules
		WHERE id = $1 AND tenant_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, tenantID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete email rule")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("email_rule", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type ruleScanner interface {
	Scan(dest ...any) error
}

func (r *EmailRulesRepository) scanRule(row ruleScanner) (*EmailRule, error) {
	rule := &EmailRule{}
	err := row.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.WorkflowID,
		&rule.StageID,
		&rule.EmailTemplateID,
		&rule.RecipientType,
		&rule.CustomRecipientEmail,
		&rule.SendDelayHours,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *EmailRulesRepository) scanRules(rows pgx.Rows) ([]*EmailRule, error) {
	var rules []*EmailRule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan email rule")
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

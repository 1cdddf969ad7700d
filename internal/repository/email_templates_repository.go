package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// EmailTemplatesRepository handles CRUD for email_templates.
type EmailTemplatesRepository struct {
	db *database.DB
}

// NewEmailTemplatesRepository creates a new EmailTemplatesRepository.
func NewEmailTemplatesRepository(db *database.DB) *EmailTemplatesRepository {
	return &EmailTemplatesRepository{db: db}
}

// Create inserts a new email template.
func (r *EmailTemplatesRepository) Create(ctx context.Context, tmpl *EmailTemplate) error {
	varsJSON, err := json.Marshal(tmpl.SupportedVariables)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal supported variables")
	}

	query := `
		INSERT INTO email_templates
		    (tenant_id, name, template_type, subject, body_html, body_text,
		     supported_variables, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRow(ctx, query,
		tmpl.TenantID,
		tmpl.Name,
		tmpl.TemplateType,
		tmpl.Subject,
		tmpl.BodyHTML,
		tmpl.BodyText,
		varsJSON,
		tmpl.IsActive,
	).Scan(&tmpl.ID, &tmpl.CreatedAt, &tmpl.UpdatedAt)
}

// GetByID retrieves a template by primary key within a tenant.
func (r *EmailTemplatesRepository) GetByID(ctx context.Context, id, tenantID string) (*EmailTemplate, error) {
	query := `
		SELECT id, tenant_id, name, template_type, subject, body_html, body_text,
		       supported_variables, is_active, created_at, updated_at
		FROM email_templates
		WHERE id = $1 AND tenant_id = $2
	`

	tmpl, err := r.scanTemplate(r.db.QueryRow(ctx, query, id, tenantID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("email_template", id)
	}
	return tmpl, err
}

// List returns all templates for a tenant, optionally active only.
func (r *EmailTemplatesRepository) List(ctx context.Context, tenantID string, activeOnly bool) ([]*EmailTemplate, error) {
	query := `
		SELECT id, tenant_id, name, template_type, subject, body_html, body_text,
		       supported_variables, is_active, created_at, updated_at
		FROM email_templates
		WHERE tenant_id = $1
	`
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY name ASC"

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list email templates")
	}
	defer rows.Close()

	var templates []*EmailTemplate
	for rows.Next() {
		tmpl, err := r.scanTemplate(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan email template")
		}
		templates = append(templates, tmpl)
	}
	return templates, rows.Err()
}

// Update persists changes to an existing template.
func (r *EmailTemplatesRepository) Update(ctx context.Context, tmpl *EmailTemplate) error {
	varsJSON, err := json.Marshal(tmpl.SupportedVariables)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal supported variables")
	}

	query := `
		UPDATE email_templates
		SET name                = $3,
		    template_type       = $4,
		    subject             = $5,
		    body_html           = $6,
		    body_text           = $7,
		    supported_variables = $8,
		    is_active           = $9,
		    updated_at          = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		tmpl.ID,
		tmpl.TenantID,
		tmpl.Name,
		tmpl.TemplateType,
		tmpl.Subject,
		tmpl.BodyHTML,
		tmpl.BodyText,
		varsJSON,
		tmpl.IsActive,
	).Scan(&tmpl.UpdatedAt)

	if err == pgx.ErrNoRows {
		return errors.NotFound("email_template", tmpl.ID)
	}
	return err
}

// Delete removes an email template. Rules referencing it keep their FK and
// simply skip at trigger time once the template is gone.
func (r *EmailTemplatesRepository) Delete(ctx context.Context, id, tenantID string) error {
	query := `
		DELETE FROM email_templates
		WHERE id = $1 AND tenant_id = $2
	`

	tag, err := r.db.Exec(ctx, query, id, tenantID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete email template")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("email_template", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func (r *EmailTemplatesRepository) scanTemplate(row ruleScanner) (*EmailTemplate, error) {
	tmpl := &EmailTemplate{}
	var varsJSON []byte

	err := row.Scan(
		&tmpl.ID,
		&tmpl.TenantID,
		&tmpl.Name,
		&tmpl.TemplateType,
		&tmpl.Subject,
		&tmpl.BodyHTML,
		&tmpl.BodyText,
		&varsJSON,
		&tmpl.IsActive,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &tmpl.SupportedVariables); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal supported variables")
		}
	}
	return tmpl, nil
}

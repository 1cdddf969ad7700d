package service

import (
	"context"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/template"
)

// RuleAdminStore is the write surface for email rules.
type RuleAdminStore interface {
	Create(ctx context.Context, rule *repository.EmailRule) error
	GetByID(ctx context.Context, id, tenantID string) (*repository.EmailRule, error)
	List(ctx context.Context, tenantID string, workflowID *string) ([]*repository.EmailRule, error)
	Update(ctx context.Context, rule *repository.EmailRule) error
	Delete(ctx context.Context, id, tenantID string) error
}

// TemplateAdminStore is the write surface for email templates.
type TemplateAdminStore interface {
	Create(ctx context.Context, tmpl *repository.EmailTemplate) error
	GetByID(ctx context.Context, id, tenantID string) (*repository.EmailTemplate, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]*repository.EmailTemplate, error)
	Update(ctx context.Context, tmpl *repository.EmailTemplate) error
	Delete(ctx context.Context, id, tenantID string) error
}

// QueueReadStore is the inspection surface for the email queue.
type QueueReadStore interface {
	GetByID(ctx context.Context, id, tenantID string) (*repository.QueuedEmail, error)
	ListByTenant(ctx context.Context, tenantID string, status *string, limit int) ([]*repository.QueuedEmail, error)
}

// AdminService handles rule and template administration.
type AdminService struct {
	rules     RuleAdminStore
	templates TemplateAdminStore
	queue     QueueReadStore
	log       *logger.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(rules RuleAdminStore, templates TemplateAdminStore, queue QueueReadStore, log *logger.Logger) *AdminService {
	return &AdminService{rules: rules, templates: templates, queue: queue, log: log}
}

// ── Rules ────────────────────────────────────────────────────────────────────

// CreateRuleRequest represents a create rule request.
type CreateRuleRequest struct {
	TenantID             string  `json:"tenant_id"`
	WorkflowID           string  `json:"workflow_id"`
	StageID              *string `json:"stage_id"`
	EmailTemplateID      string  `json:"email_template_id"`
	RecipientType        string  `json:"recipient_type"`
	CustomRecipientEmail *string `json:"custom_recipient_email"`
	SendDelayHours       int     `json:"send_delay_hours"`
	IsActive             bool    `json:"is_active"`
}

// CreateRule validates and persists a new email rule.
func (s *AdminService) CreateRule(ctx context.Context, req *CreateRuleRequest) (*repository.EmailRule, error) {
	if err := validateRuleFields(req.TenantID, req.WorkflowID, req.EmailTemplateID, req.RecipientType, req.CustomRecipientEmail, req.SendDelayHours); err != nil {
		return nil, err
	}

	// The referenced template must exist in the same tenant.
	if _, err := s.templates.GetByID(ctx, req.EmailTemplateID, req.TenantID); err != nil {
		return nil, err
	}

	rule := &repository.EmailRule{
		TenantID:             req.TenantID,
		WorkflowID:           req.WorkflowID,
		StageID:              req.StageID,
		EmailTemplateID:      req.EmailTemplateID,
		RecipientType:        req.RecipientType,
		CustomRecipientEmail: req.CustomRecipientEmail,
		SendDelayHours:       req.SendDelayHours,
		IsActive:             req.IsActive,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("workflow_id", rule.WorkflowID).
		Str("recipient_type", rule.RecipientType).
		Msg("email rule created")
	return rule, nil
}

// GetRule returns one rule.
func (s *AdminService) GetRule(ctx context.Context, id, tenantID string) (*repository.EmailRule, error) {
	return s.rules.GetByID(ctx, id, tenantID)
}

// ListRules returns rules for a tenant, optionally scoped to a workflow.
func (s *AdminService) ListRules(ctx context.Context, tenantID string, workflowID *string) ([]*repository.EmailRule, error) {
	return s.rules.List(ctx, tenantID, workflowID)
}

// UpdateRuleRequest represents an update rule request.
type UpdateRuleRequest struct {
	ID                   string  `json:"id"`
	TenantID             string  `json:"tenant_id"`
	StageID              *string `json:"stage_id"`
	EmailTemplateID      string  `json:"email_template_id"`
	RecipientType        string  `json:"recipient_type"`
	CustomRecipientEmail *string `json:"custom_recipient_email"`
	SendDelayHours       int     `json:"send_delay_hours"`
	IsActive             bool    `json:"is_active"`
}

// UpdateRule validates and persists changes to an existing rule.
func (s *AdminService) UpdateRule(ctx context.Context, req *UpdateRuleRequest) (*repository.EmailRule, error) {
	rule, err := s.rules.GetByID(ctx, req.ID, req.TenantID)
	if err != nil {
		return nil, err
	}

	if err := validateRuleFields(req.TenantID, rule.WorkflowID, req.EmailTemplateID, req.RecipientType, req.CustomRecipientEmail, req.SendDelayHours); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetByID(ctx, req.EmailTemplateID, req.TenantID); err != nil {
		return nil, err
	}

	rule.StageID = req.StageID
	rule.EmailTemplateID = req.EmailTemplateID
	rule.RecipientType = req.RecipientType
	rule.CustomRecipientEmail = req.CustomRecipientEmail
	rule.SendDelayHours = req.SendDelayHours
	rule.IsActive = req.IsActive

	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AdminService) DeleteRule(ctx context.Context, id, tenantID string) error {
	return s.rules.Delete(ctx, id, tenantID)
}

func validateRuleFields(tenantID, workflowID, templateID, recipientType string, customEmail *string, sendDelayHours int) error {
	if tenantID == "" {
		return errors.InvalidInput("tenant_id", "tenant ID is required")
	}
	if workflowID == "" {
		return errors.InvalidInput("workflow_id", "workflow ID is required")
	}
	if templateID == "" {
		return errors.InvalidInput("email_template_id", "email template ID is required")
	}
	kind, ok := ParseRecipientKind(recipientType)
	if !ok {
		return errors.InvalidInput("recipient_type", "must be one of client, assigned_staff, client_manager, custom_email")
	}
	if kind == RecipientCustomEmail && (customEmail == nil || *customEmail == "") {
		return errors.InvalidInput("custom_recipient_email", "required when recipient_type is custom_email")
	}
	if sendDelayHours < 0 {
		return errors.InvalidInput("send_delay_hours", "must be zero or greater")
	}
	return nil
}

// ── Templates ────────────────────────────────────────────────────────────────

// SaveTemplateRequest represents a create or update template request.
type SaveTemplateRequest struct {
	ID           string  `json:"id,omitempty"`
	TenantID     string  `json:"tenant_id"`
	Name         string  `json:"name"`
	TemplateType string  `json:"template_type"`
	Subject      string  `json:"subject"`
	BodyHTML     string  `json:"body_html"`
	BodyText     *string `json:"body_text"`
	IsActive     bool    `json:"is_active"`
}

// CreateTemplate validates and persists a new template. Subject and bodies
// may only reference the supported variable catalogue.
func (s *AdminService) CreateTemplate(ctx context.Context, req *SaveTemplateRequest) (*repository.EmailTemplate, error) {
	if err := validateTemplateRequest(req); err != nil {
		return nil, err
	}

	tmpl := &repository.EmailTemplate{
		TenantID:           req.TenantID,
		Name:               req.Name,
		TemplateType:       req.TemplateType,
		Subject:            req.Subject,
		BodyHTML:           req.BodyHTML,
		BodyText:           req.BodyText,
		SupportedVariables: SupportedVariables(),
		IsActive:           req.IsActive,
	}
	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("template_id", tmpl.ID).
		Str("name", tmpl.Name).
		Msg("email template created")
	return tmpl, nil
}

// GetTemplate returns one template.
func (s *AdminService) GetTemplate(ctx context.Context, id, tenantID string) (*repository.EmailTemplate, error) {
	return s.templates.GetByID(ctx, id, tenantID)
}

// ListTemplates returns templates for a tenant.
func (s *AdminService) ListTemplates(ctx context.Context, tenantID string, activeOnly bool) ([]*repository.EmailTemplate, error) {
	return s.templates.List(ctx, tenantID, activeOnly)
}

// UpdateTemplate validates and persists changes to an existing template.
func (s *AdminService) UpdateTemplate(ctx context.Context, req *SaveTemplateRequest) (*repository.EmailTemplate, error) {
	if req.ID == "" {
		return nil, errors.InvalidInput("id", "template ID is required")
	}
	if err := validateTemplateRequest(req); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.GetByID(ctx, req.ID, req.TenantID)
	if err != nil {
		return nil, err
	}

	tmpl.Name = req.Name
	tmpl.TemplateType = req.TemplateType
	tmpl.Subject = req.Subject
	tmpl.BodyHTML = req.BodyHTML
	tmpl.BodyText = req.BodyText
	tmpl.SupportedVariables = SupportedVariables()
	tmpl.IsActive = req.IsActive

	if err := s.templates.Update(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// DeleteTemplate removes a template.
func (s *AdminService) DeleteTemplate(ctx context.Context, id, tenantID string) error {
	return s.templates.Delete(ctx, id, tenantID)
}

// ValidateTemplateContent checks subject and bodies against the supported
// variable catalogue without persisting anything.
func (s *AdminService) ValidateTemplateContent(subject, bodyHTML string, bodyText *string) template.ValidationResult {
	combined := subject + "\n" + bodyHTML
	if bodyText != nil {
		combined += "\n" + *bodyText
	}
	return template.Validate(combined, SupportedVariables())
}

func validateTemplateRequest(req *SaveTemplateRequest) error {
	if req.TenantID == "" {
		return errors.InvalidInput("tenant_id", "tenant ID is required")
	}
	if req.Name == "" {
		return errors.InvalidInput("name", "template name is required")
	}
	if req.Subject == "" {
		return errors.InvalidInput("subject", "subject is required")
	}
	if req.BodyHTML == "" {
		return errors.InvalidInput("body_html", "HTML body is required")
	}
	if result := template.Validate(req.Subject+"\n"+req.BodyHTML, SupportedVariables()); !result.Valid {
		return errors.InvalidInput("template", result.Errors[0])
	}
	if req.BodyText != nil {
		if result := template.Validate(*req.BodyText, SupportedVariables()); !result.Valid {
			return errors.InvalidInput("body_text", result.Errors[0])
		}
	}
	return nil
}

// ── Queue inspection ─────────────────────────────────────────────────────────

// GetQueuedEmail returns one queued email.
func (s *AdminService) GetQueuedEmail(ctx context.Context, id, tenantID string) (*repository.QueuedEmail, error) {
	return s.queue.GetByID(ctx, id, tenantID)
}

// ListQueuedEmails returns recent queue rows for a tenant.
func (s *AdminService) ListQueuedEmails(ctx context.Context, tenantID string, status *string, limit int) ([]*repository.QueuedEmail, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	if status != nil {
		switch *status {
		case repository.QueueStatusPending, repository.QueueStatusSent, repository.QueueStatusFailed:
		default:
			return nil, errors.InvalidInput("status", "must be one of pending, sent, failed")
		}
	}
	return s.queue.ListByTenant(ctx, tenantID, status, limit)
}

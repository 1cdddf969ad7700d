package service

import (
	"context"
	"fmt"

	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/template"
)

// RuleStore matches notification rules for a completion event.
type RuleStore interface {
	FindMatching(ctx context.Context, tenantID, workflowID string, stageID *string) ([]*repository.EmailRule, error)
}

// TemplateStore fetches email templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id, tenantID string) (*repository.EmailTemplate, error)
}

// TriggerService reacts to workflow stage completion: it matches rules,
// resolves recipients, renders templates and schedules delivery.
type TriggerService struct {
	rules     RuleStore
	templates TemplateStore
	tasks     TaskStore
	workflows WorkflowStore
	resolver  *RecipientResolver
	gatherer  *VariableGatherer
	writer    *QueueWriter
	log       *logger.Logger
}

// NewTriggerService creates a new TriggerService.
func NewTriggerService(
	rules RuleStore,
	templates TemplateStore,
	tasks TaskStore,
	workflows WorkflowStore,
	resolver *RecipientResolver,
	gatherer *VariableGatherer,
	writer *QueueWriter,
	log *logger.Logger,
) *TriggerService {
	return &TriggerService{
		rules:     rules,
		templates: templates,
		tasks:     tasks,
		workflows: workflows,
		resolver:  resolver,
		gatherer:  gatherer,
		writer:    writer,
		log:       log,
	}
}

// ChecklistItemCompleted evaluates whether a checklist toggle has left the
// stage fully complete, and fires the stage emails when it has. Returns
// whether the stage is complete so callers can surface the transition.
// Detection errors are swallowed like every other trigger-path failure.
func (s *TriggerService) ChecklistItemCompleted(ctx context.Context, workflowID, stageID, tenantID, taskID string) bool {
	stage, err := s.workflows.GetStage(ctx, stageID)
	if err != nil {
		s.log.Error().Err(err).
			Str("stage_id", stageID).
			Str("task_id", taskID).
			Msg("failed to load stage for completion check")
		return false
	}

	progress, err := s.workflows.GetStageProgress(ctx, taskID, workflowID)
	if err != nil {
		s.log.Error().Err(err).
			Str("stage_id", stageID).
			Str("task_id", taskID).
			Msg("failed to load stage progress for completion check")
		return false
	}

	if !DetectStageCompletion(progress, stageID, stage.ChecklistItems) {
		return false
	}

	s.log.Info().
		Str("stage_id", stageID).
		Str("task_id", taskID).
		Msg("stage complete; triggering workflow emails")
	s.TriggerWorkflowEmails(ctx, workflowID, &stageID, tenantID, taskID)
	return true
}

// TriggerWorkflowEmails processes all notification rules matching a completed
// stage (nil stageID = workflow-level event). It never fails upward: the
// user action that completed the stage must not be blocked by notification
// problems. Each rule is processed in isolation, so one bad rule, template or
// recipient cannot suppress notifications for its siblings.
func (s *TriggerService) TriggerWorkflowEmails(ctx context.Context, workflowID string, stageID *string, tenantID, taskID string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().
				Interface("panic", rec).
				Str("workflow_id", workflowID).
				Str("task_id", taskID).
				Msg("panic while triggering workflow emails")
		}
	}()

	rules, err := s.rules.FindMatching(ctx, tenantID, workflowID, stageID)
	if err != nil {
		s.log.Error().Err(err).
			Str("workflow_id", workflowID).
			Str("task_id", taskID).
			Msg("failed to match email rules")
		return
	}
	if len(rules) == 0 {
		// No rules configured for this event. Normal.
		return
	}

	// Task context is needed by every rule; without it none can be evaluated.
	taskCtx, err := s.tasks.GetContext(ctx, taskID, tenantID)
	if err != nil {
		s.log.Error().Err(err).
			Str("task_id", taskID).
			Str("workflow_id", workflowID).
			Msg("task not found; aborting email trigger pass")
		return
	}

	// The variable set depends only on (task, workflow, stage), so gather once
	// and share it across rules.
	vars := s.gatherer.Gather(ctx, taskID, workflowID, stageID, tenantID)

	for _, rule := range rules {
		if err := s.processRule(ctx, rule, taskCtx, vars); err != nil {
			s.log.Error().Err(err).
				Str("rule_id", rule.ID).
				Str("workflow_id", workflowID).
				Str("task_id", taskID).
				Msg("email rule processing failed; continuing with remaining rules")
		}
	}
}

// processRule runs steps a–e of the trigger flow for one rule. A nil error
// with no queue write means the rule was skipped (inactive template,
// unresolvable recipient). Panics are contained at this boundary.
func (s *TriggerService) processRule(
	ctx context.Context,
	rule *repository.EmailRule,
	taskCtx *repository.TaskContext,
	vars template.Variables,
) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic processing rule: %v", rec)
		}
	}()

	tmpl, err := s.templates.GetByID(ctx, rule.EmailTemplateID, rule.TenantID)
	if err != nil || !tmpl.IsActive {
		s.log.Warn().
			Str("rule_id", rule.ID).
			Str("template_id", rule.EmailTemplateID).
			Msg("template missing or inactive; skipping rule")
		return nil
	}

	recipient := s.resolver.Resolve(ctx, rule.RecipientType, rule.CustomRecipientEmail, taskCtx, rule.TenantID)
	if recipient == nil {
		s.log.Warn().
			Str("rule_id", rule.ID).
			Str("recipient_type", rule.RecipientType).
			Msg("could not resolve recipient; skipping rule")
		return nil
	}

	rendered := RenderedEmail{
		Subject:  template.Render(tmpl.Subject, vars),
		BodyHTML: template.Render(tmpl.BodyHTML, vars),
	}
	if tmpl.BodyText != nil {
		textOpts := template.DefaultRenderOptions()
		textOpts.EscapeHTML = false
		text := template.RenderWith(*tmpl.BodyText, vars, textOpts)
		rendered.BodyText = &text
	}

	_, err = s.writer.Enqueue(ctx, rule, recipient, rendered, vars)
	return err
}

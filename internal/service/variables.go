package service

import (
	"context"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/template"
)

// dueDateLayout renders task due dates the way the admin UI shows them,
// e.g. "31 Dec 2025".
const dueDateLayout = "2 Jan 2006"

// SupportedVariables returns the catalogue of variables available to
// workflow email templates.
func SupportedVariables() []string {
	return []string{
		"client_name",
		"task_name",
		"due_date",
		"staff_name",
		"company_name",
		"workflow_name",
		"stage_name",
	}
}

// TaskStore reads task projections.
type TaskStore interface {
	GetContext(ctx context.Context, taskID, tenantID string) (*repository.TaskContext, error)
	GetDetail(ctx context.Context, taskID, tenantID string) (*repository.TaskDetail, error)
}

// WorkflowStore reads workflow definitions and stage progress.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*repository.Workflow, error)
	GetStage(ctx context.Context, id string) (*repository.WorkflowStage, error)
	GetStageProgress(ctx context.Context, taskID, workflowID string) (repository.StageProgress, error)
}

// VariableGatherer assembles the named values substituted into templates.
type VariableGatherer struct {
	tasks     TaskStore
	workflows WorkflowStore
	directory DirectoryStore
	log       *logger.Logger
}

// NewVariableGatherer creates a new VariableGatherer.
func NewVariableGatherer(tasks TaskStore, workflows WorkflowStore, directory DirectoryStore, log *logger.Logger) *VariableGatherer {
	return &VariableGatherer{tasks: tasks, workflows: workflows, directory: directory, log: log}
}

// Gather builds the variable set for a trigger. Every supported variable is
// present in the result; values that cannot be derived are nil and render as
// the missing-value placeholder. A record that simply does not exist is a nil
// value, not a failure; an unexpected store failure yields an empty set so
// rendering still proceeds.
func (g *VariableGatherer) Gather(ctx context.Context, taskID, workflowID string, stageID *string, tenantID string) template.Variables {
	vars := template.Variables{
		"client_name":   nil,
		"task_name":     nil,
		"due_date":      nil,
		"staff_name":    nil,
		"company_name":  nil,
		"workflow_name": nil,
		"stage_name":    nil,
	}

	task, err := g.tasks.GetDetail(ctx, taskID, tenantID)
	if err != nil && !errors.IsNotFound(err) {
		g.logGatherFailure(err, taskID, workflowID)
		return template.Variables{}
	}
	if task != nil {
		title := task.Title
		vars["task_name"] = &title
		if task.DueDate != nil {
			due := task.DueDate.Format(dueDateLayout)
			vars["due_date"] = &due
		}
	}

	workflow, err := g.workflows.GetWorkflow(ctx, workflowID)
	if err != nil && !errors.IsNotFound(err) {
		g.logGatherFailure(err, taskID, workflowID)
		return template.Variables{}
	}
	if workflow != nil {
		name := workflow.Name
		vars["workflow_name"] = &name
	}

	if stageID != nil {
		stage, err := g.workflows.GetStage(ctx, *stageID)
		if err != nil && !errors.IsNotFound(err) {
			g.logGatherFailure(err, taskID, workflowID)
			return template.Variables{}
		}
		if stage != nil {
			name := stage.Name
			vars["stage_name"] = &name
		}
	}

	if task != nil && task.ClientID != nil {
		client, err := g.directory.GetClient(ctx, *task.ClientID, tenantID)
		if err != nil && !errors.IsNotFound(err) {
			g.logGatherFailure(err, taskID, workflowID)
			return template.Variables{}
		}
		if client != nil {
			name := client.Name
			vars["client_name"] = &name
		}
	}

	if task != nil && task.AssignedToID != nil {
		staff, err := g.directory.GetUser(ctx, *task.AssignedToID, tenantID)
		if err != nil && !errors.IsNotFound(err) {
			g.logGatherFailure(err, taskID, workflowID)
			return template.Variables{}
		}
		if staff != nil {
			name := staff.FirstName + " " + staff.LastName
			vars["staff_name"] = &name
		}
	}

	tenant, err := g.directory.GetTenant(ctx, tenantID)
	if err != nil && !errors.IsNotFound(err) {
		g.logGatherFailure(err, taskID, workflowID)
		return template.Variables{}
	}
	if tenant != nil {
		name := tenant.Name
		vars["company_name"] = &name
	}

	return vars
}

func (g *VariableGatherer) logGatherFailure(err error, taskID, workflowID string) {
	g.log.Error().Err(err).
		Str("task_id", taskID).
		Str("workflow_id", workflowID).
		Msg("variable gathering failed; rendering with empty variable set")
}

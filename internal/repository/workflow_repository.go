package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// WorkflowRepository reads workflow definitions, stages and per-task stage
// progress. All of it is owned by the task-management service; this service
// only ever reads.
type WorkflowRepository struct {
	db *database.DB
}

// NewWorkflowRepository creates a new WorkflowRepository.
func NewWorkflowRepository(db *database.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// GetWorkflow returns the minimal workflow projection.
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	query := `
		SELECT id, tenant_id, name
		FROM workflows
		WHERE id = $1
	`

	wf := &Workflow{}
	err := r.db.QueryRow(ctx, query, id).Scan(&wf.ID, &wf.TenantID, &wf.Name)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow")
	}
	return wf, nil
}

// GetStage returns a stage including its checklist definition.
func (r *WorkflowRepository) GetStage(ctx context.Context, id string) (*WorkflowStage, error) {
	query := `
		SELECT id, workflow_id, name, stage_order, checklist_items,
		       created_at, updated_at
		FROM workflow_stages
		WHERE id = $1
	`

	stage := &WorkflowStage{}
	var itemsJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&stage.ID,
		&stage.WorkflowID,
		&stage.Name,
		&stage.StageOrder,
		&itemsJSON,
		&stage.CreatedAt,
		&stage.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("workflow_stage", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get workflow stage")
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &stage.ChecklistItems); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal checklist items")
		}
	}
	return stage, nil
}

// GetStageProgress returns the stage progress map of a task's workflow
// instance. A task without an instance yields an empty map, not an error.
func (r *WorkflowRepository) GetStageProgress(ctx context.Context, taskID, workflowID string) (StageProgress, error) {
	query := `
		SELECT stage_progress
		FROM task_workflow_instances
		WHERE task_id = $1 AND workflow_id = $2
	`

	var progressJSON []byte
	err := r.db.QueryRow(ctx, query, taskID, workflowID).Scan(&progressJSON)
	if err == pgx.ErrNoRows {
		return StageProgress{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get stage progress")
	}

	progress := StageProgress{}
	if len(progressJSON) > 0 {
		if err := json.Unmarshal(progressJSON, &progress); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal stage progress")
		}
	}
	return progress, nil
}

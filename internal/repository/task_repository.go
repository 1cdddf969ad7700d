package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/practicehub/be-workflow-emails/internal/database"
	"github.com/practicehub/be-workflow-emails/internal/errors"
)

// TaskRepository reads the task projections this service needs. Tasks are
// owned by the task-management service.
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// GetContext returns the client/assignee links used for recipient resolution.
func (r *TaskRepository) GetContext(ctx context.Context, taskID, tenantID string) (*TaskContext, error) {
	query := `
		SELECT client_id, assigned_to_id
		FROM tasks
		WHERE id = $1 AND tenant_id = $2
	`

	tc := &TaskContext{}
	err := r.db.QueryRow(ctx, query, taskID, tenantID).Scan(&tc.ClientID, &tc.AssignedToID)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("task", taskID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get task context")
	}
	return tc, nil
}

// GetDetail returns the task fields used for variable gathering.
func (r *TaskRepository) GetDetail(ctx context.Context, taskID, tenantID string) (*TaskDetail, error) {
	query := `
		SELECT title, due_date, client_id, assigned_to_id
		FROM tasks
		WHERE id = $1 AND tenant_id = $2
	`

	td := &TaskDetail{}
	err := r.db.QueryRow(ctx, query, taskID, tenantID).Scan(
		&td.Title,
		&td.DueDate,
		&td.ClientID,
		&td.AssignedToID,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("task", taskID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get task detail")
	}
	return td, nil
}

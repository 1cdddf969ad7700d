package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// stageCompletedSubject is published by the task-management service whenever
// a checklist toggle completes a workflow stage.
const stageCompletedSubject = "tasks.stage_completed"

// checklistUpdatedSubject is published on every checklist item toggle; this
// service decides whether the toggle completed the stage.
const checklistUpdatedSubject = "tasks.checklist_updated"

// completionQueueGroup makes all service replicas share one subscription.
const completionQueueGroup = "be-workflow-emails"

// StageCompletedEvent is the inbound event schema.
type StageCompletedEvent struct {
	TenantID   string    `json:"tenant_id"`
	WorkflowID string    `json:"workflow_id"`
	StageID    *string   `json:"stage_id"` // nil = workflow-level completion
	TaskID     string    `json:"task_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChecklistUpdatedEvent is the inbound event schema for checklist toggles.
type ChecklistUpdatedEvent struct {
	TenantID   string    `json:"tenant_id"`
	WorkflowID string    `json:"workflow_id"`
	StageID    string    `json:"stage_id"`
	TaskID     string    `json:"task_id"`
	ItemID     string    `json:"item_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkflowEmailTrigger is the service entry point invoked per event.
type WorkflowEmailTrigger interface {
	TriggerWorkflowEmails(ctx context.Context, workflowID string, stageID *string, tenantID, taskID string)
	ChecklistItemCompleted(ctx context.Context, workflowID, stageID, tenantID, taskID string) bool
}

// CompletionSubscriber consumes stage-completion events and invokes the
// email trigger for each. Malformed events are logged and dropped; the
// trigger itself never returns an error, so the handler never NAKs.
type CompletionSubscriber struct {
	nc      *nats.Conn
	trigger WorkflowEmailTrigger
	timeout time.Duration
	log     zerolog.Logger
}

// NewCompletionSubscriber creates a new CompletionSubscriber.
func NewCompletionSubscriber(nc *nats.Conn, trigger WorkflowEmailTrigger, timeout time.Duration, log zerolog.Logger) *CompletionSubscriber {
	return &CompletionSubscriber{nc: nc, trigger: trigger, timeout: timeout, log: log}
}

// Subscribe starts the queue subscriptions. The returned subscriptions should
// be drained during shutdown.
func (s *CompletionSubscriber) Subscribe() ([]*nats.Subscription, error) {
	completed, err := s.nc.QueueSubscribe(stageCompletedSubject, completionQueueGroup, s.handleStageCompleted)
	if err != nil {
		return nil, err
	}
	checklist, err := s.nc.QueueSubscribe(checklistUpdatedSubject, completionQueueGroup, s.handleChecklistUpdated)
	if err != nil {
		completed.Unsubscribe()
		return nil, err
	}
	s.log.Info().
		Strs("subjects", []string{stageCompletedSubject, checklistUpdatedSubject}).
		Str("queue", completionQueueGroup).
		Msg("subscribed to workflow events")
	return []*nats.Subscription{completed, checklist}, nil
}

func (s *CompletionSubscriber) handleStageCompleted(msg *nats.Msg) {
	var event StageCompletedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.log.Error().Err(err).Str("subject", msg.Subject).Msg("dropping malformed stage completion event")
		return
	}
	if event.TenantID == "" || event.WorkflowID == "" || event.TaskID == "" {
		s.log.Error().
			Str("tenant_id", event.TenantID).
			Str("workflow_id", event.WorkflowID).
			Str("task_id", event.TaskID).
			Msg("dropping stage completion event with missing identifiers")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Debug().
		Str("workflow_id", event.WorkflowID).
		Str("task_id", event.TaskID).
		Msg("processing stage completion event")

	s.trigger.TriggerWorkflowEmails(ctx, event.WorkflowID, event.StageID, event.TenantID, event.TaskID)
}

func (s *CompletionSubscriber) handleChecklistUpdated(msg *nats.Msg) {
	var event ChecklistUpdatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.log.Error().Err(err).Str("subject", msg.Subject).Msg("dropping malformed checklist event")
		return
	}
	if event.TenantID == "" || event.WorkflowID == "" || event.StageID == "" || event.TaskID == "" {
		s.log.Error().
			Str("tenant_id", event.TenantID).
			Str("workflow_id", event.WorkflowID).
			Str("stage_id", event.StageID).
			Str("task_id", event.TaskID).
			Msg("dropping checklist event with missing identifiers")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.trigger.ChecklistItemCompleted(ctx, event.WorkflowID, event.StageID, event.TenantID, event.TaskID) {
		s.log.Debug().
			Str("stage_id", event.StageID).
			Str("task_id", event.TaskID).
			Msg("checklist toggle completed stage")
	}
}

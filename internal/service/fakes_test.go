package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func str(s string) *string { return &s }

// ── directory ────────────────────────────────────────────────────────────────

type fakeDirectory struct {
	clients map[string]*repository.Client
	users   map[string]*repository.User
	tenants map[string]*repository.Tenant
	err     error // returned by every lookup when set
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		clients: map[string]*repository.Client{},
		users:   map[string]*repository.User{},
		tenants: map[string]*repository.Tenant{},
	}
}

func (f *fakeDirectory) GetClient(_ context.Context, clientID, _ string) (*repository.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.clients[clientID]; ok {
		return c, nil
	}
	return nil, errors.NotFound("client", clientID)
}

func (f *fakeDirectory) GetUser(_ context.Context, userID, _ string) (*repository.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, errors.NotFound("user", userID)
}

func (f *fakeDirectory) GetTenant(_ context.Context, tenantID string) (*repository.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	if t, ok := f.tenants[tenantID]; ok {
		return t, nil
	}
	return nil, errors.NotFound("tenant", tenantID)
}

// ── tasks ────────────────────────────────────────────────────────────────────

type fakeTasks struct {
	contexts map[string]*repository.TaskContext
	details  map[string]*repository.TaskDetail
	err      error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		contexts: map[string]*repository.TaskContext{},
		details:  map[string]*repository.TaskDetail{},
	}
}

func (f *fakeTasks) GetContext(_ context.Context, taskID, _ string) (*repository.TaskContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	if tc, ok := f.contexts[taskID]; ok {
		return tc, nil
	}
	return nil, errors.NotFound("task", taskID)
}

func (f *fakeTasks) GetDetail(_ context.Context, taskID, _ string) (*repository.TaskDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	if td, ok := f.details[taskID]; ok {
		return td, nil
	}
	return nil, errors.NotFound("task", taskID)
}

// ── workflows ────────────────────────────────────────────────────────────────

type fakeWorkflows struct {
	workflows map[string]*repository.Workflow
	stages    map[string]*repository.WorkflowStage
	progress  map[string]repository.StageProgress // keyed by taskID
	err       error
}

func newFakeWorkflows() *fakeWorkflows {
	return &fakeWorkflows{
		workflows: map[string]*repository.Workflow{},
		stages:    map[string]*repository.WorkflowStage{},
		progress:  map[string]repository.StageProgress{},
	}
}

func (f *fakeWorkflows) GetWorkflow(_ context.Context, id string) (*repository.Workflow, error) {
	if f.err != nil {
		return nil, f.err
	}
	if wf, ok := f.workflows[id]; ok {
		return wf, nil
	}
	return nil, errors.NotFound("workflow", id)
}

func (f *fakeWorkflows) GetStage(_ context.Context, id string) (*repository.WorkflowStage, error) {
	if f.err != nil {
		return nil, f.err
	}
	if st, ok := f.stages[id]; ok {
		return st, nil
	}
	return nil, errors.NotFound("workflow_stage", id)
}

func (f *fakeWorkflows) GetStageProgress(_ context.Context, taskID, _ string) (repository.StageProgress, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.progress[taskID], nil
}

// ── rules / templates ────────────────────────────────────────────────────────

type fakeRules struct {
	matching []*repository.EmailRule
	err      error
}

func (f *fakeRules) FindMatching(_ context.Context, _, _ string, _ *string) ([]*repository.EmailRule, error) {
	return f.matching, f.err
}

type fakeTemplates struct {
	templates map[string]*repository.EmailTemplate
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{templates: map[string]*repository.EmailTemplate{}}
}

func (f *fakeTemplates) GetByID(_ context.Context, id, _ string) (*repository.EmailTemplate, error) {
	if tmpl, ok := f.templates[id]; ok {
		return tmpl, nil
	}
	return nil, errors.NotFound("email_template", id)
}

// ── queue ────────────────────────────────────────────────────────────────────

type fakeQueue struct {
	enqueued       []*repository.QueuedEmail
	enqueueErr     error
	enqueueErrOnce bool
	due            []*repository.QueuedEmail
	dueErr         error
	sent           []string
	failed         map[string]string
	rescheduled    map[string]time.Time
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		failed:      map[string]string{},
		rescheduled: map[string]time.Time{},
	}
}

func (f *fakeQueue) Enqueue(_ context.Context, email *repository.QueuedEmail) error {
	if f.enqueueErr != nil {
		err := f.enqueueErr
		if f.enqueueErrOnce {
			f.enqueueErr = nil
		}
		return err
	}
	email.ID = fmt.Sprintf("email-%d", len(f.enqueued)+1)
	email.CreatedAt = time.Now()
	email.UpdatedAt = email.CreatedAt
	f.enqueued = append(f.enqueued, email)
	return nil
}

func (f *fakeQueue) DuePending(_ context.Context, limit int) ([]*repository.QueuedEmail, error) {
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeQueue) MarkSent(_ context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeQueue) Reschedule(_ context.Context, id string, nextAttemptAt time.Time, lastError string) error {
	f.rescheduled[id] = nextAttemptAt
	return nil
}

func (f *fakeQueue) MarkFailed(_ context.Context, id string, lastError string) error {
	f.failed[id] = lastError
	return nil
}

// ── events ───────────────────────────────────────────────────────────────────

type fakeEvents struct {
	queued      []string
	failed      []string
	dispatched  []string
	dispatchErr map[string]error // per email ID
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{dispatchErr: map[string]error{}}
}

func (f *fakeEvents) EmailQueued(_ context.Context, email *repository.QueuedEmail) {
	f.queued = append(f.queued, email.ID)
}

func (f *fakeEvents) EmailFailed(_ context.Context, email *repository.QueuedEmail, _ string) {
	f.failed = append(f.failed, email.ID)
}

func (f *fakeEvents) DispatchEmail(_ context.Context, email *repository.QueuedEmail) error {
	if err, ok := f.dispatchErr[email.ID]; ok {
		return err
	}
	f.dispatched = append(f.dispatched, email.ID)
	return nil
}

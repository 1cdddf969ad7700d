package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/repository"
)

func fullGathererFixture() (*fakeTasks, *fakeWorkflows, *fakeDirectory) {
	due := time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC)

	tasks := newFakeTasks()
	tasks.details["task-1"] = &repository.TaskDetail{
		Title:        "VAT Return Q3",
		DueDate:      &due,
		ClientID:     str("client-1"),
		AssignedToID: str("user-1"),
	}

	workflows := newFakeWorkflows()
	workflows.workflows["wf-1"] = &repository.Workflow{ID: "wf-1", TenantID: tenantID, Name: "Quarterly VAT"}
	workflows.stages["stage-1"] = &repository.WorkflowStage{ID: "stage-1", WorkflowID: "wf-1", Name: "Review"}

	dir := newFakeDirectory()
	dir.clients["client-1"] = &repository.Client{ID: "client-1", Name: "ABC Manufacturing"}
	dir.users["user-1"] = &repository.User{ID: "user-1", FirstName: "Sarah", LastName: "Johnson"}
	dir.tenants[tenantID] = &repository.Tenant{ID: tenantID, Name: "Demo Accounting"}

	return tasks, workflows, dir
}

func TestGatherAllVariables(t *testing.T) {
	tasks, workflows, dir := fullGathererFixture()
	g := NewVariableGatherer(tasks, workflows, dir, testLogger())

	vars := g.Gather(context.Background(), "task-1", "wf-1", str("stage-1"), tenantID)

	want := map[string]string{
		"client_name":   "ABC Manufacturing",
		"task_name":     "VAT Return Q3",
		"due_date":      "31 Dec 2025",
		"staff_name":    "Sarah Johnson",
		"company_name":  "Demo Accounting",
		"workflow_name": "Quarterly VAT",
		"stage_name":    "Review",
	}
	require.Len(t, vars, len(want))
	for name, value := range want {
		require.NotNil(t, vars[name], "variable %s", name)
		assert.Equal(t, value, *vars[name], "variable %s", name)
	}
}

func TestGatherWorkflowLevelEventSkipsStage(t *testing.T) {
	tasks, workflows, dir := fullGathererFixture()
	g := NewVariableGatherer(tasks, workflows, dir, testLogger())

	vars := g.Gather(context.Background(), "task-1", "wf-1", nil, tenantID)

	require.Contains(t, vars, "stage_name")
	assert.Nil(t, vars["stage_name"])
}

func TestGatherOptionalLinksAbsent(t *testing.T) {
	tasks, workflows, dir := fullGathererFixture()
	tasks.details["task-1"] = &repository.TaskDetail{Title: "Unlinked task"} // no due date, client or assignee
	g := NewVariableGatherer(tasks, workflows, dir, testLogger())

	vars := g.Gather(context.Background(), "task-1", "wf-1", str("stage-1"), tenantID)

	assert.Nil(t, vars["client_name"])
	assert.Nil(t, vars["staff_name"])
	assert.Nil(t, vars["due_date"])
	require.NotNil(t, vars["task_name"])
	assert.Equal(t, "Unlinked task", *vars["task_name"])
}

func TestGatherMissingRecordsAreNilNotFatal(t *testing.T) {
	tasks, workflows, dir := fullGathererFixture()
	delete(dir.clients, "client-1")
	delete(workflows.workflows, "wf-1")
	g := NewVariableGatherer(tasks, workflows, dir, testLogger())

	vars := g.Gather(context.Background(), "task-1", "wf-1", str("stage-1"), tenantID)

	assert.Nil(t, vars["client_name"])
	assert.Nil(t, vars["workflow_name"])
	require.NotNil(t, vars["company_name"])
}

func TestGatherUnexpectedFailureReturnsEmptySet(t *testing.T) {
	tasks, workflows, dir := fullGathererFixture()
	dir.err = errors.New(errors.ErrCodeInternal, "connection refused")
	g := NewVariableGatherer(tasks, workflows, dir, testLogger())

	vars := g.Gather(context.Background(), "task-1", "wf-1", str("stage-1"), tenantID)

	assert.Empty(t, vars)
}

func TestSupportedVariablesCatalogue(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"client_name", "task_name", "due_date", "staff_name",
		"company_name", "workflow_name", "stage_name",
	}, SupportedVariables())
}

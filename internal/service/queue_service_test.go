package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/template"
)

func dueEmail(id string, attempts int) *repository.QueuedEmail {
	return &repository.QueuedEmail{
		ID:             id,
		TenantID:       tenantID,
		RecipientEmail: "x@y.com",
		Subject:        "s",
		BodyHTML:       "b",
		Status:         repository.QueueStatusPending,
		SendAt:         time.Now().UTC().Add(-time.Minute),
		Attempts:       attempts,
		MaxAttempts:    repository.DefaultMaxAttempts,
	}
}

func TestQueueWriterEnqueue(t *testing.T) {
	queue := newFakeQueue()
	events := newFakeEvents()
	w := NewQueueWriter(queue, events, testLogger())

	rule := customRule("rule-1", "x@y.com", 4)
	vars := template.Variables{"client_name": str("ABC Manufacturing")}

	before := time.Now().UTC()
	email, err := w.Enqueue(context.Background(), rule, &Recipient{Email: "x@y.com"}, RenderedEmail{
		Subject:  "subject",
		BodyHTML: "<p>body</p>",
	}, vars)
	after := time.Now().UTC()

	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, tenantID, email.TenantID)
	assert.Equal(t, "tmpl-1", email.EmailTemplateID)
	require.NotNil(t, email.RuleID)
	assert.Equal(t, "rule-1", *email.RuleID)
	assert.Equal(t, repository.QueueStatusPending, email.Status)
	assert.Equal(t, 0, email.Attempts)
	assert.Equal(t, repository.DefaultMaxAttempts, email.MaxAttempts)
	require.Contains(t, email.Variables, "client_name")
	assert.Equal(t, "ABC Manufacturing", *email.Variables["client_name"])
	assert.WithinDuration(t, before.Add(4*time.Hour), email.SendAt, after.Sub(before)+time.Second)

	// The queued event carries the stored ID.
	require.Len(t, events.queued, 1)
	assert.Equal(t, email.ID, events.queued[0])
}

func TestQueueWriterEnqueueWithoutPublisher(t *testing.T) {
	queue := newFakeQueue()
	w := NewQueueWriter(queue, nil, testLogger())

	_, err := w.Enqueue(context.Background(), customRule("rule-1", "x@y.com", 0),
		&Recipient{Email: "x@y.com"}, RenderedEmail{Subject: "s", BodyHTML: "b"}, nil)

	require.NoError(t, err)
	assert.Len(t, queue.enqueued, 1)
}

func TestQueueWriterEnqueuePropagatesStoreError(t *testing.T) {
	queue := newFakeQueue()
	queue.enqueueErr = errors.New(errors.ErrCodeInternal, "insert failed")
	events := newFakeEvents()
	w := NewQueueWriter(queue, events, testLogger())

	_, err := w.Enqueue(context.Background(), customRule("rule-1", "x@y.com", 0),
		&Recipient{Email: "x@y.com"}, RenderedEmail{Subject: "s", BodyHTML: "b"}, nil)

	require.Error(t, err)
	assert.Empty(t, events.queued)
}

func TestRetryDelayLadder(t *testing.T) {
	assert.Equal(t, 5*time.Minute, retryDelay(0))
	assert.Equal(t, 15*time.Minute, retryDelay(1))
	assert.Equal(t, 45*time.Minute, retryDelay(2))
}

func TestProcessDueDispatchesAndMarksSent(t *testing.T) {
	queue := newFakeQueue()
	queue.due = []*repository.QueuedEmail{dueEmail("email-1", 0), dueEmail("email-2", 0)}
	events := newFakeEvents()
	d := NewDispatcher(queue, events, 10, time.Minute, testLogger())

	n, err := d.ProcessDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"email-1", "email-2"}, events.dispatched)
	assert.Equal(t, []string{"email-1", "email-2"}, queue.sent)
	assert.Empty(t, queue.rescheduled)
	assert.Empty(t, queue.failed)
}

func TestProcessDueReschedulesWithBackoff(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     time.Duration
	}{
		{"first failure", 0, 5 * time.Minute},
		{"second failure", 1, 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := newFakeQueue()
			queue.due = []*repository.QueuedEmail{dueEmail("email-1", tt.attempts)}
			events := newFakeEvents()
			events.dispatchErr["email-1"] = errors.New(errors.ErrCodeUnavailable, "broker down")
			d := NewDispatcher(queue, events, 10, time.Minute, testLogger())

			before := time.Now().UTC()
			n, err := d.ProcessDue(context.Background())
			after := time.Now().UTC()

			require.NoError(t, err)
			assert.Equal(t, 0, n)
			assert.Empty(t, queue.sent)
			assert.Empty(t, queue.failed)
			next, ok := queue.rescheduled["email-1"]
			require.True(t, ok)
			assert.WithinDuration(t, before.Add(tt.want), next, after.Sub(before)+time.Second)
		})
	}
}

func TestProcessDueFailsPermanentlyWhenBudgetExhausted(t *testing.T) {
	queue := newFakeQueue()
	queue.due = []*repository.QueuedEmail{dueEmail("email-1", repository.DefaultMaxAttempts-1)}
	events := newFakeEvents()
	events.dispatchErr["email-1"] = errors.New(errors.ErrCodeUnavailable, "broker down")
	d := NewDispatcher(queue, events, 10, time.Minute, testLogger())

	n, err := d.ProcessDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, queue.rescheduled)
	assert.Contains(t, queue.failed["email-1"], "broker down")
	assert.Equal(t, []string{"email-1"}, events.failed)
}

func TestProcessDueFailureDoesNotBlockBatch(t *testing.T) {
	queue := newFakeQueue()
	queue.due = []*repository.QueuedEmail{
		dueEmail("email-1", 0),
		dueEmail("email-2", 0),
		dueEmail("email-3", 0),
	}
	events := newFakeEvents()
	events.dispatchErr["email-2"] = errors.New(errors.ErrCodeUnavailable, "broker down")
	d := NewDispatcher(queue, events, 10, time.Minute, testLogger())

	n, err := d.ProcessDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"email-1", "email-3"}, queue.sent)
	assert.Contains(t, queue.rescheduled, "email-2")
}

func TestProcessDueRespectsBatchSize(t *testing.T) {
	queue := newFakeQueue()
	queue.due = []*repository.QueuedEmail{
		dueEmail("email-1", 0),
		dueEmail("email-2", 0),
		dueEmail("email-3", 0),
	}
	d := NewDispatcher(queue, newFakeEvents(), 2, time.Minute, testLogger())

	n, err := d.ProcessDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestProcessDuePropagatesQueryError(t *testing.T) {
	queue := newFakeQueue()
	queue.dueErr = errors.New(errors.ErrCodeInternal, "query failed")
	d := NewDispatcher(queue, newFakeEvents(), 10, time.Minute, testLogger())

	n, err := d.ProcessDue(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, n)
}

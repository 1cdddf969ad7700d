package service

import (
	"context"
	"time"

	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
	"github.com/practicehub/be-workflow-emails/internal/template"
)

// QueueStore persists and transitions queued emails.
type QueueStore interface {
	Enqueue(ctx context.Context, email *repository.QueuedEmail) error
	DuePending(ctx context.Context, limit int) ([]*repository.QueuedEmail, error)
	MarkSent(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
}

// EmailEventPublisher emits queue lifecycle events. EmailQueued and
// EmailFailed are best-effort; DispatchEmail hands a due message to the
// delivery channel and its error drives the retry ladder.
type EmailEventPublisher interface {
	EmailQueued(ctx context.Context, email *repository.QueuedEmail)
	EmailFailed(ctx context.Context, email *repository.QueuedEmail, reason string)
	DispatchEmail(ctx context.Context, email *repository.QueuedEmail) error
}

// RenderedEmail carries the substituted subject and bodies for one rule.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText *string
}

// QueueWriter schedules rendered emails for asynchronous delivery. Writing
// the queue row is the only side effect the trigger path performs; actual
// transport belongs to the delivery worker.
type QueueWriter struct {
	queue  QueueStore
	events EmailEventPublisher // may be nil
	log    *logger.Logger
}

// NewQueueWriter creates a new QueueWriter.
func NewQueueWriter(queue QueueStore, events EmailEventPublisher, log *logger.Logger) *QueueWriter {
	return &QueueWriter{queue: queue, events: events, log: log}
}

// Enqueue inserts one pending email scheduled at now + the rule's send delay.
func (w *QueueWriter) Enqueue(
	ctx context.Context,
	rule *repository.EmailRule,
	recipient *Recipient,
	rendered RenderedEmail,
	vars template.Variables,
) (*repository.QueuedEmail, error) {
	sendAt := time.Now().UTC().Add(time.Duration(rule.SendDelayHours) * time.Hour)

	email := &repository.QueuedEmail{
		TenantID:        rule.TenantID,
		EmailTemplateID: rule.EmailTemplateID,
		RuleID:          &rule.ID,
		RecipientEmail:  recipient.Email,
		RecipientName:   recipient.Name,
		Subject:         rendered.Subject,
		BodyHTML:        rendered.BodyHTML,
		BodyText:        rendered.BodyText,
		Variables:       vars,
		Status:          repository.QueueStatusPending,
		SendAt:          sendAt,
		Attempts:        0,
		MaxAttempts:     repository.DefaultMaxAttempts,
	}

	if err := w.queue.Enqueue(ctx, email); err != nil {
		return nil, err
	}

	if w.events != nil {
		w.events.EmailQueued(ctx, email)
	}

	w.log.Info().
		Str("email_id", email.ID).
		Str("rule_id", rule.ID).
		Str("recipient", recipient.Email).
		Time("send_at", sendAt).
		Msg("email queued")

	return email, nil
}

// dispatchBaseDelay anchors the retry ladder: 5m, 15m, 45m.
const dispatchBaseDelay = 5 * time.Minute

// retryDelay returns the exponential backoff for a given attempt (0-indexed).
func retryDelay(attempt int) time.Duration {
	delay := dispatchBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 3
	}
	return delay
}

// Dispatcher is the background worker that hands due pending emails to the
// delivery channel in batches.
type Dispatcher struct {
	queue     QueueStore
	events    EmailEventPublisher
	batchSize int
	interval  time.Duration
	log       *logger.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(queue QueueStore, events EmailEventPublisher, batchSize int, interval time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		events:    events,
		batchSize: batchSize,
		interval:  interval,
		log:       log,
	}
}

// Run processes batches on a fixed interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info().
		Dur("interval", d.interval).
		Int("batch_size", d.batchSize).
		Msg("email dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("email dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.ProcessDue(ctx); err != nil {
				d.log.Error().Err(err).Msg("dispatch pass failed")
			}
		}
	}
}

// ProcessDue claims one batch of due emails and dispatches each. A dispatch
// failure consumes an attempt: the email is rescheduled with backoff while
// budget remains and terminally failed otherwise. One bad email never stops
// the rest of the batch. Returns the number of emails handed off.
func (d *Dispatcher) ProcessDue(ctx context.Context) (int, error) {
	due, err := d.queue.DuePending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, email := range due {
		if err := d.events.DispatchEmail(ctx, email); err != nil {
			d.handleDispatchFailure(ctx, email, err)
			continue
		}
		if err := d.queue.MarkSent(ctx, email.ID); err != nil {
			d.log.Error().Err(err).Str("email_id", email.ID).Msg("failed to mark email sent")
			continue
		}
		dispatched++
	}

	if len(due) > 0 {
		d.log.Info().
			Int("due", len(due)).
			Int("dispatched", dispatched).
			Msg("dispatch pass complete")
	}
	return dispatched, nil
}

func (d *Dispatcher) handleDispatchFailure(ctx context.Context, email *repository.QueuedEmail, dispatchErr error) {
	attempts := email.Attempts + 1
	if attempts >= email.MaxAttempts {
		if err := d.queue.MarkFailed(ctx, email.ID, dispatchErr.Error()); err != nil {
			d.log.Error().Err(err).Str("email_id", email.ID).Msg("failed to mark email failed")
			return
		}
		d.events.EmailFailed(ctx, email, dispatchErr.Error())
		d.log.Warn().Err(dispatchErr).
			Str("email_id", email.ID).
			Int("attempts", attempts).
			Msg("email failed permanently")
		return
	}

	next := time.Now().UTC().Add(retryDelay(email.Attempts))
	if err := d.queue.Reschedule(ctx, email.ID, next, dispatchErr.Error()); err != nil {
		d.log.Error().Err(err).Str("email_id", email.ID).Msg("failed to reschedule email")
		return
	}
	d.log.Warn().Err(dispatchErr).
		Str("email_id", email.ID).
		Time("next_attempt", next).
		Msg("email dispatch failed; rescheduled")
}

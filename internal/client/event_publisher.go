package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/practicehub/be-workflow-emails/internal/repository"
)

// EmailEventPublisher publishes email queue lifecycle events to NATS.
//
// Subject convention: emails.<event_type>
// Event types: queued, dispatch, failed
//
// Lifecycle announcements (queued, failed) are best-effort: errors are logged
// and never propagated, so event-bus trouble cannot interrupt the trigger
// path. Dispatch is the hand-off to the platform mailer and returns its
// error so the dispatcher can drive the retry ladder.
type EmailEventPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// EmailEvent is the JSON schema published to NATS.
type EmailEvent struct {
	EventID        string             `json:"event_id"`
	EventType      string             `json:"event_type"`
	TenantID       string             `json:"tenant_id"`
	EmailID        string             `json:"email_id"`
	TemplateID     string             `json:"template_id"`
	RuleID         *string            `json:"rule_id,omitempty"`
	RecipientEmail string             `json:"recipient_email"`
	RecipientName  *string            `json:"recipient_name,omitempty"`
	Subject        string             `json:"subject"`
	BodyHTML       string             `json:"body_html,omitempty"`
	BodyText       *string            `json:"body_text,omitempty"`
	Variables      map[string]*string `json:"variables,omitempty"`
	LastError      *string            `json:"last_error,omitempty"`
	SendAt         time.Time          `json:"send_at"`
	Attempts       int                `json:"attempts"`
	EmittedAt      time.Time          `json:"emitted_at"`
}

// NewEmailEventPublisher creates a publisher backed by the given NATS connection.
func NewEmailEventPublisher(nc *nats.Conn, log zerolog.Logger) *EmailEventPublisher {
	return &EmailEventPublisher{nc: nc, log: log}
}

// EmailQueued announces that an email was scheduled. Non-fatal.
func (p *EmailEventPublisher) EmailQueued(ctx context.Context, email *repository.QueuedEmail) {
	if p.nc == nil {
		return
	}
	if err := p.publish("emails.queued", p.event("queued", email, false)); err != nil {
		p.log.Warn().Err(err).
			Str("email_id", email.ID).
			Msg("events: failed to publish queued event (non-fatal)")
	}
}

// EmailFailed announces that an email exhausted its retry budget. Non-fatal.
func (p *EmailEventPublisher) EmailFailed(ctx context.Context, email *repository.QueuedEmail, reason string) {
	if p.nc == nil {
		return
	}
	ev := p.event("failed", email, false)
	ev.LastError = &reason
	if err := p.publish("emails.failed", ev); err != nil {
		p.log.Warn().Err(err).
			Str("email_id", email.ID).
			Msg("events: failed to publish failed event (non-fatal)")
	}
}

// DispatchEmail hands a due email to the platform mailer. The returned error
// drives the dispatcher's retry handling.
func (p *EmailEventPublisher) DispatchEmail(ctx context.Context, email *repository.QueuedEmail) error {
	if p.nc == nil {
		return fmt.Errorf("events: NATS connection not configured")
	}
	if err := p.publish("emails.dispatch", p.event("dispatch", email, true)); err != nil {
		return fmt.Errorf("events: dispatch publish failed: %w", err)
	}
	p.log.Debug().
		Str("email_id", email.ID).
		Str("recipient", email.RecipientEmail).
		Msg("events: email dispatched to mailer")
	return nil
}

func (p *EmailEventPublisher) event(eventType string, email *repository.QueuedEmail, includeBody bool) *EmailEvent {
	ev := &EmailEvent{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		TenantID:       email.TenantID,
		EmailID:        email.ID,
		TemplateID:     email.EmailTemplateID,
		RuleID:         email.RuleID,
		RecipientEmail: email.RecipientEmail,
		RecipientName:  email.RecipientName,
		Subject:        email.Subject,
		SendAt:         email.SendAt,
		Attempts:       email.Attempts,
		EmittedAt:      time.Now().UTC(),
	}
	if includeBody {
		ev.BodyHTML = email.BodyHTML
		ev.BodyText = email.BodyText
		ev.Variables = email.Variables
	}
	return ev
}

func (p *EmailEventPublisher) publish(subject string, event *EmailEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.nc.Publish(subject, data)
}

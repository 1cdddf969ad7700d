package service

import (
	"context"
	"fmt"

	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/repository"
)

// RecipientKind enumerates the strategies for deriving a notification's
// destination address. Resolution is an exhaustive switch so a new kind
// cannot be silently unhandled.
type RecipientKind string

const (
	RecipientClient        RecipientKind = "client"
	RecipientAssignedStaff RecipientKind = "assigned_staff"
	RecipientClientManager RecipientKind = "client_manager"
	RecipientCustomEmail   RecipientKind = "custom_email"
)

// ParseRecipientKind validates a stored recipient_type value.
func ParseRecipientKind(s string) (RecipientKind, bool) {
	switch k := RecipientKind(s); k {
	case RecipientClient, RecipientAssignedStaff, RecipientClientManager, RecipientCustomEmail:
		return k, true
	}
	return "", false
}

// Recipient is a resolved destination. Name is nil for custom addresses.
type Recipient struct {
	Email string
	Name  *string
}

// DirectoryStore resolves client/staff/tenant records.
type DirectoryStore interface {
	GetClient(ctx context.Context, clientID, tenantID string) (*repository.Client, error)
	GetUser(ctx context.Context, userID, tenantID string) (*repository.User, error)
	GetTenant(ctx context.Context, tenantID string) (*repository.Tenant, error)
}

// RecipientResolver resolves an email rule's destination address.
type RecipientResolver struct {
	directory DirectoryStore
	log       *logger.Logger
}

// NewRecipientResolver creates a new RecipientResolver.
func NewRecipientResolver(directory DirectoryStore, log *logger.Logger) *RecipientResolver {
	return &RecipientResolver{directory: directory, log: log}
}

// Resolve returns the recipient for a rule, or nil when no address can be
// derived. Resolution failure is a normal outcome — missing links, absent
// records, empty email fields and lookup errors all degrade to nil; nothing
// escapes to the caller.
func (r *RecipientResolver) Resolve(
	ctx context.Context,
	recipientType string,
	customEmail *string,
	taskCtx *repository.TaskContext,
	tenantID string,
) *Recipient {
	kind, ok := ParseRecipientKind(recipientType)
	if !ok {
		r.log.Warn().Str("recipient_type", recipientType).Msg("unknown recipient type")
		return nil
	}

	switch kind {
	case RecipientClient:
		if taskCtx.ClientID == nil {
			return nil
		}
		client, err := r.directory.GetClient(ctx, *taskCtx.ClientID, tenantID)
		if err != nil {
			r.logLookupFailure(err, "client", *taskCtx.ClientID)
			return nil
		}
		if client.Email == nil || *client.Email == "" {
			return nil
		}
		name := client.Name
		return &Recipient{Email: *client.Email, Name: &name}

	case RecipientAssignedStaff:
		if taskCtx.AssignedToID == nil {
			return nil
		}
		return r.resolveUser(ctx, *taskCtx.AssignedToID, tenantID)

	case RecipientClientManager:
		if taskCtx.ClientID == nil {
			return nil
		}
		client, err := r.directory.GetClient(ctx, *taskCtx.ClientID, tenantID)
		if err != nil {
			r.logLookupFailure(err, "client", *taskCtx.ClientID)
			return nil
		}
		if client.AccountManagerID == nil {
			return nil
		}
		return r.resolveUser(ctx, *client.AccountManagerID, tenantID)

	case RecipientCustomEmail:
		if customEmail == nil || *customEmail == "" {
			return nil
		}
		return &Recipient{Email: *customEmail, Name: nil}
	}

	return nil
}

// resolveUser looks up a staff member and builds a "first last" display name.
func (r *RecipientResolver) resolveUser(ctx context.Context, userID, tenantID string) *Recipient {
	user, err := r.directory.GetUser(ctx, userID, tenantID)
	if err != nil {
		r.logLookupFailure(err, "user", userID)
		return nil
	}
	if user.Email == nil || *user.Email == "" {
		return nil
	}
	name := fmt.Sprintf("%s %s", user.FirstName, user.LastName)
	return &Recipient{Email: *user.Email, Name: &name}
}

func (r *RecipientResolver) logLookupFailure(err error, resource, id string) {
	r.log.Warn().Err(err).
		Str("resource", resource).
		Str("id", id).
		Msg("recipient lookup failed")
}

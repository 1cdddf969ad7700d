package repository

import "time"

// ── Workflow structure ───────────────────────────────────────────────────────

// ChecklistItem is one entry in a stage's checklist definition (jsonb).
type ChecklistItem struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	IsRequired bool   `json:"isRequired,omitempty"`
}

// Workflow is the minimal projection of a workflow definition.
type Workflow struct {
	ID       string
	TenantID string
	Name     string
}

// WorkflowStage is an ordered step of a workflow carrying a checklist.
type WorkflowStage struct {
	ID             string
	WorkflowID     string
	Name           string
	StageOrder     int
	ChecklistItems []ChecklistItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ── Stage progress (read-only to this service) ───────────────────────────────

// ChecklistItemProgress records completion of a single checklist item.
type ChecklistItemProgress struct {
	Completed   bool    `json:"completed"`
	CompletedBy *string `json:"completedBy"`
	CompletedAt *string `json:"completedAt"`
}

// StageProgressEntry holds per-item progress for one stage.
type StageProgressEntry struct {
	ChecklistItems map[string]ChecklistItemProgress `json:"checklistItems"`
}

// StageProgress maps stage ID → progress, as stored on a task's workflow instance.
type StageProgress map[string]StageProgressEntry

// ── Email automation configuration ───────────────────────────────────────────

// EmailRule is a notification rule evaluated when a workflow stage completes.
// A nil StageID means the rule fires on completion of any stage of its workflow.
type EmailRule struct {
	ID                   string
	TenantID             string
	WorkflowID           string
	StageID              *string
	EmailTemplateID      string
	RecipientType        string // client | assigned_staff | client_manager | custom_email
	CustomRecipientEmail *string
	SendDelayHours       int
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EmailTemplate is a reusable subject/body pair with declared variables.
type EmailTemplate struct {
	ID                 string
	TenantID           string
	Name               string
	TemplateType       string
	Subject            string
	BodyHTML           string
	BodyText           *string
	SupportedVariables []string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ── Email queue ──────────────────────────────────────────────────────────────

// Queue statuses. Rows are created pending and transitioned by the dispatcher.
const (
	QueueStatusPending = "pending"
	QueueStatusSent    = "sent"
	QueueStatusFailed  = "failed"
)

// DefaultMaxAttempts is the fixed retry budget for a queued email.
const DefaultMaxAttempts = 3

// QueuedEmail is a fully rendered, time-scheduled message awaiting delivery.
type QueuedEmail struct {
	ID              string
	TenantID        string
	EmailTemplateID string
	RuleID          *string // firing rule, kept for traceability
	RecipientEmail  string
	RecipientName   *string
	Subject         string
	BodyHTML        string
	BodyText        *string
	Variables       map[string]*string // snapshot of the gathered variables (jsonb)
	Status          string
	SendAt          time.Time
	Attempts        int
	MaxAttempts     int
	LastError       *string
	SentAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ── Read-only projections of collaborator records ────────────────────────────

// TaskContext is the slice of a task needed for recipient resolution.
type TaskContext struct {
	ClientID     *string
	AssignedToID *string
}

// TaskDetail is the slice of a task needed for variable gathering.
type TaskDetail struct {
	Title        string
	DueDate      *time.Time
	ClientID     *string
	AssignedToID *string
}

// Client is the minimal client projection.
type Client struct {
	ID               string
	Name             string
	Email            *string
	AccountManagerID *string
}

// User is the minimal staff projection.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     *string
}

// Tenant is the minimal tenant projection.
type Tenant struct {
	ID   string
	Name string
}

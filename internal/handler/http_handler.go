package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/practicehub/be-workflow-emails/internal/errors"
	"github.com/practicehub/be-workflow-emails/internal/logger"
	"github.com/practicehub/be-workflow-emails/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	admin   *service.AdminService
	trigger *service.TriggerService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(admin *service.AdminService, trigger *service.TriggerService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		admin:   admin,
		trigger: trigger,
		log:     log,
	}
}

// ── Rules ────────────────────────────────────────────────────────────────────

// CreateRule handles create rule HTTP requests
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := h.admin.CreateRule(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles get rule HTTP requests
func (h *HTTPHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	tenantID := r.URL.Query().Get("tenant_id")
	if id == "" || tenantID == "" {
		http.Error(w, "Rule ID and Tenant ID are required", http.StatusBadRequest)
		return
	}

	rule, err := h.admin.GetRule(r.Context(), id, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rule)
}

// ListRules handles list rules HTTP requests
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "Tenant ID is required", http.StatusBadRequest)
		return
	}

	workflowID := r.URL.Query().Get("workflow_id")
	var workflowIDPtr *string
	if workflowID != "" {
		workflowIDPtr = &workflowID
	}

	rules, err := h.admin.ListRules(r.Context(), tenantID, workflowIDPtr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rules)
}

// UpdateRule handles update rule HTTP requests
func (h *HTTPHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := h.admin.UpdateRule(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles delete rule HTTP requests
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	tenantID := r.URL.Query().Get("tenant_id")
	if id == "" || tenantID == "" {
		http.Error(w, "Rule ID and Tenant ID are required", http.StatusBadRequest)
		return
	}

	if err := h.admin.DeleteRule(r.Context(), id, tenantID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Templates ────────────────────────────────────────────────────────────────

// CreateTemplate handles create template HTTP requests
func (h *HTTPHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.SaveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tmpl, err := h.admin.CreateTemplate(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tmpl)
}

// GetTemplate handles get template HTTP requests
func (h *HTTPHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	tenantID := r.URL.Query().Get("tenant_id")
	if id == "" || tenantID == "" {
		http.Error(w, "Template ID and Tenant ID are required", http.StatusBadRequest)
		return
	}

	tmpl, err := h.admin.GetTemplate(r.Context(), id, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tmpl)
}

// ListTemplates handles list templates HTTP requests
func (h *HTTPHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "Tenant ID is required", http.StatusBadRequest)
		return
	}
	activeOnly := r.URL.Query().Get("active_only") == "true"

	templates, err := h.admin.ListTemplates(r.Context(), tenantID, activeOnly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, templates)
}

// UpdateTemplate handles update template HTTP requests
func (h *HTTPHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.SaveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tmpl, err := h.admin.UpdateTemplate(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tmpl)
}

// DeleteTemplate handles delete template HTTP requests
func (h *HTTPHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	tenantID := r.URL.Query().Get("tenant_id")
	if id == "" || tenantID == "" {
		http.Error(w, "Template ID and Tenant ID are required", http.StatusBadRequest)
		return
	}

	if err := h.admin.DeleteTemplate(r.Context(), id, tenantID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateTemplateRequest is the body of a template validation request.
type ValidateTemplateRequest struct {
	Subject  string  `json:"subject"`
	BodyHTML string  `json:"body_html"`
	BodyText *string `json:"body_text"`
}

// ValidateTemplate checks template content against the supported variables
// without persisting anything.
func (h *HTTPHandler) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req ValidateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result := h.admin.ValidateTemplateContent(req.Subject, req.BodyHTML, req.BodyText)
	h.writeJSON(w, http.StatusOK, result)
}

// ── Queue ────────────────────────────────────────────────────────────────────

// GetQueuedEmail handles get queued email HTTP requests
func (h *HTTPHandler) GetQueuedEmail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	tenantID := r.URL.Query().Get("tenant_id")
	if id == "" || tenantID == "" {
		http.Error(w, "Email ID and Tenant ID are required", http.StatusBadRequest)
		return
	}

	email, err := h.admin.GetQueuedEmail(r.Context(), id, tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, email)
}

// ListQueuedEmails handles queue inspection HTTP requests
func (h *HTTPHandler) ListQueuedEmails(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		http.Error(w, "Tenant ID is required", http.StatusBadRequest)
		return
	}

	status := r.URL.Query().Get("status")
	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	emails, err := h.admin.ListQueuedEmails(r.Context(), tenantID, statusPtr, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, emails)
}

// ── Trigger ──────────────────────────────────────────────────────────────────

// TriggerRequest is the body of a manual trigger request, for callers not yet
// migrated to the stage-completion event.
type TriggerRequest struct {
	TenantID   string  `json:"tenant_id"`
	WorkflowID string  `json:"workflow_id"`
	StageID    *string `json:"stage_id"`
	TaskID     string  `json:"task_id"`
}

// TriggerWorkflowEmails fires the rule evaluation pass for a completion
// event. Always 202 once the request parses: the trigger never fails upward.
func (h *HTTPHandler) TriggerWorkflowEmails(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TenantID == "" || req.WorkflowID == "" || req.TaskID == "" {
		http.Error(w, "Tenant ID, Workflow ID and Task ID are required", http.StatusBadRequest)
		return
	}

	h.trigger.TriggerWorkflowEmails(r.Context(), req.WorkflowID, req.StageID, req.TenantID, req.TaskID)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ChecklistUpdatedRequest is the body of a checklist toggle notification.
type ChecklistUpdatedRequest struct {
	TenantID   string `json:"tenant_id"`
	WorkflowID string `json:"workflow_id"`
	StageID    string `json:"stage_id"`
	TaskID     string `json:"task_id"`
}

// ChecklistUpdated runs the stage completion check for a checklist toggle and
// fires the stage emails when the stage just became complete.
func (h *HTTPHandler) ChecklistUpdated(w http.ResponseWriter, r *http.Request) {
	var req ChecklistUpdatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.TenantID == "" || req.WorkflowID == "" || req.StageID == "" || req.TaskID == "" {
		http.Error(w, "Tenant ID, Workflow ID, Stage ID and Task ID are required", http.StatusBadRequest)
		return
	}

	complete := h.trigger.ChecklistItemCompleted(r.Context(), req.WorkflowID, req.StageID, req.TenantID, req.TaskID)
	h.writeJSON(w, http.StatusOK, map[string]bool{"stage_complete": complete})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.Code(err) {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeConflict:
		status = http.StatusConflict
	case errors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case errors.ErrCodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	h.writeJSON(w, status, map[string]string{
		"code":  string(errors.Code(err)),
		"error": err.Error(),
	})
}

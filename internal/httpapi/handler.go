package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/flow"
	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
	"github.com/shamadu25/rave-queue-sub001/internal/store"
	"github.com/shamadu25/rave-queue-sub001/internal/view"

	"github.com/google/uuid"
)

type Handler struct {
	store    store.EntryStore
	settings func() settings.Settings
}

func NewHandler(entryStore store.EntryStore, settingsFn func() settings.Settings) *Handler {
	if settingsFn == nil {
		settingsFn = func() settings.Settings { return settings.Defaults() }
	}
	return &Handler{store: entryStore, settings: settingsFn}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/entries", h.handleEntries)
	mux.HandleFunc("/api/entries/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/entries/", h.handleEntryActions)
	mux.HandleFunc("/api/departments", h.handleDepartments)
	mux.HandleFunc("/api/flows", h.handleFlows)
	mux.HandleFunc("/api/transfers", h.handleTransfers)
	mux.HandleFunc("/api/display", h.handleDisplay)
	return mux
}

type createEntryRequest struct {
	RequestID          string `json:"request_id"`
	FullName           string `json:"full_name"`
	PhoneNumber        string `json:"phone_number"`
	Department         string `json:"department"`
	IntendedDepartment string `json:"intended_department"`
	Priority           string `json:"priority"`
}

type callNextRequest struct {
	RequestID  string `json:"request_id"`
	Department string `json:"department"`
}

type actionRequest struct {
	RequestID string `json:"request_id"`
}

type transferRequest struct {
	RequestID    string `json:"request_id"`
	ToDepartment string `json:"to_department"`
	Reason       string `json:"reason"`
}

type flowTransferRequest struct {
	RequestID string `json:"request_id"`
	FlowID    string `json:"flow_id"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateEntry(w, r)
	case http.MethodGet:
		h.handleListEntries(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	req.Department = strings.TrimSpace(req.Department)
	req.IntendedDepartment = strings.TrimSpace(req.IntendedDepartment)
	req.Priority = strings.TrimSpace(req.Priority)

	if req.FullName == "" || req.Department == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "full_name and department are required")
		return
	}
	if req.RequestID != "" && !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return
	}
	if req.Priority != "" && req.Priority != models.PriorityNormal && req.Priority != models.PriorityEmergency {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "priority must be normal or emergency")
		return
	}

	entry, err := h.store.CreateEntry(r.Context(), store.CreateEntryInput{
		RequestID:          req.RequestID,
		FullName:           req.FullName,
		PhoneNumber:        req.PhoneNumber,
		Department:         req.Department,
		IntendedDepartment: req.IntendedDepartment,
		Priority:           req.Priority,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	department := strings.TrimSpace(r.URL.Query().Get("department"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	entries, err := h.store.ListEntries(r.Context(), store.ListFilter{
		Department: department,
		Status:     status,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	if profile, ok := profileFromContext(r.Context()); ok {
		entries = view.AccessFilter(entries, profile.Role, profile.Department, h.settings().StaffAccessOwnDepartment)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req callNextRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Department = strings.TrimSpace(req.Department)
	if req.Department == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "department is required")
		return
	}

	entry, err := h.store.CallNext(r.Context(), store.CallNextInput{
		RequestID:  req.RequestID,
		Department: req.Department,
		ActorID:    actorID(r),
		CalledAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNoEntry) {
			writeError(w, req.RequestID, http.StatusConflict, "queue_empty", "no waiting entries")
			return
		}
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleEntryActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[1] != "actions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	entryID := parts[0]
	action := parts[2]
	if !isValidUUID(entryID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "entry id must be a UUID")
		return
	}

	switch action {
	case "call", "serve", "complete", "skip":
		h.handleTransition(w, r, entryID, action)
	case "transfer":
		h.handleTransfer(w, r, entryID)
	case "flow-transfer":
		h.handleFlowTransfer(w, r, entryID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, entryID, action string) {
	var req actionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)

	entry, err := h.store.Transition(r.Context(), store.TransitionInput{
		RequestID:  req.RequestID,
		EntryID:    entryID,
		Action:     action,
		ActorID:    actorID(r),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, entryID string) {
	var req transferRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.ToDepartment = strings.TrimSpace(req.ToDepartment)
	if req.ToDepartment == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "to_department is required")
		return
	}
	if !h.transferAllowed(r) {
		writeError(w, req.RequestID, http.StatusForbidden, "transfer_disabled", "cross-department transfer is disabled")
		return
	}

	entry, err := h.store.Transfer(r.Context(), store.TransferInput{
		RequestID:    req.RequestID,
		EntryID:      entryID,
		ToDepartment: req.ToDepartment,
		ActorID:      actorID(r),
		Reason:       strings.TrimSpace(req.Reason),
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleFlowTransfer(w http.ResponseWriter, r *http.Request, entryID string) {
	var req flowTransferRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.FlowID = strings.TrimSpace(req.FlowID)
	if req.FlowID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "flow_id is required")
		return
	}
	if !isValidUUID(req.FlowID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "flow_id must be a UUID")
		return
	}
	if !h.transferAllowed(r) {
		writeError(w, req.RequestID, http.StatusForbidden, "transfer_disabled", "cross-department transfer is disabled")
		return
	}

	entry, err := h.store.FlowTransfer(r.Context(), store.FlowTransferInput{
		RequestID:  req.RequestID,
		EntryID:    entryID,
		FlowID:     req.FlowID,
		ActorID:    actorID(r),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrFlowComplete) {
			writeJSON(w, http.StatusOK, map[string]string{"result": "flow_complete"})
			return
		}
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Internal departments are staff-only; kiosks get the patient-selectable set.
	includeInternal := false
	if _, ok := profileFromContext(r.Context()); ok {
		includeInternal = true
	}
	departments, err := h.store.ListDepartments(r.Context(), includeInternal)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

func (h *Handler) handleFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	flows, err := h.store.ListServiceFlows(r.Context())
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if department := strings.TrimSpace(r.URL.Query().Get("department")); department != "" {
		flows = flow.OfferedFlows(flows, department)
	}
	writeJSON(w, http.StatusOK, flows)
}

func (h *Handler) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	entryID := strings.TrimSpace(r.URL.Query().Get("entry_id"))
	if entryID != "" && !isValidUUID(entryID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}
	records, err := h.store.ListTransfers(r.Context(), entryID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type displayResponse struct {
	Department       string              `json:"department"`
	CurrentlyServing *models.QueueEntry  `json:"currently_serving,omitempty"`
	NextWaiting      []models.QueueEntry `json:"next_waiting"`
}

func (h *Handler) handleDisplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	department := strings.TrimSpace(r.URL.Query().Get("department"))
	next := 5
	if raw := strings.TrimSpace(r.URL.Query().Get("next")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "next must be a positive integer")
			return
		}
		next = parsed
	}

	entries, err := h.store.ListEntries(r.Context(), store.ListFilter{Department: department})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	resp := displayResponse{
		Department:  department,
		NextWaiting: view.NextWaiting(entries, department, next),
	}
	if current, ok := view.CurrentlyServing(entries, department); ok {
		resp.CurrentlyServing = &current
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) transferAllowed(r *http.Request) bool {
	if h.settings().AllowCrossDeptTransfer {
		return true
	}
	profile, ok := profileFromContext(r.Context())
	return ok && profile.Role == models.RoleAdmin
}

func actorID(r *http.Request) string {
	if profile, ok := profileFromContext(r.Context()); ok {
		return profile.UserID
	}
	return ""
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "queue entry not found"
	case errors.Is(err, store.ErrDepartmentNotFound):
		return http.StatusNotFound, "department_not_found", "department not found"
	case errors.Is(err, store.ErrFlowNotFound):
		return http.StatusNotFound, "flow_not_found", "service flow not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "entry state does not allow this action"
	case errors.Is(err, store.ErrSameDepartment):
		return http.StatusBadRequest, "same_department", "destination equals current department"
	case errors.Is(err, store.ErrInactiveDepartment):
		return http.StatusConflict, "department_inactive", "destination department is inactive"
	case errors.Is(err, store.ErrFlowNotOffered):
		return http.StatusConflict, "flow_not_offered", "flow is not offered for this department"
	case errors.Is(err, store.ErrTransferDisabled):
		return http.StatusForbidden, "transfer_disabled", "cross-department transfer is disabled"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

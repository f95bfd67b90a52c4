// Package server exposes the board over HTTP and websocket.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	stderrors "errors"

	"github.com/ashmit2704/taskboard/internal/activity"
	"github.com/ashmit2704/taskboard/internal/board"
	"github.com/ashmit2704/taskboard/internal/conflict"
	"github.com/ashmit2704/taskboard/internal/errors"
	"github.com/ashmit2704/taskboard/internal/lock"
	"github.com/ashmit2704/taskboard/internal/uuid"
	"github.com/ashmit2704/taskboard/internal/version"
)

// TaskHandler handles task operations.
type TaskHandler struct {
	svc *board.Service
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *board.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// actorFrom reads participant identity off the request. Identity is supplied
// by the caller; there is no authentication layer.
func actorFrom(r *http.Request) board.Actor {
	return board.Actor{
		ID:     r.Header.Get("X-User-ID"),
		Name:   r.Header.Get("X-User-Name"),
		ConnID: r.Header.Get("X-Connection-ID"),
	}
}

// pathID extracts and validates the task id segment. A malformed id cannot
// name a record, so it maps to 404 without touching the store.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !uuid.IsValid(id) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": "Task not found",
			"code":  string(errors.ErrNotFound),
		})
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto HTTP statuses. Conflict and lock errors
// carry their context in the body so the client never needs a second fetch.
func writeError(w http.ResponseWriter, err error) {
	var conflictErr *version.ConflictError
	if stderrors.As(err, &conflictErr) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":          "Version conflict detected",
			"code":           string(errors.ErrVersionConflict),
			"currentVersion": conflictErr.Stored,
			"yourVersion":    conflictErr.Claimed,
			"currentTask":    conflictErr.Current,
		})
		return
	}

	var lockedErr *lock.AlreadyLockedError
	if stderrors.As(err, &lockedErr) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      "Task is currently being edited",
			"code":       string(errors.ErrAlreadyLocked),
			"taskId":     lockedErr.TaskID,
			"holderId":   lockedErr.HolderID,
			"holderName": lockedErr.HolderName,
			"since":      lockedErr.Since.Unix(),
		})
		return
	}

	code := errors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrNotFound:
		status = http.StatusNotFound
	case errors.ErrNotHolder:
		status = http.StatusForbidden
	case errors.ErrDuplicateTitle:
		status = http.StatusUnprocessableEntity
	case errors.ErrInvalid, errors.ErrInvalidStatus, errors.ErrInvalidPriority, errors.ErrInvalidResolution:
		status = http.StatusBadRequest
	}

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, status, map[string]interface{}{
		"error": message,
		"code":  string(code),
	})
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var request board.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.svc.CreateTask(request, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks handles GET /tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := h.svc.Task(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PUT /tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var request struct {
		Title        *string `json:"title"`
		Description  *string `json:"description"`
		AssignedUser *string `json:"assignedUser"`
		Status       *string `json:"status"`
		Priority     *string `json:"priority"`
		Version      *int    `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	changes := conflict.Changes{
		Title:        request.Title,
		Description:  request.Description,
		AssignedUser: request.AssignedUser,
		Status:       request.Status,
		Priority:     request.Priority,
	}
	task, err := h.svc.EditTask(id, changes, request.Version, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTaskStatus handles PATCH /tasks/{id}/status
func (h *TaskHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var request struct {
		Status  string `json:"status"`
		Version *int   `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	task, err := h.svc.ChangeStatus(id, request.Status, request.Version, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.svc.DeleteTask(id, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task deleted successfully",
		"taskId":  deleted,
	})
}

// LockTask handles POST /tasks/{id}/lock
func (h *TaskHandler) LockTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lease, err := h.svc.AcquireLock(id, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"taskId":        lease.TaskID,
		"editorId":      lease.HolderID,
		"editorName":    lease.HolderName,
		"editStartTime": lease.Since.Unix(),
	})
}

// UnlockTask handles DELETE /tasks/{id}/lock
func (h *TaskHandler) UnlockTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ReleaseLock(id, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task unlocked",
	})
}

// CheckConflict handles GET /tasks/{id}/conflict?version=
func (h *TaskHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	claimed, err := strconv.Atoi(r.URL.Query().Get("version"))
	if err != nil {
		http.Error(w, "version query parameter is required", http.StatusBadRequest)
		return
	}

	check, err := h.svc.CheckConflict(id, claimed, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// ResolveConflict handles POST /tasks/{id}/resolve
func (h *TaskHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var request struct {
		Resolution string  `json:"resolution"`
		Version    *int    `json:"version"`
		Changes    struct {
			Title        *string `json:"title"`
			Description  *string `json:"description"`
			AssignedUser *string `json:"assignedUser"`
			Status       *string `json:"status"`
			Priority     *string `json:"priority"`
		} `json:"changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	changes := conflict.Changes{
		Title:        request.Changes.Title,
		Description:  request.Changes.Description,
		AssignedUser: request.Changes.AssignedUser,
		Status:       request.Changes.Status,
		Priority:     request.Changes.Priority,
	}
	task, err := h.svc.ResolveConflict(id, conflict.Kind(request.Resolution),
		changes, request.Version, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Conflict resolved",
		"resolution": request.Resolution,
		"task":       task,
	})
}

// SmartAssign handles GET /smart-assign
func (h *TaskHandler) SmartAssign(w http.ResponseWriter, r *http.Request) {
	suggestion, err := h.svc.SmartAssign()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// ActivityHandler handles activity feed reads.
type ActivityHandler struct {
	recorder *activity.Recorder
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(recorder *activity.Recorder) *ActivityHandler {
	return &ActivityHandler{recorder: recorder}
}

// RecentActivity handles GET /activity
func (h *ActivityHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := activity.DefaultFeedSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	feed, err := h.recorder.Recent(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

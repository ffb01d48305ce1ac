// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/app"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// maxSnapshotBodyBytes limits snapshot import payloads.
const maxSnapshotBodyBytes int64 = 32 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	boards    common.BoardService
	snapshots common.SnapshotService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. A nil snapshot service disables `/snapshot`.
func NewHandler(boards common.BoardService, snapshots common.SnapshotService) *Handler {
	return &Handler{
		boards:    boards,
		snapshots: snapshots,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.boards == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}

	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) == 1 && parts[0] == "boards":
		switch r.Method {
		case http.MethodGet:
			h.handleListBoards(w, r)
		case http.MethodPost:
			h.handleCreateBoard(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 2 && parts[0] == "boards":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		h.handleDeleteBoard(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "boards" && parts[2] == "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r, parts[1])
		case http.MethodPost:
			h.handleCreateTask(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(parts) == 1 && parts[0] == "tasks":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListTasks(w, r, r.URL.Query().Get("board"))
	case len(parts) == 2 && parts[0] == "tasks":
		switch r.Method {
		case http.MethodPatch:
			h.handleEditTask(w, r, parts[1])
		case http.MethodDelete:
			h.handleDeleteTask(w, r, parts[1])
		default:
			writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
		}
	case len(parts) == 3 && parts[0] == "tasks" && parts[2] == "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveTask(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "tasks" && parts[2] == "history":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleTaskHistory(w, r, parts[1])
	case len(parts) == 1 && parts[0] == "counts":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleCounts(w, r)
	case len(parts) == 1 && parts[0] == "snapshot":
		switch r.Method {
		case http.MethodGet:
			h.handleExportSnapshot(w, r)
		case http.MethodPut:
			h.handleImportSnapshot(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut)
		}
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListBoards serves GET `/boards`.
func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boards.ListBoards(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": boards})
}

// handleCreateBoard serves POST `/boards`.
func (h *Handler) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req common.CreateBoardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req, maxRequestBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.boards.CreateBoard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, board)
}

// handleDeleteBoard serves DELETE `/boards/{name}`.
func (h *Handler) handleDeleteBoard(w http.ResponseWriter, r *http.Request, name string) {
	result, err := h.boards.DeleteBoard(r.Context(), name)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListTasks serves GET `/tasks` and GET `/boards/{name}/tasks`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request, board string) {
	tasks, err := h.boards.ListTasks(r.Context(), board)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleCreateTask serves POST `/boards/{name}/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request, board string) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload, maxRequestBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.boards.CreateTask(r.Context(), common.CreateTaskRequest{Board: board, Text: payload.Text})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleEditTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleEditTask(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload, maxRequestBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.boards.EditTask(r.Context(), common.EditTaskRequest{ID: id, Text: payload.Text})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.boards.DeleteTask(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveTask serves POST `/tasks/{id}/move`.
func (h *Handler) handleMoveTask(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Board    string `json:"board"`
		Position *int   `json:"position"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload, maxRequestBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.boards.MoveTask(r.Context(), common.MoveTaskRequest{
		ID:       id,
		Board:    payload.Board,
		Position: payload.Position,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleTaskHistory serves GET `/tasks/{id}/history`.
func (h *Handler) handleTaskHistory(w http.ResponseWriter, r *http.Request, id string) {
	history, err := h.boards.TaskHistory(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "history": history})
}

// handleCounts serves GET `/counts`.
func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.boards.BoardCounts(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// handleExportSnapshot serves GET `/snapshot`.
func (h *Handler) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeSnapshotsUnavailable(w)
		return
	}
	snap, err := h.snapshots.ExportSnapshot(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleImportSnapshot serves PUT `/snapshot`.
func (h *Handler) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		writeSnapshotsUnavailable(w)
		return
	}
	var snap app.Snapshot
	if err := decodeJSONBody(r.Context(), w, r, &snap, maxSnapshotBodyBytes); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.snapshots.ImportSnapshot(r.Context(), snap); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"boards": len(snap.Boards),
		"tasks":  len(snap.Tasks),
	})
}

// writeSnapshotsUnavailable writes the 501 response for disabled snapshot routes.
func writeSnapshotsUnavailable(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotImplemented, APIError{
		Code:    "not_implemented",
		Message: "snapshot APIs are not available",
	})
}

// splitPath canonicalizes one request path into its segments.
func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil
		}
	}
	return parts
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any, limit int64) error {
	reader := http.MaxBytesReader(w, r.Body, limit)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/strainwise/convmem/pkg/api/response"
	"github.com/strainwise/convmem/pkg/memory"
)

// MemoryService is the memory surface the HTTP API needs.
type MemoryService interface {
	memory.Hub
	CurrentSession(userID string) (memory.SessionInfo, bool)
}

// MemoryHandler handles the per-user memory endpoints under
// /api/v1/users/{userID}.
type MemoryHandler struct {
	hub    MemoryService
	logger memoryLogger
}

type memoryLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(hub MemoryService, log memoryLogger) *MemoryHandler {
	return &MemoryHandler{
		hub:    hub,
		logger: log,
	}
}

// --- Request/Response types ---

type recordRequest struct {
	Query    string            `json:"query" validate:"required,max=8000"`
	Response string            `json:"response" validate:"max=32000"`
	Metadata map[string]string `json:"metadata,omitempty" validate:"max=32"`
}

type recordResponse struct {
	Outcome   memory.Outcome   `json:"outcome"`
	EntryID   string           `json:"entry_id,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	QueryType memory.QueryType `json:"query_type,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type feedbackRequest struct {
	Feedback memory.Feedback `json:"feedback" validate:"required,oneof=helpful not_helpful"`
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	FlushError string `json:"flush_error,omitempty"`
}

func (h *MemoryHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(r.Context()))
		return "", false
	}
	return userID, true
}

// RecordConversation handles POST /api/v1/users/{userID}/conversations
// @Summary Record a conversation exchange
// @Description Classify and store one query/response exchange in the user's current session
// @Tags conversations
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param exchange body recordRequest true "Exchange to record"
// @Success 201 {object} recordResponse "Exchange recorded"
// @Success 202 {object} recordResponse "Exchange buffered, durable write pending"
// @Success 200 {object} recordResponse "Memory disabled for the user"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/conversations [post]
func (h *MemoryHandler) RecordConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, ctx, err)
		return
	}

	result := h.hub.RecordConversation(ctx, userID, req.Query, req.Response, req.Metadata)
	resp := recordResponse{Outcome: result.Outcome}
	if result.Entry != nil {
		resp.EntryID = result.Entry.ID
		resp.SessionID = result.Entry.SessionID
		resp.QueryType = result.Entry.QueryType
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}

	switch result.Outcome {
	case memory.OutcomeRecorded:
		response.JSON(w, http.StatusCreated, resp)
	case memory.OutcomeBuffered:
		h.logger.Warn("exchange buffered, durable write pending", "user_id", userID, "error", result.Err)
		response.JSON(w, http.StatusAccepted, resp)
	case memory.OutcomeDisabled:
		response.JSON(w, http.StatusOK, resp)
	default:
		h.writeError(w, ctx, "record conversation", userID, result.Err)
	}
}

// AmendFeedback handles PATCH /api/v1/users/{userID}/conversations/{entryID}/feedback
// @Summary Amend feedback on an entry
// @Tags conversations
// @Accept json
// @Param userID path string true "User ID"
// @Param entryID path string true "Entry ID"
// @Param feedback body feedbackRequest true "Feedback value"
// @Success 204 "Feedback stored"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 404 {object} response.ErrorResponse "Entry not found"
// @Router /api/v1/users/{userID}/conversations/{entryID}/feedback [patch]
func (h *MemoryHandler) AmendFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	entryID := chi.URLParam(r, "entryID")

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadRequest(w, ctx, err)
		return
	}

	if err := h.hub.AmendFeedback(ctx, userID, entryID, req.Feedback); err != nil {
		h.writeError(w, ctx, "amend feedback", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSession handles POST /api/v1/users/{userID}/sessions
// @Summary Start a new session
// @Description Flush the current session buffer and rotate to a new session id
// @Tags sessions
// @Produce json
// @Param userID path string true "User ID"
// @Success 201 {object} sessionResponse "Session started"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Router /api/v1/users/{userID}/sessions [post]
func (h *MemoryHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	id, err := h.hub.StartNewSession(ctx, userID)
	if id == "" {
		h.writeError(w, ctx, "start session", userID, err)
		return
	}
	resp := sessionResponse{SessionID: id}
	if err != nil {
		h.logger.Warn("previous session not fully flushed", "user_id", userID, "error", err)
		resp.FlushError = err.Error()
	}
	response.JSON(w, http.StatusCreated, resp)
}

// CurrentSession handles GET /api/v1/users/{userID}/sessions/current
// @Summary Get the current session
// @Tags sessions
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.SessionInfo "Current session"
// @Failure 404 {object} response.ErrorResponse "No active session"
// @Router /api/v1/users/{userID}/sessions/current [get]
func (h *MemoryHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	info, found := h.hub.CurrentSession(userID)
	if !found {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "No active session", getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, info)
}

// GetContext handles GET /api/v1/users/{userID}/context
// @Summary Reconstruct conversation context
// @Description Summary and suggested prompts built from recent history and the profile
// @Tags memory
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.Context "Reconstructed context"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/context [get]
func (h *MemoryHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	c, err := h.hub.BuildContext(ctx, userID)
	if err != nil {
		h.writeError(w, ctx, "build context", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

// GetProfile handles GET /api/v1/users/{userID}/profile
// @Summary Get the learned profile
// @Tags memory
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.UserMemoryProfile "User profile"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/profile [get]
func (h *MemoryHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	p, err := h.hub.Profile(ctx, userID)
	if err != nil {
		h.writeError(w, ctx, "get profile", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

// GetSettings handles GET /api/v1/users/{userID}/settings
// @Summary Get memory settings
// @Tags settings
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.MemorySettings "Memory settings"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/settings [get]
func (h *MemoryHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	s, err := h.hub.GetSettings(ctx, userID)
	if err != nil {
		h.writeError(w, ctx, "get settings", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}

// UpdateSettings handles PATCH /api/v1/users/{userID}/settings
// @Summary Update memory settings
// @Description Apply a partial settings update. Disabling memory clears the session buffer.
// @Tags settings
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param patch body memory.SettingsPatch true "Settings to change"
// @Success 200 {object} memory.MemorySettings "Updated settings"
// @Failure 400 {object} response.ErrorResponse "Invalid request body or validation error"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/settings [patch]
func (h *MemoryHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var patch memory.SettingsPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeBadRequest(w, ctx, err)
		return
	}
	if patch.Empty() {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "At least one setting is required", getRequestID(ctx))
		return
	}

	s, err := h.hub.UpdateSettings(ctx, userID, patch)
	if err != nil {
		h.writeError(w, ctx, "update settings", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}

// Export handles GET /api/v1/users/{userID}/export
// @Summary Export all memory
// @Tags privacy
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.Export "Full export"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/export [get]
func (h *MemoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	export, err := h.hub.ExportAll(ctx, userID)
	if err != nil {
		h.writeError(w, ctx, "export", userID, err)
		return
	}
	filename := fmt.Sprintf("convmem-export-%s.json", export.ExportedAt.UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	response.JSON(w, http.StatusOK, export)
}

// Erase handles DELETE /api/v1/users/{userID}
// @Summary Erase all memory
// @Description Delete history, profile, settings and session state for the user
// @Tags privacy
// @Param userID path string true "User ID"
// @Success 204 "Memory erased"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Erasure incomplete"
// @Router /api/v1/users/{userID} [delete]
func (h *MemoryHandler) Erase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	err := h.hub.EraseAll(ctx, userID)
	var erasure *memory.ErasureError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &erasure):
		failed := make([]string, 0, len(erasure.Failed))
		for part := range erasure.Failed {
			failed = append(failed, part)
		}
		h.logger.Error("erasure incomplete", "user_id", userID, "error", err)
		response.ErrorWithDetails(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
			"Erasure incomplete; retry the request",
			map[string]interface{}{"failed_parts": failed},
			getRequestID(ctx))
	default:
		h.writeError(w, ctx, "erase", userID, err)
	}
}

// GetAnalytics handles GET /api/v1/users/{userID}/analytics
// @Summary Summarize conversation analytics
// @Tags memory
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} memory.Summary "Analytics summary"
// @Failure 400 {object} response.ErrorResponse "Invalid user ID"
// @Failure 503 {object} response.ErrorResponse "Storage temporarily unavailable"
// @Router /api/v1/users/{userID}/analytics [get]
func (h *MemoryHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	summary, err := h.hub.Summarize(ctx, userID)
	if err != nil {
		h.writeError(w, ctx, "summarize", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}

func (h *MemoryHandler) writeBadRequest(w http.ResponseWriter, ctx context.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(w, http.StatusRequestEntityTooLarge, response.ErrCodePayloadTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), getRequestID(ctx))
		return
	}
	if details := validationDetails(err); details != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Request validation failed", details, getRequestID(ctx))
		return
	}
	response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), getRequestID(ctx))
}

// writeError maps memory errors onto HTTP statuses.
func (h *MemoryHandler) writeError(w http.ResponseWriter, ctx context.Context, op, userID string, err error) {
	requestID := getRequestID(ctx)
	switch {
	case err == nil:
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Operation failed", requestID)
	case errors.Is(err, memory.ErrInvalidUserID),
		errors.Is(err, memory.ErrInvalidEntryID),
		errors.Is(err, memory.ErrInvalidFeedback):
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
	case errors.Is(err, memory.ErrInvalidSettings):
		response.ErrorWithDetails(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Invalid settings", validationDetails(err), requestID)
	case errors.Is(err, memory.ErrNotFound):
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Entry not found", requestID)
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusGatewayTimeout, response.ErrCodeGatewayTimeout, "Request timeout", requestID)
	case errors.Is(err, memory.ErrStorageUnavailable):
		h.logger.Error("memory storage unavailable", "op", op, "user_id", userID, "error", err)
		w.Header().Set("Retry-After", "5")
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Storage temporarily unavailable", requestID)
	default:
		h.logger.Error("memory operation failed", "op", op, "user_id", userID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to "+op, requestID)
	}
}

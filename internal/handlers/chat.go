package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"policy-manual-ai/internal/contextutil"
	"policy-manual-ai/internal/rag"
	"policy-manual-ai/internal/service"
	"policy-manual-ai/internal/session"
)

const questionRequiredMessage = "Question is required"

// ChatHandler handles the conversational ask API.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// AskRequest represents the HTTP request payload for asking a question.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse represents the HTTP response payload for an answered question.
type AskResponse struct {
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	History   []session.Turn `json:"history"`
	Outcome   rag.Outcome    `json:"outcome,omitempty"`
	Citations []rag.Citation `json:"citations,omitempty"`
}

// HistoryResponse represents the conversation history of a session.
type HistoryResponse struct {
	History []session.Turn `json:"history"`
}

// MessageResponse represents a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Ask handles POST /api/chat/ask.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, questionRequiredMessage)
		return
	}

	svcResp, err := h.chatService.Ask(ctx, sess, service.AskRequest{Question: req.Question})
	if err != nil {
		h.handleServiceError(w, ctx, err, "Failed to answer question")
		return
	}

	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Question:  svcResp.Question,
		Answer:    svcResp.Answer,
		History:   svcResp.History,
		Outcome:   svcResp.Outcome,
		Citations: svcResp.Citations,
	})
}

// History handles GET /api/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, HistoryResponse{
		History: h.chatService.History(r.Context(), sess),
	})
}

// Clear handles POST /api/chat/clear/history.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.chatService.Clear(r.Context(), sess)
	writeJSON(r.Context(), w, http.StatusOK, MessageResponse{
		Message: "Chat history cleared successfully",
	})
}

func (h *ChatHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "request has no session")
		writeError(w, http.StatusInternalServerError, "Session unavailable")
		return nil, false
	}
	return sess, true
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func (h *ChatHandler) handleServiceError(w http.ResponseWriter, ctx context.Context, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		logger.WarnContext(ctx, "rejected request", "error", err)
		writeError(w, http.StatusBadRequest, questionRequiredMessage)
		return
	}

	logger.ErrorContext(ctx, "service error", "error", err)

	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if errors.Is(err, service.ErrExternalService) {
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	// Default to internal server error
	writeError(w, http.StatusInternalServerError, defaultMsg)
}

// writeJSON writes v as a JSON response.
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

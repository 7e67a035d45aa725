package handler

import (
	"log/slog"
	"net/http"

	chatSvc "threadline/internal/domain/services/chat"
	"threadline/internal/httputil"
)

// ChatHandler serves the /api/chat routes and the health check.
type ChatHandler struct {
	chatService   chatSvc.ChatService
	healthService chatSvc.HealthService
	logger        *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService chatSvc.ChatService, healthService chatSvc.HealthService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		healthService: healthService,
		logger:        logger,
	}
}

// RegisterRoutes mounts the handler on mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/chat/{userId}", h.History)
	mux.HandleFunc("POST /api/chat", h.Send)
	mux.HandleFunc("DELETE /api/chat/{userId}/{conversationId}", h.DeleteConversation)
}

// Health reports gateway health. A degraded gateway still answers 200 so
// clients can read which probe failed.
// GET /health
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.healthService.Check(r.Context()))
}

// History returns the user's flat exchange log
// GET /api/chat/{userId}
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := PathParam(w, r, "userId", "User ID")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}

	msgs, err := h.chatService.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("history failed", "user_id", userID, "error", err)
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chatSvc.Envelope[chatSvc.HistoryResponse]{
		Data: &chatSvc.HistoryResponse{Messages: &msgs},
	})
}

// Send answers one user message and stores the exchange
// POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req chatSvc.SendRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !authorizeUser(w, r, req.UserID) {
		return
	}

	resp, err := h.chatService.Send(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chatSvc.Envelope[chatSvc.SendResponse]{Data: resp})
}

// DeleteConversation removes every exchange of a conversation
// DELETE /api/chat/{userId}/{conversationId}
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := PathParam(w, r, "userId", "User ID")
	if !ok || !authorizeUser(w, r, userID) {
		return
	}
	conversationID, ok := PathParam(w, r, "conversationId", "Conversation ID")
	if !ok {
		return
	}

	if err := h.chatService.DeleteConversation(r.Context(), userID, conversationID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

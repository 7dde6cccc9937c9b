package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

// ChatService is the engine surface the HTTP layer depends on.
type ChatService interface {
	Chat(ctx context.Context, sessionID, text string) (*Reply, error)
	History(ctx context.Context, sessionID string) ([]ChatMessage, error)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is returned by POST /chat. LeadStatus is omitted when no lead
// flow has started for the session.
type ChatResponse struct {
	SessionID  string  `json:"session_id"`
	Reply      string  `json:"reply"`
	LeadStatus *string `json:"lead_status,omitempty"`
}

type HistoryResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

// Handler wires HTTP requests to the chat engine.
type Handler struct {
	service ChatService
	logger  *logging.Logger
}

// NewHandler creates a chat handler.
func NewHandler(service ChatService, logger *logging.Logger) *Handler {
	if service == nil {
		panic("conversation: chat service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message cannot be empty.", http.StatusBadRequest)
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := h.service.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		if IsClientError(err) {
			http.Error(w, "Message cannot be empty.", http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrSessionBusy) {
			http.Error(w, "A previous message is still being processed.", http.StatusConflict)
			return
		}
		h.logger.Error("failed to process chat message", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	resp := ChatResponse{SessionID: reply.SessionID, Reply: reply.Message}
	if reply.LeadStatus != nil {
		status := string(*reply.LeadStatus)
		resp.LeadStatus = &status
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// History handles GET /chat/history?session=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	messages, err := h.service.History(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load chat history", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []ChatMessage{}
	}
	h.writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, Messages: messages})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

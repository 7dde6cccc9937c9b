package webchat

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/webchat-support-agent/internal/conversation"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
	"golang.org/x/net/websocket"
)

//go:embed widget.js
var defaultWidgetJS []byte

const (
	genericErrorText = "Sorry, something went wrong. Please try again."
	historyLimit     = 50
)

// Handler serves the embeddable widget and its WebSocket transport.
type Handler struct {
	service  conversation.ChatService
	logger   *logging.Logger
	widgetJS []byte
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type       string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text       string           `json:"text,omitempty"`
	Role       string           `json:"role,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	LeadStatus string           `json:"lead_status,omitempty"`
	Timestamp  string           `json:"timestamp,omitempty"`
	Messages   []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a web chat handler. A nil widgetJS serves the bundled widget.
func NewHandler(service conversation.ChatService, widgetJS []byte, logger *logging.Logger) *Handler {
	if service == nil {
		panic("webchat: chat service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if widgetJS == nil {
		widgetJS = defaultWidgetJS
	}
	return &Handler{service: service, logger: logger, widgetJS: widgetJS}
}

// HandleWebSocket upgrades to WebSocket and runs one turn per inbound message.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	h.sendHistory(ctx, conn, sessionID)

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
			_ = websocket.JSON.Send(conn, h.turn(ctx, sessionID, msg.Text))
		}
	}
}

func (h *Handler) sendHistory(ctx context.Context, conn *websocket.Conn, sessionID string) {
	msgs, err := h.service.History(ctx, sessionID)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "session_id", sessionID, "error", err)
		return
	}
	if len(msgs) > historyLimit {
		msgs = msgs[len(msgs)-historyLimit:]
	}
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == conversation.ChatRoleSystem {
			continue
		}
		history = append(history, HistoryMessage{Role: string(m.Role), Text: m.Content})
	}
	if len(history) == 0 {
		return
	}
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
}

func (h *Handler) turn(ctx context.Context, sessionID, text string) OutboundMessage {
	reply, err := h.service.Chat(ctx, sessionID, text)
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		out := OutboundMessage{Type: "error", SessionID: sessionID, Text: genericErrorText}
		if errors.Is(err, conversation.ErrEmptyMessage) {
			out.Text = "Message cannot be empty."
		}
		return out
	}
	out := OutboundMessage{
		Type:      "message",
		Role:      string(conversation.ChatRoleAssistant),
		Text:      reply.Message,
		SessionID: reply.SessionID,
		Timestamp: reply.Timestamp.UTC().Format(time.RFC3339),
	}
	if reply.LeadStatus != nil {
		out.LeadStatus = string(*reply.LeadStatus)
	}
	return out
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

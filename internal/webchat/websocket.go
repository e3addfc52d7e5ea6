package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/facility-lead-chat/internal/conversation"
)

// InboundMessage is what the widget sends over the socket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the server sends over the socket.
type OutboundMessage struct {
	Type         string           `json:"type"` // "session", "history", "typing", "message", "pong", "error"
	Text         string           `json:"text,omitempty"`
	Role         string           `json:"role,omitempty"`
	SessionID    string           `json:"session_id,omitempty"`
	QuickReplies []string         `json:"quick_replies,omitempty"`
	Step         string           `json:"step,omitempty"`
	Complete     bool             `json:"complete,omitempty"`
	BookingURL   string           `json:"booking_url,omitempty"`
	Timestamp    string           `json:"timestamp,omitempty"`
	Messages     []HistoryMessage `json:"messages,omitempty"`
}

// HandleWebSocket upgrades to WebSocket and runs the conversation over it.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(r.Context(), conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	resumed := sessionID != ""
	if !resumed {
		sessionID = uuid.NewString()
	}
	pageURL := r.URL.Query().Get("page_url")

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})

	if resumed {
		if msgs, err := h.engine.History(ctx, sessionID, defaultHistoryLimit); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: toHistory(msgs)})
		}
	}

	greeting, err := h.engine.Reply(ctx, conversation.ChatRequest{SessionID: sessionID, PageURL: pageURL})
	if err != nil {
		h.logger.Error("webchat: greeting failed", "error", err, "session_id", sessionID)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."})
		return
	}
	_ = websocket.JSON.Send(conn, replyFrame(greeting))

	h.logger.Info("webchat: connection opened", "session_id", sessionID, "resumed", resumed)

	var history []conversation.ChatMessage
	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		text := clip(strings.TrimSpace(msg.Text), maxMessageRunes)
		if msg.Type != "message" || text == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		history = append(history, conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: text})
		resp, err := h.engine.Reply(ctx, conversation.ChatRequest{
			SessionID: sessionID,
			Messages:  history,
			PageURL:   pageURL,
		})
		if err != nil {
			history = history[:len(history)-1]
			errText := "Sorry, something went wrong. Please try again."
			if errors.Is(err, conversation.ErrPublishFailed) {
				errText = "We couldn't save your details just now. Please send your phone number again."
			} else {
				h.logger.Error("webchat: reply failed", "error", err, "session_id", sessionID)
			}
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: errText})
			continue
		}
		history = append(history, conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: resp.Reply})
		if len(history) > maxRequestMessages {
			history = history[len(history)-maxRequestMessages:]
		}
		_ = websocket.JSON.Send(conn, replyFrame(resp))
	}
}

func replyFrame(resp conversation.ChatResponse) OutboundMessage {
	return OutboundMessage{
		Type:         "message",
		Role:         conversation.ChatRoleAssistant,
		Text:         resp.Reply,
		SessionID:    resp.SessionID,
		QuickReplies: resp.QuickReplies,
		Step:         resp.Step,
		Complete:     resp.Complete,
		BookingURL:   resp.BookingURL,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

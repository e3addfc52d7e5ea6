package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

const (
	maxBodyBytes        = 64 << 10
	maxRequestMessages  = 100
	maxMessageRunes     = 1000
	defaultHistoryLimit = 100
	maxHistoryLimit     = 250
)

// ChatEngine runs the intake conversation. *conversation.Engine satisfies it.
type ChatEngine interface {
	Reply(ctx context.Context, req conversation.ChatRequest) (conversation.ChatResponse, error)
	History(ctx context.Context, sessionID string, limit int64) ([]conversation.TranscriptMessage, error)
}

// Handler serves the widget endpoints.
type Handler struct {
	engine   ChatEngine
	logger   *logging.Logger
	widgetJS []byte
}

// chatRequest is the widget's POST body.
type chatRequest struct {
	Messages  []conversation.ChatMessage `json:"messages"`
	PageURL   string                     `json:"page_url"`
	SessionID string                     `json:"session_id"`
}

// HistoryMessage is a transcript line as returned to the widget.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Step      string `json:"step,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler serving the given widget script.
func NewHandler(engine ChatEngine, widgetJS []byte, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger, widgetJS: widgetJS}
}

// HandleChat processes one widget round trip: the whole visitor transcript
// is posted and the reply to the newest user message comes back.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) > maxRequestMessages {
		req.Messages = req.Messages[len(req.Messages)-maxRequestMessages:]
	}
	for i := range req.Messages {
		req.Messages[i].Content = clip(req.Messages[i].Content, maxMessageRunes)
	}

	resp, err := h.engine.Reply(r.Context(), conversation.ChatRequest{
		SessionID: req.SessionID,
		Messages:  req.Messages,
		PageURL:   req.PageURL,
	})
	if err != nil {
		if errors.Is(err, conversation.ErrPublishFailed) {
			writeError(w, http.StatusServiceUnavailable, "we couldn't save your details just now, please send your phone number again")
			return
		}
		h.logger.Error("webchat: reply failed", "error", err, "session_id", req.SessionID)
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session parameter required")
		return
	}
	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	msgs, err := h.engine.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   toHistory(msgs),
	})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func toHistory(msgs []conversation.TranscriptMessage) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Body,
			Step:      m.Step,
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return history
}

func clip(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package conversation

import (
	"context"
	"fmt"
	"strings"
)

// Roles a ChatMessage may carry. System lines are folded into the system
// prompt before a request reaches a provider.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one line of the visitor transcript as the widget posts it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is provider neutral. An empty Model uses the client's default;
// a negative Temperature leaves the provider default in place.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is a pass-through to a hosted completion endpoint.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// prompt is a request reduced to what every provider accepts: system text
// plus alternating user/assistant turns with blank lines dropped.
type prompt struct {
	system []string
	turns  []ChatMessage
}

func splitPrompt(req LLMRequest) (prompt, error) {
	var p prompt
	for _, s := range req.System {
		if s = strings.TrimSpace(s); s != "" {
			p.system = append(p.system, s)
		}
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			p.system = append(p.system, content)
		case ChatRoleUser, ChatRoleAssistant:
			p.turns = append(p.turns, ChatMessage{Role: msg.Role, Content: content})
		default:
			return prompt{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}
	return p, nil
}

// endsWithUser reports whether the last turn is the visitor's.
func (p prompt) endsWithUser() bool {
	return len(p.turns) > 0 && p.turns[len(p.turns)-1].Role == ChatRoleUser
}

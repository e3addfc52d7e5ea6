package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// maxHistoryMessages bounds how much transcript is sent with a question.
const maxHistoryMessages = 12

// AnswererConfig tunes LLM calls.
type AnswererConfig struct {
	Model     string
	MaxTokens int32
	Timeout   time.Duration
}

// Answerer replies to off-script visitor questions.
type Answerer struct {
	llm    LLMClient
	cfg    AnswererConfig
	logger *logging.Logger
}

// NewAnswerer returns an answerer. A nil client always uses the templated
// fallback.
func NewAnswerer(llm LLMClient, cfg AnswererConfig, logger *logging.Logger) *Answerer {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	return &Answerer{llm: llm, cfg: cfg, logger: logger}
}

// Enabled reports whether a language model is configured.
func (a *Answerer) Enabled() bool {
	return a != nil && a.llm != nil
}

// Answer returns a short reply to question. It never fails; provider errors
// degrade to the question_fallback template.
func (a *Answerer) Answer(ctx context.Context, profile *brand.Profile, history []ChatMessage, question string) string {
	fallback := profile.RenderOrEmpty(brand.TemplateQuestionFallback, brand.TemplateData{})
	if !a.Enabled() {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	messages := trimHistory(history, maxHistoryMessages)
	if len(messages) == 0 || messages[len(messages)-1].Role != ChatRoleUser || messages[len(messages)-1].Content != question {
		messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: question})
	}

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.cfg.Model,
		System:      []string{SystemPrompt(profile)},
		Messages:    messages,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		a.logger.Warn("llm answer failed, using fallback", "error", err)
		return fallback
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return fallback
	}
	return text
}

// SystemPrompt describes the business to the model.
func SystemPrompt(p *brand.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the website assistant for %s", p.AssistantName, p.Name)
	if p.ServiceArea != "" {
		fmt.Fprintf(&b, ", a commercial cleaning company serving %s", p.ServiceArea)
	}
	b.WriteString(".\n")
	if len(p.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s.\n", strings.Join(p.Services, "; "))
	}
	fmt.Fprintf(&b, "Facilities we clean: %s.\n", strings.Join(p.FacilityTypes, ", "))
	b.WriteString("Answer the visitor's question in one or two short sentences. ")
	b.WriteString("Never quote prices, promise availability, or invent policies; offer a free walkthrough instead. ")
	b.WriteString("Do not ask for contact details; the chat collects them separately.\n")
	fmt.Fprintf(&b, "Walkthrough booking: %s\n", p.BookingURL)
	if p.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", p.Phone)
	}
	if p.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", p.Email)
	}
	return b.String()
}

func trimHistory(history []ChatMessage, limit int) []ChatMessage {
	out := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role != ChatRoleUser && msg.Role != ChatRoleAssistant {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	// Providers expect the conversation to open with a user turn.
	for len(out) > 0 && out[0].Role != ChatRoleUser {
		out = out[1:]
	}
	return out
}

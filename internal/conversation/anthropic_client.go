package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicMessager is the subset of the Anthropic SDK the client calls.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicLLMClient calls the Anthropic Messages API.
type AnthropicLLMClient struct {
	messages AnthropicMessager
	modelID  string
}

// NewAnthropicLLMClient builds a client from an API key.
func NewAnthropicLLMClient(apiKey, modelID string) (*AnthropicLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: anthropic api key is required")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicLLMClient(&c.Messages, modelID), nil
}

func newAnthropicLLMClient(messages AnthropicMessager, modelID string) *AnthropicLLMClient {
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultAnthropicModel
	}
	return &AnthropicLLMClient{messages: messages, modelID: modelID}
}

func (c *AnthropicLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.modelID
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 300
	}

	p, err := splitPrompt(req)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(p.turns) == 0 {
		return LLMResponse{}, errors.New("conversation: anthropic requires at least one message")
	}
	system := make([]anthropic.TextBlockParam, 0, len(p.system))
	for _, text := range p.system {
		system = append(system, anthropic.TextBlockParam{Text: text})
	}
	messages := make([]anthropic.MessageParam, 0, len(p.turns))
	for _, turn := range p.turns {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == ChatRoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}
	if req.Temperature >= 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return LLMResponse{}, errors.New("conversation: anthropic returned no text")
	}

	return LLMResponse{
		Text:       text,
		StopReason: string(resp.StopReason),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.InputTokens),
			OutputTokens: int32(resp.Usage.OutputTokens),
			TotalTokens:  int32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

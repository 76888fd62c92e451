package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// short names accepted in LLM.MODEL
var claudeAliases = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Claude calls the Anthropic Messages API. A schema is sent as the
// structured output format.
type Claude struct {
	client anthropic.Client
	model  string
}

func NewClaude(cfg AnthropicConfig) (*Claude, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Claude{client: anthropic.NewClient(opts...), model: alias(cfg.Model, claudeAliases)}, nil
}

func (c *Claude) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(p.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(p.Text))},
	}
	if p.Instruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.Instruction}}
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(p.Temperature)
	}
	if p.Schema != nil {
		params.OutputConfig = anthropic.OutputConfigParam{
			Format: anthropic.JSONOutputFormatParam{Schema: p.Schema.Definition},
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, byStatus(apiErr.StatusCode, err)
		}
		return nil, unreachable(err)
	}

	var body json.RawMessage
	for _, block := range msg.Content {
		if block.Type == "text" {
			body = json.RawMessage(block.Text)
			break
		}
	}
	if body == nil {
		return nil, malformed(nil, fmt.Errorf("no text block among %d content blocks", len(msg.Content)))
	}
	if msg.StopReason == anthropic.StopReasonMaxTokens {
		return nil, truncated(body)
	}
	if err := conform(p.Schema, body); err != nil {
		return nil, err
	}

	return &Completion{
		Body:   body,
		Model:  string(msg.Model),
		Tokens: TokenCount{Prompt: int(msg.Usage.InputTokens), Reply: int(msg.Usage.OutputTokens)},
	}, nil
}

func (c *Claude) Model() string { return c.model }

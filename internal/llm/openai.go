package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	DeepSeekModel   = "deepseek-chat"
)

var chatAliases = map[string]string{
	"deepseek": DeepSeekModel,
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	// JSONObjectMode asks for any JSON object instead of a json_schema
	// format. DeepSeek has no structured outputs.
	JSONObjectMode bool
}

// ChatCompletions calls OpenAI or a compatible chat API such as DeepSeek.
type ChatCompletions struct {
	client     *openai.Client
	model      string
	jsonObject bool
}

func NewChatCompletions(cfg OpenAIConfig) (*ChatCompletions, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return &ChatCompletions{
		client:     openai.NewClientWithConfig(conf),
		model:      alias(cfg.Model, chatAliases),
		jsonObject: cfg.JSONObjectMode,
	}, nil
}

func (c *ChatCompletions) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   p.MaxTokens,
		Temperature: float32(p.Temperature),
	}
	if p.Instruction != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.Instruction})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: p.Text})

	format, err := c.responseFormat(p.Schema)
	if err != nil {
		return nil, err
	}
	req.ResponseFormat = format

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyChatError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed(nil, errors.New("reply has no choices"))
	}

	choice := resp.Choices[0]
	body := json.RawMessage(choice.Message.Content)
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, truncated(body)
	}
	if err := conform(p.Schema, body); err != nil {
		return nil, err
	}

	return &Completion{
		Body:   body,
		Model:  resp.Model,
		Tokens: TokenCount{Prompt: resp.Usage.PromptTokens, Reply: resp.Usage.CompletionTokens},
	}, nil
}

func (c *ChatCompletions) Model() string { return c.model }

// responseFormat is nil without a schema.
func (c *ChatCompletions) responseFormat(s *Schema) (*openai.ChatCompletionResponseFormat, error) {
	switch {
	case s == nil:
		return nil, nil
	case c.jsonObject:
		return &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}, nil
	}
	def, err := json.Marshal(s.Definition)
	if err != nil {
		return nil, fmt.Errorf("encode schema %q: %w", s.Name, err)
	}
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        s.Name,
			Description: s.Description,
			Schema:      json.RawMessage(def),
			Strict:      true,
		},
	}, nil
}

func classifyChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return byStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(reqErr.HTTPStatusCode, err)
	}
	return unreachable(err)
}

// alias maps a short model name to its full id. Anything else is passed
// through as given.
func alias(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adaptive-quiz-backend/utilities"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "mistral"
)

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaProvider calls a local Ollama server's generate endpoint.
type OllamaProvider struct {
	ollamaURL string
	model     string
	client    *http.Client
}

func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	url := strings.TrimRight(cfg.BaseURL, "/")
	if url == "" {
		url = DefaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &OllamaProvider{
		ollamaURL: url + "/api/generate",
		model:     model,
		client:    &http.Client{Timeout: timeout},
	}
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  any            `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// LLMResponseChunk is one line of an Ollama generate response.
type LLMResponseChunk struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (o *OllamaProvider) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	body := ollamaRequest{
		Model:   o.model,
		System:  p.Instruction,
		Prompt:  p.Text,
		Stream:  false,
		Options: map[string]any{"temperature": p.Temperature},
	}
	if p.MaxTokens > 0 {
		body.Options["num_predict"] = p.MaxTokens
	}
	if p.Schema != nil {
		body.Format = p.Schema.Definition
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.ollamaURL, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, unreachable(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unreachable(err)
	}
	if resp.StatusCode >= 300 {
		return nil, byStatus(resp.StatusCode, fmt.Errorf("ollama: %s: %s", resp.Status, strings.TrimSpace(string(bodyBytes))))
	}

	chunk, err := parseOllamaBody(string(bodyBytes))
	if err != nil {
		return nil, malformed(bodyBytes, err)
	}

	content := json.RawMessage(chunk.Response)
	if chunk.DoneReason == "length" {
		return nil, truncated(content)
	}
	if err := conform(p.Schema, content); err != nil {
		return nil, err
	}

	return &Completion{
		Body:   content,
		Model:  o.model,
		Tokens: TokenCount{Prompt: chunk.PromptEvalCount, Reply: chunk.EvalCount},
	}, nil
}

func (o *OllamaProvider) Model() string {
	return o.model
}

// parseOllamaBody accepts either a single JSON object or a newline
// separated stream of chunks.
func parseOllamaBody(body string) (LLMResponseChunk, error) {
	trimmed := strings.TrimSpace(body)
	if strings.Contains(trimmed, "\n") {
		return LLMResponseChunk{Response: AggregateStreamedResponse(trimmed), Done: true}, nil
	}

	var chunk LLMResponseChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		return chunk, err
	}
	if chunk.Response == "" {
		return chunk, errors.New("empty response from ollama")
	}
	return chunk, nil
}

// AggregateStreamedResponse concatenates the "response" fields of a
// newline separated chunk stream.
func AggregateStreamedResponse(body string) string {
	var builder strings.Builder
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		var chunk LLMResponseChunk
		if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
			utilities.Warn("skipping malformed ollama chunk: %v", err)
			continue
		}
		builder.WriteString(chunk.Response)
	}
	return builder.String()
}

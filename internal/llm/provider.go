// Package llm connects the quiz to the language models that write
// questions, and checks what they send back before anything is stored.
package llm

import (
	"context"
	"encoding/json"
)

// Provider is one language model backend.
type Provider interface {
	// Complete sends one prompt. When p.Schema is set the returned Body has
	// already been checked against it.
	Complete(ctx context.Context, p Prompt) (*Completion, error)
	Model() string
}

// Prompt is a single-turn request. Question authoring never needs a
// conversation, so there is one instruction and one user text.
type Prompt struct {
	Instruction string
	Text        string
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Schema is a named JSON Schema a reply has to satisfy.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

type Completion struct {
	Body   json.RawMessage
	Model  string
	Tokens TokenCount
}

type TokenCount struct {
	Prompt int
	Reply  int
}

func (t TokenCount) Total() int {
	return t.Prompt + t.Reply
}

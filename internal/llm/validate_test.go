package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConform(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "conforming",
			content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":1,"explanation":"e","difficulty":2}`,
		},
		{
			name:    "missing field",
			content: `{"question":"q","options":["a","b","c","d"],"explanation":"e","difficulty":2}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			content: `{"question":"q","options":"a,b,c,d","correctAnswerIndex":1,"explanation":"e","difficulty":2}`,
			wantErr: true,
		},
		{
			name:    "extra field",
			content: `{"question":"q","options":["a"],"correctAnswerIndex":1,"explanation":"e","difficulty":2,"hint":"h"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: `Sure! Here is your question`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conform(QuestionSchema, json.RawMessage(tt.content))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, Malformed, FailureOf(err))
		})
	}
}

func TestConform_NilSchema(t *testing.T) {
	assert.NoError(t, conform(nil, json.RawMessage("plain text")))
}

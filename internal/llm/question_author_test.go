package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-quiz-backend/internal/model"
)

const validQuestion = `{"question":"What is 7 x 8?","options":["54","56","58","64"],"correctAnswerIndex":1,"explanation":"7 x 8 = 56","difficulty":1.5}`

func TestQuestionAuthor_Generate(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(validQuestion)})
	author := NewQuestionAuthor(mock, AuthorOptions{})

	q, err := author.Generate(context.Background(), GenerationRequest{
		CategoryName:     "Math",
		SkillName:        "Multiplication",
		TargetDifficulty: 1.2,
	})
	require.NoError(t, err)
	assert.Equal(t, "What is 7 x 8?", q.Question)
	assert.Equal(t, 1, q.CorrectAnswerIndex)
	assert.InDelta(t, 1.5, q.Difficulty, 1e-9)

	require.Equal(t, 1, mock.CallCount())
	sent := mock.Prompt(0)
	assert.Same(t, QuestionSchema, sent.Schema)
	assert.Equal(t, 1000, sent.MaxTokens)
	assert.InDelta(t, 0.7, sent.Temperature, 1e-9)
	assert.Equal(t, questionSystemPrompt, sent.Instruction)
	assert.Contains(t, sent.Text, "- Skill: Multiplication")
	assert.Contains(t, sent.Text, "Difficulty: 1.2/5")
}

func TestQuestionAuthor_Unavailable(t *testing.T) {
	var author *QuestionAuthor
	assert.False(t, author.Available())

	_, err := NewQuestionAuthor(nil, AuthorOptions{}).Generate(context.Background(), GenerationRequest{})
	assert.Equal(t, Unreachable, FailureOf(err))
	assert.ErrorIs(t, err, errNoProvider)
}

func TestQuestionAuthor_ProviderErrorPropagates(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: errors.New("connection reset")})
	_, err := NewQuestionAuthor(mock, AuthorOptions{}).Generate(context.Background(), GenerationRequest{})
	assert.EqualError(t, err, "connection reset")
}

func TestParseGeneratedQuestion(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
		check   func(t *testing.T, q *GeneratedQuestion)
	}{
		{
			name:    "json wrapped in prose",
			content: "Here you go:\n```json\n" + validQuestion + "\n```\nGood luck!",
			check: func(t *testing.T, q *GeneratedQuestion) {
				assert.Equal(t, []string{"54", "56", "58", "64"}, q.Options)
			},
		},
		{
			name:    "difficulty clamped",
			content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":0,"explanation":"e","difficulty":9}`,
			check: func(t *testing.T, q *GeneratedQuestion) {
				assert.InDelta(t, 4.5, q.Difficulty, 1e-9)
			},
		},
		{
			name:    "zero difficulty uses target",
			content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":0,"explanation":"e","difficulty":0}`,
			check: func(t *testing.T, q *GeneratedQuestion) {
				assert.InDelta(t, 2.25, q.Difficulty, 1e-9)
			},
		},
		{name: "no json", content: "I cannot help with that", wantErr: "no JSON object"},
		{name: "three options", content: `{"question":"q","options":["a","b","c"],"correctAnswerIndex":0,"explanation":"e","difficulty":2}`, wantErr: "expected 4 options"},
		{name: "index out of range", content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":4,"explanation":"e","difficulty":2}`, wantErr: "out of range"},
		{name: "empty explanation", content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":0,"explanation":"  ","difficulty":2}`, wantErr: "empty explanation"},
		{name: "blank option", content: `{"question":"q","options":["a"," ","c","d"],"correctAnswerIndex":0,"explanation":"e","difficulty":2}`, wantErr: "option 1 is empty"},
		{name: "schema mismatch", content: `{"question":"q","options":["a","b","c","d"],"correctAnswerIndex":"1","explanation":"e","difficulty":2}`, wantErr: "schema validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseGeneratedQuestion([]byte(tt.content), 2.25)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, Malformed, FailureOf(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, q)
		})
	}
}

func TestQuestionAuthor_Summarize(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`"Multiplication of single digits and carrying"`)},
		MockResponse{Content: json.RawMessage("   ")},
	)
	author := NewQuestionAuthor(mock, AuthorOptions{})

	summary, err := author.Summarize(context.Background(), "What is 7 x 8?", []string{"54", "56"})
	require.NoError(t, err)
	assert.Equal(t, "Multiplication of single di...", summary)
	assert.Equal(t, 100, mock.Prompt(0).MaxTokens)
	assert.InDelta(t, 0.3, mock.Prompt(0).Temperature, 1e-9)
	assert.Nil(t, mock.Prompt(0).Schema)
	assert.Empty(t, mock.Prompt(0).Instruction)

	_, err = author.Summarize(context.Background(), "q", nil)
	assert.Equal(t, Malformed, FailureOf(err))
}

func TestQuestionAuthor_ExtractKeywords(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage("Multiplication, times-tables,\n- Multiplication, products, factors, arithmetic")})
	author := NewQuestionAuthor(mock, AuthorOptions{})

	keywords, err := author.ExtractKeywords(context.Background(), "What is 7 x 8?", nil)
	require.NoError(t, err)
	assert.Equal(t, "multiplication,times tables,products,factors,arithmetic", keywords)
}

func TestRenderAvoidance(t *testing.T) {
	t.Run("empty tiers", func(t *testing.T) {
		out := RenderAvoidance(model.AvoidanceContext{})
		assert.Equal(t, 3, strings.Count(out, "none"))
	})

	t.Run("populated tiers", func(t *testing.T) {
		out := RenderAvoidance(model.AvoidanceContext{
			RecentSummaries: []model.RecentSummary{
				{Text: "Times tables", CategoryName: "Math"},
				{Text: "Past tense", CategoryName: "English"},
			},
			StructuredKeywords: []model.CategoryKeywords{
				{CategoryName: "Math", Keywords: []string{"fractions", "ratios"}},
				{CategoryName: "Science", Keywords: nil},
			},
			OlderKeywords: []string{"photosynthesis", "verbs"},
		})
		assert.Contains(t, out, "1. [Math] Times tables\n2. [English] Past tense\n")
		assert.Contains(t, out, "- Math: fractions, ratios\n")
		assert.NotContains(t, out, "- Science")
		assert.True(t, strings.HasSuffix(out, "photosynthesis, verbs"))
		assert.NotContains(t, out, "none")
	})
}

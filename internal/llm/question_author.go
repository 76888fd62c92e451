package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/textanalysis"
)

const (
	OptionCount = 4

	OperationQuestion = "question"
	OperationSummary  = "summary"
	OperationKeywords = "keywords"
)

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

var errNoProvider = errors.New("no question provider configured")

// QuestionSchema is the JSON shape requested from the provider.
var QuestionSchema = &Schema{
	Name:        "adaptive-question",
	Description: "A multiple-choice quiz question with exactly one correct option.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":           map[string]any{"type": "string"},
			"options":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"correctAnswerIndex": map[string]any{"type": "integer"},
			"explanation":        map[string]any{"type": "string"},
			"difficulty":         map[string]any{"type": "number"},
		},
		"required":             []string{"question", "options", "correctAnswerIndex", "explanation", "difficulty"},
		"additionalProperties": false,
	},
}

type GenerationRequest struct {
	CategoryName     string
	SkillName        string
	TargetDifficulty float64
	Avoidance        model.AvoidanceContext
}

type GeneratedQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Difficulty         float64  `json:"difficulty"`
}

type AuthorOptions struct {
	MaxTokens   int
	Temperature float64
}

// QuestionAuthor turns provider output into validated questions, summaries
// and keyword lists.
type QuestionAuthor struct {
	provider Provider
	opts     AuthorOptions
}

func NewQuestionAuthor(p Provider, opts AuthorOptions) *QuestionAuthor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	return &QuestionAuthor{provider: p, opts: opts}
}

// Available reports whether a provider is configured.
func (a *QuestionAuthor) Available() bool {
	return a != nil && a.provider != nil
}

// Generate asks the provider for a question. Any error means the caller
// should fall back to local generation.
func (a *QuestionAuthor) Generate(ctx context.Context, req GenerationRequest) (*GeneratedQuestion, error) {
	if !a.Available() {
		return nil, unreachable(errNoProvider)
	}

	c, err := a.provider.Complete(WithOperation(ctx, OperationQuestion), Prompt{
		Instruction: questionSystemPrompt,
		Text:        BuildQuestionPrompt(req),
		Schema:      QuestionSchema,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return ParseGeneratedQuestion(c.Body, req.TargetDifficulty)
}

// Summarize asks for a gist of at most textanalysis.MaxSummaryLength runes.
func (a *QuestionAuthor) Summarize(ctx context.Context, text string, options []string) (string, error) {
	out, err := a.subcall(WithOperation(ctx, OperationSummary), fmt.Sprintf(summaryPrompt, textanalysis.MaxSummaryLength, text, strings.Join(options, "\n")))
	if err != nil {
		return "", err
	}
	summary := strings.Trim(strings.TrimSpace(out), `"'`)
	if summary == "" {
		return "", malformed(nil, errors.New("empty summary"))
	}
	return textanalysis.Truncate(summary, textanalysis.MaxSummaryLength), nil
}

// ExtractKeywords asks for 3 to 5 concept keywords, returned comma-joined.
func (a *QuestionAuthor) ExtractKeywords(ctx context.Context, text string, options []string) (string, error) {
	out, err := a.subcall(WithOperation(ctx, OperationKeywords), fmt.Sprintf(keywordsPrompt, text, strings.Join(options, "\n")))
	if err != nil {
		return "", err
	}
	keywords := NormalizeKeywords(out)
	if keywords == "" {
		return "", malformed([]byte(out), errors.New("no keywords"))
	}
	return keywords, nil
}

func (a *QuestionAuthor) subcall(ctx context.Context, prompt string) (string, error) {
	if !a.Available() {
		return "", unreachable(errNoProvider)
	}
	c, err := a.provider.Complete(ctx, Prompt{Text: prompt, MaxTokens: 100, Temperature: 0.3})
	if err != nil {
		return "", err
	}
	return string(c.Body), nil
}

// ParseGeneratedQuestion extracts the first JSON object from content and
// checks it is a usable question. A missing or zero difficulty is replaced
// by target; any difficulty is clamped to the valid range.
func ParseGeneratedQuestion(content []byte, target float64) (*GeneratedQuestion, error) {
	raw := ExtractJSON(content)
	if raw == nil {
		return nil, malformed(content, errors.New("no JSON object found"))
	}
	if err := conform(QuestionSchema, raw); err != nil {
		return nil, err
	}

	var q GeneratedQuestion
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, malformed(raw, err)
	}

	q.Question = strings.TrimSpace(q.Question)
	q.Explanation = strings.TrimSpace(q.Explanation)
	switch {
	case q.Question == "":
		return nil, malformed(raw, errors.New("empty question text"))
	case q.Explanation == "":
		return nil, malformed(raw, errors.New("empty explanation"))
	case len(q.Options) != OptionCount:
		return nil, malformed(raw, fmt.Errorf("expected %d options, got %d", OptionCount, len(q.Options)))
	case q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= OptionCount:
		return nil, malformed(raw, fmt.Errorf("correct answer index %d out of range", q.CorrectAnswerIndex))
	}
	for i, opt := range q.Options {
		q.Options[i] = strings.TrimSpace(opt)
		if q.Options[i] == "" {
			return nil, malformed(raw, fmt.Errorf("option %d is empty", i))
		}
	}

	if q.Difficulty == 0 {
		q.Difficulty = target
	}
	q.Difficulty = irt.ClampDifficulty(q.Difficulty)
	return &q, nil
}

// ExtractJSON returns the span from the first '{' to the last '}', or nil.
func ExtractJSON(content []byte) json.RawMessage {
	match := jsonObjectPattern.Find(content)
	if match == nil {
		return nil
	}
	return json.RawMessage(match)
}

// NormalizeKeywords lowercases, trims and dedups a comma or newline
// separated list, keeping at most textanalysis.MaxKeywords entries.
func NormalizeKeywords(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.ReplaceAll(s, "\n", ",")
	seen := make(map[string]struct{})
	var out []string
	for _, kw := range strings.Split(s, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		kw = strings.TrimLeft(kw, "-*• ")
		// a dash would make the list read as a content hash
		kw = strings.ReplaceAll(kw, "-", " ")
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) == textanalysis.MaxKeywords {
			break
		}
	}
	return strings.Join(out, ",")
}

// BuildQuestionPrompt renders the generation prompt including the
// avoidance sections.
func BuildQuestionPrompt(req GenerationRequest) string {
	var b strings.Builder
	b.WriteString("Create one educational quiz question under the following conditions.\n\n")
	b.WriteString("## Topic\n")
	fmt.Fprintf(&b, "- Category: %s\n", req.CategoryName)
	fmt.Fprintf(&b, "- Skill: %s\n", req.SkillName)
	fmt.Fprintf(&b, "- Difficulty: %.1f/5 (0 is easiest, 5 is hardest)\n\n", req.TargetDifficulty)
	b.WriteString("## Requirements\n")
	b.WriteString("- Exactly 4 answer options, clearly distinct, exactly one correct\n")
	b.WriteString("- A clear question that measures the learner's understanding\n")
	b.WriteString("- A detailed explanation of the correct answer\n")
	b.WriteString("- Keep to the requested difficulty\n\n")
	b.WriteString("## Avoid repeating earlier questions\n")
	b.WriteString(RenderAvoidance(req.Avoidance))
	b.WriteString("\n\n## Output format\n")
	b.WriteString(`Reply with JSON only:
{
  "question": "question text",
  "options": ["option 1", "option 2", "option 3", "option 4"],
  "correctAnswerIndex": 0,
  "explanation": "why the answer is correct",
  "difficulty": 2.5
}`)
	return b.String()
}

// RenderAvoidance formats the three avoidance tiers. Empty tiers read
// "none".
func RenderAvoidance(ctx model.AvoidanceContext) string {
	var b strings.Builder

	b.WriteString("### Recently asked questions (write something different):\n")
	if len(ctx.RecentSummaries) == 0 {
		b.WriteString("none\n")
	}
	for i, s := range ctx.RecentSummaries {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.CategoryName, s.Text)
	}

	b.WriteString("\n### Concepts of recent questions (avoid these combinations):\n")
	written := 0
	for _, ck := range ctx.StructuredKeywords {
		if len(ck.Keywords) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", ck.CategoryName, strings.Join(ck.Keywords, ", "))
		written++
	}
	if written == 0 {
		b.WriteString("none\n")
	}

	b.WriteString("\n### Topics asked in the past (avoid combining them):\n")
	if len(ctx.OlderKeywords) == 0 {
		b.WriteString("none")
	} else {
		b.WriteString(strings.Join(ctx.OlderKeywords, ", "))
	}
	return b.String()
}

const questionSystemPrompt = "You are an educational assistant that writes adaptive quiz questions. Always reply with a single JSON object."

const summaryPrompt = `Summarize the following question and its options in at most %d characters. State the main topic and what is being asked.

## Question
%s

## Options
%s

Reply with the summary only.`

const keywordsPrompt = `Extract 3 to 5 key concepts or keywords from the following question and output them comma-separated. They identify similar questions, so prefer specific terms over general words.

## Question
%s

## Options
%s

## Output format
keyword1,keyword2,keyword3`

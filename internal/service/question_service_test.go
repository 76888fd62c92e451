package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/db/dbtest"
	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/llm"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/internal/textanalysis"
	"adaptive-quiz-backend/utilities"
)

const halfQuestion = `{"question":"Which fraction equals one half?","options":["2/4","1/3","3/4","2/3"],"correctAnswerIndex":0,"explanation":"2/4 simplifies to 1/2.","difficulty":1.5}`

const thirdQuestion = `{"question":"Which fraction equals one third?","options":["2/3","2/6","3/4","1/2"],"correctAnswerIndex":1,"explanation":"2/6 simplifies to 1/3.","difficulty":1.5}`

type quizHarness struct {
	conn      *gorm.DB
	fixture   dbtest.Fixture
	questions repository.QuestionRepository
	abilities repository.AbilityRepository
	service   QuestionService
}

func newQuizHarness(t *testing.T, provider llm.Provider, opts QuestionOptions) *quizHarness {
	t.Helper()

	conn := dbtest.Open(t)
	h := &quizHarness{
		conn:      conn,
		fixture:   dbtest.Seed(t, conn, "Math", "fractions"),
		questions: repository.NewQuestionRepository(conn),
		abilities: repository.NewAbilityRepository(conn),
	}

	rng := NewRand(11)
	h.service = NewQuestionService(
		NewSkillSelector(repository.NewCategoryRepository(conn), repository.NewSkillRepository(conn), h.abilities, rng),
		NewHistoryAggregator(h.questions, HistoryOptions{}),
		llm.NewQuestionAuthor(provider, llm.AuthorOptions{}),
		NewFallbackGenerator(rng),
		h.questions,
		opts,
	)
	return h
}

func (h *quizHarness) generate(t *testing.T, mode model.QuestionMode) *QuestionView {
	t.Helper()
	view, err := h.service.GenerateQuestion(context.Background(), GenerateInput{
		LearnerID: h.fixture.Learner.ID,
		SkillID:   h.fixture.Skills[0].ID,
		Mode:      mode,
	})
	require.NoError(t, err)
	return view
}

func (h *quizHarness) stored(t *testing.T, id uint) *model.QuestionRecord {
	t.Helper()
	record, err := h.questions.FindQuestionRecord(context.Background(), id, h.fixture.Learner.ID)
	require.NoError(t, err)
	return record
}

func TestTargetDifficulty(t *testing.T) {
	assert.InDelta(t, irt.EstimateOptimalDifficulty(0, 0.8, 1), TargetDifficulty(0), 1e-12)
	assert.InDelta(t, 2+math.Log(0.3/0.7), TargetDifficulty(2), 1e-9)
	// negative thetas keep the 0.8 target
	assert.InDelta(t, irt.EstimateOptimalDifficulty(-1, 0.8, 1), TargetDifficulty(-1), 1e-12)
	assert.Less(t, TargetDifficulty(1), TargetDifficulty(2))
}

func TestGenerateQuestion_FallbackWithoutProvider(t *testing.T) {
	h := newQuizHarness(t, nil, QuestionOptions{})

	view := h.generate(t, "")
	assert.Equal(t, model.SourceFallback, view.Source)
	assert.Equal(t, model.ModeMultipleChoice, view.Mode)
	assert.Len(t, view.Options, 4)
	assert.Nil(t, view.CorrectOptionIndex, "answer key is withheld by default")
	assert.Empty(t, view.Explanation)
	assert.Equal(t, "Math", view.Category.Name)
	require.NotNil(t, view.Skill)
	assert.Equal(t, "fractions", view.Skill.Name)
	assert.Nil(t, view.AnsweredAt)

	record := h.stored(t, view.ID)
	assert.False(t, record.IsAnswered())
	require.NotNil(t, record.CorrectOptionIndex)
	assert.GreaterOrEqual(t, *record.CorrectOptionIndex, 0)
	assert.Less(t, *record.CorrectOptionIndex, 4)
	assert.NotEmpty(t, record.Explanation)
	assert.InDelta(t, irt.EstimateOptimalDifficulty(0, 0.8, irt.DefaultDiscrimination), record.Difficulty, 1e-9)
	assert.Equal(t, textanalysis.Fingerprint(record.Text, record.Options), record.Hash)
	assert.NotEmpty(t, record.Summary)
	assert.NotEmpty(t, record.AbstractHash)
	assert.Equal(t, h.fixture.Learner.ID, record.UserID)
}

func TestGenerateQuestion_ExposeAnswerKey(t *testing.T) {
	h := newQuizHarness(t, nil, QuestionOptions{ExposeAnswerKey: true})

	view := h.generate(t, model.ModeMultipleChoice)
	require.NotNil(t, view.CorrectOptionIndex)
	assert.NotEmpty(t, view.Explanation)
}

func TestGenerateQuestion_FreeText(t *testing.T) {
	provider := llm.NewMockProvider()
	h := newQuizHarness(t, provider, QuestionOptions{})

	view := h.generate(t, model.ModeFreeText)
	assert.Equal(t, model.ModeFreeText, view.Mode)
	assert.Equal(t, model.SourceFallback, view.Source)
	assert.Empty(t, view.Options)
	assert.Zero(t, provider.CallCount())

	record := h.stored(t, view.ID)
	assert.Nil(t, record.CorrectOptionIndex)
	assert.NotEmpty(t, record.Explanation)
}

func TestGenerateQuestion_RejectsUnknownMode(t *testing.T) {
	h := newQuizHarness(t, nil, QuestionOptions{})

	_, err := h.service.GenerateQuestion(context.Background(), GenerateInput{LearnerID: h.fixture.Learner.ID, Mode: "essay"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestGenerateQuestion_ProviderSuccess(t *testing.T) {
	provider := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(halfQuestion)},
		llm.MockResponse{Content: json.RawMessage("Fractions equal to one half")},
		llm.MockResponse{Content: json.RawMessage("fractions, equivalence")},
	)
	events := utilities.NewEventBus()
	published := make(chan QuestionGeneratedEvent, 1)
	events.Subscribe(utilities.EventQuestionGenerated, func(data interface{}) {
		published <- data.(QuestionGeneratedEvent)
	})

	h := newQuizHarness(t, provider, QuestionOptions{Events: events})
	view := h.generate(t, "")

	assert.Equal(t, model.SourceProvider, view.Source)
	assert.Equal(t, "Which fraction equals one half?", view.Text)
	assert.Equal(t, []string{"2/4", "1/3", "3/4", "2/3"}, view.Options)
	assert.Equal(t, 1.5, view.Difficulty)
	assert.Equal(t, 3, provider.CallCount())

	record := h.stored(t, view.ID)
	require.NotNil(t, record.CorrectOptionIndex)
	assert.Equal(t, 0, *record.CorrectOptionIndex)
	assert.NotEmpty(t, record.Summary)
	assert.LessOrEqual(t, utf8.RuneCountInString(record.Summary), textanalysis.MaxSummaryLength)
	assert.NotEmpty(t, record.AbstractHash)
	assert.False(t, textanalysis.LooksLikeContentHash(record.AbstractHash))

	events.Wait()
	select {
	case ev := <-published:
		assert.Equal(t, view.ID, ev.QuestionID)
		assert.Equal(t, model.SourceProvider, ev.Source)
		assert.NoError(t, ev.FallbackErr)
	default:
		t.Fatal("no question event published")
	}
}

func TestGenerateQuestion_SubcallFailuresUseHeuristics(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(halfQuestion)})
	h := newQuizHarness(t, provider, QuestionOptions{})

	view := h.generate(t, "")
	require.Equal(t, model.SourceProvider, view.Source)

	record := h.stored(t, view.ID)
	assert.Equal(t, textanalysis.Summarize(record.Text), record.Summary)
	assert.Equal(t, textanalysis.AbstractHash(record.Text), record.AbstractHash)
}

func TestGenerateQuestion_FallsBackOnBadPayload(t *testing.T) {
	cases := map[string]string{
		"three options":   `{"question":"Q?","options":["a","b","c"],"correctAnswerIndex":0,"explanation":"E","difficulty":2}`,
		"index too large": `{"question":"Q?","options":["a","b","c","d"],"correctAnswerIndex":4,"explanation":"E","difficulty":2}`,
		"empty text":      `{"question":" ","options":["a","b","c","d"],"correctAnswerIndex":1,"explanation":"E","difficulty":2}`,
		"not json":        `I cannot help with that.`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			provider := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(content)})
			events := utilities.NewEventBus()
			published := make(chan QuestionGeneratedEvent, 1)
			events.Subscribe(utilities.EventQuestionGenerated, func(data interface{}) {
				published <- data.(QuestionGeneratedEvent)
			})
			h := newQuizHarness(t, provider, QuestionOptions{Events: events})

			view := h.generate(t, "")
			assert.Equal(t, model.SourceFallback, view.Source)
			assert.Len(t, view.Options, 4)

			events.Wait()
			ev := <-published
			require.Error(t, ev.FallbackErr)
			assert.Equal(t, apperror.KindProvider, apperror.KindOf(ev.FallbackErr))
		})
	}
}

func TestGenerateQuestion_ProviderTimeout(t *testing.T) {
	h := newQuizHarness(t, llm.SlowProvider{}, QuestionOptions{ProviderTimeout: 50 * time.Millisecond})

	start := time.Now()
	view := h.generate(t, "")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, model.SourceFallback, view.Source)
}

func TestGenerateQuestion_SurvivesClientCancel(t *testing.T) {
	h := newQuizHarness(t, nil, QuestionOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	view, err := h.service.GenerateQuestion(ctx, GenerateInput{LearnerID: h.fixture.Learner.ID})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
}

func TestGenerateQuestion_RegeneratesRecentDuplicate(t *testing.T) {
	provider := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(halfQuestion)},
		llm.MockResponse{Content: json.RawMessage("summary")},
		llm.MockResponse{Content: json.RawMessage("fractions")},
		llm.MockResponse{Content: json.RawMessage(thirdQuestion)},
		llm.MockResponse{Content: json.RawMessage("summary")},
		llm.MockResponse{Content: json.RawMessage("fractions")},
	)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newQuizHarness(t, provider, QuestionOptions{
		DuplicateRetries: 2,
		Now:              fixedClock(now),
	})

	options := []string{"2/4", "1/3", "3/4", "2/3"}
	correct := 0
	seen := &model.QuestionRecord{
		UserID:             h.fixture.Learner.ID,
		CategoryID:         h.fixture.Category.ID,
		Hash:               textanalysis.Fingerprint("Which fraction equals one half?", options),
		Mode:               model.ModeMultipleChoice,
		Text:               "Which fraction equals one half?",
		Options:            options,
		CorrectOptionIndex: &correct,
		Difficulty:         1.5,
		Source:             model.SourceProvider,
		AskedAt:            now.Add(-72 * time.Hour),
	}
	require.NoError(t, h.questions.SaveQuestionRecord(context.Background(), seen))

	view := h.generate(t, "")
	assert.Equal(t, "Which fraction equals one third?", view.Text)
	assert.Equal(t, 6, provider.CallCount())
}

func TestGenerateQuestion_AcceptsDuplicateAfterRetries(t *testing.T) {
	provider := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(halfQuestion)},
		llm.MockResponse{Content: json.RawMessage("summary")},
		llm.MockResponse{Content: json.RawMessage("fractions")},
		llm.MockResponse{Content: json.RawMessage(halfQuestion)},
		llm.MockResponse{Content: json.RawMessage(halfQuestion)},
	)
	h := newQuizHarness(t, provider, QuestionOptions{DuplicateRetries: 1})

	first := h.generate(t, "")
	require.Equal(t, model.SourceProvider, first.Source)

	// the repeat is regenerated once, then accepted; sub-calls hit the cache
	second := h.generate(t, "")
	assert.Equal(t, first.Text, second.Text)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 5, provider.CallCount())
}

func TestQuestionHistory(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	h := newQuizHarness(t, nil, QuestionOptions{Now: func() time.Time { return clock }})

	var ids []uint
	for i := 0; i < 12; i++ {
		clock = now.Add(time.Duration(i) * time.Minute)
		ids = append(ids, h.generate(t, "").ID)
	}

	views, err := h.service.History(context.Background(), h.fixture.Learner.ID, HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, views, 10)
	assert.Equal(t, ids[11], views[0].ID)
	assert.Equal(t, ids[2], views[9].ID)
	for _, v := range views {
		assert.Nil(t, v.CorrectOptionIndex)
		assert.Equal(t, "Math", v.Category.Name)
	}

	views, err = h.service.History(context.Background(), h.fixture.Learner.ID, HistoryQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, views, 12)

	views, err = h.service.History(context.Background(), h.fixture.Learner.ID, HistoryQuery{Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, ids[1], views[0].ID)

	no := false
	views, err = h.service.History(context.Background(), h.fixture.Learner.ID, HistoryQuery{Answered: &no, SkillID: h.fixture.Skills[0].ID})
	require.NoError(t, err)
	assert.Len(t, views, 10)

	yes := true
	views, err = h.service.History(context.Background(), h.fixture.Learner.ID, HistoryQuery{Answered: &yes})
	require.NoError(t, err)
	assert.Empty(t, views)
}

package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"
	"time"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/cache"
	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/llm"
	"adaptive-quiz-backend/internal/metrics"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/internal/textanalysis"
	"adaptive-quiz-backend/utilities"
)

const (
	// baseTargetProbability is the success chance aimed for at theta 0.
	// Stronger learners get slightly harder questions.
	baseTargetProbability = 0.8
	targetProbabilityStep = 0.05

	defaultHistoryPage = 10
	maxHistoryPage     = 100
)

type QuestionOptions struct {
	ProviderTimeout  time.Duration
	SubcallCacheSize int
	DuplicateWindow  time.Duration
	DuplicateRetries int
	ExposeAnswerKey  bool
	Now              func() time.Time
	Metrics          *metrics.Metrics
	Events           *utilities.EventBus
}

type GenerateInput struct {
	LearnerID  uint               `validate:"required"`
	CategoryID uint
	SkillID    uint
	Mode       model.QuestionMode `validate:"omitempty,oneof=multiple_choice free_text"`
}

// QuestionService generates adaptive questions and lists a learner's
// question history.
type QuestionService interface {
	GenerateQuestion(ctx context.Context, in GenerateInput) (*QuestionView, error)
	History(ctx context.Context, learnerID uint, q HistoryQuery) ([]QuestionView, error)
}

// HistoryQuery narrows a learner's question history. Zero values mean no
// filter; Limit defaults to 10 and is capped at 100.
type HistoryQuery struct {
	Limit      int
	Offset     int
	CategoryID uint
	SkillID    uint
	Answered   *bool
}

type questionService struct {
	selector  *SkillSelector
	history   *HistoryAggregator
	author    *llm.QuestionAuthor
	fallback  *FallbackGenerator
	questions repository.QuestionRepository
	summaries *cache.FIFO[string, string]
	keywords  *cache.FIFO[string, string]
	opts      QuestionOptions
}

func NewQuestionService(
	selector *SkillSelector,
	history *HistoryAggregator,
	author *llm.QuestionAuthor,
	fallback *FallbackGenerator,
	questions repository.QuestionRepository,
	opts QuestionOptions,
) QuestionService {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 30 * time.Second
	}
	if opts.SubcallCacheSize <= 0 {
		opts.SubcallCacheSize = 1000
	}
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = 30 * 24 * time.Hour
	}
	if opts.DuplicateRetries < 0 {
		opts.DuplicateRetries = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &questionService{
		selector:  selector,
		history:   history,
		author:    author,
		fallback:  fallback,
		questions: questions,
		summaries: cache.NewFIFO[string, string](opts.SubcallCacheSize),
		keywords:  cache.NewFIFO[string, string](opts.SubcallCacheSize),
		opts:      opts,
	}
}

// composedQuestion is a question ready to be persisted.
type composedQuestion struct {
	LocalQuestion
	Source model.QuestionSource
	// ProviderErr is the provider failure absorbed by falling back, if any.
	ProviderErr error
}

// GenerateQuestion picks a skill, asks the provider for a question at the
// learner's target difficulty and persists it unanswered. Provider
// failures fall back to the local generator and are never returned.
func (s *questionService) GenerateQuestion(ctx context.Context, in GenerateInput) (*QuestionView, error) {
	if in.Mode == "" {
		in.Mode = model.ModeMultipleChoice
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	// generation and persistence finish even if the client goes away
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	sel, err := s.selector.Select(ctx, in.LearnerID, in.CategoryID, in.SkillID)
	if err != nil {
		return nil, err
	}

	theta := 0.0
	if sel.Ability != nil {
		theta = sel.Ability.Theta
	}
	target := TargetDifficulty(theta)

	avoidance, err := s.history.AvoidanceContext(ctx, in.LearnerID, sel.Category.ID)
	if err != nil {
		return nil, err
	}

	var q composedQuestion
	var hash string
	since := s.opts.Now().UTC().Add(-s.opts.DuplicateWindow)
	for attempt := 0; ; attempt++ {
		q = s.compose(ctx, sel, target, avoidance, in.Mode)
		hash = textanalysis.Fingerprint(q.Text, q.Options)

		if attempt >= s.opts.DuplicateRetries {
			break
		}
		seen, err := s.questions.ExistsRecentHash(ctx, in.LearnerID, hash, since)
		if err != nil {
			return nil, apperror.Persistence("check duplicate question", err)
		}
		if !seen {
			break
		}
		utilities.Debug("question %s already asked to learner %d, regenerating", hash[:12], in.LearnerID)
	}

	skillID := sel.Skill.ID
	record := &model.QuestionRecord{
		UserID:             in.LearnerID,
		CategoryID:         sel.Category.ID,
		SkillID:            &skillID,
		Hash:               hash,
		Mode:               q.Mode,
		Text:               q.Text,
		Options:            q.Options,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Explanation:        q.Explanation,
		Difficulty:         q.Difficulty,
		Summary:            q.Summary,
		AbstractHash:       q.AbstractHash,
		Source:             q.Source,
		AskedAt:            s.opts.Now().UTC(),
	}
	if err := s.questions.SaveQuestionRecord(ctx, record); err != nil {
		return nil, apperror.Persistence("save question", err)
	}
	record.Category = &sel.Category
	record.Skill = &sel.Skill

	s.opts.Metrics.QuestionGenerated(string(q.Source), string(q.Mode), time.Since(start))
	s.opts.Events.Publish(utilities.EventQuestionGenerated, QuestionGeneratedEvent{
		QuestionID:  record.ID,
		LearnerID:   in.LearnerID,
		SkillID:     skillID,
		Source:      q.Source,
		Difficulty:  q.Difficulty,
		FallbackErr: q.ProviderErr,
	})

	view := NewQuestionView(record, s.opts.ExposeAnswerKey)
	return &view, nil
}

// TargetDifficulty is the item difficulty giving the learner a success
// probability of 0.8 at theta 0, decreasing by 0.05 per positive unit.
func TargetDifficulty(theta float64) float64 {
	p := baseTargetProbability - math.Max(0, theta)*targetProbabilityStep
	return irt.EstimateOptimalDifficulty(theta, p, irt.DefaultDiscrimination)
}

func (s *questionService) compose(ctx context.Context, sel *Selection, target float64, avoidance model.AvoidanceContext, mode model.QuestionMode) composedQuestion {
	if mode == model.ModeFreeText || !s.author.Available() {
		return s.local(sel, target, mode)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	generated, err := s.author.Generate(genCtx, llm.GenerationRequest{
		CategoryName:     sel.Category.Name,
		SkillName:        sel.Skill.Name,
		TargetDifficulty: target,
		Avoidance:        avoidance,
	})
	cancel()
	if err != nil {
		perr := apperror.Provider(err)
		utilities.Warn("%s for skill %d, using local generator: %v", apperror.KindProvider, sel.Skill.ID, perr)
		q := s.local(sel, target, mode)
		q.ProviderErr = perr
		return q
	}

	correct := generated.CorrectAnswerIndex
	q := composedQuestion{
		LocalQuestion: LocalQuestion{
			Mode:               model.ModeMultipleChoice,
			Text:               generated.Question,
			Options:            generated.Options,
			CorrectOptionIndex: &correct,
			Explanation:        generated.Explanation,
			Difficulty:         generated.Difficulty,
		},
		Source: model.SourceProvider,
	}
	q.Summary, q.AbstractHash = s.describe(ctx, q.Text, q.Options)
	return q
}

func (s *questionService) local(sel *Selection, target float64, mode model.QuestionMode) composedQuestion {
	return composedQuestion{
		LocalQuestion: s.fallback.Generate(sel.Category.Name, sel.Skill.Name, target, mode),
		Source:        model.SourceFallback,
	}
}

// describe runs the summary and keyword sub-calls concurrently. Each falls
// back to the local heuristic on failure and is memoised by content.
func (s *questionService) describe(ctx context.Context, text string, options []string) (summary, keywords string) {
	key := subcallKey(text, options)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary = s.subcall(ctx, s.summaries, key, s.author.Summarize, text, options, textanalysis.Summarize)
	}()
	go func() {
		defer wg.Done()
		keywords = s.subcall(ctx, s.keywords, key, s.author.ExtractKeywords, text, options, textanalysis.AbstractHash)
	}()
	wg.Wait()
	return summary, keywords
}

func (s *questionService) subcall(
	ctx context.Context,
	memo *cache.FIFO[string, string],
	key string,
	call func(context.Context, string, []string) (string, error),
	text string,
	options []string,
	local func(string) string,
) string {
	if v, ok := memo.Get(key); ok {
		return v
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()
	v, err := call(callCtx, text, options)
	if err != nil {
		utilities.Debug("sub-call failed, using local heuristic: %v", err)
		v = local(text)
	}
	memo.Set(key, v)
	return v
}

// subcallKey is the md5 of the text followed by the JSON options.
func subcallKey(text string, options []string) string {
	if options == nil {
		options = []string{}
	}
	encoded, _ := json.Marshal(options)
	sum := md5.Sum(append([]byte(text), encoded...))
	return hex.EncodeToString(sum[:])
}

// History returns the learner's latest questions, newest first.
func (s *questionService) History(ctx context.Context, learnerID uint, q HistoryQuery) ([]QuestionView, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryPage
	}
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}

	records, err := s.questions.FindHistory(ctx, learnerID, repository.HistoryFilter{
		CategoryID: q.CategoryID,
		SkillID:    q.SkillID,
		Answered:   q.Answered,
		Limit:      limit,
		Offset:     max(q.Offset, 0),
	})
	if err != nil {
		return nil, apperror.Persistence("load question history", err)
	}

	views := make([]QuestionView, len(records))
	for i := range records {
		views[i] = NewQuestionView(&records[i], s.opts.ExposeAnswerKey)
	}
	return views, nil
}

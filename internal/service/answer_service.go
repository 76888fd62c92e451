package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/metrics"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/utilities"
)

type AnswerOptions struct {
	Now     func() time.Time
	Metrics *metrics.Metrics
	Events  *utilities.EventBus
}

// AnswerResult is the answered question, with its key revealed, and the
// learner's updated ability on the question's skill.
type AnswerResult struct {
	Question QuestionView `json:"question"`
	Ability  *AbilityView `json:"ability,omitempty"`
}

type AnswerService interface {
	RecordAnswer(ctx context.Context, questionID, learnerID uint, answer model.Answer, timeTaken time.Duration) (*AnswerResult, error)
}

type answerService struct {
	executor  *db.QueryExecutor
	questions repository.QuestionRepository
	abilities repository.AbilityRepository
	opts      AnswerOptions
}

func NewAnswerService(executor *db.QueryExecutor, questions repository.QuestionRepository, abilities repository.AbilityRepository, opts AnswerOptions) AnswerService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &answerService{executor: executor, questions: questions, abilities: abilities, opts: opts}
}

// grading is the outcome of checking an answer against its question.
type grading struct {
	correct     bool
	optionIndex *int
	text        string
}

// RecordAnswer grades the answer, stores it and updates the learner's
// ability in one transaction. A question is answered at most once; later
// attempts get AlreadyAnswered.
func (s *answerService) RecordAnswer(ctx context.Context, questionID, learnerID uint, answer model.Answer, timeTaken time.Duration) (*AnswerResult, error) {
	if answer == nil {
		return nil, apperror.Validation("answer is required")
	}
	if timeTaken < 0 {
		return nil, apperror.Validation("time taken must not be negative")
	}

	var record *model.QuestionRecord
	var state *model.AbilityState
	var g grading

	err := s.executor.Transaction(ctx, func(tx *gorm.DB) error {
		questions := s.questions.WithTx(tx)
		abilities := s.abilities.WithTx(tx)

		var err error
		record, err = questions.FindQuestionRecordForUpdate(ctx, questionID, learnerID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("question %d not found", questionID)
		}
		if err != nil {
			return apperror.Persistence("load question", err)
		}
		if record.IsAnswered() {
			return apperror.AlreadyAnswered(questionID)
		}

		if g, err = grade(record, answer); err != nil {
			return err
		}

		now := s.opts.Now().UTC()
		var thetaBefore, thetaAfter *float64
		if record.SkillID != nil {
			state, err = s.loadOrCreateState(ctx, abilities, learnerID, *record.SkillID)
			if err != nil {
				return err
			}
			before := state.Theta
			applyResponse(state, record.Difficulty, g.correct, now)
			after := state.Theta
			thetaBefore, thetaAfter = &before, &after
		}

		err = questions.MarkAnswered(ctx, questionID, learnerID, repository.AnswerUpdate{
			AnsweredAt:       now,
			UserAnswerIndex:  g.optionIndex,
			AnswerText:       g.text,
			IsCorrect:        g.correct,
			TimeTakenSeconds: int(timeTaken.Round(time.Second) / time.Second),
			ThetaBefore:      thetaBefore,
			ThetaAfter:       thetaAfter,
		})
		if errors.Is(err, repository.ErrNotUpdated) {
			return apperror.AlreadyAnswered(questionID)
		}
		if err != nil {
			return apperror.Persistence("record answer", err)
		}

		if state != nil {
			if err := abilities.SaveAbilityState(ctx, state); err != nil {
				return apperror.Persistence("save ability state", err)
			}
		}

		record, err = questions.FindQuestionRecord(ctx, questionID, learnerID)
		if err != nil {
			return apperror.Persistence("reload question", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.AnswerRecorded(g.correct)
	s.opts.Events.Publish(utilities.EventAnswerRecorded, AnswerRecordedEvent{
		QuestionID: questionID,
		LearnerID:  learnerID,
		SkillID:    record.SkillID,
		IsCorrect:  g.correct,
		ThetaAfter: record.ThetaAfter,
	})

	result := &AnswerResult{Question: NewQuestionView(record, true)}
	if state != nil {
		ability := NewAbilityView(state)
		result.Ability = &ability
	}
	return result, nil
}

// grade checks the answer variant against the record's mode.
func grade(record *model.QuestionRecord, answer model.Answer) (grading, error) {
	mode := record.Mode
	if mode == "" {
		mode = model.ModeMultipleChoice
	}
	if answer.Mode() != mode {
		return grading{}, apperror.Validation("question %d expects a %s answer", record.ID, mode)
	}

	switch a := answer.(type) {
	case model.MultipleChoiceAnswer:
		if a.SelectedOptionIndex < 0 || a.SelectedOptionIndex >= len(record.Options) {
			return grading{}, apperror.InvalidChoice(a.SelectedOptionIndex, len(record.Options))
		}
		if record.CorrectOptionIndex == nil {
			return grading{}, apperror.Validation("question %d has no answer key", record.ID)
		}
		idx := a.SelectedOptionIndex
		return grading{correct: idx == *record.CorrectOptionIndex, optionIndex: &idx}, nil
	case model.FreeTextAnswer:
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return grading{}, apperror.Validation("answer text is required")
		}
		return grading{correct: a.IsCorrect, text: text}, nil
	default:
		return grading{}, apperror.Validation("unsupported answer type %T", answer)
	}
}

func (s *answerService) loadOrCreateState(ctx context.Context, abilities repository.AbilityRepository, learnerID, skillID uint) (*model.AbilityState, error) {
	state, err := abilities.LockOrCreateAbilityState(ctx, learnerID, skillID, irt.MinConfidence)
	if err != nil {
		return nil, apperror.Persistence("load ability state", err)
	}
	return state, nil
}

// applyResponse moves theta toward the observed outcome. The learning rate
// grows with a lopsided track record and the discrimination with
// confidence.
func applyResponse(state *model.AbilityState, difficulty float64, correct bool, at time.Time) {
	lr := irt.AdaptiveLearningRate(irt.DefaultThetaLearningRate, state.CorrectRatio())
	disc := irt.DiscriminationFromConfidence(state.Confidence)
	state.Theta = irt.UpdateTheta(state.Theta, difficulty, correct, lr, disc)

	state.TotalAttempts++
	if correct {
		state.CorrectAttempts++
	}
	state.Confidence = irt.Confidence(state.TotalAttempts)
	state.LastAttemptAt = &at
}

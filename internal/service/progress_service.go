package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

// level thresholds on the mean theta of attempted skills
const (
	intermediateTheta = -0.5
	advancedTheta     = 1.0
)

type ProgressTotals struct {
	Asked    int64   `json:"asked"`
	Answered int64   `json:"answered"`
	Correct  int64   `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type CategoryProgress struct {
	CategoryID   uint    `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Asked        int64   `json:"asked"`
	Answered     int64   `json:"answered"`
	Correct      int64   `json:"correct"`
	Accuracy     float64 `json:"accuracy"`
	AvgSeconds   float64 `json:"averageSeconds"`
}

// ProgressReport holds the metrics for the progress report.
type ProgressReport struct {
	LearnerID   uint               `json:"learnerId"`
	Username    string             `json:"username"`
	Email       string             `json:"email"`
	Level       string             `json:"level"`
	MeanTheta   float64            `json:"meanTheta"`
	Totals      ProgressTotals     `json:"totals"`
	Categories  []CategoryProgress `json:"categories"`
	Skills      []AbilityView      `json:"skills"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

type ProgressService interface {
	Progress(ctx context.Context, learnerID uint) (*ProgressReport, error)
}

type progressService struct {
	users     repository.UserRepository
	abilities repository.AbilityRepository
	questions repository.QuestionRepository
	now       func() time.Time
}

func NewProgressService(users repository.UserRepository, abilities repository.AbilityRepository, questions repository.QuestionRepository) ProgressService {
	return &progressService{users: users, abilities: abilities, questions: questions, now: time.Now}
}

// Progress computes the progress data for a given user.
func (s *progressService) Progress(ctx context.Context, learnerID uint) (*ProgressReport, error) {
	var (
		user   *model.User
		stats  []repository.CategoryStat
		states []model.AbilityState
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.GetUserByID(gctx, learnerID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("user %d not found", learnerID)
		}
		if err != nil {
			return apperror.Persistence("load user", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stats, err = s.questions.CategoryStats(gctx, learnerID); err != nil {
			return apperror.Persistence("load category statistics", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if states, err = s.abilities.FindAbilityStatesByLearner(gctx, learnerID); err != nil {
			return apperror.Persistence("load skill levels", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ProgressReport{
		LearnerID:   user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Categories:  make([]CategoryProgress, 0, len(stats)),
		Skills:      make([]AbilityView, 0, len(states)),
		GeneratedAt: s.now().UTC(),
	}

	for _, st := range stats {
		report.Totals.Asked += st.Asked
		report.Totals.Answered += st.Answered
		report.Totals.Correct += st.Correct
		report.Categories = append(report.Categories, CategoryProgress{
			CategoryID:   st.CategoryID,
			CategoryName: st.CategoryName,
			Asked:        st.Asked,
			Answered:     st.Answered,
			Correct:      st.Correct,
			Accuracy:     percent(st.Correct, st.Answered),
			AvgSeconds:   st.AvgSeconds,
		})
	}
	report.Totals.Accuracy = percent(report.Totals.Correct, report.Totals.Answered)

	var thetaSum float64
	for i := range states {
		report.Skills = append(report.Skills, NewAbilityView(&states[i]))
		thetaSum += states[i].Theta
	}
	if len(states) > 0 {
		report.MeanTheta = thetaSum / float64(len(states))
	}
	report.Level = levelFor(report.MeanTheta, len(states))
	return report, nil
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func levelFor(meanTheta float64, attempted int) string {
	switch {
	case attempted == 0 || meanTheta < intermediateTheta:
		return "BEGINNER"
	case meanTheta < advancedTheta:
		return "INTERMEDIATE"
	default:
		return "ADVANCED"
	}
}

package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/db/dbtest"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

func TestProgressReport(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "fractions", "decimals")
	users := repository.NewUserRepository(conn)
	questions := repository.NewQuestionRepository(conn)
	abilities := repository.NewAbilityRepository(conn)
	answers := NewAnswerService(db.NewQueryExecutor(conn), questions, abilities, AnswerOptions{})

	correct := 0
	for i, choice := range []int{0, 1, -1} {
		skillID := f.Skills[i%2].ID
		q := &model.QuestionRecord{
			UserID: f.Learner.ID, CategoryID: f.Category.ID, SkillID: &skillID,
			Hash: "h", Mode: model.ModeMultipleChoice, Text: "q",
			Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: &correct,
			Difficulty: 1, Source: model.SourceFallback, AskedAt: time.Now().UTC(),
		}
		require.NoError(t, questions.SaveQuestionRecord(ctx, q))
		if choice >= 0 {
			_, err := answers.RecordAnswer(ctx, q.ID, f.Learner.ID, model.MultipleChoiceAnswer{SelectedOptionIndex: choice}, 10*time.Second)
			require.NoError(t, err)
		}
	}

	report, err := NewProgressService(users, abilities, questions).Progress(ctx, f.Learner.ID)
	require.NoError(t, err)

	assert.Equal(t, f.Learner.ID, report.LearnerID)
	assert.Equal(t, int64(3), report.Totals.Asked)
	assert.Equal(t, int64(2), report.Totals.Answered)
	assert.Equal(t, int64(1), report.Totals.Correct)
	assert.InDelta(t, 50.0, report.Totals.Accuracy, 1e-9)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, "Math", report.Categories[0].CategoryName)
	assert.InDelta(t, 10.0, report.Categories[0].AvgSeconds, 1e-9)
	require.Len(t, report.Skills, 2)
	assert.Equal(t, "Math", report.Skills[0].CategoryName)
	assert.Equal(t, "INTERMEDIATE", report.Level)

	var buf bytes.Buffer
	require.NoError(t, WriteProgressPDF(&buf, report))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestProgressReport_UnknownLearner(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewProgressService(repository.NewUserRepository(conn), repository.NewAbilityRepository(conn), repository.NewQuestionRepository(conn))

	_, err := svc.Progress(context.Background(), 42)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "BEGINNER", levelFor(2, 0))
	assert.Equal(t, "BEGINNER", levelFor(-1, 3))
	assert.Equal(t, "INTERMEDIATE", levelFor(0, 3))
	assert.Equal(t, "ADVANCED", levelFor(1.5, 3))
}

func TestWriteProgressPDF_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteProgressPDF(&buf, &ProgressReport{Username: "ann", Level: "BEGINNER"}))
	assert.NotZero(t, buf.Len())
}

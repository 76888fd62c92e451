package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-quiz-backend/internal/db/dbtest"
	"adaptive-quiz-backend/internal/model"
)

func newRecord(f dbtest.Fixture, skill int, text string, askedAt time.Time) *model.QuestionRecord {
	correct := 1
	return &model.QuestionRecord{
		UserID:             f.Learner.ID,
		CategoryID:         f.Category.ID,
		SkillID:            &f.Skills[skill].ID,
		Hash:               "hash-" + text,
		Mode:               model.ModeMultipleChoice,
		Text:               text,
		Options:            []string{"a", "b", "c", "d"},
		CorrectOptionIndex: &correct,
		Difficulty:         2,
		Source:             model.SourceFallback,
		AskedAt:            askedAt,
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(dbtest.Open(t))

	user := &model.User{Username: "ann", Email: "ann@example.com", Password: "hash"}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)

	err := repo.CreateUser(ctx, &model.User{Username: "ann2", Email: "ann@example.com", Password: "hash"})
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := repo.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, model.RoleUser, found.Role)

	_, err = repo.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, now))
	found, err = repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastLoginAt)
	assert.True(t, now.Equal(*found.LastLoginAt))

	all, err := repo.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCategoryAndSkillRepositories(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	categories := NewCategoryRepository(conn)
	skills := NewSkillRepository(conn)

	math := &model.Category{Name: "Math"}
	science := &model.Category{Name: "Science"}
	require.NoError(t, categories.CreateCategory(ctx, math))
	require.NoError(t, categories.CreateCategory(ctx, science))
	assert.ErrorIs(t, categories.CreateCategory(ctx, &model.Category{Name: "Math"}), ErrDuplicate)

	all, err := categories.FindAllCategories(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Math", all[0].Name)

	byName, err := categories.FindCategoryByName(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, science.ID, byName.ID)

	science.Description = "natural sciences"
	require.NoError(t, categories.UpdateCategory(ctx, science))
	reloaded, err := categories.FindCategoryByID(ctx, science.ID)
	require.NoError(t, err)
	assert.Equal(t, "natural sciences", reloaded.Description)

	algebra := &model.Skill{Name: "Algebra", CategoryID: math.ID, DifficultyBase: 2.5}
	geometry := &model.Skill{Name: "Geometry", CategoryID: math.ID, DifficultyBase: 3}
	require.NoError(t, skills.CreateSkill(ctx, algebra))
	require.NoError(t, skills.CreateSkill(ctx, geometry))
	assert.ErrorIs(t, skills.CreateSkill(ctx, &model.Skill{Name: "Algebra", CategoryID: math.ID}), ErrDuplicate)
	require.NoError(t, skills.CreateSkill(ctx, &model.Skill{Name: "Algebra", CategoryID: science.ID}))

	inMath, err := skills.FindSkillsByCategory(ctx, math.ID)
	require.NoError(t, err)
	require.Len(t, inMath, 2)
	assert.Equal(t, []string{"Algebra", "Geometry"}, []string{inMath[0].Name, inMath[1].Name})

	found, err := skills.FindSkillByID(ctx, geometry.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Category)
	assert.Equal(t, "Math", found.Category.Name)

	require.NoError(t, skills.UpdateDifficultyBase(ctx, algebra.ID, 1.75))
	found, err = skills.FindSkillByName(ctx, math.ID, "Algebra")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, found.DifficultyBase, 1e-9)

	assert.ErrorIs(t, skills.UpdateDifficultyBase(ctx, 999, 1), ErrNotFound)
	require.NoError(t, skills.DeleteSkill(ctx, geometry.ID))
	assert.ErrorIs(t, skills.DeleteSkill(ctx, geometry.ID), ErrNotFound)
	assert.ErrorIs(t, categories.DeleteCategory(ctx, 999), ErrNotFound)
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra")
	users := NewUserRepository(conn)
	other := &model.User{Username: "bob", Email: "bob@example.com", Password: "hash"}
	require.NoError(t, users.CreateUser(ctx, other))

	learner := f.Learner
	learner.Username = "renamed"
	learner.Role = model.RoleAdmin
	require.NoError(t, users.UpdateUser(ctx, &learner))
	found, err := users.GetUserByID(ctx, learner.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", found.Username)
	assert.True(t, found.IsAdmin())

	learner.Email = other.Email
	assert.ErrorIs(t, users.UpdateUser(ctx, &learner), ErrDuplicate)
	assert.ErrorIs(t, users.UpdateUser(ctx, &model.User{ID: 999, Username: "x", Email: "x@example.com"}), ErrNotFound)

	require.NoError(t, NewQuestionRepository(conn).SaveQuestionRecord(ctx, newRecord(f, 0, "q1", time.Now())))
	abilities := NewAbilityRepository(conn)
	require.NoError(t, abilities.SaveAbilityState(ctx, &model.AbilityState{UserID: learner.ID, SkillID: f.Skills[0].ID, Confidence: 1}))

	require.NoError(t, users.DeleteUser(ctx, learner.ID))
	_, err = users.GetUserByID(ctx, learner.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, users.DeleteUser(ctx, learner.ID), ErrNotFound)

	var records int64
	require.NoError(t, conn.Model(&model.QuestionRecord{}).Where("user_id = ?", learner.ID).Count(&records).Error)
	assert.Zero(t, records)
	_, err = abilities.FindAbilityState(ctx, learner.ID, f.Skills[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = users.GetUserByID(ctx, other.ID)
	assert.NoError(t, err)
}

func TestAbilityRepository(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra", "Geometry", "Fractions")
	repo := NewAbilityRepository(conn)

	_, err := repo.FindAbilityState(ctx, f.Learner.ID, f.Skills[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	state := &model.AbilityState{UserID: f.Learner.ID, SkillID: f.Skills[0].ID, Theta: -0.5, Confidence: 1}
	require.NoError(t, repo.SaveAbilityState(ctx, state))
	state.Theta = 0.25
	state.TotalAttempts = 1
	require.NoError(t, repo.SaveAbilityState(ctx, state))

	require.NoError(t, repo.SaveAbilityState(ctx, &model.AbilityState{UserID: f.Learner.ID, SkillID: f.Skills[2].ID, Theta: 1, Confidence: 1}))
	err = repo.SaveAbilityState(ctx, &model.AbilityState{UserID: f.Learner.ID, SkillID: f.Skills[0].ID, Confidence: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	found, err := repo.FindAbilityState(ctx, f.Learner.ID, f.Skills[0].ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, found.Theta, 1e-9)
	assert.Equal(t, 1, found.TotalAttempts)

	states, err := repo.FindAbilityStates(ctx, f.Learner.ID, []uint{f.Skills[0].ID, f.Skills[1].ID, f.Skills[2].ID})
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, f.Skills[0].ID, states[0].SkillID)

	none, err := repo.FindAbilityStates(ctx, f.Learner.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	byLearner, err := repo.FindAbilityStatesByLearner(ctx, f.Learner.ID)
	require.NoError(t, err)
	require.Len(t, byLearner, 2)
	require.NotNil(t, byLearner[0].Skill)
	require.NotNil(t, byLearner[0].Skill.Category)
	assert.Equal(t, "Math", byLearner[0].Skill.Category.Name)

	locked, err := repo.LockOrCreateAbilityState(ctx, f.Learner.ID, f.Skills[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, found.ID, locked.ID)
	assert.InDelta(t, 0.25, locked.Theta, 1e-9)

	n, err := repo.CountBySkill(ctx, f.Skills[2].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	locked, err = repo.FindAbilityStateForUpdate(ctx, f.Learner.ID, f.Skills[2].ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, locked.Theta, 1e-9)
}

func TestQuestionRepository_HistoryOrdering(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra", "Geometry")
	repo := NewQuestionRepository(conn)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		require.NoError(t, repo.SaveQuestionRecord(ctx, newRecord(f, i%2, string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))))
	}

	recent, err := repo.FindRecentQuestionRecords(ctx, f.Learner.ID, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "f", recent[0].Text)
	assert.Equal(t, "c", recent[3].Text)
	require.NotNil(t, recent[0].Category)
	assert.Equal(t, "Math", recent[0].Category.Name)
	require.NotNil(t, recent[0].Skill)
	assert.Equal(t, "Geometry", recent[0].Skill.Name)

	geometry, err := repo.FindHistory(ctx, f.Learner.ID, HistoryFilter{SkillID: f.Skills[1].ID})
	require.NoError(t, err)
	assert.Len(t, geometry, 3)

	since, err := repo.FindHistory(ctx, f.Learner.ID, HistoryFilter{Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	other, err := repo.FindRecentQuestionRecords(ctx, f.Learner.ID+100, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestQuestionRepository_MarkAnsweredOnce(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra")
	repo := NewQuestionRepository(conn)

	record := newRecord(f, 0, "what is 2+2", time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveQuestionRecord(ctx, record))

	_, err := repo.FindQuestionRecord(ctx, record.ID, f.Learner.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)

	selected := 1
	update := AnswerUpdate{
		AnsweredAt:       time.Date(2026, 5, 1, 10, 1, 0, 0, time.UTC),
		UserAnswerIndex:  &selected,
		IsCorrect:        true,
		TimeTakenSeconds: 12,
	}
	require.NoError(t, repo.MarkAnswered(ctx, record.ID, f.Learner.ID, update))
	assert.ErrorIs(t, repo.MarkAnswered(ctx, record.ID, f.Learner.ID, update), ErrNotUpdated)

	answered, err := repo.FindQuestionRecordForUpdate(ctx, record.ID, f.Learner.ID)
	require.NoError(t, err)
	assert.True(t, answered.IsAnswered())
	require.NotNil(t, answered.IsCorrect)
	assert.True(t, *answered.IsCorrect)
	assert.Equal(t, 12, answered.TimeTakenSeconds)

	yes := true
	onlyAnswered, err := repo.FindHistory(ctx, f.Learner.ID, HistoryFilter{Answered: &yes})
	require.NoError(t, err)
	assert.Len(t, onlyAnswered, 1)

	bySkill, err := repo.FindAnsweredBySkill(ctx, f.Skills[0].ID, 10)
	require.NoError(t, err)
	assert.Len(t, bySkill, 1)
}

func TestQuestionRepository_ExistsRecentHash(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra")
	repo := NewQuestionRepository(conn)

	asked := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveQuestionRecord(ctx, newRecord(f, 0, "q", asked)))

	found, err := repo.ExistsRecentHash(ctx, f.Learner.ID, "hash-q", asked.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.ExistsRecentHash(ctx, f.Learner.ID, "hash-q", asked.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	found, err = repo.ExistsRecentHash(ctx, f.Learner.ID, "hash-other", asked.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQuestionRepository_CategoryStats(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra")
	repo := NewQuestionRepository(conn)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var ids []uint
	for i := 0; i < 3; i++ {
		r := newRecord(f, 0, string(rune('x'+i)), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.SaveQuestionRecord(ctx, r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, repo.MarkAnswered(ctx, ids[0], f.Learner.ID, AnswerUpdate{AnsweredAt: base, IsCorrect: true, TimeTakenSeconds: 10}))
	require.NoError(t, repo.MarkAnswered(ctx, ids[1], f.Learner.ID, AnswerUpdate{AnsweredAt: base, IsCorrect: false, TimeTakenSeconds: 20}))

	stats, err := repo.CategoryStats(ctx, f.Learner.ID)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Math", stats[0].CategoryName)
	assert.EqualValues(t, 3, stats[0].Asked)
	assert.EqualValues(t, 2, stats[0].Answered)
	assert.EqualValues(t, 1, stats[0].Correct)
	assert.InDelta(t, 15.0, stats[0].AvgSeconds, 1e-9)
}

func TestLockOrCreateAbilityState(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn, "Math", "Algebra")
	repo := NewAbilityRepository(conn)

	created, err := repo.LockOrCreateAbilityState(ctx, f.Learner.ID, f.Skills[0].ID, 1)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Zero(t, created.Theta)
	assert.Equal(t, 1.0, created.Confidence)

	created.Theta = 0.7
	require.NoError(t, repo.SaveAbilityState(ctx, created))

	// a second caller that lost the insert race gets the stored row back
	again, err := repo.LockOrCreateAbilityState(ctx, f.Learner.ID, f.Skills[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.InDelta(t, 0.7, again.Theta, 1e-9)

	n, err := repo.CountBySkill(ctx, f.Skills[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

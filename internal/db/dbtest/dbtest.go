// Package dbtest opens throwaway migrated sqlite databases for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"adaptive-quiz-backend/internal/config"
	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/model"
)

// Open returns a migrated in-memory database private to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := db.Open(config.DBConfig{
		Driver: "sqlite",
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		Pool:   config.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Fixture is a small catalog with one learner.
type Fixture struct {
	Learner  model.User
	Category model.Category
	Skills   []model.Skill
}

// Seed creates a learner and a category holding the named skills.
func Seed(t testing.TB, conn *gorm.DB, category string, skills ...string) Fixture {
	t.Helper()

	f := Fixture{
		Learner:  model.User{Username: "learner", Email: uuid.NewString() + "@example.com", Password: "x", Role: model.RoleUser},
		Category: model.Category{Name: category},
	}
	require.NoError(t, conn.Create(&f.Learner).Error)
	require.NoError(t, conn.Create(&f.Category).Error)
	for _, name := range skills {
		s := model.Skill{Name: name, CategoryID: f.Category.ID, DifficultyBase: 2}
		require.NoError(t, conn.Create(&s).Error)
		f.Skills = append(f.Skills, s)
	}
	return f
}

package main

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-quiz-backend/internal/db/dbtest"
	"adaptive-quiz-backend/internal/repository"
)

const sampleCatalog = `
categories:
  - name: Mathematics
    description: Numbers and shapes
    skills:
      - name: Fractions
        difficulty: 1.5
      - name: Geometry
  - name: Biology
    skills:
      - name: Cells
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Categories, 2)
	assert.Equal(t, "Numbers and shapes", c.Categories[0].Description)
	assert.Equal(t, 1.5, c.Categories[0].Skills[0].Difficulty)
}

func TestParseCatalog_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "categories:\n  - name: Math\n    colour: red\n",
		"unnamed":       "categories:\n  - description: x\n",
		"unnamed skill": "categories:\n  - name: Math\n    skills:\n      - difficulty: 2\n",
		"too hard":      "categories:\n  - name: Math\n    skills:\n      - name: Proofs\n        difficulty: 9\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestSeedCatalog_Idempotent(t *testing.T) {
	conn := dbtest.Open(t)
	categories := repository.NewCategoryRepository(conn)
	skills := repository.NewSkillRepository(conn)
	ctx := context.Background()

	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	report, err := SeedCatalog(ctx, categories, skills, c)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{CategoriesCreated: 2, SkillsCreated: 3}, report)

	report, err = SeedCatalog(ctx, categories, skills, c)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Skipped: 5}, report)

	math, err := categories.FindCategoryByName(ctx, "Mathematics")
	require.NoError(t, err)
	geometry, err := skills.FindSkillByName(ctx, math.ID, "Geometry")
	require.NoError(t, err)
	assert.Equal(t, 2.0, geometry.DifficultyBase)
}

func TestBundledCatalog(t *testing.T) {
	f, err := os.Open("../../catalog.yaml")
	require.NoError(t, err)
	defer f.Close()

	c, err := ParseCatalog(f)
	require.NoError(t, err)
	assert.Len(t, c.Categories, 5)
	for _, cat := range c.Categories {
		assert.Len(t, cat.Skills, 7, cat.Name)
	}
}

func TestReadPassword_Piped(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret-pass\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", pw)

	_, err = readPassword(strings.NewReader(""), nil)
	assert.Error(t, err)
}

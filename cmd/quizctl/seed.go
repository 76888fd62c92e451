package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"adaptive-quiz-backend/internal/irt"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

// Catalog is the YAML layout read by the seed command.
type Catalog struct {
	Categories []CatalogCategory `yaml:"categories"`
}

type CatalogCategory struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Skills      []CatalogSkill `yaml:"skills"`
}

type CatalogSkill struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Difficulty  float64 `yaml:"difficulty"`
}

// SeedReport counts what a seed run did.
type SeedReport struct {
	CategoriesCreated int
	SkillsCreated     int
	Skipped           int
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load categories and skills from a YAML catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		catalog, err := ParseCatalog(f)
		if err != nil {
			return err
		}

		conn, err := openDB()
		if err != nil {
			return err
		}
		report, err := SeedCatalog(cmd.Context(), repository.NewCategoryRepository(conn), repository.NewSkillRepository(conn), catalog)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d categories and %d skills, %d already present\n",
			report.CategoriesCreated, report.SkillsCreated, report.Skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().String("file", "catalog.yaml", "Catalog YAML file")
}

// ParseCatalog decodes and checks a catalog. Unknown keys are rejected.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return nil, fmt.Errorf("category %d has no name", i+1)
		}
		for j, sk := range cat.Skills {
			if strings.TrimSpace(sk.Name) == "" {
				return nil, fmt.Errorf("category %q: skill %d has no name", cat.Name, j+1)
			}
			if sk.Difficulty != 0 && (sk.Difficulty < irt.MinDifficulty || sk.Difficulty > irt.MaxDifficulty) {
				return nil, fmt.Errorf("skill %q: difficulty %.2f outside [%.1f, %.1f]",
					sk.Name, sk.Difficulty, irt.MinDifficulty, irt.MaxDifficulty)
			}
		}
	}
	return &c, nil
}

// SeedCatalog creates missing categories and skills by name. Existing rows
// are left untouched, so running it twice is harmless.
func SeedCatalog(ctx context.Context, categories repository.CategoryRepository, skills repository.SkillRepository, c *Catalog) (SeedReport, error) {
	var report SeedReport
	for _, entry := range c.Categories {
		category, err := categories.FindCategoryByName(ctx, entry.Name)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			category = &model.Category{Name: entry.Name, Description: entry.Description}
			if err := categories.CreateCategory(ctx, category); err != nil {
				return report, fmt.Errorf("create category %q: %w", entry.Name, err)
			}
			report.CategoriesCreated++
		case err != nil:
			return report, fmt.Errorf("load category %q: %w", entry.Name, err)
		default:
			report.Skipped++
		}

		for _, sk := range entry.Skills {
			_, err := skills.FindSkillByName(ctx, category.ID, sk.Name)
			if err == nil {
				report.Skipped++
				continue
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return report, fmt.Errorf("load skill %q: %w", sk.Name, err)
			}
			difficulty := sk.Difficulty
			if difficulty == 0 {
				difficulty = 2
			}
			skill := &model.Skill{Name: sk.Name, Description: sk.Description, CategoryID: category.ID, DifficultyBase: difficulty}
			if err := skills.CreateSkill(ctx, skill); err != nil {
				return report, fmt.Errorf("create skill %q: %w", sk.Name, err)
			}
			report.SkillsCreated++
		}
	}
	return report, nil
}

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the database and print row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openDB()
		if err != nil {
			return err
		}
		executor := db.NewQueryExecutor(conn)

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		if err := executor.Ping(ctx); err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}

		tables := []struct {
			name  string
			model any
			where map[string]any
		}{
			{"users", &model.User{}, nil},
			{"admins", &model.User{}, map[string]any{"role": model.RoleAdmin}},
			{"categories", &model.Category{}, nil},
			{"skills", &model.Skill{}, nil},
			{"ability states", &model.AbilityState{}, nil},
			{"questions", &model.QuestionRecord{}, nil},
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, t := range tables {
			n, err := executor.Count(ctx, t.model, t.where)
			if err != nil {
				return fmt.Errorf("count %s: %w", t.name, err)
			}
			fmt.Fprintf(w, "%s\t%d\n", t.name, n)
		}
		return w.Flush()
	},
}

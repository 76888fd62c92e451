package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"adaptive-quiz-backend/internal/config"
	"adaptive-quiz-backend/internal/db"
	"adaptive-quiz-backend/utilities"
)

var rootCmd = &cobra.Command{
	Use:          "quizctl",
	Short:        "Administer the adaptive quiz backend",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		if _, err := utilities.InitLogger(cfg.Logging); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utilities.SyncLogger()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.xml", "Path to the XML configuration file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(statusCmd)
}

// openDB connects with the loaded configuration.
func openDB() (*gorm.DB, error) {
	return db.InitDBFromConfig(config.GetConfig())
}

// Command quizctl administers the quiz database: migrations, catalog
// seeding and admin accounts.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/internal/service"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		username, _ := cmd.Flags().GetString("username")
		if username == "" {
			username, _, _ = strings.Cut(email, "@")
		}

		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		conn, err := openDB()
		if err != nil {
			return err
		}
		auth := service.NewAuthService(repository.NewUserRepository(conn))
		user, err := auth.Register(cmd.Context(), service.RegisterInput{
			Username: username,
			Email:    email,
			Password: password,
		}, model.RoleAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %d\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("email", "", "Admin email address")
	createAdminCmd.Flags().String("username", "", "Admin username (defaults to the email's local part)")
	_ = createAdminCmd.MarkFlagRequired("email")
}

// readPassword prompts without echo on a terminal and reads one line
// otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("read password: empty input")
	}
	return line, nil
}

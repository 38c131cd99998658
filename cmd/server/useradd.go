package main

import (
	"bufio"
	"fmt"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/server/auth"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/spf13/cobra"
)

var useraddFlags struct {
	Email    string
	Username string
	Role     string
}

var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an account",
	Long: `Create an account, optionally with a staff role (coach, super_user).
Staff accounts may publish academy posts. The password is read from the terminal.`,
	RunE: useradd,
}

func init() {
	useraddCmd.Flags().StringVar(&useraddFlags.Email, "email", "", "email of the new account")
	useraddCmd.Flags().StringVar(&useraddFlags.Username, "username", "", "username (derived from the email when empty)")
	useraddCmd.Flags().StringVar(&useraddFlags.Role, "role", common.RoleUser, "role: user, coach or super_user")
	rootCmd.AddCommand(useraddCmd)
}

func useradd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	email := useraddFlags.Email
	if email == "" {
		email, err = GetSimpleText(bufio.NewReader(cmd.InOrStdin()), "Email", out)
		if err != nil {
			return err
		}
	}
	password, err := GetPassword(out)
	if err != nil {
		return err
	}

	db, err := repomanager.Open(cmd.Context(), cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint: errcheck

	users := services.NewUserService(db, repomanager.NewPostgresRepositoryManager(), cfg,
		auth.NewBcryptHasher(cfg.BcryptCost), nil, logger)
	user, err := users.CreateUser(cmd.Context(), email, string(password), useraddFlags.Username, useraddFlags.Role)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %s %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

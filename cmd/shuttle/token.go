package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benmeehan/shuttle-tracker/internal/models"
	"github.com/benmeehan/shuttle-tracker/pkg/jwt"
)

var tokenUser models.User

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a user",
	Long: `Signs a session token with the configured secret. Drivers use it with the
publish command, the driver feed and the location API.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser.ID, "user", "", "User id")
	tokenCmd.Flags().StringVar(&tokenUser.Email, "email", "", "User email")
	tokenCmd.Flags().StringVar(&tokenUser.Name, "name", "", "Display name")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	config, fileClient, _, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	sessions, err := jwt.LoadSessionManager(config.Auth.SecretFile, config.Auth.Issuer, config.Auth.TokenTTL, fileClient)
	if err != nil {
		return err
	}

	token, err := sessions.IssueToken(tokenUser)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

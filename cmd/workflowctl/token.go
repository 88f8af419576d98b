package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/factory-workflow/internal/auth"
	"github.com/spec-kit/factory-workflow/internal/domain"
)

var (
	tokenActorID    string
	tokenRole       string
	tokenDepartment string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, ok := domain.ParseRole(tokenRole)
		if !ok {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		actor := domain.Actor{ID: tokenActorID, Role: role}
		if tokenDepartment != "" {
			actor.DepartmentID = &tokenDepartment
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expires, err := tokens.GenerateToken(actor)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintln(cmd.ErrOrStderr(), "expires", expires.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActorID, "id", "", "Actor id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleEmployee), "Actor role")
	tokenCmd.Flags().StringVar(&tokenDepartment, "department", "", "Department code for department responders")
	_ = tokenCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(tokenCmd)
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/agency-billing/api"
	"github.com/warp/agency-billing/billing"
	"github.com/warp/agency-billing/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token <employee-id>",
	Short: "Sign a development bearer token",
	Long: `Sign a token with JWT_SECRET for local testing. Production tokens are
issued by the identity service.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		auth := api.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)
		token, err := auth.Issue(billing.EmployeeID(args[0]), billing.Role(role), ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("role", "", "Role claim, matched against GRANTS_VIEW_ALL")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

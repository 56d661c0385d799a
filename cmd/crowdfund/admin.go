package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aidin1998/crowdfund/internal/database/migrations"
	"github.com/Aidin1998/crowdfund/internal/identities"
	"github.com/Aidin1998/crowdfund/pkg/validation"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative account tasks",
}

var ensureAdminCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create the configured admin account if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if email == "" {
			email = e.cfg.Auth.AdminEmail
		}
		if password == "" {
			password = e.cfg.Auth.AdminPassword
		}
		if email == "" || password == "" {
			return fmt.Errorf("admin email and password are required (--email/--password or ADMIN_EMAIL/ADMIN_PASSWORD)")
		}

		if _, err := migrations.NewMigrationRunner(e.db, e.logger).Bootstrap(cmd.Context()); err != nil {
			return err
		}
		svc := identities.NewService(e.logger, e.db, e.cfg.Auth, validation.NewValidator())
		created, err := svc.EnsureAdmin(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", email)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", email)
		}
		return nil
	},
}

func init() {
	ensureAdminCmd.Flags().String("email", "", "admin email (defaults to ADMIN_EMAIL)")
	ensureAdminCmd.Flags().String("password", "", "admin password (defaults to ADMIN_PASSWORD)")
	adminCmd.AddCommand(ensureAdminCmd)
}

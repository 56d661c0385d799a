package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aidin1998/crowdfund/internal/database/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE:  withRunner(runUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE:  withRunner(runDown),
		},
		&cobra.Command{
			Use:   "stamp <version>",
			Short: "Record a version as applied without running it",
			Args:  cobra.ExactArgs(1),
			RunE:  withRunner(runStamp),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE:  withRunner(runStatus),
		},
	)
}

func withRunner(fn func(cmd *cobra.Command, runner *migrations.MigrationRunner, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd, migrations.NewMigrationRunner(e.db, e.logger), args)
	}
}

func runUp(cmd *cobra.Command, runner *migrations.MigrationRunner, _ []string) error {
	applied, err := runner.Up(cmd.Context())
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
	}
	for _, v := range applied {
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
	}
	return nil
}

func runDown(cmd *cobra.Command, runner *migrations.MigrationRunner, _ []string) error {
	version, err := runner.Down(cmd.Context())
	if errors.Is(err, migrations.ErrNothingToRollback) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", version)
	return nil
}

func runStamp(cmd *cobra.Command, runner *migrations.MigrationRunner, args []string) error {
	if err := runner.Stamp(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stamped %s\n", args[0])
	return nil
}

func runStatus(cmd *cobra.Command, runner *migrations.MigrationRunner, _ []string) error {
	statuses, err := runner.Status(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
	for _, st := range statuses {
		applied := "-"
		if st.AppliedAt != nil {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", st.Version, applied, st.Description)
	}
	return w.Flush()
}

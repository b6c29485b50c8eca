package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jyl/universe/internal/bootstrap"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			if err := bootstrap.Migrate(cmd.Context(), cfg.Database); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s database is up to date\n", cfg.Database.Driver)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied state of every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return err
			}
			return bootstrap.MigrationStatus(cmd.Context(), cfg.Database, cmd.OutOrStdout())
		},
	})

	return cmd
}

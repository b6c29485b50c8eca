package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jyl/universe/internal/config"
)

// rootOptions holds global flags and the lazily loaded configuration.
type rootOptions struct {
	Verbose bool

	cfg *config.CLIConfig
}

// config loads the environment configuration on first use so commands
// that need no database, like collections, run without one.
func (o *rootOptions) config() (*config.CLIConfig, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.LoadCLIConfig()
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "universectl",
		Short:         "Administer the universe collection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newAPIKeyCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))
	cmd.AddCommand(newCollectionsCommand())

	return cmd
}

// closeQuietly closes c and logs a failure instead of returning it.
func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close", "resource", name, "error", err)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jyl/universe/internal/application/snapshot"
	"github.com/jyl/universe/internal/bootstrap"
	"github.com/jyl/universe/internal/catalog"
	"github.com/jyl/universe/internal/domain"
)

type snapshotExportOptions struct {
	Scope string
	All   bool
}

func newSnapshotCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export and inspect collection snapshots",
	}
	cmd.AddCommand(newSnapshotExportCommand(rootOpts))
	cmd.AddCommand(newSnapshotListCommand(rootOpts))
	cmd.AddCommand(newSnapshotShowCommand(rootOpts))
	return cmd
}

func newSnapshotExportCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &snapshotExportOptions{}

	cmd := &cobra.Command{
		Use:   "export [collection]",
		Short: "Export one list, or every list with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotExport(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "", "scope value of a scoped collection")
	cmd.Flags().BoolVar(&opts.All, "all", false, "export every list of every collection")

	return cmd
}

func runSnapshotExport(cmd *cobra.Command, rootOpts *rootOptions, opts *snapshotExportOptions, args []string) error {
	switch {
	case opts.All && len(args) > 0:
		return errors.New("--all takes no collection argument")
	case !opts.All && len(args) == 0:
		return errors.New("name a collection or pass --all")
	case opts.All && opts.Scope != "":
		return errors.New("--scope cannot be combined with --all")
	}

	return withSnapshotService(cmd, rootOpts, true, func(svc *snapshot.Service) error {
		if opts.All {
			infos, err := svc.ExportAll(cmd.Context())
			writeSnapshotTable(cmd.OutOrStdout(), infos)
			return err
		}
		snap, err := svc.Export(cmd.Context(), args[0], opts.Scope)
		if err != nil {
			return err
		}
		writeSnapshotTable(cmd.OutOrStdout(), []domain.SnapshotInfo{snap.SnapshotInfo})
		return nil
	})
}

func newSnapshotListCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshotService(cmd, rootOpts, false, func(svc *snapshot.Service) error {
				infos, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}
				writeSnapshotTable(cmd.OutOrStdout(), infos)
				return nil
			})
		},
	}
}

func newSnapshotShowCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <snapshot-id>",
		Short: "Print a stored snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshotService(cmd, rootOpts, false, func(svc *snapshot.Service) error {
				snap, err := svc.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := snapshot.Encode(snap)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

// withSnapshotService opens the sink and, when the command reads rows,
// the row store. Listing and reading snapshots only touch the sink.
func withSnapshotService(cmd *cobra.Command, rootOpts *rootOptions, needStore bool, fn func(*snapshot.Service) error) error {
	cfg, err := rootOpts.config()
	if err != nil {
		return err
	}
	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, err := bootstrap.OpenSink(ctx, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to open snapshot sink: %w", err)
	}
	defer closeQuietly("snapshot sink", sink)

	var stores bootstrap.Store
	if needStore {
		stores, err = bootstrap.OpenStore(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer closeQuietly("store", stores)
	}

	return fn(snapshot.NewService(cat, stores, sink))
}

func writeSnapshotTable(w io.Writer, infos []domain.SnapshotInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOLLECTION\tSCOPE\tROWS\tTAKEN AT")
	for _, info := range infos {
		scope := info.Scope
		if scope == "" {
			scope = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			info.ID, info.Collection, scope, info.RowCount, info.TakenAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

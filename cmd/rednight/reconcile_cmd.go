package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rednight/internal/config"
	"github.com/alfredjeanlab/rednight/internal/reconcile"
)

func (c *cli) reconcileCmd() *cobra.Command {
	var (
		dryRun bool
		grace  time.Duration
	)
	cmd := &cobra.Command{
		Use:               "reconcile",
		Short:             "Run one orphan sweep against the configured stores",
		GroupID:           "system",
		Args:              cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grace") {
				cfg.ReconcileGrace = grace
			}

			be, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			sweeper := reconcile.New(be.blobs, be.blobs, be.envs, be.configs, reconcile.Options{
				Grace:  cfg.ReconcileGrace,
				DryRun: dryRun || cfg.ReconcileDryRun,
				Logger: logger,
			})
			report, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			if c.jsonOutput {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report, dryRun || cfg.ReconcileDryRun)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.configPath, "config", "", "path to a TOML config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphaned payloads without deleting them")
	cmd.Flags().DurationVar(&grace, "grace", reconcile.DefaultGrace, "minimum age before an object or row counts as orphaned")
	return cmd
}

func printReport(w io.Writer, r *reconcile.Report, dryRun bool) {
	fmt.Fprintf(w, "Objects scanned:  %d\n", r.ObjectsScanned)
	fmt.Fprintf(w, "Rows scanned:     %d\n", r.RowsScanned)
	fmt.Fprintf(w, "Orphan payloads:  %d\n", len(r.OrphanBlobs))
	if dryRun {
		fmt.Fprintln(w, "Deleted:          0 (dry run)")
	} else {
		fmt.Fprintf(w, "Deleted:          %d\n", r.DeletedBlobs)
	}
	fmt.Fprintf(w, "Missing payloads: %d\n", len(r.MissingBlobs))
	for _, key := range r.OrphanBlobs {
		fmt.Fprintf(w, "  orphan   %s\n", key)
	}
	for _, key := range r.MissingBlobs {
		fmt.Fprintf(w, "  missing  %s\n", key)
	}
	for _, key := range r.Unparseable {
		fmt.Fprintf(w, "  skipped  %s\n", key)
	}
}

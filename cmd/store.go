package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/porttrack/app"
	"github.com/kilianp07/porttrack/config"
	coremetrics "github.com/kilianp07/porttrack/core/metrics"
	"github.com/kilianp07/porttrack/core/tracker"
	"github.com/kilianp07/porttrack/infra/logger"
	"github.com/kilianp07/porttrack/infra/remote"
	"github.com/kilianp07/porttrack/infra/storage"
)

var sweepOlderThan time.Duration

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Apply a file of position reports to the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove vessels not seen recently",
	RunE:  runSweep,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the tracking store as JSON",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the tracking store with a JSON document",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "staleness horizon (default from tracker.stale_after_hours)")
	rootCmd.AddCommand(ingestCmd, sweepCmd, exportCmd, importCmd)
}

// openTracker loads the persisted store. The returned function closes it.
func openTracker(cfg *config.Config) (*tracker.Tracker, func(), error) {
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	tr := tracker.New(cfg.Tracker, store, tracker.WithLogger(logger.New("tracker")))
	tr.Load(context.Background())
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.New("main").Errorf("store close: %v", err)
		}
	}
	return tr, closeFn, nil
}

// syncNow pushes the store to the remote and merges back, when configured.
func syncNow(ctx context.Context, cfg *config.Config, tr *tracker.Tracker) {
	if !cfg.Remote.Enabled {
		return
	}
	client := remote.NewClient(cfg.Remote, nil)
	s := app.NewSyncer(client, tr, 0, cfg.Remote.Timeout(), coremetrics.NopSink{}, logger.New("sync"))
	ctx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout())
	defer cancel()
	s.Sync(ctx)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	batch, err := tracker.DecodeBatch(raw)
	if err != nil {
		return fmt.Errorf("decode reports: %w", err)
	}
	tr, closeFn, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	ctx := cmd.Context()
	updated, err := tr.ApplyBatch(ctx, batch)
	if err != nil {
		return err
	}
	for _, v := range updated {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", v.ID, v.Status, v.TerminalName())
	}
	syncNow(ctx, cfg, tr)
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tr, closeFn, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	removed, err := tr.Sweep(cmd.Context(), sweepOlderThan)
	if err != nil {
		return err
	}
	for _, id := range removed {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	if len(removed) > 0 {
		syncNow(cmd.Context(), cfg, tr)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tr, closeFn, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tr.Export())
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tr, closeFn, err := openTracker(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := tr.Import(cmd.Context(), raw); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d vessels\n", len(tr.Export().Vessels))
	syncNow(cmd.Context(), cfg, tr)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"examdesk/internal/schedule"
	"examdesk/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the data directory and re-run the conflict report on change",
	Long: `Watches the data directory for table changes made by other tools or
editors. Whenever a table settles after a change, the conflict report
is re-run and printed. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(ctx context.Context, path string) {
		conflicts, catalog, err := desk.Conflicts(ctx)
		if err != nil {
			logger.Error("conflict scan failed", zap.String("path", path), zap.Error(err))
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "changed:", path)
		fmt.Fprint(cmd.OutOrStdout(), schedule.FormatConflicts(conflicts, catalog))
	}

	w, err := watch.New(cfg.Storage.Dir, handler, logger.Named("watch"))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), "watching", cfg.Storage.Dir)
	<-ctx.Done()
	return nil
}

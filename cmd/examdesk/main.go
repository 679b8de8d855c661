package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"examdesk/internal/config"
	"examdesk/internal/core"
	"examdesk/internal/logging"
)

var (
	// Global flags
	configPath string
	dataDir    string
	verbose    bool

	// Loaded in PersistentPreRunE, shared by every command
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "examdesk",
	Short: "examdesk - flat-file exam desk for rosters, seating and schedules",
	Long: `examdesk manages a directory of CSV-like tables: the student roster,
the test catalog, room seating placements and student credentials.

All state lives in plain files under the data directory; every write
goes through advisory file locks and atomic replaces, so concurrent
invocations and outside editors stay safe.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.Storage.Dir = dataDir
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newDesk builds the facade from the loaded configuration. Callers own
// the returned desk and must Close it.
func newDesk() (*core.Desk, error) {
	return core.NewDesk(cfg, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(passwdCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(countsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

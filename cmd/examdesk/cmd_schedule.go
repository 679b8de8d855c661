package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"examdesk/internal/schedule"
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Assign eligible students to room seats, one file per session",
	Long: `Reads the roster, catalog and rooms tables and writes one placement
file per (date, period) session. Sessions that cannot be seated are
reported; files for the rest are still written.`,
	Args: cobra.NoArgs,
	RunE: runAllocate,
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Report students double-booked within a session",
	Args:  cobra.NoArgs,
	RunE:  runConflicts,
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Count distinct seated students per test",
	Args:  cobra.NoArgs,
	RunE:  runCounts,
}

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Rebuild the roster from per-cohort CSV exports",
	Long: `Merges every *.csv under dir into the roster table. Each export must
carry usn, name, program (or branch), sec (or section) and eligible
columns; every other column is treated as a test, assigned where the
cell is 1. All files are checked before anything is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runAllocate(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	written, err := desk.Allocate(cmd.Context())
	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
	}
	return err
}

func runConflicts(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	conflicts, catalog, err := desk.Conflicts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), schedule.FormatConflicts(conflicts, catalog))
	return nil
}

func runCounts(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	counts, err := desk.Counts(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEST\tCODE\tNAME\tSTUDENTS")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.TestID, c.Code, c.Name, c.Students)
	}
	return w.Flush()
}

func runImport(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	n, err := desk.Import(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d students\n", n)
	return nil
}

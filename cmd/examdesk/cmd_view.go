package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"examdesk/internal/view"
)

var viewCmd = &cobra.Command{
	Use:   "view [key]",
	Short: "Show a student's exam schedule with seating",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func runView(cmd *cobra.Command, args []string) error {
	desk, err := newDesk()
	if err != nil {
		return err
	}
	defer func() { _ = desk.Close() }()

	rows, err := desk.View(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no scheduled tests for", args[0])
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPERIOD\tCODE\tTEST\tROOM\tBLOCK")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date, r.Period, r.Code, r.Name, seatField(r.Seat, r.Seat.Location), seatField(r.Seat, r.Seat.Block))
	}
	return w.Flush()
}

// seatField renders an unassigned seat as "-".
func seatField(s view.Seat, value string) string {
	if !s.Assigned {
		return "-"
	}
	return value
}

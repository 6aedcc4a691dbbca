package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

type seatStatus struct {
	ID     string            `json:"id"`
	Status engine.SeatStatus `json:"status"`
}

func availabilityCmd(opts *options) *cobra.Command {
	var begin, end string
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print the status of every seat for a window (default: rest of today)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseRange(begin, end, false)
			if err != nil {
				return err
			}
			p, err := opts.policy()
			if err != nil {
				return err
			}
			now, err := opts.clock()
			if err != nil {
				return err
			}
			snap, err := opts.snapshot(cmd.InOrStdin())
			if err != nil {
				return err
			}

			statuses := engine.CalculateAvailability(snap.Seats, snap.Reservations, window, p, now)
			var w engine.TimeRange
			if window != nil {
				w = *window
			} else {
				w, _ = engine.DefaultWindow(p, now)
			}
			out := make([]seatStatus, 0, len(snap.Seats))
			for _, s := range snap.Seats {
				out = append(out, seatStatus{ID: s.ID, Status: statuses[s.ID]})
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"window": w, "seats": out})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "window\t%s - %s\n", w.Start.In(p.Location).Format("2006-01-02 15:04"), w.End.In(p.Location).Format("15:04"))
			for _, s := range out {
				fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&begin, "begin", "", "window start, RFC 3339")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC 3339")
	return cmd
}

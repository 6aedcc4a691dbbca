package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

func validateCmd(opts *options) *cobra.Command {
	var seatID, userID, role, begin, end string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check whether a reservation request would be accepted",
		Long: `validate runs every booking rule against the snapshot and prints the
outcome.  It exits with status 2 when the request is rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRange(begin, end, true)
			if err != nil {
				return err
			}
			if !engine.Role(role).Valid() {
				return fmt.Errorf("--role must be %s or %s", engine.RoleStudent, engine.RoleOutsider)
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

			var seat *engine.Seat
			for i := range snap.Seats {
				if snap.Seats[i].ID == seatID {
					seat = &snap.Seats[i]
				}
			}
			if seat == nil {
				return fmt.Errorf("seat %q not in snapshot", seatID)
			}
			var onSeat, byUser []engine.Reservation
			for _, res := range snap.Reservations {
				if res.SeatID == seatID {
					onSeat = append(onSeat, res)
				}
				if res.UserID == userID {
					byUser = append(byUser, res)
				}
			}

			outcome := engine.ValidateReservation(engine.ValidationInput{
				Proposal:         engine.Proposal{SeatID: seatID, UserID: userID, Role: engine.Role(role), Range: *r},
				Seat:             *seat,
				SeatReservations: onSeat,
				UserReservations: byUser,
				Policy:           p,
				Now:              now,
			})

			if opts.asJSON {
				if err := writeJSON(cmd.OutOrStdout(), outcome); err != nil {
					return err
				}
			} else if outcome.Accepted {
				fmt.Fprintln(cmd.OutOrStdout(), "accepted")
			} else if outcome.Detail != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s (%s)\n", outcome.Reason, outcome.Detail)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", outcome.Reason)
			}
			if !outcome.Accepted {
				return errRejected
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&seatID, "seat", "", "seat code")
	f.StringVar(&userID, "user", "", "requesting user id")
	f.StringVar(&role, "role", string(engine.RoleStudent), "booking role: student or outsider")
	f.StringVar(&begin, "begin", "", "reservation start, RFC 3339")
	f.StringVar(&end, "end", "", "reservation end, RFC 3339")
	_ = cmd.MarkFlagRequired("seat")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

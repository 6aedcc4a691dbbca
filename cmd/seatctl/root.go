package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/library-seat-reservation/internal/config"
	"github.com/iliyamo/library-seat-reservation/internal/engine"
)

// errRejected makes validate exit with status 2 after printing the outcome.
var errRejected = errors.New("proposal rejected")

type options struct {
	policyPath   string
	snapshotPath string
	now          string
	asJSON       bool
}

// snapshot is the input file: the seats and every reservation the
// evaluation should see.
type snapshot struct {
	Seats        []engine.Seat        `json:"seats"`
	Reservations []engine.Reservation `json:"reservations"`
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "seatctl",
		Short:         "Evaluate library seat availability and reservation requests offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.PersistentFlags()
	f.StringVar(&opts.policyPath, "policy", "policy.toml", "policy TOML file; missing keys take the defaults")
	f.StringVar(&opts.snapshotPath, "snapshot", "", "JSON snapshot of seats and reservations (- for stdin)")
	f.StringVar(&opts.now, "now", "", "evaluation instant, RFC 3339 (default: current time)")
	f.BoolVar(&opts.asJSON, "json", false, "print JSON")
	_ = cmd.MarkPersistentFlagRequired("snapshot")

	cmd.AddCommand(availabilityCmd(opts), validateCmd(opts))
	return cmd
}

func (o *options) policy() (engine.Policy, error) {
	doc, err := config.LoadPolicyFile(o.policyPath)
	if err != nil {
		return engine.Policy{}, err
	}
	return doc.Compile()
}

func (o *options) clock() (time.Time, error) {
	if o.now == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, o.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: %w", err)
	}
	return t, nil
}

func (o *options) snapshot(stdin io.Reader) (snapshot, error) {
	var snap snapshot
	r := stdin
	if o.snapshotPath != "-" {
		f, err := os.Open(o.snapshotPath)
		if err != nil {
			return snap, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// parseRange reads --begin/--end.  required reports whether both must be
// present; otherwise both or neither.
func parseRange(begin, end string, required bool) (*engine.TimeRange, error) {
	if begin == "" && end == "" && !required {
		return nil, nil
	}
	if begin == "" || end == "" {
		return nil, errors.New("--begin and --end must be given together")
	}
	b, err := time.Parse(time.RFC3339, begin)
	if err != nil {
		return nil, fmt.Errorf("--begin: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return nil, fmt.Errorf("--end: %w", err)
	}
	return &engine.TimeRange{Start: b, End: e}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

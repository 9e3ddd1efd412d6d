package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stimsync/internal/store"
)

// TimingOptions holds flags for the timing command.
type TimingOptions struct {
	*RootOptions
	Database string
}

// TimingEvent is one onset as the timing command reports it.
type TimingEvent struct {
	Seq       int64     `json:"seq"`
	Modality  string    `json:"modality"`
	Point     string    `json:"point"`
	Iteration int       `json:"iteration"`
	At        time.Time `json:"at"`
}

// TimingReport is the timing command's result.
type TimingReport struct {
	Session store.Session  `json:"session"`
	Events  []TimingEvent  `json:"events"`
	Actions []store.Action `json:"actions"`
	Onsets  map[string]int `json:"onsets"` // per modality
}

// NewTimingCommand creates the timing command.
func NewTimingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timing <session-id>",
		Short: "Show a session's recorded onsets and handed-off actions",
		Long: `Show the instruction and feedback onsets recorded for a session, in
recording order, followed by the backend actions the dispatchers handed off.

The database defaults to $STIMSYNC_DB, then ./stimsync.db.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTiming(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	return cmd
}

func runTiming(opts *TimingOptions, sessionID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	sess, err := st.ReadSession(ctx, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("session %s not found", sessionID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, "failed to read session", err)
	}

	events, err := st.ReadTimingEvents(ctx, sessionID)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, "failed to read timing events", err)
	}
	actions, err := st.ReadActions(ctx, sessionID)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, "failed to read actions", err)
	}

	report := TimingReport{
		Session: sess,
		Events:  make([]TimingEvent, 0, len(events)),
		Actions: actions,
		Onsets:  make(map[string]int),
	}
	for _, ev := range events {
		report.Events = append(report.Events, TimingEvent{
			Seq:       ev.Seq,
			Modality:  ev.Modality,
			Point:     ev.Point.String(),
			Iteration: ev.Iteration,
			At:        ev.At,
		})
		report.Onsets[ev.Modality]++
	}

	lines := []string{fmt.Sprintf("Session %s (%s)", sess.ID, sess.Name)}
	lines = append(lines, "Onsets:")
	for _, ev := range report.Events {
		lines = append(lines, fmt.Sprintf("  %4d  %s  %-8s  %-17s  %d",
			ev.Seq, ev.At.Format(time.RFC3339Nano), ev.Modality, ev.Point, ev.Iteration))
	}
	lines = append(lines, "Actions:")
	for _, a := range actions {
		lines = append(lines, fmt.Sprintf("  %s  %-8s  %-12s  %s",
			a.At.Format(time.RFC3339Nano), a.Modality, a.Op, a.Payload))
	}
	for _, m := range sortedKeys(report.Onsets) {
		lines = append(lines, fmt.Sprintf("%s: %d onsets", m, report.Onsets[m]))
	}
	return formatter.Report(report, lines)
}

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stimsync/internal/backend"
	"github.com/roach88/stimsync/internal/config"
	"github.com/roach88/stimsync/internal/dispatch"
	"github.com/roach88/stimsync/internal/session"
	"github.com/roach88/stimsync/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Script   string
	Database string

	// IDs overrides the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs session.IDGenerator

	// Speaker overrides the tone backend's audio output (for testing).
	Speaker backend.Speaker
}

// RunSummary is the run command's result.
type RunSummary struct {
	Session  string                   `json:"session"`
	Name     string                   `json:"name"`
	Database string                   `json:"database"`
	Lanes    map[string]session.Stats `json:"lanes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a presentation session",
		Long: `Run a presentation session described by a CUE config file.

One dispatcher per enabled modality drains its command queue into the
journal backend (and the system speaker when tone is enabled). Commands come
from a YAML script (--script), from the config's inbox directory, or both.
A scripted session ends when the script has been played and the queues have
drained; otherwise it runs until interrupted.

Example:
  stimsync run --script rehearsal.yaml session.cue
  stimsync run --db /tmp/nf.db session.cue --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "YAML script to play into the session")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides the config)")

	return cmd
}

func runSession(opts *RunOptions, configPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(configPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid session config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr(), cfg.Level())
	slog.SetDefault(logger)

	var script *session.Script
	if opts.Script != "" {
		script, err = session.LoadScript(opts.Script)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScript, "invalid script", err)
		}
	}
	if script == nil && cfg.Inbox == "" {
		logger.Warn("no script and no inbox: the session only ends on interrupt")
	}

	snapshot, err := cfg.Snapshot()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "failed to snapshot config", err)
	}

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := session.Start(ctx, st, session.Options{
		Name:           cfg.Name,
		Modalities:     cfg.Modalities(),
		Backend:        cfg.BackendConfig(),
		Renderers:      renderers(cfg, opts),
		Cadence:        cfg.CadenceDuration(),
		Script:         script,
		Inbox:          cfg.Inbox,
		ConfigSnapshot: snapshot,
		IDs:            opts.IDs,
		Logger:         logger,
	})
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeSessionStart, "failed to start session", err)
	}
	formatter.VerboseLog("session %s started", sess.ID())

	runErr := sess.Run(ctx)
	closeErr := sess.Close(context.Background())
	if runErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "session failed", runErr)
	}
	if closeErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, "failed to close session", closeErr)
	}

	summary := RunSummary{
		Session:  sess.ID(),
		Name:     cfg.Name,
		Database: cfg.Database,
		Lanes:    make(map[string]session.Stats),
	}
	lines := []string{fmt.Sprintf("Session %s (%s) finished", sess.ID(), cfg.Name)}
	stats := sess.Stats()
	for _, m := range sess.Modalities() {
		s := stats[m]
		summary.Lanes[string(m)] = s
		lines = append(lines, fmt.Sprintf("  %-8s dispatched=%d null=%d failed=%d",
			m, s.Dispatched, s.Nulls, s.Failures))
	}
	return formatter.Report(summary, lines)
}

// renderers returns the rendering backends the config enables.
func renderers(cfg *config.Session, opts *RunOptions) map[dispatch.Modality]backend.Backend {
	out := make(map[dispatch.Modality]backend.Backend)
	if cfg.Tone {
		var toneOpts []backend.ToneOption
		if opts.Speaker != nil {
			toneOpts = append(toneOpts, backend.WithSpeaker(opts.Speaker))
		}
		out[dispatch.Auditory] = backend.NewTone(toneOpts...)
	}
	return out
}

// sortedKeys returns the map's keys in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/stimsync/internal/command"
	"github.com/roach88/stimsync/internal/dispatch"
)

// DefaultRescan is the inbox's periodic rescan interval. Rescans pick up
// files whose events were coalesced or lost.
const DefaultRescan = time.Second

// Inbox is a drop-directory producer.
//
// A writer drops `<modality>-<sequence>.yaml` files into the directory. Each
// file holds one or more YAML command documents; a `null` document is the
// null sentinel. Writers must create the file under another name (for
// example `.tmp`) and rename it into place, because a file is consumed as
// soon as it is seen. Files are handled in name order, their commands pushed
// to the modality's queue, and then removed.
type Inbox struct {
	dir     string
	targets map[dispatch.Modality]Pusher
	rescan  time.Duration
	logger  *slog.Logger
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithRescan sets the periodic rescan interval.
func WithRescan(d time.Duration) InboxOption {
	return func(in *Inbox) {
		if d > 0 {
			in.rescan = d
		}
	}
}

// WithInboxLogger sets the inbox logger.
func WithInboxLogger(logger *slog.Logger) InboxOption {
	return func(in *Inbox) { in.logger = logger }
}

// NewInbox creates an inbox on dir feeding targets.
func NewInbox(dir string, targets map[dispatch.Modality]Pusher, opts ...InboxOption) *Inbox {
	in := &Inbox{
		dir:     dir,
		targets: targets,
		rescan:  DefaultRescan,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("inbox", dir)
	return in
}

// Run watches the directory until ctx is cancelled. The directory is created
// if missing, and files already present are consumed first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("ensure inbox dir %s: %w", in.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	ticker := time.NewTicker(in.rescan)
	defer ticker.Stop()

	in.logger.Info("inbox watching")
	in.Scan()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("inbox stopping: context cancelled")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)) &&
				isCommandFile(event.Name) {
				in.logger.Debug("fsnotify event", "op", event.Op.String(), "file", event.Name)
				in.Scan()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("fsnotify error", "error", err)

		case <-ticker.C:
			in.Scan()
		}
	}
}

// Scan consumes every command file currently in the directory, in name
// order, and returns how many commands it pushed. Files that fail to parse
// are renamed with a `.rejected` suffix and left for an operator.
func (in *Inbox) Scan() int {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		in.logger.Error("inbox scan failed", "error", err)
		return 0
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isCommandFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	pushed := 0
	for _, name := range names {
		n, err := in.consume(filepath.Join(in.dir, name))
		pushed += n
		if err != nil {
			in.logger.Error("inbox file rejected", "file", name, "error", err)
			path := filepath.Join(in.dir, name)
			if rerr := os.Rename(path, path+".rejected"); rerr != nil {
				in.logger.Error("failed to set rejected file aside", "file", name, "error", rerr)
			}
		}
	}
	return pushed
}

func (in *Inbox) consume(path string) (int, error) {
	m, err := modalityOf(filepath.Base(path))
	if err != nil {
		return 0, err
	}
	q, ok := in.targets[m]
	if !ok {
		return 0, fmt.Errorf("modality %s is not enabled", m)
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	cmds, err := command.DecodeStream(f)
	f.Close()
	if err != nil {
		return 0, err
	}

	if err := os.Remove(path); err != nil {
		return 0, fmt.Errorf("remove consumed file: %w", err)
	}

	pushed := 0
	for _, c := range cmds {
		if !q.Push(c) {
			in.logger.Warn("queue closed, dropping inbox commands", "file", filepath.Base(path), "dropped", len(cmds)-pushed)
			break
		}
		pushed++
	}
	in.logger.Debug("inbox file consumed", "file", filepath.Base(path), "commands", pushed)
	return pushed, nil
}

func isCommandFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// modalityOf extracts the modality from a `<modality>-<rest>.yaml` name.
func modalityOf(name string) (dispatch.Modality, error) {
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return "", fmt.Errorf("file name %q has no modality prefix", name)
	}
	m := dispatch.Modality(prefix)
	if !m.Valid() {
		return "", fmt.Errorf("unknown modality %q", prefix)
	}
	return m, nil
}

package backend

import (
	"context"
	"errors"

	"github.com/roach88/stimsync/internal/command"
)

// Fanout forwards every call to each of its backends in order. It lets a
// session journal the actions it hands to a rendering backend.
type Fanout []Backend

// Prepare prepares each backend and stops at the first failure.
func (f Fanout) Prepare(ctx context.Context, cfg Config) error {
	for _, b := range f {
		if err := b.Prepare(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// BlankScreen forwards to every backend and joins their errors.
func (f Fanout) BlankScreen() error {
	return f.each(func(b Backend) error { return b.BlankScreen() })
}

// PlayTask forwards to every backend and joins their errors.
func (f Fanout) PlayTask() error {
	return f.each(func(b Backend) error { return b.PlayTask() })
}

// Present forwards the same payload to every backend.
func (f Fanout) Present(payload command.Payload) error {
	return f.each(func(b Backend) error { return b.Present(payload) })
}

// Close closes every backend, even after a failure.
func (f Fanout) Close() error {
	return f.each(func(b Backend) error { return b.Close() })
}

func (f Fanout) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range f {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

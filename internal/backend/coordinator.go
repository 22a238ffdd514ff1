package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/samber/lo"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/models"
)

// Coordinator fans writes out to every enabled backend and serves reads
// from the primary one. There is no cross-backend transaction: a write may
// succeed on some backends and fail on others.
type Coordinator struct {
	backends []Backend
	logger   *slog.Logger
}

// NewCoordinator returns a Coordinator over backends in configured order.
func NewCoordinator(logger *slog.Logger, backends ...Backend) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{backends: backends, logger: logger}
}

// Backends returns every backend in configured order.
func (c *Coordinator) Backends() []Backend { return c.backends }

// Primary returns the first enabled backend, or nil.
func (c *Coordinator) Primary() Backend {
	for _, b := range c.backends {
		if b.Enabled() {
			return b
		}
	}
	return nil
}

// Lookup returns the backend with the given name.
func (c *Coordinator) Lookup(name string) (Backend, bool) {
	return lo.Find(c.backends, func(b Backend) bool { return b.Name() == name })
}

// Save writes the note to every enabled backend and returns the timestamp
// the first successful backend stored it at. Later backends are asked for
// that timestamp, so a collision shift carries over to them.
func (c *Coordinator) Save(ctx context.Context, ts int64, text string) (int64, error) {
	return c.settle("save", ts, func(b Backend, at int64) (int64, error) { return b.SaveNote(ctx, at, text) })
}

// Delete removes the note from every enabled backend.
func (c *Coordinator) Delete(ctx context.Context, ts int64) error {
	return c.fanOut("delete", ts, func(b Backend) error { return b.DeleteNote(ctx, ts) })
}

// Update replaces the note at oldTS with text at newTS on every enabled
// backend. Like Save, it returns the timestamp the replacement settled on.
func (c *Coordinator) Update(ctx context.Context, oldTS, newTS int64, text string) (int64, error) {
	return c.settle("update", newTS, func(b Backend, at int64) (int64, error) { return b.UpdateNote(ctx, oldTS, at, text) })
}

// Find queries the primary backend only.
func (c *Coordinator) Find(ctx context.Context, terms []string) ([]models.Note, error) {
	primary := c.Primary()
	if primary == nil {
		return nil, fmt.Errorf("backend: no enabled backend: %w", apperr.ErrConfig)
	}
	return primary.FindNotes(ctx, terms)
}

// CommonWords returns the sorted union of every enabled backend's vocabulary.
func (c *Coordinator) CommonWords(ctx context.Context) ([]string, error) {
	var words []string
	for _, b := range c.backends {
		if !b.Enabled() {
			continue
		}
		w, err := b.CommonWords(ctx)
		if err != nil {
			return nil, fmt.Errorf("backend: %s: common words: %w", b.Name(), err)
		}
		words = append(words, w...)
	}
	words = lo.Uniq(words)
	slices.Sort(words)
	return words, nil
}

// Close closes every backend holding resources.
func (c *Coordinator) Close() error {
	var errs []error
	for _, b := range c.backends {
		if closer, ok := b.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("backend: close %s: %w", b.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// settle fans a write out in order. The first backend to succeed fixes the
// timestamp; a later backend storing elsewhere is logged, not failed.
func (c *Coordinator) settle(op string, ts int64, fn func(b Backend, at int64) (int64, error)) (int64, error) {
	at, settled := ts, false
	err := c.fanOut(op, ts, func(b Backend) error {
		got, err := fn(b, at)
		if err != nil {
			return err
		}
		switch {
		case !settled:
			at, settled = got, true
		case got != at:
			c.logger.Warn("backend: "+op+" stored at a different timestamp",
				slog.String("backend", b.Name()),
				slog.Int64("timestamp", at),
				slog.Int64("stored", got),
			)
		}
		return nil
	})
	return at, err
}

// fanOut runs fn on every enabled backend. A failure never stops the
// remaining backends; all failures are joined.
func (c *Coordinator) fanOut(op string, ts int64, fn func(Backend) error) error {
	var errs []error
	for _, b := range c.backends {
		if !b.Enabled() {
			continue
		}
		if err := fn(b); err != nil {
			c.logger.Error("backend: "+op+" failed",
				slog.String("backend", b.Name()),
				slog.Int64("timestamp", ts),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Package noteservice is the application layer shared by the CLI, the HTTP
// API and the MCP server: quick capture, search, edits and vocabulary.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/plugins"
)

// Store is the write fan-out and read path the service drives.
// *backend.Coordinator implements it.
type Store interface {
	Save(ctx context.Context, ts int64, text string) (int64, error)
	Delete(ctx context.Context, ts int64) error
	Update(ctx context.Context, oldTS, newTS int64, text string) (int64, error)
	Find(ctx context.Context, terms []string) ([]models.Note, error)
	CommonWords(ctx context.Context) ([]string, error)
}

// Notifier receives successful changes. *sse.Broker implements it.
type Notifier interface {
	NoteSaved(ts int64, text string)
	NoteDeleted(ts int64)
	NoteUpdated(oldTS, newTS int64, text string)
}

// Service coordinates note operations across the configured backends.
type Service struct {
	store    Store
	plugins  *plugins.Manager
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for quick capture.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a note service over store.
func NewService(store Store, pm *plugins.Manager, opts ...Option) *Service {
	if pm == nil {
		pm = &plugins.Manager{}
	}
	s := &Service{
		store:   store,
		plugins: pm,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add captures text at the current second. Unless a plugin exempts it, the
// text is prefixed with "today: ". It returns the timestamp the note was
// stored at, which is later than now when that second was taken.
func (s *Service) Add(ctx context.Context, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if err := checkText("add", text); err != nil {
		return 0, err
	}
	return s.Save(ctx, s.now().UTC().Unix(), s.plugins.PrepareNote(text))
}

// Save writes text verbatim at ts to every backend and returns the
// timestamp it was stored at.
func (s *Service) Save(ctx context.Context, ts int64, text string) (int64, error) {
	if ts < 0 {
		return 0, fmt.Errorf("noteservice: save: negative timestamp: %w", apperr.ErrInvalid)
	}
	if err := checkText("save", text); err != nil {
		return 0, err
	}
	stored, err := s.store.Save(ctx, ts, text)
	if err != nil {
		return 0, err
	}
	s.logger.Info("note saved", slog.Int64("timestamp", stored))
	if s.notifier != nil {
		s.notifier.NoteSaved(stored, text)
	}
	return stored, nil
}

// Find searches the primary backend. The empty-result sentinel is removed,
// so no matches is an empty slice.
func (s *Service) Find(ctx context.Context, terms []string) ([]models.Note, error) {
	notes, err := s.store.Find(ctx, terms)
	if err != nil {
		return nil, err
	}
	return models.Present(notes), nil
}

// Delete removes the note at ts from every backend.
func (s *Service) Delete(ctx context.Context, ts int64) error {
	if err := s.store.Delete(ctx, ts); err != nil {
		return err
	}
	s.logger.Info("note deleted", slog.Int64("timestamp", ts))
	if s.notifier != nil {
		s.notifier.NoteDeleted(ts)
	}
	return nil
}

// Update replaces the note at oldTS with text at newTS and returns the
// timestamp the replacement was stored at.
func (s *Service) Update(ctx context.Context, oldTS, newTS int64, text string) (int64, error) {
	if newTS < 0 {
		return 0, fmt.Errorf("noteservice: update: negative timestamp: %w", apperr.ErrInvalid)
	}
	if err := checkText("update", text); err != nil {
		return 0, err
	}
	stored, err := s.store.Update(ctx, oldTS, newTS, text)
	if err != nil {
		return 0, err
	}
	s.logger.Info("note updated", slog.Int64("old_timestamp", oldTS), slog.Int64("timestamp", stored))
	if s.notifier != nil {
		s.notifier.NoteUpdated(oldTS, stored, text)
	}
	return stored, nil
}

// checkText enforces one non-blank line per note.
func checkText(op, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("noteservice: %s: text is required: %w", op, apperr.ErrInvalid)
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("noteservice: %s: text must be a single line: %w", op, apperr.ErrInvalid)
	}
	return nil
}

// Words returns the auto-completion vocabulary.
func (s *Service) Words(ctx context.Context) ([]string, error) {
	words, err := s.store.CommonWords(ctx)
	if err != nil {
		return nil, err
	}
	if words == nil {
		words = []string{}
	}
	return words, nil
}

package filestore

import (
	"context"

	"github.com/starford/notelog/internal/models"
)

// Name returns the backend name.
func (s *Store) Name() string { return Name }

// Enabled reports whether the backend is listed in the configuration.
func (s *Store) Enabled() bool { return s.enabled }

// SaveNote appends a note at ts. The file keeps duplicate timestamps, so ts
// is always the one stored.
func (s *Store) SaveNote(ctx context.Context, ts int64, text string) (int64, error) {
	if err := s.Insert(ctx, ts, text); err != nil {
		return 0, err
	}
	return ts, nil
}

// DeleteNote removes every line written at ts.
func (s *Store) DeleteNote(ctx context.Context, ts int64) error {
	return s.Delete(ctx, ts)
}

// UpdateNote deletes the note at oldTS and saves text at newTS. The two
// steps are not atomic.
func (s *Store) UpdateNote(ctx context.Context, oldTS, newTS int64, text string) (int64, error) {
	if err := s.Delete(ctx, oldTS); err != nil {
		return 0, err
	}
	return s.SaveNote(ctx, newTS, text)
}

// FindNotes builds a request from raw terms and scans the file. No matches
// yield an empty slice.
func (s *Store) FindNotes(ctx context.Context, terms []string) ([]models.Note, error) {
	return s.Find(ctx, s.builder.Build(terms))
}

// CommonWords is not tracked by the file backend.
func (s *Store) CommonWords(context.Context) ([]string, error) {
	return []string{}, nil
}

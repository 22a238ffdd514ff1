package kvstore

import (
	"context"

	"github.com/starford/notelog/internal/models"
)

// Name returns the backend name.
func (s *Store) Name() string { return Name }

// Enabled reports whether the backend is listed in the configuration.
func (s *Store) Enabled() bool { return s.enabled }

// SaveNote inserts text at ts, shifting forward on collision, and returns
// the timestamp used.
func (s *Store) SaveNote(ctx context.Context, ts int64, text string) (int64, error) {
	return s.Insert(ctx, ts, text)
}

// DeleteNote removes the note at ts.
func (s *Store) DeleteNote(ctx context.Context, ts int64) error {
	return s.Delete(ctx, ts)
}

// UpdateNote deletes the note at oldTS and inserts text at newTS. A failure
// between the two steps loses the note.
func (s *Store) UpdateNote(ctx context.Context, oldTS, newTS int64, text string) (int64, error) {
	if err := s.Delete(ctx, oldTS); err != nil {
		return 0, err
	}
	return s.Insert(ctx, newTS, text)
}

// FindNotes builds a request from raw terms and queries the indices. No
// matches yield []models.Note{models.Absent}.
func (s *Store) FindNotes(ctx context.Context, terms []string) ([]models.Note, error) {
	return s.Find(ctx, s.builder.Build(terms))
}

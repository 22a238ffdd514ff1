package backend

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/notelog/internal/models"
)

// ProgressFunc is called after each migrated note; i counts from 1.
type ProgressFunc func(i, n int, note models.Note)

// Migrate copies every note from src into dst in ascending timestamp order.
// It stops at the first failed save; notes already copied stay in dst.
func Migrate(ctx context.Context, src, dst Backend, progress ProgressFunc) (int, error) {
	notes, err := src.FindNotes(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("backend: migrate: read %s: %w", src.Name(), err)
	}
	notes = models.Present(notes)
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	for i, n := range notes {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := dst.SaveNote(ctx, n.Timestamp, n.Text); err != nil {
			return i, fmt.Errorf("backend: migrate: save %d into %s: %w", n.Timestamp, dst.Name(), err)
		}
		if progress != nil {
			progress(i+1, len(notes), n)
		}
	}
	return len(notes), nil
}

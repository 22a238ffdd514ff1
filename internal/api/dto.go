package api

import (
	"time"

	"github.com/starford/notelog/internal/models"
)

// NoteDTO is a note in API responses.
type NoteDTO struct {
	Timestamp int64     `json:"timestamp" example:"1373500800" validate:"required"`
	Time      time.Time `json:"time" validate:"required"`
	Text      string    `json:"text" example:"today: this is a simple test #yolo" validate:"required"`
}

// NotesResponse wraps search results.
type NotesResponse struct {
	Notes []NoteDTO `json:"notes" validate:"required"`
}

// CreateNoteRequest is the request body for saving a note. Without a
// timestamp the note is captured now and may receive the "today: " prefix.
type CreateNoteRequest struct {
	Text      string `json:"text" example:"this is a simple test #yolo" validate:"required"`
	Timestamp *int64 `json:"timestamp,omitempty" example:"1373500800"`
}

// UpdateNoteRequest replaces a note. Timestamp defaults to the current one.
type UpdateNoteRequest struct {
	Text      string `json:"text" example:"today: corrected text" validate:"required"`
	Timestamp *int64 `json:"timestamp,omitempty" example:"1373500900"`
}

// TimestampResponse reports the timestamp a note was stored at.
type TimestampResponse struct {
	Timestamp int64 `json:"timestamp" example:"1373500800" validate:"required"`
}

// WordsResponse wraps the auto-completion vocabulary.
type WordsResponse struct {
	Words []string `json:"words" validate:"required"`
}

func toDTOs(notes []models.Note) []NoteDTO {
	out := make([]NoteDTO, len(notes))
	for i, n := range notes {
		out[i] = NoteDTO{Timestamp: n.Timestamp, Time: n.Time(), Text: n.Text}
	}
	return out
}

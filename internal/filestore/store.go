// Package filestore implements the flat-file note backend: one append-only,
// human-readable text file with a header per calendar day.
package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/metrics"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/parser"
	"github.com/starford/notelog/internal/search"
	"github.com/starford/notelog/internal/tokenizer"
)

// Name is the backend name used in configuration.
const Name = "file"

// BackupSuffix is appended to the notes file path to name its backup copy.
const BackupSuffix = ".bak"

// Options configures a Store.
type Options struct {
	Path    string
	Backup  bool
	Enabled bool
	Builder *search.Builder
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Store is the file-backed note backend. It does no locking: concurrent
// writers from other processes may interleave.
type Store struct {
	path    string
	backup  bool
	enabled bool
	builder *search.Builder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New returns a Store for the notes file at opts.Path. The file need not
// exist yet, but its directory must by the time a note is inserted.
func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("filestore: path is required")
	}
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve path: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:    abs,
		backup:  opts.Backup,
		enabled: opts.Enabled,
		builder: opts.Builder,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Path returns the absolute notes file path.
func (s *Store) Path() string { return s.path }

// BackupPath returns the path of the backup copy.
func (s *Store) BackupPath() string { return s.path + BackupSuffix }

// Insert appends a note line, preceded by a day header when no header for
// the note's UTC day exists anywhere in the file.
func (s *Store) Insert(ctx context.Context, ts int64, text string) (err error) {
	defer s.observe("insert", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("filestore: insert %d: line break in note text: %w", ts, apperr.ErrInvalid)
	}
	if err := s.Backup(); err != nil {
		return err
	}

	header := parser.DateHeader(ts)
	found, err := s.hasLine(header)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open %s: %w", s.path, err)
	}
	w := bufio.NewWriter(f)
	if !found {
		fmt.Fprintln(w, parser.HeaderRule)
		fmt.Fprintln(w, header)
	}
	fmt.Fprintln(w, parser.FormatLine(ts, text))
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("filestore: append: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	s.logger.Debug("filestore: inserted", slog.Int64("timestamp", ts), slog.Bool("new_day", !found))
	return nil
}

// Delete rewrites the file without any line written at ts. Headers and all
// other lines are kept verbatim, even when a day section becomes empty.
func (s *Store) Delete(ctx context.Context, ts int64) (err error) {
	defer s.observe("delete", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("filestore: delete on missing file", slog.Int64("timestamp", ts))
		return nil
	}
	if err != nil {
		return fmt.Errorf("filestore: read %s: %w", s.path, err)
	}
	if err := s.Backup(); err != nil {
		return err
	}

	prefix := parser.LinePrefix(ts)
	var b strings.Builder
	b.Grow(len(data))
	removed := 0
	for _, line := range strings.SplitAfter(string(data), "\n") {
		if strings.HasPrefix(line, prefix) {
			removed++
			continue
		}
		b.WriteString(line)
	}
	if removed == 0 {
		return nil
	}
	if err := writeFileAtomic(s.path, []byte(b.String())); err != nil {
		return err
	}
	s.logger.Debug("filestore: deleted", slog.Int64("timestamp", ts), slog.Int("lines", removed))
	return nil
}

// Find scans the file and returns matching notes in file order. Headers and
// malformed lines are skipped. A missing file has no notes.
func (s *Store) Find(ctx context.Context, req search.Request) (notes []models.Note, err error) {
	defer s.observe("find", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notes = []models.Note{}
	err = s.eachLine(func(line string) bool {
		ts, text, ok := parser.ParseLine(line)
		if ok && Matches(req, ts, text) {
			notes = append(notes, models.Note{Timestamp: ts, Text: text})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSearch(Name, len(notes))
	return notes, nil
}

// Matches reports whether a note satisfies req. Terms match whole tokens as
// produced by the tokenizer, so both backends agree on what a word is.
func Matches(req search.Request, ts int64, text string) bool {
	words := tokenizer.Words(text)
	if !lo.Every(words, req.Include) {
		return false
	}
	if lo.Some(words, req.Exclude) {
		return false
	}
	if req.Date != nil && !search.SameDay(time.Unix(ts, 0), *req.Date) {
		return false
	}
	return true
}

// Backup copies the notes file to its .bak sibling when backups are enabled.
func (s *Store) Backup() error {
	if !s.backup {
		return nil
	}
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := copyFile(s.path, s.BackupPath()); err != nil {
		return fmt.Errorf("filestore: backup: %w", err)
	}
	return nil
}

// Restore overwrites the notes file with its backup copy. It does nothing
// when backups are disabled.
func (s *Store) Restore() error {
	if !s.backup {
		return nil
	}
	data, err := os.ReadFile(s.BackupPath())
	if err != nil {
		return fmt.Errorf("filestore: restore: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("filestore: restore: %w", err)
	}
	s.logger.Info("filestore: restored from backup", slog.String("path", s.path))
	return nil
}

func (s *Store) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(Name, op, start, *err)
}

// hasLine reports whether the file contains a line exactly equal to want.
func (s *Store) hasLine(want string) (bool, error) {
	found := false
	err := s.eachLine(func(line string) bool {
		if strings.TrimRight(line, "\r\n") == want {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// eachLine streams the file line by line until fn returns false. A missing
// file is treated as empty.
func (s *Store) eachLine(fn func(line string) bool) error {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("filestore: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" && !fn(line) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("filestore: read %s: %w", s.path, err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// writeFileAtomic writes content: tmp file → fsync → rename.
func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".notelog-tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("filestore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("filestore: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("filestore: rename: %w", err)
	}
	success = true
	return nil
}

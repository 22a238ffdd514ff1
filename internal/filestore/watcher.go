package filestore

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notelog/internal/checksum"
)

// ChangeCallback is called after the notes file content changed on disk.
type ChangeCallback func(path string)

// Watch watches the notes file until ctx is cancelled and calls cb whenever
// its content changes, whichever process wrote it. The parent directory is
// watched rather than the file so atomic renames are seen.
//
// Bursts of events are debounced; cb fires only when the content checksum
// differs from the last one observed.
func (s *Store) Watch(ctx context.Context, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}

	s.logger.Info("watcher: started", slog.String("path", s.path))

	last := s.fileChecksum()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(100 * time.Millisecond)
			debounceCh = debounce.C
		} else {
			debounce.Reset(100 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-debounceCh:
			cs := s.fileChecksum()
			if cs == last {
				continue
			}
			last = cs
			s.logger.Debug("watcher: notes file changed", slog.String("path", s.path))
			if cb != nil {
				cb(s.path)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// fileChecksum returns the checksum of the notes file, or "" when it is absent.
func (s *Store) fileChecksum() string {
	sum, err := checksum.File(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("watcher: read failed", slog.String("error", err.Error()))
		}
		return ""
	}
	return sum
}

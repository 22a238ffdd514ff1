// Package testutil provides shared test helpers for setting up notes files
// and key-value engines.
package testutil

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/starford/notelog/internal/kv"
)

// NotesFile returns the path of a notes file inside a fresh temporary
// directory. The file itself is not created.
func NotesFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "notes.txt")
}

// Redis starts an in-process Redis server that is stopped on cleanup and
// returns it with the engine config pointing at it.
func Redis(t *testing.T) (*miniredis.Miniredis, kv.Config) {
	t.Helper()
	srv := miniredis.RunT(t)
	port, err := strconv.Atoi(srv.Port())
	if err != nil {
		t.Fatal(err)
	}
	return srv, kv.Config{Engine: kv.EngineRedis, Endpoint: srv.Host(), Port: port}
}

// SQLite returns an engine config for a temporary SQLite database.
func SQLite(t *testing.T) kv.Config {
	t.Helper()
	return kv.Config{Engine: kv.EngineSQLite, Path: filepath.Join(t.TempDir(), "notes.db")}
}

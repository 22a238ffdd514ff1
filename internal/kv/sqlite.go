package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv_strings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kv_sets (
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);

CREATE TABLE IF NOT EXISTS kv_versions (
	key     TEXT PRIMARY KEY,
	version INTEGER NOT NULL DEFAULT 0
);
`

// SQLite is an embedded Engine. Every write bumps a per-key version counter;
// Watch snapshots the counters and compares them again inside the commit
// transaction.
type SQLite struct {
	conn *sql.DB
}

var _ Engine = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database file and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("kv: sqlite path is required")
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kv: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type writeOp func(ctx context.Context, q querier) error

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	return getValue(ctx, s.conn, key)
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, setOp(key, value))
}

func (s *SQLite) Del(ctx context.Context, keys ...string) error {
	return s.write(ctx, delOp(keys))
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, s.conn, key)
}

func (s *SQLite) SAdd(ctx context.Context, key string, members ...string) error {
	return s.write(ctx, saddOp(key, members))
}

func (s *SQLite) SRem(ctx context.Context, key string, members ...string) error {
	return s.write(ctx, sremOp(key, members))
}

func (s *SQLite) SMembers(ctx context.Context, key string) ([]string, error) {
	return members(ctx, s.conn, key)
}

func (s *SQLite) SInter(ctx context.Context, keys ...string) ([]string, error) {
	keys = lo.Uniq(keys)
	if len(keys) == 0 {
		return nil, nil
	}
	args := append(lo.ToAnySlice(keys), len(keys))
	return queryStrings(ctx, s.conn, `
		SELECT member FROM kv_sets
		WHERE key IN (`+placeholders(len(keys))+`)
		GROUP BY member
		HAVING COUNT(*) = ?`, args...)
}

func (s *SQLite) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	keys = lo.Uniq(keys)
	if len(keys) == 0 {
		return nil, nil
	}
	return queryStrings(ctx, s.conn, `
		SELECT DISTINCT member FROM kv_sets
		WHERE key IN (`+placeholders(len(keys))+`)`, lo.ToAnySlice(keys)...)
}

func (s *SQLite) Keys(ctx context.Context, pattern string) ([]string, error) {
	return queryStrings(ctx, s.conn, `
		SELECT key FROM kv_strings WHERE key GLOB ?
		UNION
		SELECT key FROM kv_sets WHERE key GLOB ?`, pattern, pattern)
}

func (s *SQLite) MGet(ctx context.Context, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, key := range keys {
		v, _, err := getValue(ctx, s.conn, key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *SQLite) Watch(ctx context.Context, fn func(Tx) error, keys ...string) error {
	before, err := versions(ctx, s.conn, keys)
	if err != nil {
		return err
	}
	tx := &sqliteTx{conn: s.conn}
	if err := fn(tx); err != nil {
		return err
	}

	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	after, err := versions(ctx, sqlTx, keys)
	if err != nil {
		return err
	}
	if !maps.Equal(before, after) {
		return ErrTxFailed
	}
	for _, op := range tx.ops {
		if err := op(ctx, sqlTx); err != nil {
			return err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

// write runs a single op in its own transaction so that data and version
// change together.
func (s *SQLite) write(ctx context.Context, op writeOp) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	if err := op(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

type sqliteTx struct {
	conn *sql.DB
	ops  []writeOp
}

func (t *sqliteTx) Get(ctx context.Context, key string) (string, bool, error) {
	return getValue(ctx, t.conn, key)
}

func (t *sqliteTx) Exists(ctx context.Context, key string) (bool, error) {
	return exists(ctx, t.conn, key)
}

func (t *sqliteTx) SMembers(ctx context.Context, key string) ([]string, error) {
	return members(ctx, t.conn, key)
}

func (t *sqliteTx) Set(key, value string) { t.ops = append(t.ops, setOp(key, value)) }
func (t *sqliteTx) Del(keys ...string) { t.ops = append(t.ops, delOp(keys)) }
func (t *sqliteTx) SAdd(key string, members ...string) { t.ops = append(t.ops, saddOp(key, members)) }
func (t *sqliteTx) SRem(key string, members ...string) { t.ops = append(t.ops, sremOp(key, members)) }

func setOp(key, value string) writeOp {
	return func(ctx context.Context, q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO kv_strings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("kv: set %s: %w", key, err)
		}
		return bump(ctx, q, key)
	}
}

func delOp(keys []string) writeOp {
	return func(ctx context.Context, q querier) error {
		for _, key := range keys {
			if _, err := q.ExecContext(ctx, `DELETE FROM kv_strings WHERE key = ?`, key); err != nil {
				return fmt.Errorf("kv: del %s: %w", key, err)
			}
			if _, err := q.ExecContext(ctx, `DELETE FROM kv_sets WHERE key = ?`, key); err != nil {
				return fmt.Errorf("kv: del %s: %w", key, err)
			}
			if err := bump(ctx, q, key); err != nil {
				return err
			}
		}
		return nil
	}
}

func saddOp(key string, members []string) writeOp {
	return func(ctx context.Context, q querier) error {
		if len(members) == 0 {
			return nil
		}
		for _, m := range members {
			if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO kv_sets (key, member) VALUES (?, ?)`, key, m); err != nil {
				return fmt.Errorf("kv: sadd %s: %w", key, err)
			}
		}
		return bump(ctx, q, key)
	}
}

func sremOp(key string, members []string) writeOp {
	return func(ctx context.Context, q querier) error {
		if len(members) == 0 {
			return nil
		}
		for _, m := range members {
			if _, err := q.ExecContext(ctx, `DELETE FROM kv_sets WHERE key = ? AND member = ?`, key, m); err != nil {
				return fmt.Errorf("kv: srem %s: %w", key, err)
			}
		}
		return bump(ctx, q, key)
	}
}

func bump(ctx context.Context, q querier, key string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO kv_versions (key, version) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET version = version + 1`, key)
	if err != nil {
		return fmt.Errorf("kv: bump version %s: %w", key, err)
	}
	return nil
}

func versions(ctx context.Context, q querier, keys []string) (map[string]int64, error) {
	out := make(map[string]int64, len(keys))
	for _, key := range keys {
		var v int64
		err := q.QueryRowContext(ctx, `SELECT version FROM kv_versions WHERE key = ?`, key).Scan(&v)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("kv: read version %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func getValue(ctx context.Context, q querier, key string) (string, bool, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv_strings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv: get %s: %w", key, err)
	}
	return v, true, nil
}

func exists(ctx context.Context, q querier, key string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM kv_strings WHERE key = ?)
		     + (SELECT COUNT(*) FROM kv_sets WHERE key = ?)`, key, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("kv: exists %s: %w", key, err)
	}
	return n > 0, nil
}

func members(ctx context.Context, q querier, key string) ([]string, error) {
	return queryStrings(ctx, q, `SELECT member FROM kv_sets WHERE key = ? ORDER BY rowid`, key)
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kv: query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

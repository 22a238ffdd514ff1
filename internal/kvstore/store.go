// Package kvstore implements the indexed note backend: a primary
// note:<ts> → text map plus facet → timestamp-set inverted indices kept in a
// kv.Engine.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/starford/notelog/internal/apperr"
	"github.com/starford/notelog/internal/kv"
	"github.com/starford/notelog/internal/metrics"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/search"
	"github.com/starford/notelog/internal/tokenizer"
)

// Name is the backend name used in configuration.
const Name = "kv"

// DefaultMaxAttempts bounds the insert retry loop when Options leaves it zero.
const DefaultMaxAttempts = 64

// Key prefixes owned by the store. Facet prefixes live in tokenizer.
const (
	NotePrefix      = "note:"
	WatchPrefix     = "watch:"
	IndexKeysPrefix = "indexkeys:"
	SourcePrefix    = "source:"
)

// NoteKey, WatchKey, IndexKeysKey and SourceKey build the store's own keys.
func NoteKey(ts int64) string { return NotePrefix + formatTS(ts) }
func WatchKey(ts int64) string { return WatchPrefix + formatTS(ts) }
func IndexKeysKey(ts int64) string { return IndexKeysPrefix + formatTS(ts) }
func SourceKey(name string) string { return SourcePrefix + name }

// Options configures a Store.
type Options struct {
	Engine      kv.Engine
	Source      string
	MaxAttempts int
	Enabled     bool
	Builder     *search.Builder
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Store is the indexed note backend. It owns its engine.
type Store struct {
	engine      kv.Engine
	source      string
	maxAttempts int
	enabled     bool
	builder     *search.Builder
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New returns a Store over opts.Engine.
func New(opts Options) (*Store, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("kvstore: engine is required")
	}
	if opts.Source == "" {
		return nil, fmt.Errorf("kvstore: source is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		engine:      opts.Engine,
		source:      opts.Source,
		maxAttempts: opts.MaxAttempts,
		enabled:     opts.Enabled,
		builder:     opts.Builder,
		logger:      logger,
		metrics:     opts.Metrics,
	}, nil
}

// Insert stores text at the first free timestamp at or after ts and returns
// it. A timestamp is taken when its note or its watch marker exists; notes
// written within the same second therefore shift forward by whole seconds.
func (s *Store) Insert(ctx context.Context, ts int64, text string) (stored int64, err error) {
	defer s.observe("insert", time.Now(), &err)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		taken, err := s.taken(ctx, ts)
		if err != nil {
			return 0, err
		}
		if taken {
			s.metrics.IncCollision()
			s.logger.Debug("kvstore: timestamp taken, probing next", slog.Int64("timestamp", ts))
			ts++
			continue
		}

		err = s.tryInsert(ctx, ts, text)
		if err == nil {
			return ts, nil
		}
		if !errors.Is(err, kv.ErrTxFailed) {
			return 0, err
		}
		s.metrics.IncRetry()
		s.logger.Error("kvstore: insert transaction aborted, retrying",
			slog.Int64("timestamp", ts),
			slog.Int("attempt", attempt),
		)
	}
	return 0, fmt.Errorf("kvstore: insert near %d after %d attempts: %w", ts, s.maxAttempts, apperr.ErrContention)
}

func (s *Store) taken(ctx context.Context, ts int64) (bool, error) {
	for _, key := range []string{NoteKey(ts), WatchKey(ts)} {
		ok, err := s.engine.Exists(ctx, key)
		if err != nil {
			return false, fmt.Errorf("kvstore: exists %s: %w", key, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) tryInsert(ctx context.Context, ts int64, text string) error {
	marker := WatchKey(ts)
	token := uuid.NewString()
	if err := s.engine.Set(ctx, marker, token); err != nil {
		return fmt.Errorf("kvstore: set marker: %w", err)
	}
	defer s.releaseMarker(ctx, marker, token)

	noteKey := NoteKey(ts)
	member := formatTS(ts)
	keys := append(tokenizer.Tokenize(ts, text), SourceKey(s.source))

	return s.engine.Watch(ctx, func(tx kv.Tx) error {
		if err := holdsMarker(ctx, tx, marker, token); err != nil {
			return err
		}
		exists, err := tx.Exists(ctx, noteKey)
		if err != nil {
			return err
		}
		if exists {
			return kv.ErrTxFailed
		}
		for _, key := range keys {
			tx.SAdd(key, member)
		}
		tx.SAdd(IndexKeysKey(ts), keys...)
		tx.Set(noteKey, text)
		return nil
	}, marker, noteKey)
}

// Delete removes the note at ts together with every index entry recorded
// for it. A missing note is not an error. A delete racing an in-flight
// insert fails with apperr.ErrInsertInFlight.
func (s *Store) Delete(ctx context.Context, ts int64) (err error) {
	defer s.observe("delete", time.Now(), &err)

	noteKey := NoteKey(ts)
	text, ok, err := s.engine.Get(ctx, noteKey)
	if err != nil {
		return fmt.Errorf("kvstore: read %s: %w", noteKey, err)
	}
	if !ok {
		s.logger.Debug("kvstore: delete of missing note", slog.Int64("timestamp", ts))
		return nil
	}

	marker := WatchKey(ts)
	busy, err := s.engine.Exists(ctx, marker)
	if err != nil {
		return fmt.Errorf("kvstore: exists %s: %w", marker, err)
	}
	if busy {
		return fmt.Errorf("kvstore: delete %d: %w", ts, apperr.ErrInsertInFlight)
	}

	token := uuid.NewString()
	if err := s.engine.Set(ctx, marker, token); err != nil {
		return fmt.Errorf("kvstore: set marker: %w", err)
	}
	defer s.releaseMarker(ctx, marker, token)

	keys, err := s.indexKeys(ctx, ts, text)
	if err != nil {
		return err
	}
	sources, err := s.engine.Keys(ctx, SourcePrefix+"*")
	if err != nil {
		return fmt.Errorf("kvstore: list sources: %w", err)
	}
	keys = lo.Uniq(append(keys, sources...))
	member := formatTS(ts)

	err = s.engine.Watch(ctx, func(tx kv.Tx) error {
		if err := holdsMarker(ctx, tx, marker, token); err != nil {
			return err
		}
		for _, key := range keys {
			tx.SRem(key, member)
		}
		tx.Del(noteKey, IndexKeysKey(ts))
		return nil
	}, marker, noteKey)
	if errors.Is(err, kv.ErrTxFailed) {
		s.metrics.IncDeleteConflict()
		return fmt.Errorf("kvstore: delete %d: %w", ts, apperr.ErrDeleteConflict)
	}
	if err != nil {
		return fmt.Errorf("kvstore: delete %d: %w", ts, err)
	}
	s.logger.Debug("kvstore: deleted", slog.Int64("timestamp", ts), slog.Int("keys", len(keys)))
	return nil
}

// indexKeys returns the facet keys recorded at insert time. Notes written
// without a recorded set fall back to tokenizing the stored text.
func (s *Store) indexKeys(ctx context.Context, ts int64, text string) ([]string, error) {
	keys, err := s.engine.SMembers(ctx, IndexKeysKey(ts))
	if err != nil {
		return nil, fmt.Errorf("kvstore: read index keys: %w", err)
	}
	if len(keys) > 0 {
		return keys, nil
	}
	s.logger.Debug("kvstore: no recorded index keys, retokenizing", slog.Int64("timestamp", ts))
	return tokenizer.Tokenize(ts, text), nil
}

// Find answers req from the indices. Results are sorted by timestamp. When
// nothing matches the result is the single models.Absent sentinel.
func (s *Store) Find(ctx context.Context, req search.Request) (notes []models.Note, err error) {
	defer s.observe("find", time.Now(), &err)

	required := lo.Map(req.Include, func(term string, _ int) string { return tokenizer.WordKey(term) })
	if req.Date != nil {
		required = append(required, tokenizer.DayKeys(*req.Date)...)
	}

	var candidates []string
	if len(required) > 0 {
		candidates, err = s.engine.SInter(ctx, required...)
		if err != nil {
			return nil, fmt.Errorf("kvstore: intersect: %w", err)
		}
	} else {
		keys, err := s.engine.Keys(ctx, NotePrefix+"*")
		if err != nil {
			return nil, fmt.Errorf("kvstore: list notes: %w", err)
		}
		candidates = lo.Map(keys, func(k string, _ int) string { return strings.TrimPrefix(k, NotePrefix) })
	}

	if len(req.Exclude) > 0 && len(candidates) > 0 {
		excludeKeys := lo.Map(req.Exclude, func(term string, _ int) string { return tokenizer.WordKey(term) })
		excluded, err := s.engine.SUnion(ctx, excludeKeys...)
		if err != nil {
			return nil, fmt.Errorf("kvstore: union: %w", err)
		}
		candidates = lo.Without(candidates, excluded...)
	}

	timestamps := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ts, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			s.logger.Warn("kvstore: skipping malformed index member", slog.String("member", c))
			continue
		}
		timestamps = append(timestamps, ts)
	}
	slices.Sort(timestamps)
	timestamps = slices.Compact(timestamps)

	if len(timestamps) == 0 {
		s.metrics.ObserveSearch(Name, 0)
		return []models.Note{models.Absent}, nil
	}

	texts, err := s.engine.MGet(ctx, lo.Map(timestamps, func(ts int64, _ int) string { return NoteKey(ts) })...)
	if err != nil {
		return nil, fmt.Errorf("kvstore: fetch notes: %w", err)
	}
	notes = make([]models.Note, len(timestamps))
	for i, ts := range timestamps {
		notes[i] = models.Note{Timestamp: ts, Text: texts[i]}
	}
	s.metrics.ObserveSearch(Name, len(notes))
	return notes, nil
}

// CommonWords lists every indexed word and hashtag, sorted.
func (s *Store) CommonWords(ctx context.Context) ([]string, error) {
	keys, err := s.engine.Keys(ctx, tokenizer.WordPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("kvstore: list words: %w", err)
	}
	words := lo.Map(keys, func(k string, _ int) string { return strings.TrimPrefix(k, tokenizer.WordPrefix) })
	slices.Sort(words)
	return words, nil
}

// Close releases the engine connection.
func (s *Store) Close() error {
	return s.engine.Close()
}

// releaseMarker clears marker only while it still holds token.
func (s *Store) releaseMarker(ctx context.Context, marker, token string) {
	err := s.engine.Watch(ctx, func(tx kv.Tx) error {
		if holdsMarker(ctx, tx, marker, token) != nil {
			return nil
		}
		tx.Del(marker)
		return nil
	}, marker)
	if err != nil {
		s.logger.Warn("kvstore: release marker failed", slog.String("key", marker), slog.String("error", err.Error()))
	}
}

func (s *Store) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(Name, op, start, *err)
}

func holdsMarker(ctx context.Context, tx kv.Tx, marker, token string) error {
	cur, ok, err := tx.Get(ctx, marker)
	if err != nil {
		return err
	}
	if !ok || cur != token {
		return kv.ErrTxFailed
	}
	return nil
}

func formatTS(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

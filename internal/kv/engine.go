// Package kv provides the key-value engines behind the indexed note store:
// strings, sets, glob key enumeration and an optimistic watched transaction.
package kv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrTxFailed is returned by Watch when a watched key changed before commit.
var ErrTxFailed = errors.New("kv: transaction failed")

// Engine is the subset of a Redis-like store the note index relies on.
// Missing keys read as absent, never as errors. Sets vanish when their last
// member is removed.
type Engine interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)

	// Keys lists keys matching a glob pattern such as "note:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	// MGet returns one value per key; missing keys yield "".
	MGet(ctx context.Context, keys ...string) ([]string, error)

	// Watch runs fn and then commits the writes it queued on the Tx, unless
	// one of keys was modified since Watch started, in which case nothing is
	// written and ErrTxFailed is returned. An error from fn aborts the
	// transaction and is returned as is.
	Watch(ctx context.Context, fn func(Tx) error, keys ...string) error

	Close() error
}

// Tx reads immediately and queues writes until commit.
type Tx interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	Set(key, value string)
	Del(keys ...string)
	SAdd(key string, members ...string)
	SRem(key string, members ...string)
}

// Engine names accepted by Open.
const (
	EngineRedis  = "redis"
	EngineSQLite = "sqlite"
)

// Config selects and locates an engine.
type Config struct {
	Engine   string
	Endpoint string
	Port     int
	DB       int
	Password string
	Path     string
}

// Addr returns the host:port of a network engine.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Endpoint, strconv.Itoa(c.Port))
}

// Open connects to the configured engine. The caller owns the result and
// must Close it.
func Open(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Engine {
	case EngineRedis, "":
		return OpenRedis(ctx, RedisOptions{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB})
	case EngineSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("kv: unknown engine %q", cfg.Engine)
	}
}

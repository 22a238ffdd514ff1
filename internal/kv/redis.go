package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// RedisOptions locates a Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// Redis is an Engine backed by a Redis server. WATCH/MULTI/EXEC provides
// the optimistic transaction.
type Redis struct {
	client *redis.Client
}

var _ Engine = (*Redis)(nil)

// OpenRedis dials the server and verifies the connection with PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kv: ping redis %s: %w", opts.Addr, err)
	}
	return &Redis{client: client}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	return getString(r.client.Get(ctx, key))
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return wrap("set", r.client.Set(ctx, key, value, 0).Err())
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return wrap("del", r.client.Del(ctx, keys...).Err())
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, wrap("exists", err)
}

func (r *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return wrap("sadd", r.client.SAdd(ctx, key, lo.ToAnySlice(members)...).Err())
}

func (r *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return wrap("srem", r.client.SRem(ctx, key, lo.ToAnySlice(members)...).Err())
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	out, err := r.client.SMembers(ctx, key).Result()
	return out, wrap("smembers", err)
}

func (r *Redis) SInter(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out, err := r.client.SInter(ctx, keys...).Result()
	return out, wrap("sinter", err)
}

func (r *Redis) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out, err := r.client.SUnion(ctx, keys...).Result()
	return out, wrap("sunion", err)
}

func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	out, err := r.client.Keys(ctx, pattern).Result()
	return out, wrap("keys", err)
}

func (r *Redis) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap("mget", err)
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

func (r *Redis) Watch(ctx context.Context, fn func(Tx) error, keys ...string) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		rt := &redisTx{tx: tx}
		if err := fn(rt); err != nil {
			return err
		}
		if len(rt.ops) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, op := range rt.ops {
				op(ctx, p)
			}
			return nil
		})
		return err
	}, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrTxFailed
	}
	return err
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisTx struct {
	tx  *redis.Tx
	ops []func(context.Context, redis.Pipeliner)
}

func (t *redisTx) Get(ctx context.Context, key string) (string, bool, error) {
	return getString(t.tx.Get(ctx, key))
}

func (t *redisTx) Exists(ctx context.Context, key string) (bool, error) {
	n, err := t.tx.Exists(ctx, key).Result()
	return n > 0, wrap("exists", err)
}

func (t *redisTx) SMembers(ctx context.Context, key string) ([]string, error) {
	out, err := t.tx.SMembers(ctx, key).Result()
	return out, wrap("smembers", err)
}

func (t *redisTx) Set(key, value string) {
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Set(ctx, key, value, 0)
	})
}

func (t *redisTx) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.Del(ctx, keys...)
	})
}

func (t *redisTx) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.SAdd(ctx, key, lo.ToAnySlice(members)...)
	})
}

func (t *redisTx) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	t.ops = append(t.ops, func(ctx context.Context, p redis.Pipeliner) {
		p.SRem(ctx, key, lo.ToAnySlice(members)...)
	})
}

func getString(cmd *redis.StringCmd) (string, bool, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get", err)
	}
	return v, true, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("kv: %s: %w", op, err)
}

package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/ask-widget/internal/kv"
)

type Store struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

func New(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithClient(rdb, "askwidget:")
}

func NewWithClient(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix, timeout: 3 * time.Second}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// KV returns a kv.Storage view of the store scoped to one namespace.
func (s *Store) KV(namespace string) *KV {
	return &KV{s: s, ns: s.prefix + "kv:" + namespace + ":"}
}

// KV implements kv.Storage on plain redis strings.
type KV struct {
	s  *Store
	ns string
}

func (k *KV) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), k.s.timeout)
	defer cancel()
	v, err := k.s.rdb.Get(ctx, k.ns+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", kv.ErrNotFound
	}
	return v, err
}

func (k *KV) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.s.timeout)
	defer cancel()
	return k.s.rdb.Set(ctx, k.ns+key, value, 0).Err()
}

func (k *KV) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.s.timeout)
	defer cancel()
	return k.s.rdb.Del(ctx, k.ns+key).Err()
}

// SetMany applies all writes in a MULTI/EXEC transaction.
func (k *KV) SetMany(values map[string]string, remove []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), k.s.timeout)
	defer cancel()
	_, err := k.s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for key, v := range values {
			p.Set(ctx, k.ns+key, v, 0)
		}
		for _, key := range remove {
			p.Del(ctx, k.ns+key)
		}
		return nil
	})
	return err
}

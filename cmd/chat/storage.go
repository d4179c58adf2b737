package main

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/db"
	"github.com/suPer8Hu/ask-widget/internal/kv"
	"github.com/suPer8Hu/ask-widget/internal/store/redisstore"
	"github.com/suPer8Hu/ask-widget/internal/store/sqlkv"
)

// openStorage returns the key-value storage backing the session store and a
// func releasing it.
func openStorage(kind, path, namespace string) (kv.Storage, func(), error) {
	switch kind {
	case "memory":
		return kv.NewMemory(), func() {}, nil

	case "", "sqlite":
		gdb, err := db.Open(path)
		if err != nil {
			return nil, nil, err
		}
		s, err := sqlkv.New(gdb, namespace)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return s, release, nil

	case "redis":
		rs := redisstore.New(path, "", 0)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", path, err)
		}
		return rs.KV(namespace), func() { _ = rs.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q (want sqlite, redis or memory)", kind)
}

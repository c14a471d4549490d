package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/teamgraph/config"
	"github.com/dshills/teamgraph/graph"
	"github.com/dshills/teamgraph/graph/store"
)

const defaultSQLitePath = "teamgraph.db"

// newStore opens the configured state store. Redis DSNs are either
// host:port or a redis:// URL.
func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store[graph.State], func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemStore[graph.State](), nil, nil
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = defaultSQLitePath
		}
		st, err := store.NewSQLiteStore[graph.State](path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "mysql":
		st, err := store.NewMySQLStore[graph.State](cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "redis":
		opts := []store.RedisOption{store.WithTTL(cfg.TTL)}
		if u, err := redis.ParseURL(cfg.DSN); err == nil {
			st, err := store.DialRedis[graph.State](ctx, u.Addr, u.Password, u.DB, opts...)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		}
		st, err := store.DialRedis[graph.State](ctx, cfg.DSN, "", 0, opts...)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

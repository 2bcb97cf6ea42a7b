// Package factory opens the store backend selected by configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/store"
	"github.com/zhouzirui/digital-twin/backend/internal/store/file"
	"github.com/zhouzirui/digital-twin/backend/internal/store/memory"
	"github.com/zhouzirui/digital-twin/backend/internal/store/postgres"
	"github.com/zhouzirui/digital-twin/backend/internal/store/sqlite"
)

// Open returns the configured store.Store. Callers own Close. On error the
// returned Store is a nil interface.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		codec, err := file.CodecFor(cfg.Format)
		if err != nil {
			return nil, err
		}
		st, err := file.New(cfg.MemoryDir, codec)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StorePostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

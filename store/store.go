// Package store provides the durable key/value backends that command
// registries persist their state into. Values are stored as JSON.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commandset/config"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by Load when nothing is stored under a key.
	ErrNotFound       = errors.New("key not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Store is a JSON key/value store.
type Store interface {
	// Load decodes the value stored under key into v.
	Load(ctx context.Context, key string, v any) error
	// Save replaces the value stored under key with v.
	Save(ctx context.Context, key string, v any) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the backend's resources.
	Close() error
}

// Open creates the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", "file":
		s, err = NewFileStore(cfg.Dir, cfg.LockTimeout)
	case "redis":
		s, err = NewRedisStore(ctx, &redis.Options{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 2 * time.Second,
		}, cfg.RedisPrefix)
	case "sqlite":
		s, err = OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

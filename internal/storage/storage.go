// Package storage provides the string key/value store behind the session log.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Entry is one stored key/value pair.
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a flat string key/value store. Writes are upserts; the last write wins.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Open returns a store for the driver name: "sqlite" or "memory".
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session log driver %q", driver)
	}
}

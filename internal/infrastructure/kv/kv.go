// Package kv abstracts the single-key blob storage backing the
// conversation store.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal key-value contract: the conversation store keeps
// its whole collection under one key, so Get/Set/Delete is all it needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Package kvstore is the durable key-value collaborator behind the history
// store. Every backend offers the same two operations: Get and Set of a
// string value under a string key, last writer wins.
package kvstore

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned for empty or unsafe keys.
var ErrInvalidKey = errors.New("kvstore: invalid key")

// Store - durable string key-value storage
type Store interface {
	// Get returns the stored value and true, or "" and false when the key
	// has never been written.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error
}

// Closer is implemented by backends holding connections or file handles.
type Closer interface {
	Close() error
}

// Close releases s when the backend holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

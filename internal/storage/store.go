// Package storage is the durable key-value layer behind session state. Every
// entry carries a revision so concurrent writers can detect each other.
package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrRevisionMismatch is returned by Update when the stored revision is
	// not the expected one.
	ErrRevisionMismatch = errors.New("revision mismatch")
)

// Entry is a stored value and its revision.
type Entry struct {
	Value    []byte
	Revision uint64
}

// Store is a revisioned key-value store.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put writes value unconditionally and returns the new revision.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// Update writes value only if the stored revision equals expected.
	// An expected revision of 0 requires that the key does not exist.
	Update(ctx context.Context, key string, value []byte, expected uint64) (uint64, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// Key builds a session-scoped storage key.
func Key(sessionID, name string) string {
	return sessionID + "." + name
}

// ValidKey reports whether key can be stored by every backend. NATS KV keys
// allow only letters, digits, and -_./= characters.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == '/', r == '=':
		default:
			return false
		}
	}
	return true
}

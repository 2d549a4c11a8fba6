// Package checkpoint provides bounded state snapshot storage for
// rollback after a guarded operation fails or trips the circuit.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists opaque checkpoint payloads keyed by checkpoint id.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a payload for a checkpoint id.
	// Overwrites if the id already exists.
	Save(id string, data []byte) error

	// Load retrieves a payload.
	// Returns ErrNotFound if no payload exists for the id.
	Load(id string) ([]byte, error)

	// Delete removes a payload.
	// Returns nil if the id doesn't exist.
	Delete(id string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides payload metadata without loading the payload.
type Info struct {
	ID        string
	Timestamp time.Time
	Size      int64
}

// Lister is an optional Store extension for enumerating payloads.
type Lister interface {
	// List returns metadata for all stored payloads, oldest first.
	List() ([]Info, error)
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates no payload exists for a checkpoint id.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrNilCheckpoint indicates a nil checkpoint was passed to the manager.
	ErrNilCheckpoint = errors.New("nil checkpoint")
)

package checkpoint

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxCheckpoints bounds the registry when no limit is configured.
const DefaultMaxCheckpoints = 5

// Manager owns a bounded FIFO registry of checkpoints over a Store.
// Creating a checkpoint past the limit evicts the oldest entry and
// best-effort deletes its payload.
//
// Checkpoint ids combine a millisecond timestamp with a monotonic
// counter, so rapid successive Create calls never collide.
//
// Storage failures inside the manager are recoverable-by-absence:
// they are logged, never propagated. The only hard error is passing
// a nil checkpoint, which is programmer misuse.
type Manager struct {
	store  Store
	logger *slog.Logger
	max    int

	mu       sync.Mutex
	registry []*Checkpoint
	seq      atomic.Uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxCheckpoints sets the registry bound.
// Default: DefaultMaxCheckpoints.
func WithMaxCheckpoints(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithLogger sets the logger for storage degradation warnings.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a checkpoint manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default(),
		max:    DefaultMaxCheckpoints,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create allocates a checkpoint record and appends it to the registry.
// If the registry now exceeds the limit, the oldest checkpoint is
// evicted and its payload deleted best-effort.
func (m *Manager) Create() *Checkpoint {
	now := time.Now()
	cp := &Checkpoint{
		ID:        fmt.Sprintf("cp-%d-%d", now.UnixMilli(), m.seq.Add(1)),
		CreatedAt: now,
	}
	cp.StorageRef = m.storageRef(cp.ID)

	m.mu.Lock()
	m.registry = append(m.registry, cp)
	var evicted *Checkpoint
	if len(m.registry) > m.max {
		evicted = m.registry[0]
		m.registry = m.registry[1:]
	}
	m.mu.Unlock()

	if evicted != nil {
		if err := m.store.Delete(evicted.ID); err != nil {
			m.logger.Warn("evicted checkpoint cleanup failed",
				slog.String("checkpoint_id", evicted.ID),
				slog.String("error", err.Error()),
			)
		}
		m.logger.Debug("checkpoint evicted",
			slog.String("checkpoint_id", evicted.ID),
		)
	}

	return cp
}

// SaveState commits a payload for the checkpoint.
// A storage failure is logged and leaves the checkpoint without a
// committed payload; it is not propagated.
func (m *Manager) SaveState(cp *Checkpoint, payload []byte) error {
	if cp == nil {
		return ErrNilCheckpoint
	}

	if err := m.store.Save(cp.ID, payload); err != nil {
		m.logger.Warn("checkpoint save failed",
			slog.String("checkpoint_id", cp.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	now := time.Now()
	m.mu.Lock()
	cp.PayloadSize = int64(len(payload))
	cp.SavedAt = &now
	m.mu.Unlock()

	m.logger.Debug("checkpoint saved",
		slog.String("checkpoint_id", cp.ID),
		slog.Int("size_bytes", len(payload)),
	)
	return nil
}

// Restore loads the checkpoint's payload.
// Missing or unreadable storage yields (nil, false) with a warning;
// restoration can legitimately fail without being a programming error.
func (m *Manager) Restore(cp *Checkpoint) ([]byte, bool) {
	if cp == nil {
		return nil, false
	}

	data, err := m.store.Load(cp.ID)
	if err != nil {
		m.logger.Warn("checkpoint restore unavailable",
			slog.String("checkpoint_id", cp.ID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return data, true
}

// Cleanup deletes all checkpoint payloads and clears the registry.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	registry := m.registry
	m.registry = nil
	m.mu.Unlock()

	for _, cp := range registry {
		if err := m.store.Delete(cp.ID); err != nil {
			m.logger.Warn("checkpoint cleanup failed",
				slog.String("checkpoint_id", cp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Len returns the current registry length.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.registry)
}

// Checkpoints returns a snapshot of the registry, oldest first.
func (m *Manager) Checkpoints() []*Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Checkpoint(nil), m.registry...)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// storageRef derives a human-readable payload location for the id.
func (m *Manager) storageRef(id string) string {
	if fs, ok := m.store.(*FileStore); ok {
		return fs.Path(id)
	}
	return id
}

package checkpoint

import "time"

// Checkpoint is the metadata record for one state snapshot.
// The payload itself lives in the Store; the manager owns this record.
type Checkpoint struct {
	// ID uniquely identifies the checkpoint within a manager's lifetime.
	ID string `json:"id"`

	// CreatedAt is when the checkpoint record was allocated.
	CreatedAt time.Time `json:"created_at"`

	// StorageRef locates the serialized payload (file path, row key).
	StorageRef string `json:"storage_ref"`

	// PayloadSize is the committed payload size in bytes.
	// Zero until SaveState succeeds.
	PayloadSize int64 `json:"payload_size"`

	// SavedAt is when the payload was committed. Nil means no payload
	// was ever saved, so Restore will report the checkpoint as absent.
	SavedAt *time.Time `json:"saved_at,omitempty"`
}

// Saved reports whether a payload was committed for this checkpoint.
func (c *Checkpoint) Saved() bool {
	return c != nil && c.SavedAt != nil
}

package change

import (
	"fmt"
	"sync"
	"time"
)

// SnapshotApplier receives each durably-appended change so the snapshot
// view stays consistent with the log. It is only called after the append
// commits — a storage failure must not mutate the snapshot.
type SnapshotApplier interface {
	Apply(projectRoot string, c *ArchitectureChange)
}

// Recorder validates and persists architecture changes. Concurrent Record
// calls are serialized by a single append lock to preserve append-only
// ordering and id uniqueness.
type Recorder struct {
	store Store
	snap  SnapshotApplier // nullable — recording works without a snapshot view
	mu    sync.Mutex
}

// NewRecorder creates a Recorder over the given store. snap may be nil.
func NewRecorder(store Store, snap SnapshotApplier) *Recorder {
	return &Recorder{store: store, snap: snap}
}

// Record generates an id and timestamp for the draft, validates it, appends
// it to durable storage, and updates the snapshot view. All-or-nothing: if
// the append fails, the snapshot is untouched.
func (r *Recorder) Record(projectRoot string, d Draft) (*ArchitectureChange, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := &ArchitectureChange{
		ID:             NewID(),
		Timestamp:      timeNow().UTC().Format(time.RFC3339),
		Type:           d.Type,
		Category:       d.Category,
		Description:    d.Description,
		Rationale:      d.Rationale,
		AffectedFiles:  d.AffectedFiles,
		SpecDocumentID: d.SpecDocumentID,
		Author:         d.Author,
		Supersedes:     d.Supersedes,
		Impact:         d.Impact,
	}
	if c.Author == "" {
		c.Author = "unknown"
	}

	if err := r.store.Append(projectRoot, c); err != nil {
		return nil, fmt.Errorf("recording change: %w", err)
	}

	if r.snap != nil {
		r.snap.Apply(projectRoot, c)
	}

	return c, nil
}

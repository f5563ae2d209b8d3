package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// SnapshotsDir is the subdirectory under arch/ for captured snapshot files.
const SnapshotsDir = "snapshots"

// Store answers queries over the change log and materializes architecture
// snapshots. Read operations never mutate the log.
type Store struct {
	changes change.Store

	mu    sync.RWMutex
	cache map[string]*ArchitectureSnapshot // current snapshot per project root
}

// NewStore creates a snapshot store over the given change log.
func NewStore(changes change.Store) *Store {
	return &Store{
		changes: changes,
		cache:   make(map[string]*ArchitectureSnapshot),
	}
}

// SnapshotsPath returns the absolute path to the arch/snapshots/ directory.
func SnapshotsPath(projectRoot string) string {
	return filepath.Join(config.ArchPath(projectRoot), SnapshotsDir)
}

// Changes returns recorded changes between since and until (zero = open).
func (s *Store) Changes(projectRoot string, since, until time.Time) ([]change.ArchitectureChange, error) {
	return s.changes.List(projectRoot, change.ListFilter{Since: since, Until: until})
}

// ChangesForComponent returns all changes whose impact names the component.
func (s *Store) ChangesForComponent(projectRoot, componentID string) ([]change.ArchitectureChange, error) {
	return s.changes.List(projectRoot, change.ListFilter{Component: componentID})
}

// ChangesByCategory returns all changes in one category.
func (s *Store) ChangesByCategory(projectRoot string, cat change.Category) ([]change.ArchitectureChange, error) {
	return s.changes.List(projectRoot, change.ListFilter{Category: cat})
}

// Get returns one change by id.
func (s *Store) Get(projectRoot, id string) (*change.ArchitectureChange, error) {
	return s.changes.Get(projectRoot, id)
}

// Current returns the present architecture snapshot. The result is a
// materialized cache: it is rebuilt from the log on first use and kept
// until Apply or Invalidate.
func (s *Store) Current(projectRoot string) (*ArchitectureSnapshot, error) {
	s.mu.RLock()
	cached := s.cache[projectRoot]
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	snap, err := s.At(projectRoot, time.Time{})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[projectRoot] = snap
	s.mu.Unlock()
	return snap, nil
}

// At reconstructs the architecture snapshot as of date by replaying the
// change log up to it. A zero date means the full log.
func (s *Store) At(projectRoot string, date time.Time) (*ArchitectureSnapshot, error) {
	cs, err := s.changes.List(projectRoot, change.ListFilter{Until: date})
	if err != nil {
		return nil, fmt.Errorf("replaying change log: %w", err)
	}

	takenAt := timeNow().UTC().Format(time.RFC3339)
	if !date.IsZero() {
		takenAt = date.UTC().Format(time.RFC3339)
	}
	return replay(cs, takenAt), nil
}

// Apply folds one freshly-recorded change into the cached current snapshot.
// Called by the recorder only after the append committed.
func (s *Store) Apply(projectRoot string, c *change.ArchitectureChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached := s.cache[projectRoot]
	if cached == nil {
		return // nothing materialized yet — next Current replays the log
	}
	applyChange(cached, c)
	cached.ChangeCount++
	cached.TakenAt = c.Timestamp
}

// Invalidate drops the cached current snapshot for a project root.
func (s *Store) Invalidate(projectRoot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, projectRoot)
}

// Capture writes the current snapshot to a timestamped file under
// arch/snapshots/ and returns its path. Capture files are audit artifacts;
// reconstruction always replays the log.
func (s *Store) Capture(projectRoot string) (string, error) {
	snap, err := s.Current(projectRoot)
	if err != nil {
		return "", err
	}

	dir := SnapshotsPath(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", trackerr.NewStorage("create snapshots directory", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", trackerr.NewStorage("marshal snapshot", err)
	}

	name := timeNow().UTC().Format("2006-01-02T150405Z") + ".json"
	path := filepath.Join(dir, name)
	if err := change.WriteFileAtomic(path, data); err != nil {
		return "", trackerr.NewStorage("write snapshot", err)
	}
	return path, nil
}

// --- Replay ---

// replay folds an ordered change list into a snapshot.
func replay(cs []change.ArchitectureChange, takenAt string) *ArchitectureSnapshot {
	snap := &ArchitectureSnapshot{TakenAt: takenAt, ChangeCount: len(cs)}
	for i := range cs {
		applyChange(snap, &cs[i])
	}
	return snap
}

// applyChange routes one change to the entity lists it affects. The
// change's affected component ids name the entities of the kind the change
// type addresses.
func applyChange(snap *ArchitectureSnapshot, c *change.ArchitectureChange) {
	ts := c.Timestamp

	for _, id := range c.Impact.AffectedComponents {
		switch c.Type {
		case change.TypeComponentAdded:
			comp := ensureComponent(snap, id, ts)
			comp.Description = c.Description
			comp.Category = c.Category
			comp.Dependencies = mergeDeps(comp.Dependencies, c.Impact.Dependencies)

		case change.TypeComponentRemoved:
			comp := ensureComponent(snap, id, ts)
			comp.Status = advance(comp.Status, StatusRemoved)
			if comp.Status == StatusRemoved && comp.RemovedAt == "" {
				comp.RemovedAt = ts
			}

		case change.TypeComponentModified, change.TypeTechStackChanged, change.TypePatternChanged:
			comp := ensureComponent(snap, id, ts)
			comp.ModifiedAt = ts
			comp.Dependencies = mergeDeps(comp.Dependencies, c.Impact.Dependencies)

		case change.TypeAPIAdded:
			api := ensureAPI(snap, id, ts)
			api.Description = c.Description

		case change.TypeAPIRemoved:
			api := ensureAPI(snap, id, ts)
			api.Status = advance(api.Status, StatusRemoved)
			if api.Status == StatusRemoved && api.RemovedAt == "" {
				api.RemovedAt = ts
			}

		case change.TypeAPIModified:
			api := ensureAPI(snap, id, ts)
			api.ModifiedAt = ts

		case change.TypeDatabaseSchemaChanged:
			db := ensureDatabase(snap, id, ts)
			db.ModifiedAt = ts

		case change.TypeSecurityPolicyUpdated:
			pol := ensurePolicy(snap, id, ts)
			pol.ModifiedAt = ts

		case change.TypeIntegrationAdded:
			in := ensureIntegration(snap, id, ts)
			in.Description = c.Description

		case change.TypeIntegrationRemoved:
			in := ensureIntegration(snap, id, ts)
			in.Status = advance(in.Status, StatusRemoved)
			if in.Status == StatusRemoved && in.RemovedAt == "" {
				in.RemovedAt = ts
			}
		}
	}
}

func newLifecycle(ts string) Lifecycle {
	return Lifecycle{Status: StatusActive, AddedAt: ts}
}

// ensureComponent finds or creates a component entry. Creation on first
// mention keeps the snapshot consistent with whatever the log says, even
// when the log starts mid-history.
func ensureComponent(snap *ArchitectureSnapshot, id, ts string) *ComponentDefinition {
	if comp := snap.Component(id); comp != nil {
		return comp
	}
	snap.Components = append(snap.Components, ComponentDefinition{
		ID: id, Name: id, Lifecycle: newLifecycle(ts),
	})
	return &snap.Components[len(snap.Components)-1]
}

func ensureAPI(snap *ArchitectureSnapshot, id, ts string) *APIDefinition {
	for i := range snap.APIs {
		if snap.APIs[i].ID == id {
			return &snap.APIs[i]
		}
	}
	snap.APIs = append(snap.APIs, APIDefinition{ID: id, Name: id, Lifecycle: newLifecycle(ts)})
	return &snap.APIs[len(snap.APIs)-1]
}

func ensureDatabase(snap *ArchitectureSnapshot, id, ts string) *DatabaseDefinition {
	for i := range snap.Databases {
		if snap.Databases[i].ID == id {
			return &snap.Databases[i]
		}
	}
	snap.Databases = append(snap.Databases, DatabaseDefinition{ID: id, Name: id, Lifecycle: newLifecycle(ts)})
	return &snap.Databases[len(snap.Databases)-1]
}

func ensureIntegration(snap *ArchitectureSnapshot, id, ts string) *IntegrationDefinition {
	for i := range snap.Integrations {
		if snap.Integrations[i].ID == id {
			return &snap.Integrations[i]
		}
	}
	snap.Integrations = append(snap.Integrations, IntegrationDefinition{ID: id, Name: id, Lifecycle: newLifecycle(ts)})
	return &snap.Integrations[len(snap.Integrations)-1]
}

func ensurePolicy(snap *ArchitectureSnapshot, id, ts string) *SecurityPolicy {
	for i := range snap.SecurityPolicies {
		if snap.SecurityPolicies[i].ID == id {
			return &snap.SecurityPolicies[i]
		}
	}
	snap.SecurityPolicies = append(snap.SecurityPolicies, SecurityPolicy{ID: id, Name: id, Lifecycle: newLifecycle(ts)})
	return &snap.SecurityPolicies[len(snap.SecurityPolicies)-1]
}

// mergeDeps appends new dependencies, keeping order and dropping duplicates.
func mergeDeps(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d] = true
	}
	for _, d := range incoming {
		if !seen[d] {
			existing = append(existing, d)
			seen[d] = true
		}
	}
	return existing
}

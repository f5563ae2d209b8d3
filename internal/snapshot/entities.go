// Package snapshot maintains the current-state view of architecture
// entities and reconstructs historical views by replaying the change log.
//
// The snapshot is never a second source of truth: any snapshot for any date
// can be rebuilt from the append-only log, and the in-memory current view is
// only a materialized cache invalidated on every successful record.
package snapshot

import (
	"github.com/mvaldes/archtrack/internal/change"
)

// --- Entity status ---

// Status is an entity lifecycle state. Transitions are monotonic: an entity
// moves forward through active → migrating → deprecated → removed and never
// back. The migrating state is only meaningful for databases.
type Status string

const (
	StatusActive     Status = "active"
	StatusMigrating  Status = "migrating"
	StatusDeprecated Status = "deprecated"
	StatusRemoved    Status = "removed"
)

// statusRank orders statuses for the monotonicity guard.
var statusRank = map[Status]int{
	StatusActive:     0,
	StatusMigrating:  1,
	StatusDeprecated: 2,
	StatusRemoved:    3,
}

// CanTransition reports whether moving from one status to another respects
// monotonic ordering. Staying in place is allowed.
func CanTransition(from, to Status) bool {
	return statusRank[to] >= statusRank[from]
}

// advance returns next if the transition is legal, otherwise keeps current.
// Replaying a disordered or corrected log can ask for a backward move; the
// snapshot silently holds its ground instead of violating the invariant.
func advance(current, next Status) Status {
	if CanTransition(current, next) {
		return next
	}
	return current
}

// --- Entity lifecycle dates ---

// Lifecycle carries the status and dates common to every entity kind.
// RemovedAt, when set, is always ≥ AddedAt because removal is applied with
// the removing change's timestamp and the log is replayed in order.
type Lifecycle struct {
	Status     Status `json:"status"`
	AddedAt    string `json:"added_at"`
	ModifiedAt string `json:"modified_at,omitempty"`
	RemovedAt  string `json:"removed_at,omitempty"`
}

// --- Entity definitions ---

// ComponentDefinition describes one architecture component.
type ComponentDefinition struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Category     change.Category `json:"category,omitempty"`
	Dependencies []string        `json:"dependencies,omitempty"`
	Lifecycle
}

// APIDefinition describes one exposed API.
type APIDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Lifecycle
}

// DatabaseDefinition describes one database or schema.
type DatabaseDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Engine      string `json:"engine,omitempty"`
	Description string `json:"description,omitempty"`
	Lifecycle
}

// IntegrationDefinition describes one external integration.
type IntegrationDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider,omitempty"`
	Description string `json:"description,omitempty"`
	Lifecycle
}

// SecurityPolicy describes one security policy in force.
type SecurityPolicy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Lifecycle
}

// ArchitectureSnapshot is the architecture state as of a point in time.
type ArchitectureSnapshot struct {
	TakenAt          string                  `json:"taken_at"`
	ChangeCount      int                     `json:"change_count"`
	Components       []ComponentDefinition   `json:"components"`
	APIs             []APIDefinition         `json:"apis"`
	Databases        []DatabaseDefinition    `json:"databases"`
	Integrations     []IntegrationDefinition `json:"integrations"`
	SecurityPolicies []SecurityPolicy        `json:"security_policies"`
}

// Component returns the component with the given id, or nil.
func (s *ArchitectureSnapshot) Component(id string) *ComponentDefinition {
	for i := range s.Components {
		if s.Components[i].ID == id {
			return &s.Components[i]
		}
	}
	return nil
}

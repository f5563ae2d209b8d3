// Package archdiff compares architecture snapshots by date and renders
// Architecture Decision Records from recorded changes.
package archdiff

import (
	"encoding/json"
	"time"

	"github.com/mvaldes/archtrack/internal/snapshot"
)

// CategoryDiff lists entity ids that changed within one entity category.
type CategoryDiff struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Empty reports whether the category saw no changes.
func (d CategoryDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// StructuredDiff enumerates entity changes between two snapshot dates.
type StructuredDiff struct {
	From             string       `json:"from"`
	To               string       `json:"to"`
	Components       CategoryDiff `json:"components"`
	APIs             CategoryDiff `json:"apis"`
	Databases        CategoryDiff `json:"databases"`
	Integrations     CategoryDiff `json:"integrations"`
	SecurityPolicies CategoryDiff `json:"security_policies"`
}

// Empty reports whether no category saw changes.
func (d *StructuredDiff) Empty() bool {
	return d.Components.Empty() && d.APIs.Empty() && d.Databases.Empty() &&
		d.Integrations.Empty() && d.SecurityPolicies.Empty()
}

// Diff reconstructs the snapshots at fromDate and toDate and compares them
// per entity category. Comparison is by entity id: present only in the
// later snapshot is added, only in the earlier is removed, present in both
// with any differing field is modified.
func Diff(store *snapshot.Store, projectRoot string, fromDate, toDate time.Time) (*StructuredDiff, error) {
	before, err := store.At(projectRoot, fromDate)
	if err != nil {
		return nil, err
	}
	after, err := store.At(projectRoot, toDate)
	if err != nil {
		return nil, err
	}

	d := &StructuredDiff{
		From: fromDate.UTC().Format("2006-01-02"),
		To:   toDate.UTC().Format("2006-01-02"),
	}

	d.Components = diffEntities(
		componentKeys(before.Components), componentKeys(after.Components))
	d.APIs = diffEntities(apiKeys(before.APIs), apiKeys(after.APIs))
	d.Databases = diffEntities(dbKeys(before.Databases), dbKeys(after.Databases))
	d.Integrations = diffEntities(
		integrationKeys(before.Integrations), integrationKeys(after.Integrations))
	d.SecurityPolicies = diffEntities(
		policyKeys(before.SecurityPolicies), policyKeys(after.SecurityPolicies))

	return d, nil
}

// entityKey is an entity id paired with a fingerprint of all its fields.
type entityKey struct {
	id          string
	fingerprint string
}

// fingerprint serializes an entity for field-level comparison.
func fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func componentKeys(cs []snapshot.ComponentDefinition) []entityKey {
	keys := make([]entityKey, len(cs))
	for i, c := range cs {
		keys[i] = entityKey{id: c.ID, fingerprint: fingerprint(c)}
	}
	return keys
}

func apiKeys(as []snapshot.APIDefinition) []entityKey {
	keys := make([]entityKey, len(as))
	for i, a := range as {
		keys[i] = entityKey{id: a.ID, fingerprint: fingerprint(a)}
	}
	return keys
}

func dbKeys(ds []snapshot.DatabaseDefinition) []entityKey {
	keys := make([]entityKey, len(ds))
	for i, d := range ds {
		keys[i] = entityKey{id: d.ID, fingerprint: fingerprint(d)}
	}
	return keys
}

func integrationKeys(is []snapshot.IntegrationDefinition) []entityKey {
	keys := make([]entityKey, len(is))
	for i, in := range is {
		keys[i] = entityKey{id: in.ID, fingerprint: fingerprint(in)}
	}
	return keys
}

func policyKeys(ps []snapshot.SecurityPolicy) []entityKey {
	keys := make([]entityKey, len(ps))
	for i, p := range ps {
		keys[i] = entityKey{id: p.ID, fingerprint: fingerprint(p)}
	}
	return keys
}

// diffEntities compares two id sets with fingerprints.
func diffEntities(before, after []entityKey) CategoryDiff {
	beforeByID := make(map[string]string, len(before))
	for _, k := range before {
		beforeByID[k.id] = k.fingerprint
	}

	var d CategoryDiff
	seen := make(map[string]bool, len(after))
	for _, k := range after {
		seen[k.id] = true
		prev, existed := beforeByID[k.id]
		switch {
		case !existed:
			d.Added = append(d.Added, k.id)
		case prev != k.fingerprint:
			d.Modified = append(d.Modified, k.id)
		}
	}
	for _, k := range before {
		if !seen[k.id] {
			d.Removed = append(d.Removed, k.id)
		}
	}
	return d
}

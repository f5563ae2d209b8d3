// Package impact derives risk and conflict reports for architecture changes.
//
// An ImpactReport is computed fresh on every analysis call and is never
// persisted as authoritative state.
package impact

import (
	"fmt"
	"sort"
	"time"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// Severity grades a detected conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Conflict is another recent change touching overlapping components.
type Conflict struct {
	ChangeID    string   `json:"change_id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// ImpactReport is the derived risk/impact view of one change.
type ImpactReport struct {
	ChangeID           string                      `json:"change_id,omitempty"`
	AffectedComponents []string                    `json:"affected_components"`
	RiskScore          int                         `json:"risk_score"`
	Conflicts          []Conflict                  `json:"conflicts"`
	RelatedChanges     []change.ArchitectureChange `json:"related_changes"`
	Recommendations    []string                    `json:"recommendations"`
}

// Analyzer computes impact reports against the change log. It is read-only
// with respect to the log and snapshot, so independent analyses may run in
// parallel. Weights and windows come from the project's configuration,
// loaded per call.
type Analyzer struct {
	snap *snapshot.Store
}

// NewAnalyzer creates an Analyzer over the given snapshot store.
func NewAnalyzer(snap *snapshot.Store) *Analyzer {
	return &Analyzer{snap: snap}
}

// Analyze produces the impact report for a change. The change may be
// recorded or merely proposed — a proposal has no id and is scored against
// the log as of now.
func (a *Analyzer) Analyze(projectRoot string, c *change.ArchitectureChange) (*ImpactReport, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	lookback := time.Duration(cfg.LookbackDays) * 24 * time.Hour

	report := &ImpactReport{
		ChangeID:           c.ID,
		AffectedComponents: c.Impact.AffectedComponents,
		RiskScore:          RiskScore(c, cfg.Weights),
	}

	ref := timeNow().UTC()
	if c.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, c.Timestamp); err == nil {
			ref = ts
		}
	}

	// Conflicts: other changes inside the lookback window that share a
	// component with this one.
	recent, err := a.snap.Changes(projectRoot, ref.Add(-lookback), time.Time{})
	if err != nil {
		return nil, fmt.Errorf("loading recent changes: %w", err)
	}
	for i := range recent {
		other := &recent[i]
		if other.ID == c.ID && c.ID != "" {
			continue
		}
		if !sharesComponent(c, other) {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			ChangeID: other.ID,
			Severity: conflictSeverity(c, other),
			Description: fmt.Sprintf("overlaps with %q (%s) on %s",
				other.Description, other.Type, overlapList(c, other)),
		})
	}

	related, err := a.relatedChanges(projectRoot, c, cfg.RelatedCap)
	if err != nil {
		return nil, err
	}
	report.RelatedChanges = related

	report.Recommendations = recommendations(c, report.Conflicts)
	return report, nil
}

// relatedChanges lists all changes sharing a component with c,
// most-recent-first, capped.
func (a *Analyzer) relatedChanges(projectRoot string, c *change.ArchitectureChange, limit int) ([]change.ArchitectureChange, error) {
	all, err := a.snap.Changes(projectRoot, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("loading change log: %w", err)
	}

	var related []change.ArchitectureChange
	for i := range all {
		if all[i].ID == c.ID && c.ID != "" {
			continue
		}
		if sharesComponent(c, &all[i]) {
			related = append(related, all[i])
		}
	}

	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Timestamp > related[j].Timestamp
	})
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

// RiskScore computes the bounded risk estimate for a change.
func RiskScore(c *change.ArchitectureChange, w config.Weights) int {
	score := 0

	if c.Impact.BreakingChange {
		score += w.Breaking
	}
	if c.Impact.SecurityImpact {
		score += w.Security
	}

	switch c.Impact.EstimatedEffort {
	case change.EffortHigh:
		score += w.EffortHigh
	case change.EffortMedium:
		score += w.EffortMedium
	case change.EffortLow:
		score += w.EffortLow
	}

	if extra := len(c.Impact.AffectedComponents) - 1; extra > 0 {
		if extra > w.ExtraComponentCap {
			extra = w.ExtraComponentCap
		}
		score += extra * w.ExtraComponent
	}

	if c.Type.IsRemoval() || c.Type.IsSchemaChange() {
		score += w.DisruptiveType
	}

	if score > w.MaxScore {
		score = w.MaxScore
	}
	return score
}

// conflictSeverity grades the overlap between two changes: high when either
// is breaking or both touch security, medium when either touches security,
// low otherwise.
func conflictSeverity(a, b *change.ArchitectureChange) Severity {
	switch {
	case a.Impact.BreakingChange || b.Impact.BreakingChange:
		return SeverityHigh
	case a.Impact.SecurityImpact && b.Impact.SecurityImpact:
		return SeverityHigh
	case a.Impact.SecurityImpact || b.Impact.SecurityImpact:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// highConflictThreshold is the conflict count at or above which
// coordination is recommended.
const highConflictThreshold = 2

// recommendations templates human-readable advice from the analysis.
func recommendations(c *change.ArchitectureChange, conflicts []Conflict) []string {
	var recs []string
	if c.Impact.BreakingChange {
		recs = append(recs, "Breaking change: plan deprecation and migration notes before rollout.")
	}
	if c.Impact.SecurityImpact {
		recs = append(recs, "Security-impacting change: route through security review.")
	}
	if len(conflicts) >= highConflictThreshold {
		recs = append(recs, fmt.Sprintf(
			"%d overlapping changes detected: coordinate with the authors of related changes.", len(conflicts)))
	}
	if c.Impact.PerformanceImpact == change.PerformanceDegradation {
		recs = append(recs, "Expected performance degradation: benchmark the affected paths before and after.")
	}
	return recs
}

// NeedsRegeneration is the trigger rule the orchestrator applies: a change
// requires document regeneration when it is breaking, its type denotes
// removal or a schema change, or the target document is already outdated.
func NeedsRegeneration(c *change.ArchitectureChange, documentOutdated bool) bool {
	return c.Impact.BreakingChange ||
		c.Type.IsRemoval() ||
		c.Type.IsSchemaChange() ||
		documentOutdated
}

// sharesComponent reports whether two changes touch at least one common
// component.
func sharesComponent(a, b *change.ArchitectureChange) bool {
	for _, id := range a.Impact.AffectedComponents {
		if change.TouchesComponent(b, id) {
			return true
		}
	}
	return false
}

// overlapList names the components two changes share, for conflict text.
func overlapList(a, b *change.ArchitectureChange) string {
	var shared []string
	for _, id := range a.Impact.AffectedComponents {
		if change.TouchesComponent(b, id) {
			shared = append(shared, id)
		}
	}
	out := ""
	for i, id := range shared {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

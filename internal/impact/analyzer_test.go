package impact

import (
	"strings"
	"testing"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

func mkChange(id, ts string, typ change.ChangeType, components ...string) *change.ArchitectureChange {
	return &change.ArchitectureChange{
		ID:          id,
		Timestamp:   ts,
		Type:        typ,
		Category:    change.CategoryBackend,
		Description: "change " + id,
		Author:      "test",
		Impact: change.Impact{
			AffectedComponents: components,
			EstimatedEffort:    change.EffortLow,
		},
	}
}

func TestRiskScore(t *testing.T) {
	w := config.DefaultWeights()

	tests := []struct {
		name string
		c    *change.ArchitectureChange
		want int
	}{
		{
			name: "minimal low-effort change",
			c: &change.ArchitectureChange{
				Type: change.TypeComponentModified,
				Impact: change.Impact{
					AffectedComponents: []string{"a"},
					EstimatedEffort:    change.EffortLow,
				},
			},
			want: 1,
		},
		{
			name: "breaking high-effort schema change on one component",
			c: &change.ArchitectureChange{
				Type: change.TypeDatabaseSchemaChanged,
				Impact: change.Impact{
					AffectedComponents: []string{"orders-service"},
					EstimatedEffort:    change.EffortHigh,
					BreakingChange:     true,
				},
			},
			want: 24, // 10 breaking + 6 effort + 8 disruptive type
		},
		{
			name: "removal adds the disruptive type weight",
			c: &change.ArchitectureChange{
				Type: change.TypeComponentRemoved,
				Impact: change.Impact{
					AffectedComponents: []string{"a"},
					EstimatedEffort:    change.EffortMedium,
				},
			},
			want: 11, // 3 effort + 8 disruptive type
		},
		{
			name: "extra components capped",
			c: &change.ArchitectureChange{
				Type: change.TypeComponentModified,
				Impact: change.Impact{
					AffectedComponents: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"},
					EstimatedEffort:    change.EffortLow,
				},
			},
			want: 6, // 1 effort + 5 capped extras
		},
		{
			name: "everything at once is capped at max",
			c: &change.ArchitectureChange{
				Type: change.TypeComponentRemoved,
				Impact: change.Impact{
					AffectedComponents: []string{"a", "b", "c", "d", "e", "f", "g"},
					EstimatedEffort:    change.EffortHigh,
					BreakingChange:     true,
					SecurityImpact:     true,
				},
			},
			want: 30,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskScore(tt.c, w); got != tt.want {
				t.Errorf("RiskScore = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRiskScoreOrderingProperty(t *testing.T) {
	w := config.DefaultWeights()
	base := change.Impact{
		AffectedComponents: []string{"a"},
		EstimatedEffort:    change.EffortMedium,
	}

	plain := &change.ArchitectureChange{Type: change.TypeComponentModified, Impact: base}

	risky := &change.ArchitectureChange{Type: change.TypeComponentModified, Impact: base}
	risky.Impact.BreakingChange = true
	risky.Impact.SecurityImpact = true

	if RiskScore(risky, w) <= RiskScore(plain, w) {
		t.Error("a breaking+security change must score higher than the same change without")
	}
	if RiskScore(plain, w) < 0 || RiskScore(risky, w) > w.MaxScore {
		t.Error("risk scores must stay within [0, MaxScore]")
	}
}

func TestNeedsRegeneration(t *testing.T) {
	tests := []struct {
		name     string
		typ      change.ChangeType
		breaking bool
		outdated bool
		want     bool
	}{
		{"breaking change", change.TypeComponentModified, true, false, true},
		{"removal", change.TypeAPIRemoved, false, false, true},
		{"schema change", change.TypeDatabaseSchemaChanged, false, false, true},
		{"outdated document", change.TypeComponentModified, false, true, true},
		{"plain modification", change.TypeComponentModified, false, false, false},
		{"plain addition", change.TypeComponentAdded, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &change.ArchitectureChange{
				Type:   tt.typ,
				Impact: change.Impact{BreakingChange: tt.breaking},
			}
			if got := NeedsRegeneration(c, tt.outdated); got != tt.want {
				t.Errorf("NeedsRegeneration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConflictSeverity(t *testing.T) {
	plain := &change.ArchitectureChange{}
	breaking := &change.ArchitectureChange{Impact: change.Impact{BreakingChange: true}}
	security := &change.ArchitectureChange{Impact: change.Impact{SecurityImpact: true}}

	tests := []struct {
		name string
		a, b *change.ArchitectureChange
		want Severity
	}{
		{"one breaking", breaking, plain, SeverityHigh},
		{"other breaking", plain, breaking, SeverityHigh},
		{"both security", security, security, SeverityHigh},
		{"one security", security, plain, SeverityMedium},
		{"neither", plain, plain, SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conflictSeverity(tt.a, tt.b); got != tt.want {
				t.Errorf("conflictSeverity = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAnalyzeDetectsOverlappingRecentChange(t *testing.T) {
	root := t.TempDir()
	fs := change.NewFileStore()
	snap := snapshot.NewStore(fs)
	analyzer := NewAnalyzer(snap)

	// Two changes five days apart touching the same gateway; the second
	// one is breaking.
	first := mkChange("c1", "2024-04-01T00:00:00Z", change.TypeComponentModified, "auth-gateway")
	if err := fs.Append(root, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	second := mkChange("c2", "2024-04-06T00:00:00Z", change.TypeComponentModified, "auth-gateway")
	second.Impact.BreakingChange = true
	if err := fs.Append(root, second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	report, err := analyzer.Analyze(root, second)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(report.Conflicts) != 1 {
		t.Fatalf("Conflicts = %d, want 1", len(report.Conflicts))
	}
	conflict := report.Conflicts[0]
	if conflict.ChangeID != "c1" {
		t.Errorf("conflict ChangeID = %s, want c1", conflict.ChangeID)
	}
	if conflict.Severity != SeverityHigh {
		t.Errorf("Severity = %s, want high (one side is breaking)", conflict.Severity)
	}
	if !strings.Contains(conflict.Description, "auth-gateway") {
		t.Errorf("conflict description should name the shared component, got %q", conflict.Description)
	}

	if len(report.RelatedChanges) != 1 || report.RelatedChanges[0].ID != "c1" {
		t.Errorf("RelatedChanges = %v, want [c1]", report.RelatedChanges)
	}
}

func TestAnalyzeIgnoresChangesOutsideLookback(t *testing.T) {
	root := t.TempDir()
	fs := change.NewFileStore()
	analyzer := NewAnalyzer(snapshot.NewStore(fs))

	// Recorded far before the 30-day default lookback of the subject.
	old := mkChange("old", "2023-01-01T00:00:00Z", change.TypeComponentModified, "auth-gateway")
	if err := fs.Append(root, old); err != nil {
		t.Fatalf("Append: %v", err)
	}
	subject := mkChange("now", "2024-04-06T00:00:00Z", change.TypeComponentModified, "auth-gateway")
	if err := fs.Append(root, subject); err != nil {
		t.Fatalf("Append: %v", err)
	}

	report, err := analyzer.Analyze(root, subject)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Conflicts) != 0 {
		t.Errorf("stale changes must not conflict, got %v", report.Conflicts)
	}
	// They still show up as related history.
	if len(report.RelatedChanges) != 1 || report.RelatedChanges[0].ID != "old" {
		t.Errorf("RelatedChanges = %v, want [old]", report.RelatedChanges)
	}
}

func TestAnalyzeUnrecordedProposal(t *testing.T) {
	root := t.TempDir()
	fs := change.NewFileStore()
	analyzer := NewAnalyzer(snapshot.NewStore(fs))

	proposal := mkChange("", "2024-04-06T00:00:00Z", change.TypeComponentRemoved, "billing")
	proposal.Impact.BreakingChange = true

	report, err := analyzer.Analyze(root, proposal)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.RiskScore == 0 {
		t.Error("proposal should be scored even without an id")
	}
	if len(report.Recommendations) == 0 {
		t.Error("breaking removal should yield recommendations")
	}
}

func TestRecommendations(t *testing.T) {
	c := mkChange("c1", "2024-04-06T00:00:00Z", change.TypeComponentModified, "a")
	c.Impact.BreakingChange = true
	c.Impact.SecurityImpact = true
	c.Impact.PerformanceImpact = change.PerformanceDegradation

	conflicts := []Conflict{
		{ChangeID: "x", Severity: SeverityLow},
		{ChangeID: "y", Severity: SeverityLow},
	}

	recs := recommendations(c, conflicts)
	joined := strings.Join(recs, "\n")
	for _, want := range []string{"Breaking change", "security review", "overlapping changes", "performance degradation"} {
		if !strings.Contains(joined, want) {
			t.Errorf("recommendations missing %q in %q", want, joined)
		}
	}
}

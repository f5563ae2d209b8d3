// Package change defines the architecture-change data model and its
// append-only persistence.
//
// An ArchitectureChange is an immutable, timestamped fact: once recorded it
// is never mutated, and corrections are new records referencing the old one.
// Categorical fields are closed typed strings validated at the boundary so
// invalid values fail at recording time instead of corrupting downstream
// reports.
package change

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// --- Change type enum ---

// ChangeType categorizes what kind of architecture change occurred.
type ChangeType string

const (
	TypeComponentAdded        ChangeType = "component-added"
	TypeComponentRemoved      ChangeType = "component-removed"
	TypeComponentModified     ChangeType = "component-modified"
	TypeAPIAdded              ChangeType = "api-added"
	TypeAPIRemoved            ChangeType = "api-removed"
	TypeAPIModified           ChangeType = "api-modified"
	TypeDatabaseSchemaChanged ChangeType = "database-schema-changed"
	TypeSecurityPolicyUpdated ChangeType = "security-policy-updated"
	TypeTechStackChanged      ChangeType = "tech-stack-changed"
	TypeIntegrationAdded      ChangeType = "integration-added"
	TypeIntegrationRemoved    ChangeType = "integration-removed"
	TypePatternChanged        ChangeType = "pattern-changed"
)

// validTypes is the set of allowed change types.
var validTypes = map[ChangeType]bool{
	TypeComponentAdded:        true,
	TypeComponentRemoved:      true,
	TypeComponentModified:     true,
	TypeAPIAdded:              true,
	TypeAPIRemoved:            true,
	TypeAPIModified:           true,
	TypeDatabaseSchemaChanged: true,
	TypeSecurityPolicyUpdated: true,
	TypeTechStackChanged:      true,
	TypeIntegrationAdded:      true,
	TypeIntegrationRemoved:    true,
	TypePatternChanged:        true,
}

// TypeValues returns the allowed change type strings in a stable order.
func TypeValues() []string {
	return []string{
		string(TypeComponentAdded), string(TypeComponentRemoved), string(TypeComponentModified),
		string(TypeAPIAdded), string(TypeAPIRemoved), string(TypeAPIModified),
		string(TypeDatabaseSchemaChanged), string(TypeSecurityPolicyUpdated),
		string(TypeTechStackChanged),
		string(TypeIntegrationAdded), string(TypeIntegrationRemoved),
		string(TypePatternChanged),
	}
}

// ValidateType returns a ValidationError if the type is not recognized.
func ValidateType(t ChangeType) error {
	if !validTypes[t] {
		return trackerr.NewValidation("type",
			fmt.Sprintf("%q is not a recognized change type", t))
	}
	return nil
}

// IsAddition reports whether the type introduces a new entity.
func (t ChangeType) IsAddition() bool {
	return t == TypeComponentAdded || t == TypeAPIAdded || t == TypeIntegrationAdded
}

// IsRemoval reports whether the type removes an entity.
func (t ChangeType) IsRemoval() bool {
	return t == TypeComponentRemoved || t == TypeAPIRemoved || t == TypeIntegrationRemoved
}

// IsSchemaChange reports whether the type denotes a database schema change.
func (t ChangeType) IsSchemaChange() bool {
	return t == TypeDatabaseSchemaChanged
}

// --- Category enum ---

// Category places a change within one architectural concern.
type Category string

const (
	CategoryFrontend       Category = "frontend"
	CategoryBackend        Category = "backend"
	CategoryDatabase       Category = "database"
	CategoryInfrastructure Category = "infrastructure"
	CategorySecurity       Category = "security"
	CategoryIntegration    Category = "integration"
	CategoryDeployment     Category = "deployment"
	CategoryMonitoring     Category = "monitoring"
)

// validCategories is the set of allowed categories.
var validCategories = map[Category]bool{
	CategoryFrontend:       true,
	CategoryBackend:        true,
	CategoryDatabase:       true,
	CategoryInfrastructure: true,
	CategorySecurity:       true,
	CategoryIntegration:    true,
	CategoryDeployment:     true,
	CategoryMonitoring:     true,
}

// CategoryValues returns the allowed category strings in a stable order.
func CategoryValues() []string {
	return []string{
		string(CategoryFrontend), string(CategoryBackend), string(CategoryDatabase),
		string(CategoryInfrastructure), string(CategorySecurity), string(CategoryIntegration),
		string(CategoryDeployment), string(CategoryMonitoring),
	}
}

// ValidateCategory returns a ValidationError if the category is not recognized.
func ValidateCategory(c Category) error {
	if !validCategories[c] {
		return trackerr.NewValidation("category",
			fmt.Sprintf("%q is not a recognized category", c))
	}
	return nil
}

// --- Effort tier enum ---

// EffortTier is the estimated implementation effort for a change.
type EffortTier string

const (
	EffortLow    EffortTier = "low"
	EffortMedium EffortTier = "medium"
	EffortHigh   EffortTier = "high"
)

// validEfforts is the set of allowed effort tiers.
var validEfforts = map[EffortTier]bool{
	EffortLow:    true,
	EffortMedium: true,
	EffortHigh:   true,
}

// ValidateEffort returns a ValidationError if the tier is not recognized.
func ValidateEffort(e EffortTier) error {
	if !validEfforts[e] {
		return trackerr.NewValidation("impact.estimatedEffort",
			fmt.Sprintf("%q must be one of: low, medium, high", e))
	}
	return nil
}

// --- Performance impact enum ---

// PerformanceImpact is the optional expected performance direction.
type PerformanceImpact string

const (
	PerformanceImprovement PerformanceImpact = "improvement"
	PerformanceDegradation PerformanceImpact = "degradation"
	PerformanceNeutral     PerformanceImpact = "neutral"
)

// ValidatePerformance returns a ValidationError if the value is set and not
// recognized. Empty is allowed — the field is optional.
func ValidatePerformance(p PerformanceImpact) error {
	switch p {
	case "", PerformanceImprovement, PerformanceDegradation, PerformanceNeutral:
		return nil
	}
	return trackerr.NewValidation("impact.performanceImpact",
		fmt.Sprintf("%q must be one of: improvement, degradation, neutral", p))
}

// --- Core data structures ---

// Impact captures the estimated blast radius of a change.
type Impact struct {
	AffectedComponents []string          `json:"affected_components"`
	EstimatedEffort    EffortTier        `json:"estimated_effort"`
	BreakingChange     bool              `json:"breaking_change"`
	SecurityImpact     bool              `json:"security_impact,omitempty"`
	PerformanceImpact  PerformanceImpact `json:"performance_impact,omitempty"`
	Dependencies       []string          `json:"dependencies,omitempty"`
}

// ArchitectureChange is an immutable recorded change, persisted as one JSON
// file per change.
type ArchitectureChange struct {
	ID             string     `json:"id"`
	Timestamp      string     `json:"timestamp"` // RFC3339
	Type           ChangeType `json:"type"`
	Category       Category   `json:"category"`
	Description    string     `json:"description"`
	Rationale      string     `json:"rationale,omitempty"`
	AffectedFiles  []string   `json:"affected_files,omitempty"`
	SpecDocumentID string     `json:"spec_document_id,omitempty"`
	Author         string     `json:"author"`
	// Supersedes references an earlier change this one corrects; the old
	// record is never rewritten.
	Supersedes string `json:"supersedes,omitempty"`
	Impact     Impact `json:"impact"`
}

// Draft is a change before recording: everything except the id and
// timestamp, which the recorder generates.
type Draft struct {
	Type           ChangeType
	Category       Category
	Description    string
	Rationale      string
	AffectedFiles  []string
	SpecDocumentID string
	Author         string
	Supersedes     string
	Impact         Impact
}

// Validate checks the draft's required fields and closed enums.
func (d Draft) Validate() error {
	if err := ValidateType(d.Type); err != nil {
		return err
	}
	if err := ValidateCategory(d.Category); err != nil {
		return err
	}
	if strings.TrimSpace(d.Description) == "" {
		return trackerr.NewValidation("description", "must not be empty")
	}
	if err := ValidateEffort(d.Impact.EstimatedEffort); err != nil {
		return err
	}
	if err := ValidatePerformance(d.Impact.PerformanceImpact); err != nil {
		return err
	}
	return nil
}

// NewID generates a collision-resistant change id.
func NewID() string {
	return uuid.NewString()
}

// --- Slug generation ---

const maxSlugLen = 50

// Slugify converts a description into a filesystem-safe slug, used for ADR
// and backup filenames. Example: "Split orders service" → "split-orders-service".
func Slugify(description string) string {
	if strings.TrimSpace(description) == "" {
		return "unnamed-change"
	}

	s := strings.ToLower(strings.TrimSpace(description))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "unnamed-change"
	}

	if len(slug) <= maxSlugLen {
		return slug
	}

	// Truncate at a word boundary if possible.
	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}

	return strings.TrimRight(truncated, "-")
}

// Package prp parses and regenerates PRP specification documents.
//
// Regeneration works as a structural merge, never a text diff: a document is
// parsed into typed sections and checklist items keyed by stable
// content-hash identities, human-entered state is lifted out, the document
// is regenerated from the architecture model, and the preserved state is
// folded back in at the structural level.
package prp

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mvaldes/archtrack/internal/change"
)

// Status is the lifecycle state of a PRP document.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOutdated   Status = "outdated"
	StatusArchived   Status = "archived"
)

// SectionType tags a section as one of the fixed known kinds, or custom.
type SectionType string

const (
	SectionOverview              SectionType = "overview"
	SectionTechnicalContext      SectionType = "technical-context"
	SectionArchitectureChanges   SectionType = "architecture-changes"
	SectionDataSchema            SectionType = "data-schema"
	SectionFileStructure         SectionType = "file-structure"
	SectionImplementationOrder   SectionType = "implementation-order"
	SectionValidationCheckpoints SectionType = "validation-checkpoints"
	SectionImplementationNotes   SectionType = "implementation-notes"
	SectionCustom                SectionType = "custom"
)

// knownSections maps section id slugs to their types. A section whose slug
// is not here is custom and its body is preserved verbatim.
var knownSections = map[string]SectionType{
	"overview":               SectionOverview,
	"technical-context":      SectionTechnicalContext,
	"architecture-changes":   SectionArchitectureChanges,
	"data-schema":            SectionDataSchema,
	"file-structure":         SectionFileStructure,
	"implementation-order":   SectionImplementationOrder,
	"validation-checkpoints": SectionValidationCheckpoints,
	"implementation-notes":   SectionImplementationNotes,
}

// requiredSections are the sections every generated document carries.
var requiredSections = map[SectionType]bool{
	SectionOverview:              true,
	SectionTechnicalContext:      true,
	SectionArchitectureChanges:   true,
	SectionImplementationOrder:   true,
	SectionValidationCheckpoints: true,
}

// Section is one heading-delimited block of a document.
type Section struct {
	ID       string      `json:"id"` // slug of the title
	Title    string      `json:"title"`
	Body     string      `json:"body"`
	Type     SectionType `json:"type"`
	Required bool        `json:"required"`
	Custom   bool        `json:"custom"`
}

// ChecklistItem is one two-state task line within a section.
type ChecklistItem struct {
	// Identity is stable across regenerations as long as the item text and
	// its section are unchanged.
	Identity  string `json:"identity"`
	Text      string `json:"text"`
	Checked   bool   `json:"checked"`
	SectionID string `json:"section_id"`
	Line      int    `json:"line"` // 1-based line number in the document
}

// CompletionStatus is derived from a document's checklist items.
type CompletionStatus struct {
	TotalTasks     int             `json:"total_tasks"`
	CompletedTasks int             `json:"completed_tasks"`
	Items          []ChecklistItem `json:"items"`
}

// Metadata is the leading key: value block of a document.
type Metadata struct {
	ID                  string `json:"id"`
	Component           string `json:"component"`
	Version             int    `json:"version"`
	Generated           string `json:"generated"`
	ArchitectureVersion string `json:"architecture_version"`
	Status              Status `json:"status"`
}

// PRPDocument is the parsed structural model of a specification document.
type PRPDocument struct {
	Path       string           `json:"path"`
	Title      string           `json:"title"`
	Meta       Metadata         `json:"meta"`
	Sections   []Section        `json:"sections"`
	Completion CompletionStatus `json:"completion"`
}

// Section returns the section with the given id, or nil.
func (d *PRPDocument) Section(id string) *Section {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i]
		}
	}
	return nil
}

// PreservedContent is the human-entered state that must survive
// regeneration.
type PreservedContent struct {
	// Checklist maps item identity to its checked state.
	Checklist map[string]bool `json:"checklist"`
	// CustomSections keeps unknown sections verbatim, in original order.
	CustomSections []Section `json:"custom_sections"`
	// Notes is the free-text body of the implementation-notes section.
	Notes string `json:"notes"`
}

// CompletedCount returns how many preserved items are checked.
func (p *PreservedContent) CompletedCount() int {
	n := 0
	for _, checked := range p.Checklist {
		if checked {
			n++
		}
	}
	return n
}

// ItemIdentity derives the stable identity for a checklist item: a hash of
// the item's normalized text plus its enclosing section id, so state
// survives reordering and minor section renumbering.
func ItemIdentity(text, sectionID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized + "\n" + sectionID))
	return hex.EncodeToString(sum[:])[:12]
}

// sectionTypeFor classifies a section id slug.
func sectionTypeFor(slug string) SectionType {
	if t, ok := knownSections[slug]; ok {
		return t
	}
	return SectionCustom
}

// slugForTitle converts a section title to its id.
func slugForTitle(title string) string {
	return change.Slugify(title)
}

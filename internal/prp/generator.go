package prp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/snapshot"
)

// Options controls what a regeneration preserves and annotates.
type Options struct {
	// PreserveProgress rewrites checklist items whose identity matches a
	// preserved item to carry the preserved checked state.
	PreserveProgress bool
	// PreserveCustomSections appends every custom section verbatim, in
	// original order.
	PreserveCustomSections bool
	// AddChangeMarkers inserts a change-notice block after the title and
	// annotates headings matching affected component names.
	AddChangeMarkers bool
}

// DefaultOptions preserves everything and adds markers.
func DefaultOptions() Options {
	return Options{
		PreserveProgress:       true,
		PreserveCustomSections: true,
		AddChangeMarkers:       true,
	}
}

// Input carries everything the generator needs for one document.
type Input struct {
	Meta      Metadata
	Component snapshot.ComponentDefinition
	Snapshot  *snapshot.ArchitectureSnapshot
	Changes   []change.ArchitectureChange
	Preserved *PreservedContent
}

// changeMarkerSuffix annotates headings whose subject was touched by the
// input changes.
const changeMarkerSuffix = " *(updated)*"

// Generate produces the full document text in fixed section order, then
// applies the preservation and marker passes.
func Generate(in Input, opts Options) string {
	var b strings.Builder

	name := in.Component.Name
	if name == "" {
		name = in.Meta.Component
	}

	fmt.Fprintf(&b, "# PRP: %s\n\n", name)

	if opts.AddChangeMarkers && len(in.Changes) > 0 {
		fmt.Fprintf(&b, "> **Change notice:** %d architecture change(s) since the last generation.\n", len(in.Changes))
		b.WriteString("> Review the Architecture Changes section before continuing implementation.\n\n")
	}

	writeMetadata(&b, in.Meta)
	writeOverview(&b, in)
	writeTechnicalContext(&b, in)
	writeArchitectureChanges(&b, in)
	writeDataSchema(&b, name)
	writeFileStructure(&b, in, name)
	writeImplementationOrder(&b, name)
	writeValidationCheckpoints(&b, name)

	if opts.PreserveCustomSections && in.Preserved != nil {
		for _, sec := range in.Preserved.CustomSections {
			fmt.Fprintf(&b, "## %s\n\n", sec.Title)
			b.WriteString(strings.TrimRight(sec.Body, "\n"))
			b.WriteString("\n\n")
		}
	}

	writeImplementationNotes(&b, in, opts)

	text := strings.TrimRight(b.String(), "\n") + "\n"

	if opts.AddChangeMarkers {
		text = annotateHeadings(text, affectedComponentSet(in.Changes))
	}
	if opts.PreserveProgress && in.Preserved != nil {
		text = applyPreservedProgress(text, in.Preserved)
	}
	return text
}

func writeMetadata(b *strings.Builder, m Metadata) {
	fmt.Fprintf(b, "id: %s\n", m.ID)
	fmt.Fprintf(b, "component: %s\n", m.Component)
	fmt.Fprintf(b, "version: %d\n", m.Version)
	fmt.Fprintf(b, "generated: %s\n", m.Generated)
	fmt.Fprintf(b, "architecture_version: %s\n", m.ArchitectureVersion)
	fmt.Fprintf(b, "status: %s\n\n", m.Status)
}

func writeOverview(b *strings.Builder, in Input) {
	b.WriteString("## Overview\n\n")
	if in.Component.Description != "" {
		b.WriteString(in.Component.Description + "\n\n")
	}
	fmt.Fprintf(b, "- **Status:** %s\n", orDash(string(in.Component.Status)))
	fmt.Fprintf(b, "- **Category:** %s\n", orDash(string(in.Component.Category)))
	fmt.Fprintf(b, "- **Added:** %s\n", orDash(in.Component.AddedAt))
	if in.Component.ModifiedAt != "" {
		fmt.Fprintf(b, "- **Last modified:** %s\n", in.Component.ModifiedAt)
	}
	b.WriteString("\n")
}

func writeTechnicalContext(b *strings.Builder, in Input) {
	b.WriteString("## Technical Context\n\n")

	b.WriteString("**Dependencies:**\n\n")
	if len(in.Component.Dependencies) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, dep := range in.Component.Dependencies {
		fmt.Fprintf(b, "- %s\n", dep)
	}
	b.WriteString("\n")

	if in.Snapshot != nil {
		if actives := activeIntegrations(in.Snapshot); len(actives) > 0 {
			b.WriteString("**Integrations:**\n\n")
			for _, name := range actives {
				fmt.Fprintf(b, "- %s\n", name)
			}
			b.WriteString("\n")
		}
		if dbs := activeDatabases(in.Snapshot); len(dbs) > 0 {
			b.WriteString("**Data stores:**\n\n")
			for _, db := range dbs {
				fmt.Fprintf(b, "- %s\n", db)
			}
			b.WriteString("\n")
		}
	}
}

func writeArchitectureChanges(b *strings.Builder, in Input) {
	b.WriteString("## Architecture Changes\n\n")

	if len(in.Changes) == 0 {
		b.WriteString("_No architecture changes recorded for this component._\n\n")
		return
	}

	for i := range in.Changes {
		c := &in.Changes[i]
		fmt.Fprintf(b, "### %s: %s\n\n", c.Type, c.Description)
		fmt.Fprintf(b, "- **Recorded:** %s by %s\n", c.Timestamp, c.Author)
		fmt.Fprintf(b, "- **Category:** %s\n", c.Category)
		fmt.Fprintf(b, "- **Effort:** %s\n", c.Impact.EstimatedEffort)
		if c.Impact.BreakingChange {
			b.WriteString("- **Breaking change**\n")
		}
		if c.Impact.SecurityImpact {
			b.WriteString("- **Security impact**\n")
		}
		if c.Rationale != "" {
			fmt.Fprintf(b, "- **Rationale:** %s\n", c.Rationale)
		}
		fmt.Fprintf(b, "\n%s\n\n", actionLine(c.Type))
	}
}

func writeDataSchema(b *strings.Builder, name string) {
	b.WriteString("## Data Schema\n\n")
	fmt.Fprintf(b, "Define or update the schemas owned by %s. Capture every entity, its fields, and migration steps for any schema change listed above.\n\n", name)
}

func writeFileStructure(b *strings.Builder, in Input, name string) {
	b.WriteString("## File Structure\n\n")

	files := affectedFiles(in.Changes)
	if len(files) == 0 {
		fmt.Fprintf(b, "No files are linked to recent changes for %s. List the paths this work will touch.\n\n", name)
		return
	}
	b.WriteString("Paths touched by the changes above:\n\n")
	for _, f := range files {
		fmt.Fprintf(b, "- `%s`\n", f)
	}
	b.WriteString("\n")
}

func writeImplementationOrder(b *strings.Builder, name string) {
	b.WriteString("## Implementation Order\n\n")
	fmt.Fprintf(b, "- [ ] Review architecture changes affecting %s\n", name)
	fmt.Fprintf(b, "- [ ] Update interfaces and contracts of %s\n", name)
	b.WriteString("- [ ] Apply data and schema migrations\n")
	b.WriteString("- [ ] Update integration points\n")
	b.WriteString("- [ ] Refresh tests for changed behavior\n\n")
}

func writeValidationCheckpoints(b *strings.Builder, name string) {
	b.WriteString("## Validation Checkpoints\n\n")
	b.WriteString("- [ ] Every implementation-order task is complete\n")
	fmt.Fprintf(b, "- [ ] No references to removed entities remain in %s\n", name)
	b.WriteString("- [ ] Security-impacting changes passed review\n")
	b.WriteString("- [ ] Regenerated documentation reviewed\n\n")
}

func writeImplementationNotes(b *strings.Builder, in Input, opts Options) {
	b.WriteString("## Implementation Notes\n\n")
	if opts.PreserveCustomSections && in.Preserved != nil && strings.TrimSpace(in.Preserved.Notes) != "" {
		b.WriteString(strings.TrimRight(in.Preserved.Notes, "\n"))
		b.WriteString("\n")
		return
	}
	b.WriteString("_Free-form notes added here survive regeneration._\n")
}

// orDash substitutes a dash for empty values in metadata lists.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// actionLine templates the per-change instruction keyed by change type.
func actionLine(t change.ChangeType) string {
	switch {
	case t.IsAddition():
		return "**Action required:** implement new functionality."
	case t.IsRemoval():
		return "**Action required:** remove deprecated code and update dependencies."
	case t == change.TypeComponentModified, t == change.TypeAPIModified:
		return "**Action required:** update existing implementation."
	default:
		return "**Action required:** review and migrate affected definitions."
	}
}

// affectedFiles unions the file paths of all changes, sorted.
func affectedFiles(cs []change.ArchitectureChange) []string {
	seen := make(map[string]bool)
	var files []string
	for i := range cs {
		for _, f := range cs[i].AffectedFiles {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	sort.Strings(files)
	return files
}

// affectedComponentSet unions component ids across changes.
func affectedComponentSet(cs []change.ArchitectureChange) map[string]bool {
	set := make(map[string]bool)
	for i := range cs {
		for _, id := range cs[i].Impact.AffectedComponents {
			set[id] = true
		}
	}
	return set
}

// activeIntegrations lists non-removed integration names.
func activeIntegrations(snap *snapshot.ArchitectureSnapshot) []string {
	var out []string
	for _, in := range snap.Integrations {
		if in.Status != snapshot.StatusRemoved {
			out = append(out, in.Name)
		}
	}
	return out
}

// activeDatabases lists non-removed database names.
func activeDatabases(snap *snapshot.ArchitectureSnapshot) []string {
	var out []string
	for _, db := range snap.Databases {
		if db.Status != snapshot.StatusRemoved {
			out = append(out, db.Name)
		}
	}
	return out
}

// annotateHeadings appends the change marker to headings whose text names
// an affected component.
func annotateHeadings(text string, affected map[string]bool) string {
	if len(affected) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "#")
		if len(trimmed) == len(line) || !strings.HasPrefix(trimmed, " ") {
			continue // not a heading
		}
		title := strings.TrimSpace(trimmed)
		if affected[title] && !strings.HasSuffix(line, changeMarkerSuffix) {
			lines[i] = line + changeMarkerSuffix
		}
	}
	return strings.Join(lines, "\n")
}

// applyPreservedProgress rewrites checklist states in generated text: items
// whose identity matches a preserved item carry the preserved state, items
// with no match stay unchecked.
func applyPreservedProgress(text string, preserved *PreservedContent) string {
	if len(preserved.Checklist) == 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	sectionID := ""
	for i, line := range lines {
		if isSectionHeading(line) {
			sectionID = slugForTitle(headingTitle(line))
			continue
		}
		_, itemText, ok := parseChecklistLine(line)
		if !ok {
			continue
		}
		checked, known := preserved.Checklist[ItemIdentity(itemText, sectionID)]
		if !known {
			continue
		}
		if checked {
			lines[i] = strings.Replace(line, "- [ ] ", "- [x] ", 1)
		} else {
			lines[i] = strings.Replace(strings.Replace(line, "- [x] ", "- [ ] ", 1), "- [X] ", "- [ ] ", 1)
		}
	}
	return strings.Join(lines, "\n")
}

package prp

import (
	"os"
	"strconv"
	"strings"

	"github.com/mvaldes/archtrack/internal/trackerr"
)

// Parse reads and parses a specification document.
func Parse(path string) (*PRPDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trackerr.NewNotFound("document", path)
		}
		return nil, trackerr.NewStorage("read document", err)
	}
	return ParseText(path, string(data))
}

// ParseText parses document text into the structural model. It walks the
// document top-to-bottom, splitting on `## ` headings into ordered
// sections, and returns a ParseError if no sections can be found at all.
func ParseText(path, text string) (*PRPDocument, error) {
	lines := strings.Split(text, "\n")

	doc := &PRPDocument{Path: path}

	// Leading block: the `# ` title, change-notice quotes, and the
	// key: value metadata pairs before the first section heading.
	i := 0
	for ; i < len(lines); i++ {
		line := lines[i]
		if isSectionHeading(line) {
			break
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, ">"):
			// blank or change-notice block
		case strings.HasPrefix(trimmed, "# "):
			doc.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		default:
			if key, value, ok := strings.Cut(trimmed, ":"); ok {
				setMetadata(&doc.Meta, strings.TrimSpace(key), strings.TrimSpace(value))
			}
		}
	}

	if i == len(lines) {
		return nil, trackerr.NewParse(path, "no section headings found")
	}

	// Section bodies.
	var current *Section
	flush := func(body []string) {
		if current == nil {
			return
		}
		current.Body = strings.TrimRight(strings.Join(body, "\n"), "\n")
		doc.Sections = append(doc.Sections, *current)
	}

	var body []string
	for lineNo := i; lineNo < len(lines); lineNo++ {
		line := lines[lineNo]
		if isSectionHeading(line) {
			flush(body)
			body = nil

			title := headingTitle(line)
			slug := slugForTitle(title)
			secType := sectionTypeFor(slug)
			current = &Section{
				ID:       slug,
				Title:    title,
				Type:     secType,
				Required: requiredSections[secType],
				Custom:   secType == SectionCustom,
			}
			continue
		}

		body = append(body, line)

		if checked, text, ok := parseChecklistLine(line); ok && current != nil {
			item := ChecklistItem{
				Identity:  ItemIdentity(text, current.ID),
				Text:      text,
				Checked:   checked,
				SectionID: current.ID,
				Line:      lineNo + 1,
			}
			doc.Completion.Items = append(doc.Completion.Items, item)
			doc.Completion.TotalTasks++
			if checked {
				doc.Completion.CompletedTasks++
			}
		}
	}
	flush(body)

	if len(doc.Sections) == 0 {
		return nil, trackerr.NewParse(path, "no section headings found")
	}

	return doc, nil
}

// ExtractPreservedContent parses a document and lifts out everything that
// must survive regeneration: checklist state, custom sections, and
// implementation notes.
func ExtractPreservedContent(path string) (*PreservedContent, error) {
	doc, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return Preserved(doc), nil
}

// Preserved builds the preservation set from an already-parsed document.
func Preserved(doc *PRPDocument) *PreservedContent {
	p := &PreservedContent{Checklist: make(map[string]bool, len(doc.Completion.Items))}

	for _, item := range doc.Completion.Items {
		p.Checklist[item.Identity] = item.Checked
	}
	for _, sec := range doc.Sections {
		if sec.Custom {
			p.CustomSections = append(p.CustomSections, sec)
		}
		if sec.Type == SectionImplementationNotes {
			p.Notes = sec.Body
		}
	}
	return p
}

// isSectionHeading reports whether a line opens a section. Only level-two
// headings delimit sections; deeper headings belong to the section body.
func isSectionHeading(line string) bool {
	return strings.HasPrefix(line, "## ") && !strings.HasPrefix(line, "### ")
}

// headingTitle strips the heading marker and any change-marker annotation.
func headingTitle(line string) string {
	title := strings.TrimSpace(strings.TrimPrefix(line, "## "))
	title = strings.TrimSuffix(title, changeMarkerSuffix)
	return strings.TrimSpace(title)
}

// parseChecklistLine recognizes `- [ ] text` and `- [x] text` lines,
// allowing leading indentation.
func parseChecklistLine(line string) (checked bool, text string, ok bool) {
	trimmed := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(trimmed, "- [ ] "):
		return false, strings.TrimSpace(trimmed[6:]), true
	case strings.HasPrefix(trimmed, "- [x] "), strings.HasPrefix(trimmed, "- [X] "):
		return true, strings.TrimSpace(trimmed[6:]), true
	}
	return false, "", false
}

// setMetadata assigns one key: value pair to the metadata block. Unknown
// keys are ignored rather than rejected.
func setMetadata(m *Metadata, key, value string) {
	switch key {
	case "id":
		m.ID = value
	case "component":
		m.Component = value
	case "version":
		if v, err := strconv.Atoi(value); err == nil {
			m.Version = v
		}
	case "generated":
		m.Generated = value
	case "architecture_version":
		m.ArchitectureVersion = value
	case "status":
		m.Status = Status(value)
	}
}

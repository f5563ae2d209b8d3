package archdiff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// ADRsDir is the subdirectory under arch/ for generated decision records.
const ADRsDir = "adrs"

// ADRsPath returns the absolute path to the arch/adrs/ directory.
func ADRsPath(projectRoot string) string {
	return filepath.Join(config.ArchPath(projectRoot), ADRsDir)
}

// CreateADR renders an Architecture Decision Record from one recorded
// change and writes it as a new numbered file under arch/adrs/. It returns
// the written path and fails with a NotFoundError if the change id does
// not exist.
func CreateADR(store change.Store, projectRoot, changeID string) (string, error) {
	c, err := store.Get(projectRoot, changeID)
	if err != nil {
		return "", err
	}

	dir := ADRsPath(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", trackerr.NewStorage("create adrs directory", err)
	}

	num, err := nextADRNumber(dir)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("ADR-%03d-%s.md", num, change.Slugify(c.Description))
	path := filepath.Join(dir, name)
	if err := change.WriteFileAtomic(path, []byte(renderADR(num, c))); err != nil {
		return "", trackerr.NewStorage("write ADR", err)
	}
	return path, nil
}

// nextADRNumber counts existing records to number the next one.
func nextADRNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, trackerr.NewStorage("read adrs directory", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "ADR-") {
			n++
		}
	}
	return n + 1, nil
}

// renderADR builds the fixed ADR template for a change.
func renderADR(num int, c *change.ArchitectureChange) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# ADR-%03d: %s\n\n", num, c.Description)
	fmt.Fprintf(&b, "**Status:** accepted\n")
	fmt.Fprintf(&b, "**Date:** %s\n", c.Timestamp)
	fmt.Fprintf(&b, "**Change:** `%s`\n\n", c.ID)

	b.WriteString("## Context\n\n")
	if c.Rationale != "" {
		b.WriteString(c.Rationale + "\n\n")
	} else {
		fmt.Fprintf(&b, "A %s change was recorded in the %s category.\n\n", c.Type, c.Category)
	}

	b.WriteString("## Decision\n\n")
	b.WriteString(c.Description + "\n\n")

	b.WriteString("## Consequences\n\n")
	fmt.Fprintf(&b, "- Estimated effort: %s\n", c.Impact.EstimatedEffort)
	if c.Impact.BreakingChange {
		b.WriteString("- Breaking change: dependents must plan a migration\n")
	}
	if c.Impact.SecurityImpact {
		b.WriteString("- Security impact: requires security review\n")
	}
	if len(c.Impact.AffectedComponents) > 0 {
		fmt.Fprintf(&b, "- Affected components: %s\n", strings.Join(c.Impact.AffectedComponents, ", "))
	}
	if len(c.AffectedFiles) > 0 {
		b.WriteString("\n## Affected Files\n\n")
		for _, f := range c.AffectedFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}

	return b.String()
}

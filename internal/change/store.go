package change

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

const (
	// ChangesDir is the subdirectory under arch/ where change records live.
	ChangesDir = "changes"
	// ChangelogFile is the human-readable summary of changes in recorded order.
	ChangelogFile = "CHANGELOG.md"
)

// ListFilter narrows a List call. Zero times mean an open bound; empty
// Category and Component mean no filter.
type ListFilter struct {
	Since     time.Time
	Until     time.Time
	Category  Category
	Component string
}

// Store defines the persistence interface for the append-only change log.
// The engine depends on this abstraction; the file layout below is the
// reference implementation and SQLiteStore is the swappable alternative.
type Store interface {
	Append(projectRoot string, c *ArchitectureChange) error
	Get(projectRoot, id string) (*ArchitectureChange, error)
	List(projectRoot string, f ListFilter) ([]ArchitectureChange, error)
}

// FileStore implements Store using one JSON file per change under
// arch/changes/, plus an appended CHANGELOG.md summary line per record.
type FileStore struct{}

// NewFileStore creates a filesystem-backed change store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// ChangesPath returns the absolute path to the arch/changes/ directory.
func ChangesPath(projectRoot string) string {
	return filepath.Join(config.ArchPath(projectRoot), ChangesDir)
}

// ChangePath returns the absolute path to a specific change's JSON file.
func ChangePath(projectRoot, changeID string) string {
	return filepath.Join(ChangesPath(projectRoot), changeID+".json")
}

// ChangelogPath returns the absolute path to arch/CHANGELOG.md.
func ChangelogPath(projectRoot string) string {
	return filepath.Join(config.ArchPath(projectRoot), ChangelogFile)
}

// Append durably writes a new change record. The record file is written to
// a temporary path and renamed into place so a failure never leaves a
// partial record behind.
func (fs *FileStore) Append(projectRoot string, c *ArchitectureChange) error {
	changesDir := ChangesPath(projectRoot)
	if err := os.MkdirAll(changesDir, 0o755); err != nil {
		return trackerr.NewStorage("create changes directory", err)
	}

	path := ChangePath(projectRoot, c.ID)
	if _, err := os.Stat(path); err == nil {
		return trackerr.NewConflict("change "+c.ID, "a record with this id already exists")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return trackerr.NewStorage("marshal change record", err)
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return trackerr.NewStorage("write change record", err)
	}

	if err := appendChangelog(projectRoot, c); err != nil {
		// Roll the record file back so the append stays all-or-nothing.
		_ = os.Remove(path)
		return trackerr.NewStorage("append changelog", err)
	}

	return nil
}

// Get reads a specific change record by id.
func (fs *FileStore) Get(projectRoot, id string) (*ArchitectureChange, error) {
	data, err := os.ReadFile(ChangePath(projectRoot, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trackerr.NewNotFound("change", id)
		}
		return nil, trackerr.NewStorage("read change record", err)
	}

	var c ArchitectureChange
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, trackerr.NewStorage("parse change record "+id, err)
	}
	return &c, nil
}

// List returns recorded changes matching the filter, in timestamp order.
func (fs *FileStore) List(projectRoot string, f ListFilter) ([]ArchitectureChange, error) {
	entries, err := os.ReadDir(ChangesPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, trackerr.NewStorage("read changes directory", err)
	}

	var result []ArchitectureChange
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ChangesPath(projectRoot), entry.Name()))
		if err != nil {
			continue // unreadable records are skipped, not fatal
		}
		var c ArchitectureChange
		if err := json.Unmarshal(data, &c); err != nil {
			continue
		}
		if matchesFilter(&c, f) {
			result = append(result, c)
		}
	}

	SortByTimestamp(result)
	return result, nil
}

// matchesFilter applies a ListFilter to one change.
func matchesFilter(c *ArchitectureChange, f ListFilter) bool {
	if !f.Since.IsZero() || !f.Until.IsZero() {
		ts, err := time.Parse(time.RFC3339, c.Timestamp)
		if err != nil {
			return false
		}
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && ts.After(f.Until) {
			return false
		}
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Component != "" && !TouchesComponent(c, f.Component) {
		return false
	}
	return true
}

// TouchesComponent reports whether the change's impact names the component.
func TouchesComponent(c *ArchitectureChange, componentID string) bool {
	for _, id := range c.Impact.AffectedComponents {
		if id == componentID {
			return true
		}
	}
	return false
}

// SortByTimestamp orders changes oldest-first, with id as tiebreaker so the
// order is stable for same-instant records.
func SortByTimestamp(cs []ArchitectureChange) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Timestamp != cs[j].Timestamp {
			return cs[i].Timestamp < cs[j].Timestamp
		}
		return cs[i].ID < cs[j].ID
	})
}

// appendChangelog adds one summary line for the change to arch/CHANGELOG.md,
// creating the file with a header on first use.
func appendChangelog(projectRoot string, c *ArchitectureChange) error {
	path := ChangelogPath(projectRoot)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		header := "# Architecture Changelog\n\n"
		if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("- %s **%s** (%s): %s — `%s`\n",
		c.Timestamp, c.Type, c.Category, c.Description, c.ID)
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return f.Sync()
}

// WriteFileAtomic writes data to path via a temporary file in the same
// directory and an atomic rename, so readers never observe a partial write
// and a terminated process leaves the original file untouched.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

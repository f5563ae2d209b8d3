// Package orchestrator selects and runs PRP regenerations.
//
// It is the feedback loop between the impact analyzer and the document
// engine: only changes that cross the regeneration trigger produce tasks,
// and each task is consumed exactly once.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mvaldes/archtrack/internal/change"
	"github.com/mvaldes/archtrack/internal/config"
	"github.com/mvaldes/archtrack/internal/impact"
	"github.com/mvaldes/archtrack/internal/prp"
	"github.com/mvaldes/archtrack/internal/snapshot"
	"github.com/mvaldes/archtrack/internal/trackerr"
)

// BackupsDir is the subdirectory under arch/ for pre-regeneration copies.
const BackupsDir = "backups"

// Priority orders regeneration tasks by urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// priorityFor derives a task priority from the highest risk score among its
// motivating changes.
func priorityFor(score int) Priority {
	switch {
	case score >= 18:
		return PriorityHigh
	case score >= 8:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// RegenerationTask is an ephemeral work item: created by analysis, consumed
// once by RegeneratePRP, then discarded.
type RegenerationTask struct {
	Component    string                      `json:"component"`
	DocumentPath string                      `json:"document_path"`
	Changes      []change.ArchitectureChange `json:"changes"`
	Priority     Priority                    `json:"priority"`
	Reason       string                      `json:"reason"`
}

// RegenerationResult reports one document's regeneration outcome.
// Recoverable conditions become warnings; only I/O failures set Error.
type RegenerationResult struct {
	Component    string   `json:"component"`
	DocumentPath string   `json:"document_path"`
	Regenerated  bool     `json:"regenerated"`
	BackupPath   string   `json:"backup_path,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// SyncStatus summarizes a sync pass (or, for a check, what a pass would do).
type SyncStatus struct {
	DocumentsTracked int                  `json:"documents_tracked"`
	PendingTasks     []RegenerationTask   `json:"pending_tasks"`
	MissingDocuments []string             `json:"missing_documents"`
	Results          []RegenerationResult `json:"results,omitempty"`
	Succeeded        int                  `json:"succeeded"`
	Failed           int                  `json:"failed"`
}

// Options controls a regeneration pass.
type Options struct {
	PreserveProgress       bool
	PreserveCustomSections bool
	AddChangeMarkers       bool
	Backup                 bool
}

// DefaultOptions preserves everything, marks changes, and backs up.
func DefaultOptions() Options {
	return Options{
		PreserveProgress:       true,
		PreserveCustomSections: true,
		AddChangeMarkers:       true,
		Backup:                 true,
	}
}

// Orchestrator coordinates impact analysis and document regeneration.
// Regenerations of distinct documents may run in parallel; regeneration of
// the same document is rejected with a ConflictError rather than queued.
type Orchestrator struct {
	snap *snapshot.Store

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// New creates an Orchestrator.
func New(snap *snapshot.Store) *Orchestrator {
	return &Orchestrator{
		snap:     snap,
		docLocks: make(map[string]*sync.Mutex),
	}
}

// BackupsPath returns the absolute path to the arch/backups/ directory.
func BackupsPath(projectRoot string) string {
	return filepath.Join(config.ArchPath(projectRoot), BackupsDir)
}

// AnalyzeImpact groups changes since the given time by affected component
// and returns one task per component whose document needs regeneration,
// plus the components that have triggering changes but no document.
func (o *Orchestrator) AnalyzeImpact(projectRoot string, since time.Time) ([]RegenerationTask, []string, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, nil, err
	}

	changes, err := o.snap.Changes(projectRoot, since, time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("loading changes: %w", err)
	}

	docs, err := discoverDocuments(projectRoot, cfg.DocsGlobs)
	if err != nil {
		return nil, nil, err
	}

	byComponent := make(map[string][]change.ArchitectureChange)
	for i := range changes {
		for _, comp := range changes[i].Impact.AffectedComponents {
			byComponent[comp] = append(byComponent[comp], changes[i])
		}
	}

	var tasks []RegenerationTask
	var missing []string
	for comp, cs := range byComponent {
		docPath, hasDoc := docs[comp]

		docOutdated := false
		if hasDoc {
			if doc, err := prp.Parse(docPath); err == nil {
				docOutdated = doc.Meta.Status == prp.StatusOutdated
			}
		}

		var triggering []change.ArchitectureChange
		maxScore := 0
		for i := range cs {
			if !impact.NeedsRegeneration(&cs[i], docOutdated) {
				continue
			}
			triggering = append(triggering, cs[i])
			if score := impact.RiskScore(&cs[i], cfg.Weights); score > maxScore {
				maxScore = score
			}
		}
		if len(triggering) == 0 {
			continue
		}

		if !hasDoc {
			missing = append(missing, comp)
			continue
		}

		tasks = append(tasks, RegenerationTask{
			Component:    comp,
			DocumentPath: docPath,
			Changes:      triggering,
			Priority:     priorityFor(maxScore),
			Reason: fmt.Sprintf("%d change(s) affecting %s cross the regeneration threshold",
				len(triggering), comp),
		})
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Component < tasks[j].Component })
	sort.Strings(missing)
	return tasks, missing, nil
}

// RegeneratePRP runs parser → generator → merge for one task. Recoverable
// conditions (unparseable document, completed document) degrade to warnings;
// only I/O failures produce an error result.
func (o *Orchestrator) RegeneratePRP(projectRoot string, task RegenerationTask, opts Options) RegenerationResult {
	result := RegenerationResult{
		Component:    task.Component,
		DocumentPath: task.DocumentPath,
	}

	if task.DocumentPath == "" {
		result.Error = trackerr.NewNotFound("document for component", task.Component).Error()
		return result
	}

	lock := o.docLock(task.DocumentPath)
	if !lock.TryLock() {
		result.Error = trackerr.NewConflict(task.DocumentPath,
			"another regeneration of this document is in progress").Error()
		return result
	}
	defer lock.Unlock()

	// Lift preserved content from the existing document. Losing preserved
	// content is worse than proceeding without it, so a parse failure is a
	// warning, not an abort.
	preserved := &prp.PreservedContent{Checklist: map[string]bool{}}
	oldMeta := prp.Metadata{}
	if doc, err := prp.Parse(task.DocumentPath); err == nil {
		preserved = prp.Preserved(doc)
		oldMeta = doc.Meta
	} else if trackerr.IsParse(err) {
		result.Warnings = append(result.Warnings,
			"document could not be parsed into sections; regenerating with no preserved content")
	} else {
		result.Error = err.Error()
		return result
	}

	if oldMeta.Status == prp.StatusCompleted {
		result.Warnings = append(result.Warnings,
			"document was marked completed — manual review recommended")
	}
	if done := preserved.CompletedCount(); done > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d task(s) already completed", done))
	}

	if opts.Backup {
		backupPath, err := o.backupDocument(projectRoot, task.DocumentPath)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.BackupPath = backupPath
	}

	snap, err := o.snap.Current(projectRoot)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	comp := snap.Component(task.Component)
	if comp == nil {
		comp = &snapshot.ComponentDefinition{ID: task.Component, Name: task.Component}
	}

	meta := nextMetadata(oldMeta, task.Component, snap.ChangeCount)

	text := prp.Generate(prp.Input{
		Meta:      meta,
		Component: *comp,
		Snapshot:  snap,
		Changes:   task.Changes,
		Preserved: preserved,
	}, prp.Options{
		PreserveProgress:       opts.PreserveProgress,
		PreserveCustomSections: opts.PreserveCustomSections,
		AddChangeMarkers:       opts.AddChangeMarkers,
	})

	if err := change.WriteFileAtomic(task.DocumentPath, []byte(text)); err != nil {
		result.Error = trackerr.NewStorage("write document", err).Error()
		return result
	}

	result.Regenerated = true
	return result
}

// SyncAllPRPs regenerates every document with a pending task, in parallel
// up to the configured bound. One document's failure never blocks others.
func (o *Orchestrator) SyncAllPRPs(projectRoot string, opts Options) (*SyncStatus, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}

	status, err := o.CheckSyncStatus(projectRoot)
	if err != nil {
		return nil, err
	}

	results := make([]RegenerationResult, len(status.PendingTasks))
	sem := make(chan struct{}, cfg.MaxParallel)
	var wg sync.WaitGroup
	for i, task := range status.PendingTasks {
		wg.Add(1)
		go func(i int, task RegenerationTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.RegeneratePRP(projectRoot, task, opts)
		}(i, task)
	}
	wg.Wait()

	status.Results = results
	for _, r := range results {
		if r.Error == "" {
			status.Succeeded++
		} else {
			status.Failed++
		}
	}
	return status, nil
}

// CheckSyncStatus is the read-only variant of SyncAllPRPs: it reports what
// a sync would do without touching any document.
func (o *Orchestrator) CheckSyncStatus(projectRoot string) (*SyncStatus, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}

	tasks, missing, err := o.AnalyzeImpact(projectRoot, time.Time{})
	if err != nil {
		return nil, err
	}

	docs, err := discoverDocuments(projectRoot, cfg.DocsGlobs)
	if err != nil {
		return nil, err
	}

	return &SyncStatus{
		DocumentsTracked: len(docs),
		PendingTasks:     tasks,
		MissingDocuments: missing,
	}, nil
}

// discoverDocuments locates tracked PRP documents via the configured globs
// and maps component name → document path. A document names its component
// in metadata; failing that, its filename (minus a "prp-" prefix) is used.
func discoverDocuments(projectRoot string, globs []string) (map[string]string, error) {
	docs := make(map[string]string)
	for _, pattern := range globs {
		matches, err := doublestar.FilepathGlob(filepath.Join(projectRoot, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad docs glob %q: %w", pattern, err)
		}
		for _, path := range matches {
			comp := ""
			if doc, err := prp.Parse(path); err == nil {
				comp = doc.Meta.Component
			}
			if comp == "" {
				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				comp = strings.TrimPrefix(base, "prp-")
			}
			if _, dup := docs[comp]; !dup {
				docs[comp] = path
			}
		}
	}
	return docs, nil
}

// backupDocument copies the original document to a timestamped file under
// arch/backups/ before it is overwritten.
func (o *Orchestrator) backupDocument(projectRoot, docPath string) (string, error) {
	data, err := os.ReadFile(docPath)
	if err != nil {
		return "", trackerr.NewStorage("read document for backup", err)
	}

	dir := BackupsPath(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", trackerr.NewStorage("create backups directory", err)
	}

	base := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	name := fmt.Sprintf("%s.%s.md", base, timeNow().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := change.WriteFileAtomic(path, data); err != nil {
		return "", trackerr.NewStorage("write backup", err)
	}
	return path, nil
}

// docLock returns the mutex guarding one document path.
func (o *Orchestrator) docLock(path string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.docLocks[path]; ok {
		return l
	}
	l := &sync.Mutex{}
	o.docLocks[path] = l
	return l
}

// nextMetadata advances a document's metadata for regeneration: the version
// increments, the architecture version tracks the change count, and an
// outdated document returns to in-progress. When the architecture version
// has not moved since the last generation the version and timestamp are
// kept, so regenerating with no intervening changes is byte-stable.
func nextMetadata(old prp.Metadata, component string, changeCount int) prp.Metadata {
	meta := prp.Metadata{
		ID:                  old.ID,
		Component:           component,
		Version:             old.Version,
		Generated:           old.Generated,
		ArchitectureVersion: strconv.Itoa(changeCount),
		Status:              old.Status,
	}
	if old.ArchitectureVersion != meta.ArchitectureVersion {
		meta.Version = old.Version + 1
		meta.Generated = timeNow().UTC().Format(time.RFC3339)
	}
	if meta.ID == "" {
		meta.ID = "prp-" + component
	}
	switch meta.Status {
	case "", prp.StatusOutdated:
		meta.Status = prp.StatusInProgress
	}
	return meta
}

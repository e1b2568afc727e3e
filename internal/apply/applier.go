// Package apply stages validated edits, writes backups, and commits each
// file atomically. A batch's backups form a write-ahead journal that supports
// rollback in reverse commit order.
package apply

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sevigo/patch-warden/internal/core"
)

// Applier executes per-file transactions against a project root.
type Applier struct {
	fsys        FS
	projectRoot string
	logger      *slog.Logger
}

// New returns an Applier over the real filesystem.
func New(projectRoot string, logger *slog.Logger) *Applier {
	return NewWithFS(OSFileSystem{}, projectRoot, logger)
}

// NewWithFS returns an Applier using a caller-supplied filesystem. Tests use
// this to inject faults at precise points of the transaction.
func NewWithFS(fsys FS, projectRoot string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{fsys: fsys, projectRoot: projectRoot, logger: logger}
}

// FS returns the applier's filesystem, shared with the journal.
func (a *Applier) FS() FS { return a.fsys }

// ProjectRoot returns the root all fix paths are resolved against.
func (a *Applier) ProjectRoot() string { return a.projectRoot }

// ApplyFile runs one file's transaction: verify freshness, back up, splice,
// commit atomically. A stale fix aborts the whole file (drift anywhere in the
// file invalidates offsets computed against the analyzed snapshot) and every
// fix of the group is reported stale; no mutation happens. An I/O error
// aborts the file and the fixes are reported as io_failure; the error is also
// returned so the batch policy can react.
func (a *Applier) ApplyFile(journal *Journal, group core.FixGroup) (*core.ApplicationRecord, []core.FixOutcome, error) {
	target := filepath.Join(a.projectRoot, group.Path)

	content, err := a.fsys.ReadFile(target)
	if err != nil {
		wrapped := fmt.Errorf("failed to read %s: %w", group.Path, err)
		return nil, ioFailures(group, wrapped), wrapped
	}

	if outcome, stale := findStale(group, content); stale {
		a.logger.Info("file drifted since analysis, skipping",
			"path", group.Path,
			"first_stale_fix", outcome.FixID,
		)
		return nil, staleOutcomes(group, outcome), nil
	}

	patched, err := core.Splice(content, group.Fixes)
	if err != nil {
		wrapped := fmt.Errorf("failed to splice %s: %w", group.Path, err)
		return nil, ioFailures(group, wrapped), wrapped
	}

	hash := hashContent(content)
	backupPath, err := journal.Stage(group.Path, content, hash)
	if err != nil {
		return nil, ioFailures(group, err), err
	}

	perm := os.FileMode(0o644)
	if info, statErr := a.fsys.Stat(target); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := writeAtomic(a.fsys, target, patched, perm); err != nil {
		return nil, ioFailures(group, err), err
	}
	if err := journal.MarkCommitted(group.Path); err != nil {
		return nil, ioFailures(group, err), err
	}

	record := &core.ApplicationRecord{
		Path:          group.Path,
		ContentHash:   hash,
		BackupPath:    backupPath,
		AppliedFixIDs: fixIDs(group.Fixes),
		AppliedAt:     time.Now().UTC(),
		Status:        core.RecordCommitted,
	}

	a.logger.Info("file committed",
		"path", group.Path,
		"fixes", len(group.Fixes),
		"backup", backupPath,
	)
	return record, appliedOutcomes(group), nil
}

// findStale reports the first fix whose expected original text no longer
// matches the live file content at its span.
func findStale(group core.FixGroup, content []byte) (core.FixOutcome, bool) {
	for _, fix := range group.Fixes {
		span := fix.Location.Span
		if span.End > len(content) {
			return core.FixOutcome{
				FixID:     fix.ID,
				IssueID:   fix.IssueID,
				Path:      fix.Location.Path,
				Status:    core.StatusRejected,
				Rejection: core.RejectStale,
				Detail:    fmt.Sprintf("span [%d,%d) beyond current file size %d", span.Start, span.End, len(content)),
			}, true
		}
		if string(content[span.Start:span.End]) != fix.OriginalText {
			return core.FixOutcome{
				FixID:     fix.ID,
				IssueID:   fix.IssueID,
				Path:      fix.Location.Path,
				Status:    core.StatusRejected,
				Rejection: core.RejectStale,
				Detail:    "original text no longer matches live file content",
			}, true
		}
	}
	return core.FixOutcome{}, false
}

func staleOutcomes(group core.FixGroup, first core.FixOutcome) []core.FixOutcome {
	outcomes := make([]core.FixOutcome, 0, len(group.Fixes))
	for _, fix := range group.Fixes {
		detail := "file drifted since analysis"
		if fix.ID == first.FixID {
			detail = first.Detail
		}
		outcomes = append(outcomes, core.FixOutcome{
			FixID:     fix.ID,
			IssueID:   fix.IssueID,
			Path:      fix.Location.Path,
			Status:    core.StatusRejected,
			Rejection: core.RejectStale,
			Detail:    detail,
		})
	}
	return outcomes
}

func ioFailures(group core.FixGroup, err error) []core.FixOutcome {
	outcomes := make([]core.FixOutcome, 0, len(group.Fixes))
	for _, fix := range group.Fixes {
		outcomes = append(outcomes, core.FixOutcome{
			FixID:     fix.ID,
			IssueID:   fix.IssueID,
			Path:      fix.Location.Path,
			Status:    core.StatusRejected,
			Rejection: core.RejectIoFailure,
			Detail:    err.Error(),
		})
	}
	return outcomes
}

func appliedOutcomes(group core.FixGroup) []core.FixOutcome {
	outcomes := make([]core.FixOutcome, 0, len(group.Fixes))
	for _, fix := range group.Fixes {
		outcomes = append(outcomes, core.FixOutcome{
			FixID:   fix.ID,
			IssueID: fix.IssueID,
			Path:    fix.Location.Path,
			Status:  core.StatusApplied,
		})
	}
	return outcomes
}

func fixIDs(fixes []core.Fix) []string {
	ids := make([]string, 0, len(fixes))
	for _, f := range fixes {
		ids = append(ids, f.ID)
	}
	return ids
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

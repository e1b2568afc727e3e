package apply

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/patch-warden/internal/core"
)

// EntryStatus tracks one file's position in the journal lifecycle.
type EntryStatus string

const (
	// EntryStaged means the backup exists but the original has not been
	// replaced yet.
	EntryStaged EntryStatus = "staged"
	EntryCommitted  EntryStatus = "committed"
	EntryRolledBack EntryStatus = "rolled_back"
)

// Entry is one write-ahead record: the backup must be on disk before the
// original file is touched.
type Entry struct {
	Path        string      `yaml:"path"`
	BackupPath  string      `yaml:"backup_path"`
	ContentHash string      `yaml:"content_hash"`
	Status      EntryStatus `yaml:"status"`
	StagedAt    time.Time   `yaml:"staged_at"`
}

// manifest is the on-disk journal document.
type manifest struct {
	BatchID   string    `yaml:"batch_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Entries   []Entry   `yaml:"entries"`
}

const manifestName = "manifest.yaml"

// Journal is the batch's write-ahead log of backups. The backup directory is
// append-only during a batch and exclusively owned by the applier; rollback
// replays the entries in strict reverse commit order.
type Journal struct {
	fsys    FS
	dir     string
	batchID string

	mu sync.Mutex
	m  manifest
}

// NewJournal creates the scoped backup directory <root>/<batchID> and an
// empty manifest.
func NewJournal(fsys FS, root, batchID string) (*Journal, error) {
	dir := filepath.Join(root, batchID)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}
	j := &Journal{
		fsys:    fsys,
		dir:     dir,
		batchID: batchID,
		m:       manifest{BatchID: batchID, CreatedAt: time.Now().UTC()},
	}
	if err := j.flushLocked(); err != nil {
		return nil, err
	}
	return j, nil
}

// OpenJournal loads an existing journal, e.g. for an operator-driven rollback
// or purge after the batch process exited.
func OpenJournal(fsys FS, root, batchID string) (*Journal, error) {
	dir := filepath.Join(root, batchID)
	data, err := fsys.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read journal manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse journal manifest: %w", err)
	}
	return &Journal{fsys: fsys, dir: dir, batchID: batchID, m: m}, nil
}

// Dir returns the journal's backup directory.
func (j *Journal) Dir() string { return j.dir }

// Stage writes a backup of the untouched file and appends a staged entry.
// The manifest hits disk before the caller is allowed to mutate the original.
func (j *Journal) Stage(relPath string, content []byte, contentHash string) (string, error) {
	backupPath := filepath.Join(j.dir, backupName(relPath))

	if err := j.fsys.WriteFile(backupPath, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup for %s: %w", relPath, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.m.Entries = append(j.m.Entries, Entry{
		Path:        relPath,
		BackupPath:  backupPath,
		ContentHash: contentHash,
		Status:      EntryStaged,
		StagedAt:    time.Now().UTC(),
	})
	if err := j.flushLocked(); err != nil {
		return "", err
	}
	return backupPath, nil
}

// MarkCommitted flips a staged entry to committed after the rename landed.
func (j *Journal) MarkCommitted(relPath string) error {
	return j.setStatus(relPath, EntryCommitted)
}

// Committed returns the committed entries in commit order.
func (j *Journal) Committed() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Entry
	for _, e := range j.m.Entries {
		if e.Status == EntryCommitted {
			out = append(out, e)
		}
	}
	return out
}

// Rollback restores every committed file from its backup, in reverse commit
// order, using the same atomic write discipline as the forward path. Restore
// failures are collected, never swallowed: the returned *core.RollbackError
// names each file the operator must fix by hand.
func (j *Journal) Rollback(projectRoot string) ([]string, *core.RollbackError) {
	committed := j.Committed()

	var restored []string
	var failures []core.RestoreFailure
	for i := len(committed) - 1; i >= 0; i-- {
		entry := committed[i]
		if err := j.restore(projectRoot, entry); err != nil {
			failures = append(failures, core.RestoreFailure{
				Path:       entry.Path,
				BackupPath: entry.BackupPath,
				Err:        err,
			})
			continue
		}
		restored = append(restored, entry.Path)
		_ = j.setStatus(entry.Path, EntryRolledBack)
	}

	if len(failures) > 0 {
		return restored, &core.RollbackError{BatchID: j.batchID, Failures: failures}
	}
	return restored, nil
}

// Purge deletes the batch's backup directory. Callers gate this on explicit
// confirmation of the batch outcome; the journal never purges itself.
func (j *Journal) Purge() error {
	if err := j.fsys.RemoveAll(j.dir); err != nil {
		return fmt.Errorf("failed to purge backups: %w", err)
	}
	return nil
}

func (j *Journal) restore(projectRoot string, entry Entry) error {
	content, err := j.fsys.ReadFile(entry.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	target := filepath.Join(projectRoot, entry.Path)
	perm := os.FileMode(0o644)
	if info, err := j.fsys.Stat(target); err == nil {
		perm = info.Mode().Perm()
	}
	return writeAtomic(j.fsys, target, content, perm)
}

func (j *Journal) setStatus(relPath string, status EntryStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.m.Entries {
		if j.m.Entries[i].Path == relPath {
			j.m.Entries[i].Status = status
			return j.flushLocked()
		}
	}
	return fmt.Errorf("no journal entry for %s", relPath)
}

func (j *Journal) flushLocked() error {
	data, err := yaml.Marshal(&j.m)
	if err != nil {
		return fmt.Errorf("failed to encode journal manifest: %w", err)
	}
	if err := writeAtomic(j.fsys, filepath.Join(j.dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal manifest: %w", err)
	}
	return nil
}

// backupName flattens a relative path into a single backup file name.
func backupName(relPath string) string {
	clean := filepath.ToSlash(filepath.Clean(relPath))
	return strings.ReplaceAll(clean, "/", "__") + ".bak"
}

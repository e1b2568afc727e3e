package apply

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/core"
)

func TestJournal_StageCommitRoundTrip(t *testing.T) {
	root := t.TempDir()
	journal, err := NewJournal(OSFileSystem{}, filepath.Join(root, "backups"), "batch-1")
	require.NoError(t, err)

	backupPath, err := journal.Stage("src/main.go", []byte("original"), "hash-1")
	require.NoError(t, err)
	assert.FileExists(t, backupPath)

	require.NoError(t, journal.MarkCommitted("src/main.go"))

	// Reopen from disk: the manifest is the source of truth.
	reopened, err := OpenJournal(OSFileSystem{}, filepath.Join(root, "backups"), "batch-1")
	require.NoError(t, err)
	committed := reopened.Committed()
	require.Len(t, committed, 1)
	assert.Equal(t, "src/main.go", committed[0].Path)
	assert.Equal(t, "hash-1", committed[0].ContentHash)
}

func TestJournal_StagedEntryIsNotCommitted(t *testing.T) {
	root := t.TempDir()
	journal, err := NewJournal(OSFileSystem{}, filepath.Join(root, "backups"), "batch-1")
	require.NoError(t, err)

	_, err = journal.Stage("a.go", []byte("x"), "h")
	require.NoError(t, err)

	assert.Empty(t, journal.Committed())
}

func TestJournal_RollbackRestoresInReverseOrder(t *testing.T) {
	// all_or_nothing batch: files A and B commit, file C fails afterwards.
	// Rollback must put A and B back to their pre-batch bytes.
	projectRoot := t.TempDir()
	writeFile(t, filepath.Join(projectRoot, "a.go"), "content-a")
	writeFile(t, filepath.Join(projectRoot, "b.go"), "content-b")
	writeFile(t, filepath.Join(projectRoot, "c.go"), "content-c")

	applier := New(projectRoot, nil)
	journal := newTestJournal(t, applier.FS(), filepath.Join(projectRoot, ".backups"))

	_, _, err := applier.ApplyFile(journal, groupFor("a.go", replaceAt("fa", "a.go", 0, "content-a", "patched-a")))
	require.NoError(t, err)
	_, _, err = applier.ApplyFile(journal, groupFor("b.go", replaceAt("fb", "b.go", 0, "content-b", "patched-b")))
	require.NoError(t, err)
	// c.go fails its transaction; nothing of it committed.

	restored, rollbackErr := journal.Rollback(projectRoot)
	require.Nil(t, rollbackErr)
	assert.Equal(t, []string{"b.go", "a.go"}, restored, "reverse commit order")

	gotA, err := os.ReadFile(filepath.Join(projectRoot, "a.go"))
	require.NoError(t, err)
	gotB, err := os.ReadFile(filepath.Join(projectRoot, "b.go"))
	require.NoError(t, err)
	gotC, err := os.ReadFile(filepath.Join(projectRoot, "c.go"))
	require.NoError(t, err)
	assert.Equal(t, "content-a", string(gotA))
	assert.Equal(t, "content-b", string(gotB))
	assert.Equal(t, "content-c", string(gotC))

	for _, e := range journalEntries(t, applier.FS(), filepath.Join(projectRoot, ".backups")) {
		assert.Equal(t, EntryRolledBack, e.Status)
	}
}

func TestJournal_RollbackFailureIsFatalAndEnumerated(t *testing.T) {
	projectRoot := t.TempDir()
	writeFile(t, filepath.Join(projectRoot, "a.go"), "content-a")
	writeFile(t, filepath.Join(projectRoot, "b.go"), "content-b")

	fsys := &faultFS{FS: OSFileSystem{}, failRenameTo: map[string]error{}}
	applier := NewWithFS(fsys, projectRoot, nil)
	journal := newTestJournal(t, fsys, filepath.Join(projectRoot, ".backups"))

	_, _, err := applier.ApplyFile(journal, groupFor("a.go", replaceAt("fa", "a.go", 0, "content-a", "patched-a")))
	require.NoError(t, err)
	_, _, err = applier.ApplyFile(journal, groupFor("b.go", replaceAt("fb", "b.go", 0, "content-b", "patched-b")))
	require.NoError(t, err)

	// Restores go through the same atomic rename; fail it for a.go only.
	fsys.failRenameTo[filepath.Join(projectRoot, "a.go")] = errors.New("disk full")

	restored, rollbackErr := journal.Rollback(projectRoot)
	require.NotNil(t, rollbackErr)
	assert.Equal(t, []string{"b.go"}, restored)

	require.Len(t, rollbackErr.Failures, 1)
	assert.Equal(t, "a.go", rollbackErr.Failures[0].Path)
	assert.Contains(t, rollbackErr.Error(), "a.go")

	var asErr *core.RollbackError
	assert.True(t, errors.As(rollbackErr, &asErr))
}

func TestJournal_Purge(t *testing.T) {
	root := t.TempDir()
	journal, err := NewJournal(OSFileSystem{}, filepath.Join(root, "backups"), "batch-1")
	require.NoError(t, err)
	_, err = journal.Stage("a.go", []byte("x"), "h")
	require.NoError(t, err)

	require.NoError(t, journal.Purge())
	assert.NoDirExists(t, journal.Dir())
}

func TestBackupName_FlattensPaths(t *testing.T) {
	assert.Equal(t, "src__pkg__file.go.bak", backupName("src/pkg/file.go"))
	assert.Equal(t, "file.go.bak", backupName("./file.go"))
}

func journalEntries(t *testing.T, fsys FS, backupRoot string) []Entry {
	t.Helper()
	j, err := OpenJournal(fsys, backupRoot, "batch-test")
	require.NoError(t, err)
	return j.m.Entries
}

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

// faultFS wraps a real filesystem and fails renames onto selected targets,
// simulating a crash between backup-write and commit.
type faultFS struct {
	FS
	failRenameTo map[string]error
}

func (f *faultFS) Rename(oldPath, newPath string) error {
	if err, ok := f.failRenameTo[newPath]; ok {
		return err
	}
	return f.FS.Rename(oldPath, newPath)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func groupFor(path string, fixes ...core.Fix) core.FixGroup {
	return core.FixGroup{Path: path, Fixes: fixes}
}

func replaceAt(id, path string, start int, original, replacement string) core.Fix {
	return core.Fix{
		ID:              id,
		IssueID:         "issue-" + id,
		Location:        core.Location{Path: path, Span: core.Span{Start: start, End: start + len(original)}},
		OriginalText:    original,
		ReplacementText: replacement,
		Confidence:      0.9,
	}
}

func newTestJournal(t *testing.T, fsys FS, root string) *Journal {
	t.Helper()
	j, err := NewJournal(fsys, root, "batch-test")
	require.NoError(t, err)
	return j
}

func TestApplyFile_CommitsAtomically(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "foo12345678 tail")

	applier := New(root, nil)
	journal := newTestJournal(t, applier.FS(), filepath.Join(root, ".backups"))

	// Descending offset order: tail edit first.
	group := groupFor("main.go",
		replaceAt("f2", "main.go", 12, "tail", "TAIL"),
		replaceAt("f1", "main.go", 0, "foo", "bar_baz"),
	)

	record, outcomes, err := applier.ApplyFile(journal, group)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, core.RecordCommitted, record.Status)
	assert.Equal(t, []string{"f2", "f1"}, record.AppliedFixIDs)

	got, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "bar_baz12345678 TAIL", string(got))

	backup, err := os.ReadFile(record.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "foo12345678 tail", string(backup), "backup holds the pre-edit content")

	for _, o := range outcomes {
		assert.Equal(t, core.StatusApplied, o.Status)
	}
}

func TestApplyFile_ReRunIsStaleNeverReapplied(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "foo12345678")

	applier := New(root, nil)
	journal := newTestJournal(t, applier.FS(), filepath.Join(root, ".backups"))
	group := groupFor("main.go", replaceAt("f1", "main.go", 0, "foo", "bar"))

	_, _, err := applier.ApplyFile(journal, group)
	require.NoError(t, err)

	// Same fix set against the already-patched file: every fix is stale.
	journal2 := newTestJournal(t, applier.FS(), filepath.Join(root, ".backups2"))
	record, outcomes, err := applier.ApplyFile(journal2, group)
	require.NoError(t, err)
	assert.Nil(t, record)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.StatusRejected, outcomes[0].Status)
	assert.Equal(t, core.RejectStale, outcomes[0].Rejection)

	got, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "bar12345678", string(got), "no silent re-application")
}

func TestApplyFile_StaleFixAbortsWholeFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "foo12345678 tail")

	applier := New(root, nil)
	journal := newTestJournal(t, applier.FS(), filepath.Join(root, ".backups"))

	group := groupFor("main.go",
		replaceAt("fresh", "main.go", 12, "tail", "TAIL"),
		replaceAt("stale", "main.go", 0, "WRONG", "bar"),
	)

	record, outcomes, err := applier.ApplyFile(journal, group)
	require.NoError(t, err)
	assert.Nil(t, record)

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, core.RejectStale, o.Rejection)
	}

	got, err := os.ReadFile(filepath.Join(root, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "foo12345678 tail", string(got), "file must be untouched")
}

func TestApplyFile_CrashBeforeRenameLeavesOriginal(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "main.go")
	writeFile(t, target, "foo12345678")

	fsys := &faultFS{
		FS:           OSFileSystem{},
		failRenameTo: map[string]error{target: errors.New("simulated crash")},
	}
	applier := NewWithFS(fsys, root, nil)
	journal := newTestJournal(t, fsys, filepath.Join(root, ".backups"))
	group := groupFor("main.go", replaceAt("f1", "main.go", 0, "foo", "bar"))

	record, outcomes, err := applier.ApplyFile(journal, group)
	require.Error(t, err)
	assert.Nil(t, record)
	require.Len(t, outcomes, 1)
	assert.Equal(t, core.RejectIoFailure, outcomes[0].Rejection)

	got, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "foo12345678", string(got), "interrupted commit must not corrupt the file")

	assert.Empty(t, journal.Committed(), "entry must stay staged, not committed")
}

func TestApplyFile_GroupMatchesIndividualTransactions(t *testing.T) {
	content := "alpha beta gamma delta"
	f1 := replaceAt("f1", "a.txt", 0, "alpha", "A")
	f2 := replaceAt("f2", "a.txt", 11, "gamma", "G")
	f3 := replaceAt("f3", "a.txt", 17, "delta", "D")

	// Grouped, descending order.
	groupedRoot := t.TempDir()
	writeFile(t, filepath.Join(groupedRoot, "a.txt"), content)
	applier := New(groupedRoot, nil)
	journal := newTestJournal(t, applier.FS(), filepath.Join(groupedRoot, ".backups"))
	_, _, err := applier.ApplyFile(journal, groupFor("a.txt", f3, f2, f1))
	require.NoError(t, err)

	// Individually, same descending order, one transaction each. Offsets stay
	// valid because each earlier edit lies strictly after the next one.
	soloRoot := t.TempDir()
	writeFile(t, filepath.Join(soloRoot, "a.txt"), content)
	soloApplier := New(soloRoot, nil)
	for i, fix := range []core.Fix{f3, f2, f1} {
		j := newTestJournal(t, soloApplier.FS(), filepath.Join(soloRoot, ".backups", string(rune('a'+i))))
		rec, _, err := soloApplier.ApplyFile(j, groupFor("a.txt", fix))
		require.NoError(t, err)
		require.NotNil(t, rec)
	}

	grouped, err := os.ReadFile(filepath.Join(groupedRoot, "a.txt"))
	require.NoError(t, err)
	solo, err := os.ReadFile(filepath.Join(soloRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, string(grouped), string(solo))
}

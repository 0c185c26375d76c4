package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_OpenClose(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	require.NotNil(t, j)

	assert.FileExists(t, j.Path())
	assert.NotEmpty(t, j.RunID())
	require.NoError(t, j.Close())
}

func TestJournal_MarkAndLookup(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	defer j.Close()

	_, ok := j.Lookup(42)
	assert.False(t, ok)

	want := JournalEntry{Inode: 42, Size: 9000, Written: 9000, Hash: "abc123"}
	require.NoError(t, j.MarkRecovered(want))

	// Lookup sees pending entries.
	got, ok := j.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, ok = j.Lookup(43)
	assert.False(t, ok)
}

func TestJournal_BatchFlush(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	defer j.Close()

	for i := range 150 {
		require.NoError(t, j.MarkRecovered(JournalEntry{
			Inode:   uint64(i),
			Size:    uint64(i * 100),
			Written: int64(i * 100),
			Hash:    "hash",
		}))
	}
	require.NoError(t, j.Flush())

	e, ok := j.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), e.Size)

	e, ok = j.Lookup(149)
	require.True(t, ok)
	assert.Equal(t, uint64(14900), e.Size)
}

func TestJournal_Cursor(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	defer j.Close()

	_, ok := j.Cursor()
	assert.False(t, ok)

	require.NoError(t, j.SetCursor(1024))
	require.NoError(t, j.SetCursor(4096))

	cur, ok := j.Cursor()
	require.True(t, ok)
	assert.Equal(t, uint64(4096), cur)
}

func TestJournal_JobIDDeterminism(t *testing.T) {
	id1 := journalJobID("/dev/sdb1", "/out/a")
	id2 := journalJobID("/dev/sdb1", "/out/a")
	id3 := journalJobID("/dev/sdb1", "/out/b")

	assert.Equal(t, id1, id2, "same inputs should produce same job ID")
	assert.NotEqual(t, id1, id3, "different inputs should produce different job IDs")
	assert.Len(t, id1, 16)
}

func TestJournal_PathFallsBackToTempDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, filepath.Join(os.TempDir(), "xfs-irecover-abcd.db"), journalPath("abcd"))
}

func TestJournal_Remove(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)

	dbPath := j.Path()
	require.NoError(t, j.Close())
	assert.FileExists(t, dbPath)

	require.NoError(t, j.Remove())
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
}

func TestJournal_Resume(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	j, err := OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	firstRun := j.RunID()
	require.NoError(t, j.MarkRecovered(JournalEntry{Inode: 7, Size: 500, Written: 500, Hash: "h1"}))
	require.NoError(t, j.SetCursor(100))
	require.NoError(t, j.Close())

	j, err = OpenJournal("/dev/sdb1", "/recovered")
	require.NoError(t, err)
	defer j.Close()

	assert.NotEqual(t, firstRun, j.RunID())
	e, ok := j.Lookup(7)
	require.True(t, ok)
	assert.Equal(t, "h1", e.Hash)
	cur, ok := j.Cursor()
	require.True(t, ok)
	assert.Equal(t, uint64(100), cur)
}

package folder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesonky/invoice-merge-tool/mergeerr"
)

func touch(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

func TestScanFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.pdf", 10)
	touch(t, dir, "A.PNG", 3)
	touch(t, dir, "c.heic", 1)
	touch(t, dir, "notes.txt", 1)
	touch(t, dir, "noext", 1)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	entries, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	assert.Equal(t, []string{"A.PNG", "b.pdf", "c.heic"}, names)
	assert.Equal(t, "png", entries[0].Ext)
	assert.True(t, entries[0].IsImage())
	assert.True(t, entries[1].IsPDF())
	assert.Equal(t, int64(10), entries[1].Size)
	assert.True(t, filepath.IsAbs(entries[1].Path))
	assert.NotZero(t, entries[1].ModifiedTS)
}

func TestScanInvalidFolder(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, mergeerr.ErrInvalidFolder)

	file := filepath.Join(t.TempDir(), "file.pdf")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Scan(file)
	assert.ErrorIs(t, err, mergeerr.ErrInvalidFolder)
}

func TestScanEmptyFolder(t *testing.T) {
	entries, err := Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStat(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x.jpg", 5)
	e, err := Stat(filepath.Join(dir, "x.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "x.jpg", e.Name)
	assert.Equal(t, "jpg", e.Ext)
	assert.Equal(t, int64(5), e.Size)
}

func TestResolveKeepsOrderAndMissingNames(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.pdf", 3)
	touch(t, dir, "a.PNG", 5)

	got := Resolve(dir, []string{"b.pdf", "missing.jpg", filepath.Join(dir, "a.PNG")})
	require.Len(t, got, 3)
	assert.Equal(t, "b.pdf", got[0].Name)
	assert.Equal(t, int64(3), got[0].Size)
	assert.True(t, filepath.IsAbs(got[0].Path))
	assert.Equal(t, Entry{Path: filepath.Join(dir, "missing.jpg"), Name: "missing.jpg", Ext: "jpg"}, got[1])
	assert.Equal(t, "png", got[2].Ext)
	assert.True(t, got[2].IsImage())
}

package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLatestPDF(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0644))
		require.NoError(t, os.Chtimes(path, now.Add(-age), now.Add(-age)))
	}
	write("old.pdf", 2*time.Hour)
	write("NEW.PDF", time.Minute)
	write("newest.txt", 0)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.pdf"), 0755))

	got, err := FindLatestPDF(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "NEW.PDF"), got)
}

func TestFindLatestPDFEmpty(t *testing.T) {
	_, err := FindLatestPDF(t.TempDir())
	assert.Error(t, err)

	_, err = FindLatestPDF(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadMemory(t *testing.T) {
	m, err := ReadMemory()
	require.NoError(t, err)
	assert.Positive(t, m.TotalBytes)
	assert.LessOrEqual(t, m.AvailableBytes, m.TotalBytes)
	assert.NotEmpty(t, m.String())
}

func TestCheckHeadroom(t *testing.T) {
	m := Memory{TotalBytes: 64 << 20, AvailableBytes: 32 << 20}

	assert.NoError(t, m.CheckHeadroom(4_000_000, 1))
	assert.ErrorIs(t, m.CheckHeadroom(4_000_000, 4), ErrLowMemory)
	assert.NoError(t, m.CheckHeadroom(1000, 0))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "15.3 MiB", formatBytes(16_000_000))
}

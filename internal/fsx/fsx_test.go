package fsx

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicReplacesAndLeavesNoTemp(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "volcano.html", []byte("old"), 0o644))

	require.NoError(t, WriteFileAtomic(fs, ".", "volcano.html", []byte("new")))

	got, err := afero.ReadFile(fs, "volcano.html")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assertNoTemp(t, fs, ".", "volcano.html")
}

func TestWriteFileAtomicCreatesDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFileAtomic(fs, "out/2024", "a.csv", []byte("a,b")))

	got, err := afero.ReadFile(fs, "out/2024/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(got))
}

func TestWriteFileAtomicRenameFailureCleansUp(t *testing.T) {
	t.Parallel()

	fs := failingRenameFs{Fs: afero.NewMemMapFs()}
	err := WriteFileAtomic(fs, ".", "a.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))

	exists, err := afero.Exists(fs, "a.png")
	require.NoError(t, err)
	assert.False(t, exists)
	assertNoTemp(t, fs, ".", "a.png")
}

type failingRenameFs struct {
	afero.Fs
}

func (failingRenameFs) Rename(_, _ string) error {
	return os.ErrPermission
}

func assertNoTemp(t *testing.T, fs afero.Fs, dir, name string) {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "."+name+".tmp-") {
			t.Fatalf("temp file left behind: %q", e.Name())
		}
	}
}

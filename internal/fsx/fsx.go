// Package fsx provides atomic file writes on top of an afero filesystem.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const defaultPerm os.FileMode = 0o644

// WriteFileAtomic writes data to dir/name through a temporary file in the same
// directory followed by a rename, replacing any existing file. Readers never observe a
// partially written file.
func WriteFileAtomic(fs afero.Fs, dir, name string, data []byte) error {
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, defaultPerm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	dst := filepath.Join(dir, name)
	if err := fs.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename %q to %q: %w", tmpName, dst, err)
	}
	committed = true
	return nil
}

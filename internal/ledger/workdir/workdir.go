// Package workdir implements a ledger whose only state is the presence of a file named
// after the key in the working directory.
package workdir

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
)

// Ledger checks key files in a working directory.
type Ledger struct {
	fs afero.Fs
}

// New returns a Ledger over fs.
func New(fs afero.Fs) *Ledger {
	return &Ledger{fs: fs}
}

// Seen reports whether a file named key exists.
func (l *Ledger) Seen(_ context.Context, key string) (bool, error) {
	ok, err := afero.Exists(l.fs, key)
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
	return ok, nil
}

// Mark is a no-op: the downloaded artifact already marks the key.
func (l *Ledger) Mark(context.Context, string) error {
	return nil
}

// Package file implements a ledger persisted as a YAML document listing processed keys.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/JakeFAU/volcanic-ash-alert/internal/fsx"
)

// DefaultPath is used when no ledger path is configured.
const DefaultPath = "processed.yaml"

type document struct {
	Processed []string `yaml:"processed"`
}

// Ledger reads and rewrites a YAML file on every call.
type Ledger struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// New returns a Ledger stored at path inside fs.
func New(fs afero.Fs, path string) *Ledger {
	if path == "" {
		path = DefaultPath
	}
	return &Ledger{fs: fs, path: path}
}

// Seen reports whether key is listed in the ledger file.
func (l *Ledger) Seen(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return false, err
	}
	for _, k := range doc.Processed {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

// Mark adds key to the ledger file. Marking an existing key is a no-op.
func (l *Ledger) Mark(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return err
	}
	for _, k := range doc.Processed {
		if k == key {
			return nil
		}
	}
	doc.Processed = append(doc.Processed, key)
	sort.Strings(doc.Processed)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	dir, name := filepath.Split(l.path)
	if err := fsx.WriteFileAtomic(l.fs, dir, name, data); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

func (l *Ledger) load() (document, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, fmt.Errorf("read ledger %q: %w", l.path, err)
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("parse ledger %q: %w", l.path, err)
	}
	return doc, nil
}

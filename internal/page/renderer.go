// Package page renders the static status page for the latest advisory.
package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/fsx"
)

// DefaultName is the file the page is written to when none is configured.
const DefaultName = "volcano.html"

// Unavailable is the whole page rendered when there is no selection.
const Unavailable = "<h2>Volcano Information Not Available</h2>"

//go:embed page.html
var pageTemplate string

var tpl = template.Must(template.New("page").Parse(pageTemplate))

// Render returns the status page for sel, or Unavailable when sel is nil.
func Render(sel *advisory.Selection) (string, error) {
	if sel == nil {
		return Unavailable, nil
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, sel); err != nil {
		return "", fmt.Errorf("execute page template: %w", err)
	}
	return buf.String(), nil
}

// Renderer writes the status page into a working directory.
type Renderer struct {
	fs     afero.Fs
	name   string
	logger *zap.Logger
}

// NewRenderer returns a Renderer writing name (DefaultName if empty) into fs.
func NewRenderer(fs afero.Fs, name string, logger *zap.Logger) *Renderer {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{fs: fs, name: name, logger: logger}
}

// Write renders sel and replaces the page file, returning its path.
func (r *Renderer) Write(sel *advisory.Selection) (string, error) {
	html, err := Render(sel)
	if err != nil {
		return "", err
	}
	dir, name := filepath.Split(r.name)
	if err := fsx.WriteFileAtomic(r.fs, dir, name, []byte(html)); err != nil {
		return "", fmt.Errorf("write status page: %w", err)
	}
	if sel == nil {
		r.logger.Warn("status page written without advisory", zap.String("path", r.name))
	} else {
		r.logger.Info("status page written", zap.String("path", r.name), zap.String("title", sel.Title))
	}
	return r.name, nil
}

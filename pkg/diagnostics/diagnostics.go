// Package diagnostics stores per-request debugging artifacts.
//
// Each request gets its own directory, so concurrent requests never see or
// delete each other's files. The directory is removed on Close unless the
// workspace was opened with keep set.
package diagnostics

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"

	"menu-scan/pkg/logging"
	"menu-scan/pkg/models"
)

var log = logging.For("diagnostics")

// Workspace is a request-scoped artifact directory. A nil or disabled
// workspace accepts every call and writes nothing.
type Workspace struct {
	dir       string
	keep      bool
	requestID string
}

// Open creates a unique directory for requestID under root. An empty root
// returns a disabled workspace.
func Open(root, requestID string, keep bool) (*Workspace, error) {
	if root == "" {
		return &Workspace{requestID: requestID}, nil
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics root: %w", err)
	}
	dir, err := os.MkdirTemp(root, "scan-"+requestID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics dir: %w", err)
	}
	return &Workspace{dir: dir, keep: keep, requestID: requestID}, nil
}

// Enabled reports whether artifacts are written.
func (w *Workspace) Enabled() bool {
	return w != nil && w.dir != ""
}

// Dir returns the workspace directory, or "" when disabled.
func (w *Workspace) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

func (w *Workspace) path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// SaveBytes writes raw bytes under name.
func (w *Workspace) SaveBytes(name string, data []byte) error {
	if !w.Enabled() {
		return nil
	}
	if err := os.WriteFile(w.path(name), data, 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// SaveText writes text under name.
func (w *Workspace) SaveText(name, text string) error {
	return w.SaveBytes(name, []byte(text))
}

// SaveImage encodes img in the format implied by name's extension.
func (w *Workspace) SaveImage(name string, img image.Image) error {
	if !w.Enabled() {
		return nil
	}
	if err := imaging.Save(img, w.path(name)); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// SaveOverlay draws every token box and each line's representative y over
// the image and saves the result as PNG.
func (w *Workspace) SaveOverlay(name string, imageData []byte, doc models.Document) error {
	if !w.Enabled() {
		return nil
	}
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return fmt.Errorf("failed to decode overlay base image: %w", err)
	}
	return w.SaveImage(name, Overlay(src, doc))
}

// Overlay renders token boxes in red and line baselines in blue.
func Overlay(src image.Image, doc models.Document) image.Image {
	dc := gg.NewContextForImage(src)
	width := float64(dc.Width())

	dc.SetLineWidth(1)
	dc.SetRGBA(0, 0, 1, 0.5)
	for _, line := range doc.Lines {
		dc.DrawLine(0, line.RepresentativeY, width, line.RepresentativeY)
		dc.Stroke()
	}

	dc.SetLineWidth(2)
	dc.SetRGB(1, 0, 0)
	for _, line := range doc.Lines {
		for _, tok := range line.Tokens {
			b := tok.BBox
			dc.DrawRectangle(b.XMin, b.YMin, b.XMax-b.XMin, b.YMax-b.YMin)
			dc.Stroke()
		}
	}
	return dc.Image()
}

// Close removes the directory unless the workspace keeps its artifacts.
func (w *Workspace) Close() error {
	if !w.Enabled() {
		return nil
	}
	entry := log.WithFields(logrus.Fields{"request_id": w.requestID, "dir": w.dir})
	if w.keep {
		entry.Info("Keeping diagnostics")
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove diagnostics dir: %w", err)
	}
	entry.Debug("Removed diagnostics")
	return nil
}

package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/types"
)

// Renderer writes an extra rendition of a grid next to the PGM file.
type Renderer func(path string, g nibble.Grid) error

// ImageWriter stores decoded images as frame-NNNNN.pnm files. Every image
// takes the next frame number, even when writing it fails, so names stay in
// step with capture indices.
type ImageWriter struct {
	mu       sync.Mutex
	dir      string
	next     int
	written  int
	renderer Renderer
	rendExt  string
}

func NewImageWriter(outputDir string) (*ImageWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	return &ImageWriter{dir: outputDir}, nil
}

// WithRenderer adds a second output, written as frame-NNNNN.<ext>.
func (w *ImageWriter) WithRenderer(ext string, r Renderer) *ImageWriter {
	w.renderer = r
	w.rendExt = ext
	return w
}

// FrameName is the artifact name for frame n.
func FrameName(n int, ext string) string {
	return fmt.Sprintf("frame-%05d.%s", n, ext)
}

// Count is the number of images written successfully.
func (w *ImageWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *ImageWriter) WriteGrid(g nibble.Grid) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	w.next++
	return w.write(n, g)
}

func (w *ImageWriter) write(n int, g nibble.Grid) (string, error) {
	filename := filepath.Join(w.dir, FrameName(n, "pnm"))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	if err := nibble.WritePGM(f, g); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	w.written++
	if w.renderer != nil {
		extra := filepath.Join(w.dir, FrameName(n, w.rendExt))
		if err := w.renderer(extra, g); err != nil {
			return filename, fmt.Errorf("render %s: %w", extra, err)
		}
	}
	return filename, nil
}

// WriteCapture lets the writer act as a session sink. The file is named
// after the capture index.
func (w *ImageWriter) WriteCapture(c types.Capture) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c.Index >= w.next {
		w.next = c.Index + 1
	}
	_, err := w.write(c.Index, c.Grid())
	return err
}

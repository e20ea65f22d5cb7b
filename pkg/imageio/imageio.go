// Package imageio converts between on-disk array files and the canonical
// (channel, Z, Y, X) image representation.
package imageio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"signalseg/internal/models"
)

var (
	// ErrUnsupportedRank is wrapped by FormatError.
	ErrUnsupportedRank = errors.New("unsupported array rank")

	// ErrShapeMismatch is wrapped by ShapeMismatchError.
	ErrShapeMismatch = errors.New("not all input images have the same shape")

	// ErrNoInput is returned when ReadImages is called without paths.
	ErrNoInput = errors.New("no input files")
)

// ReaderWriter is implemented by every file format adapter.
type ReaderWriter interface {
	// ReadImages reads one or more files and stacks them along the channel axis.
	ReadImages(paths []string) (*models.Image, models.Properties, error)

	// ReadSeg reads a single segmentation file.
	ReadSeg(path string) (*models.Image, models.Properties, error)

	// WriteSeg writes channel 0 of seg to path.
	WriteSeg(seg *models.Image, path string, props models.Properties) error

	// SupportedFileEndings lists the file extensions handled by the adapter.
	SupportedFileEndings() []string
}

// FormatError reports an input array whose rank the adapter cannot handle.
type FormatError struct {
	Path string
	Rank int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v %d: only 1D timeseries with one or more channels supported",
		e.Path, ErrUnsupportedRank, e.Rank)
}

func (e *FormatError) Unwrap() error { return ErrUnsupportedRank }

// ShapeMismatchError lists the normalized shapes of every input file when
// they disagree.
type ShapeMismatchError struct {
	Shapes []models.Shape
	Files  []string
}

func (e *ShapeMismatchError) Error() string {
	shapes := make([]string, len(e.Shapes))
	for i, s := range e.Shapes {
		shapes[i] = s.String()
	}
	return fmt.Sprintf("%v; shapes: [%s]; image files: [%s]",
		ErrShapeMismatch, strings.Join(shapes, ", "), strings.Join(e.Files, ", "))
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// ForFile returns the adapter registered for the extension of path.
func ForFile(path string) (ReaderWriter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, rw := range []ReaderWriter{NumpyIO{}} {
		for _, e := range rw.SupportedFileEndings() {
			if e == ext {
				return rw, nil
			}
		}
	}
	return nil, fmt.Errorf("no reader/writer for file ending %q", ext)
}

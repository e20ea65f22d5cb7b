// Package dataset scaffolds raw dataset folders, writes cases into them and
// manages the dataset.json descriptor.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Folder names inside a raw dataset.
const (
	ImagesTrDir = "imagesTr"
	LabelsTrDir = "labelsTr"
	ImagesTsDir = "imagesTs"

	DescriptorFile = "dataset.json"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)

// DatasetName formats the conventional folder name for a dataset whose id
// is already known, e.g. DatasetName(995, "IntegrationTest_1d").
func DatasetName(id int, name string) string {
	return fmt.Sprintf("Dataset%03d_%s", id, name)
}

// Layout locates one raw dataset on disk. The raw root is always passed in
// explicitly.
type Layout struct {
	// RawDir is the folder that holds all raw datasets
	RawDir string

	// Name is the dataset folder name below RawDir
	Name string
}

// NewLayout validates name and returns the layout for RawDir/name.
func NewLayout(rawDir, name string) (Layout, error) {
	if rawDir == "" {
		return Layout{}, fmt.Errorf("raw dataset directory must be set")
	}
	if !nameRe.MatchString(name) {
		return Layout{}, fmt.Errorf("invalid dataset folder name %q", name)
	}
	return Layout{RawDir: rawDir, Name: name}, nil
}

// Root returns the dataset folder.
func (l Layout) Root() string { return filepath.Join(l.RawDir, l.Name) }

// ImagesTr returns the training image folder.
func (l Layout) ImagesTr() string { return filepath.Join(l.Root(), ImagesTrDir) }

// LabelsTr returns the training label folder.
func (l Layout) LabelsTr() string { return filepath.Join(l.Root(), LabelsTrDir) }

// ImagesTs returns the test image folder.
func (l Layout) ImagesTs() string { return filepath.Join(l.Root(), ImagesTsDir) }

// Descriptor returns the path of dataset.json.
func (l Layout) Descriptor() string { return filepath.Join(l.Root(), DescriptorFile) }

// ImageFile returns the file name of one channel of a case.
func ImageFile(caseID string, channel int, ending string) string {
	return fmt.Sprintf("case_%s_%04d%s", caseID, channel, ending)
}

// ValidateCaseID rejects ids that would place case files outside their
// dataset folder.
func ValidateCaseID(id string) error {
	if id == "" {
		return fmt.Errorf("empty case id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid case id %q: must not contain path separators or \"..\"", id)
	}
	return nil
}

// LabelFile returns the file name of the label of a case.
func LabelFile(caseID, ending string) string {
	return fmt.Sprintf("case_%s%s", caseID, ending)
}

// Create makes the dataset folders. It is safe to call on an existing dataset.
func (l Layout) Create(withTest bool) error {
	dirs := []string{l.ImagesTr(), l.LabelsTr()}
	if withTest {
		dirs = append(dirs, l.ImagesTs())
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", d, err)
		}
	}
	return nil
}

// Reset removes the dataset folder if it exists.
func (l Layout) Reset() error {
	if l.Name == "" {
		return fmt.Errorf("refusing to remove raw directory %s", l.RawDir)
	}
	if err := os.RemoveAll(l.Root()); err != nil {
		return fmt.Errorf("failed to remove %s: %w", l.Root(), err)
	}
	return nil
}

package models

import "fmt"

// SentinelSpacing is the spacing reported for array-backed 1D signals.
// It marks data without physical units and must not be used for resampling.
var SentinelSpacing = [3]float64{999, 999, 1}

// Shape is the canonical (channel, Z, Y, X) shape of an image.
type Shape [4]int

// Channels returns the size of the channel axis.
func (s Shape) Channels() int { return s[0] }

// VoxelsPerChannel returns Z*Y*X.
func (s Shape) VoxelsPerChannel() int { return s[1] * s[2] * s[3] }

// Len returns the total number of elements.
func (s Shape) Len() int { return s[0] * s.VoxelsPerChannel() }

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}

// Image is the canonical in-memory image representation shared by all
// reader/writer adapters.
type Image struct {
	// Data holds the voxels in row-major (channel, Z, Y, X) order
	Data []float32

	// Shape is the (channel, Z, Y, X) shape of Data
	Shape Shape
}

// NewImage allocates a zeroed image of the given shape.
func NewImage(shape Shape) *Image {
	return &Image{
		Data:  make([]float32, shape.Len()),
		Shape: shape,
	}
}

// Channel returns the voxels of channel c. The returned slice aliases Data.
func (img *Image) Channel(c int) []float32 {
	n := img.Shape.VoxelsPerChannel()
	return img.Data[c*n : (c+1)*n]
}

// Properties is the metadata record returned alongside an image.
type Properties struct {
	// Spacing is the distance between adjacent samples along (Z, Y, X)
	Spacing [3]float64 `json:"spacing" yaml:"spacing"`
}

// Case is one dataset entry: one or more signal channels plus an optional
// label track of the same length.
type Case struct {
	// ID is the case identifier used in file names (case_<ID>_0000.npy)
	ID string

	// Channels holds one 1D signal per input channel
	Channels [][]float64

	// Label is the per-sample segmentation; nil for unlabeled cases
	Label []uint8

	// Test marks cases that belong to the held-out test split
	Test bool
}

package imageio

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"signalseg/internal/models"
)

// NumpyIO reads and writes .npy files holding 1D timeseries. A rank-1
// array is a single channel; a rank-2 array is (samples, channels).
// Images are returned as (channels, 1, 1, samples).
type NumpyIO struct{}

// SupportedFileEndings implements ReaderWriter.
func (NumpyIO) SupportedFileEndings() []string {
	return []string{".npy"}
}

// ReadImages implements ReaderWriter. Values are cast to float32 without
// range checks.
func (n NumpyIO) ReadImages(paths []string) (*models.Image, models.Properties, error) {
	if len(paths) == 0 {
		return nil, models.Properties{}, ErrNoInput
	}

	channels := make([][][]float64, len(paths))
	shapes := make([]models.Shape, len(paths))
	for i, p := range paths {
		arr, err := readArray(p)
		if err != nil {
			return nil, models.Properties{}, err
		}
		channels[i], shapes[i] = normalize(arr)
	}

	for _, s := range shapes[1:] {
		if s != shapes[0] {
			return nil, models.Properties{}, &ShapeMismatchError{
				Shapes: shapes,
				Files:  append([]string(nil), paths...),
			}
		}
	}

	out := shapes[0]
	out[0] *= len(paths)
	img := models.NewImage(out)
	c := 0
	for _, file := range channels {
		for _, ch := range file {
			dst := img.Channel(c)
			for i, v := range ch {
				dst[i] = float32(v)
			}
			c++
		}
	}

	return img, models.Properties{Spacing: models.SentinelSpacing}, nil
}

// normalize splits arr into channels and returns its canonical shape.
func normalize(arr *array) ([][]float64, models.Shape) {
	if len(arr.shape) == 1 {
		return [][]float64{arr.data}, models.Shape{1, 1, 1, arr.shape[0]}
	}

	samples, nch := arr.shape[0], arr.shape[1]
	shape := models.Shape{nch, 1, 1, samples}
	out := make([][]float64, nch)
	if samples == 0 || nch == 0 {
		return out, shape
	}
	// channel-last on disk; a Fortran ordered file stores it channel-major
	if arr.fortran {
		m := mat.NewDense(nch, samples, arr.data)
		for c := range out {
			out[c] = mat.Row(nil, c, m)
		}
		return out, shape
	}
	m := mat.NewDense(samples, nch, arr.data)
	for c := range out {
		out[c] = mat.Col(nil, c, m)
	}
	return out, shape
}

// ReadSeg implements ReaderWriter. Only channel 0 of the result is
// meaningful to segmentation consumers.
func (n NumpyIO) ReadSeg(path string) (*models.Image, models.Properties, error) {
	return n.ReadImages([]string{path})
}

// WriteSeg implements ReaderWriter. Channel 0 is converted to uint8 with
// integer truncation and no clipping; props is unused. The singleton Z and
// Y axes are dropped so the file reads back as a rank-1 signal.
func (NumpyIO) WriteSeg(seg *models.Image, path string, props models.Properties) error {
	if seg == nil || seg.Shape.Channels() < 1 {
		return fmt.Errorf("write %s: segmentation has no channels", path)
	}
	if seg.Shape[1] != 1 || seg.Shape[2] != 1 {
		return fmt.Errorf("write %s: segmentation shape %s is not a 1D timeseries", path, seg.Shape)
	}

	ch := seg.Channel(0)
	labels := make([]uint8, len(ch))
	for i, v := range ch {
		labels[i] = uint8(int64(v))
	}
	return WriteArray(path, labels)
}

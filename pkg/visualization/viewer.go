package visualization

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"signalseg/internal/models"
	"signalseg/pkg/imageio"
)

// Viewer renders the channels of a canonical 1D image, optionally with its
// label track, as line plots.
type Viewer struct {
	// image holds the (channel, 1, 1, X) signal data
	image *models.Image

	// label is the per-sample segmentation; may be nil
	label []float32

	// Title is printed above the plot
	Title string
}

// NewViewer creates a viewer for img. label may be nil; when set it must
// have one entry per sample.
func NewViewer(img *models.Image, label []float32) (*Viewer, error) {
	if img == nil || img.Shape.Channels() == 0 {
		return nil, fmt.Errorf("image has no channels")
	}
	if label != nil && len(label) != img.Shape.VoxelsPerChannel() {
		return nil, fmt.Errorf("label has %d samples, image has %d", len(label), img.Shape.VoxelsPerChannel())
	}
	return &Viewer{image: img, label: label}, nil
}

// ExtractChannel returns a copy of one channel as float64 samples.
func (v *Viewer) ExtractChannel(c int) ([]float64, error) {
	if c < 0 || c >= v.image.Shape.Channels() {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", c, v.image.Shape.Channels())
	}
	ch := v.image.Channel(c)
	out := make([]float64, len(ch))
	for i, s := range ch {
		out[i] = float64(s)
	}
	return out, nil
}

// ExtractWindow returns samples [start, start+size) of every channel.
func (v *Viewer) ExtractWindow(start, size int) ([][]float64, error) {
	if start < 0 {
		return nil, fmt.Errorf("start must be non-negative")
	}
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if start+size > v.image.Shape.VoxelsPerChannel() {
		return nil, fmt.Errorf("window extends beyond signal length %d", v.image.Shape.VoxelsPerChannel())
	}

	out := make([][]float64, v.image.Shape.Channels())
	for c := range out {
		ch, err := v.ExtractChannel(c)
		if err != nil {
			return nil, err
		}
		out[c] = ch[start : start+size]
	}
	return out, nil
}

// Plot builds the plot of all channels and the label track.
func (v *Viewer) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = v.Title
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Amplitude"

	for c := 0; c < v.image.Shape.Channels(); c++ {
		ch, err := v.ExtractChannel(c)
		if err != nil {
			return nil, err
		}
		line, err := plotter.NewLine(samples(ch))
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(c)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("channel %d", c), line)
	}

	if v.label != nil {
		lab := make([]float64, len(v.label))
		for i, l := range v.label {
			lab[i] = float64(l)
		}
		line, err := plotter.NewLine(samples(lab))
		if err != nil {
			return nil, err
		}
		line.StepStyle = plotter.PostStep
		line.Color = plotutil.Color(v.image.Shape.Channels())
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("label", line)
	}
	return p, nil
}

func samples(ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		pts[i] = plotter.XY{X: float64(i), Y: y}
	}
	return pts
}

// SavePlot renders the plot to filename; the format follows the extension.
func (v *Viewer) SavePlot(filename string) error {
	p, err := v.Plot()
	if err != nil {
		return err
	}
	return p.Save(14*vg.Inch, 4*vg.Inch, filename)
}

// SaveCaseSequence renders every training case of a raw dataset folder
// (imagesTr + labelsTr) as case_<id>.png into outputDir. It returns the
// number of plots written.
func SaveCaseSequence(imagesDir, labelsDir, outputDir string, limit int) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	labels, err := filepath.Glob(filepath.Join(labelsDir, "case_*.npy"))
	if err != nil {
		return 0, err
	}

	rw := imageio.NumpyIO{}
	count := 0
	for _, lp := range labels {
		if limit > 0 && count >= limit {
			break
		}
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(lp), "case_"), ".npy")

		channels, err := filepath.Glob(filepath.Join(imagesDir, "case_"+id+"_[0-9][0-9][0-9][0-9].npy"))
		if err != nil {
			return count, err
		}
		img, _, err := rw.ReadImages(channels)
		if err != nil {
			return count, fmt.Errorf("case %s: %w", id, err)
		}
		seg, _, err := rw.ReadSeg(lp)
		if err != nil {
			return count, fmt.Errorf("case %s: %w", id, err)
		}

		viewer, err := NewViewer(img, seg.Channel(0))
		if err != nil {
			return count, fmt.Errorf("case %s: %w", id, err)
		}
		viewer.Title = "case " + id
		if err := viewer.SavePlot(filepath.Join(outputDir, "case_"+id+".png")); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

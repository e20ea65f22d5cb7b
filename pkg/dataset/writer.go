package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"signalseg/internal/models"
	"signalseg/pkg/imageio"
	"signalseg/pkg/logging"
)

// Summary reports what a Writer produced.
type Summary struct {
	NumTraining int
	NumTest     int
	Bytes       uint64
}

// Writer stores cases in a raw dataset folder. Images are written one file
// per channel; labels go through the segmentation writer of the adapter.
type Writer struct {
	layout   Layout
	adapter  imageio.ReaderWriter
	ending   string
	numCores int
}

// NewWriter creates a writer for layout using the .npy adapter. numCores
// bounds the number of cases written concurrently.
func NewWriter(layout Layout, numCores int) *Writer {
	if numCores < 1 {
		numCores = 1
	}
	return &Writer{
		layout:   layout,
		adapter:  imageio.NumpyIO{},
		ending:   ".npy",
		numCores: numCores,
	}
}

// FileEnding returns the extension used for all written files.
func (w *Writer) FileEnding() string { return w.ending }

// WriteCases writes every case and returns the training/test counts. The
// first failure cancels the remaining writes.
func (w *Writer) WriteCases(ctx context.Context, cases []models.Case) (Summary, error) {
	withTest := false
	for _, c := range cases {
		if c.Test {
			withTest = true
			break
		}
	}
	if err := w.layout.Create(withTest); err != nil {
		return Summary{}, err
	}

	var nTrain, nTest int64
	var written uint64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.numCores)
	for _, c := range cases {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := w.writeCase(c)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.ID, err)
			}
			atomic.AddUint64(&written, n)
			if c.Test {
				atomic.AddInt64(&nTest, 1)
			} else {
				atomic.AddInt64(&nTrain, 1)
			}
			logging.Debugf("wrote case %s (%s)", c.ID, humanize.Bytes(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s := Summary{NumTraining: int(nTrain), NumTest: int(nTest), Bytes: written}
	logging.Infof("wrote %d training and %d test cases to %s (%s)",
		s.NumTraining, s.NumTest, w.layout.Root(), humanize.Bytes(s.Bytes))
	return s, nil
}

func (w *Writer) writeCase(c models.Case) (uint64, error) {
	if err := ValidateCaseID(c.ID); err != nil {
		return 0, err
	}
	if len(c.Channels) == 0 {
		return 0, fmt.Errorf("no channels")
	}
	length := len(c.Channels[0])
	for i, ch := range c.Channels[1:] {
		if len(ch) != length {
			return 0, fmt.Errorf("channel %d has %d samples, channel 0 has %d", i+1, len(ch), length)
		}
	}

	imgDir := w.layout.ImagesTr()
	if c.Test {
		imgDir = w.layout.ImagesTs()
	}

	var files []string
	for i, ch := range c.Channels {
		p := filepath.Join(imgDir, ImageFile(c.ID, i, w.ending))
		if err := imageio.WriteArray(p, ch); err != nil {
			return 0, err
		}
		files = append(files, p)
	}

	if !c.Test {
		if c.Label == nil {
			return 0, fmt.Errorf("training case has no label")
		}
		if len(c.Label) != length {
			return 0, fmt.Errorf("label has %d samples, signal has %d", len(c.Label), length)
		}
		seg := models.NewImage(models.Shape{1, 1, 1, length})
		for i, v := range c.Label {
			seg.Data[i] = float32(v)
		}
		p := filepath.Join(w.layout.LabelsTr(), LabelFile(c.ID, w.ending))
		if err := w.adapter.WriteSeg(seg, p, models.Properties{Spacing: models.SentinelSpacing}); err != nil {
			return 0, err
		}
		files = append(files, p)
	}

	var n uint64
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			return 0, err
		}
		n += uint64(fi.Size())
	}
	return n, nil
}

// Finalize validates the descriptor and writes it into the dataset folder.
func (w *Writer) Finalize(d *Descriptor) error {
	if d.FileEnding == "" {
		d.FileEnding = w.ending
	}
	return d.Save(w.layout.Descriptor())
}

// Verify reads every training case of the dataset back through the adapter
// and checks that images and labels agree in length.
func Verify(layout Layout) (int, error) {
	d, err := LoadDescriptor(layout.Descriptor())
	if err != nil {
		return 0, err
	}
	rw, err := imageio.ForFile("x" + d.FileEnding)
	if err != nil {
		return 0, err
	}

	labels, err := filepath.Glob(filepath.Join(layout.LabelsTr(), "case_*"+d.FileEnding))
	if err != nil {
		return 0, err
	}
	if len(labels) != d.NumTraining {
		return 0, fmt.Errorf("descriptor lists %d training cases, found %d labels", d.NumTraining, len(labels))
	}

	nch := len(d.ChannelNames)
	for _, lp := range labels {
		base := filepath.Base(lp)
		id := base[len("case_") : len(base)-len(d.FileEnding)]

		paths := make([]string, nch)
		for i := range paths {
			paths[i] = filepath.Join(layout.ImagesTr(), ImageFile(id, i, d.FileEnding))
		}
		img, _, err := rw.ReadImages(paths)
		if err != nil {
			return 0, fmt.Errorf("case %s: %w", id, err)
		}
		seg, _, err := rw.ReadSeg(lp)
		if err != nil {
			return 0, fmt.Errorf("case %s: %w", id, err)
		}
		if [3]int(img.Shape[1:]) != [3]int(seg.Shape[1:]) {
			return 0, fmt.Errorf("case %s: image shape %v does not match label shape %v", id, img.Shape, seg.Shape)
		}
	}
	return len(labels), nil
}

package dataset

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalseg/internal/models"
	"signalseg/pkg/imageio"
)

func testDescriptor() *Descriptor {
	return &Descriptor{
		ChannelNames: map[string]string{"0": "signal"},
		Labels:       Labels{{"background", 0}, {"foreground", 1}},
		NumTraining:  2,
		FileEnding:   ".npy",
	}
}

func TestDatasetName(t *testing.T) {
	assert.Equal(t, "Dataset995_IntegrationTest_1d", DatasetName(995, "IntegrationTest_1d"))
	assert.Equal(t, "Dataset011_test", DatasetName(11, "test"))
}

func TestNewLayout(t *testing.T) {
	l, err := NewLayout("/raw", "Dataset011_test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/raw", "Dataset011_test", "imagesTr"), l.ImagesTr())
	assert.Equal(t, filepath.Join("/raw", "Dataset011_test", "labelsTr"), l.LabelsTr())
	assert.Equal(t, filepath.Join("/raw", "Dataset011_test", "imagesTs"), l.ImagesTs())
	assert.Equal(t, filepath.Join("/raw", "Dataset011_test", "dataset.json"), l.Descriptor())

	for _, bad := range []string{"", "../escape", "a/b", "_hidden"} {
		_, err := NewLayout("/raw", bad)
		assert.Error(t, err, bad)
	}
	_, err = NewLayout("", "Dataset011_test")
	assert.Error(t, err)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "case_007_0000.npy", ImageFile("007", 0, ".npy"))
	assert.Equal(t, "case_abc_0012.npy", ImageFile("abc", 12, ".npy"))
	assert.Equal(t, "case_007.npy", LabelFile("007", ".npy"))
}

func TestLayoutCreateAndReset(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "Dataset001_x")
	require.NoError(t, err)

	require.NoError(t, l.Create(false))
	assert.DirExists(t, l.ImagesTr())
	assert.DirExists(t, l.LabelsTr())
	assert.NoDirExists(t, l.ImagesTs())

	require.NoError(t, l.Create(true))
	assert.DirExists(t, l.ImagesTs())

	require.NoError(t, l.Reset())
	assert.NoDirExists(t, l.Root())
	assert.DirExists(t, l.RawDir)

	assert.Error(t, Layout{RawDir: l.RawDir}.Reset())
}

func TestDescriptorJSONKeepsOrder(t *testing.T) {
	d := testDescriptor()
	d.Labels = Labels{{"background", 0}, {"p_wave", 1}, {"qrs_wave", 2}, {"t_wave", 3}, {"noise", 4}}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, `"labels":{"background":0,"p_wave":1,"qrs_wave":2,"t_wave":3,"noise":4}`)
	assert.Contains(t, s, `"regions_class_order":null`)
	assert.True(t, strings.Index(s, "channel_names") < strings.Index(s, "file_ending"))

	var back Descriptor
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(d, &back); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
	id, ok := back.Labels.ID("t_wave")
	assert.True(t, ok)
	assert.Equal(t, 3, id)
	_, ok = back.Labels.ID("missing")
	assert.False(t, ok)
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr bool
	}{
		{"valid", func(*Descriptor) {}, false},
		{"regions", func(d *Descriptor) { d.RegionsClassOrder = []int{1} }, false},
		{"no channels", func(d *Descriptor) { d.ChannelNames = nil }, true},
		{"non numeric channel", func(d *Descriptor) { d.ChannelNames = map[string]string{"a": "x"} }, true},
		{"no background", func(d *Descriptor) { d.Labels = Labels{{"foreground", 1}} }, true},
		{"background not zero", func(d *Descriptor) { d.Labels = Labels{{"background", 1}} }, true},
		{"negative label", func(d *Descriptor) { d.Labels = append(d.Labels, Label{"bad", -1}) }, true},
		{"duplicate id", func(d *Descriptor) { d.Labels = append(d.Labels, Label{"again", 1}) }, true},
		{"negative count", func(d *Descriptor) { d.NumTraining = -1 }, true},
		{"ending without dot", func(d *Descriptor) { d.FileEnding = "npy" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDescriptor()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescriptorSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	d := testDescriptor()
	d.ChannelNames = map[string]string{"0": "I", "1": "II", "10": "V6"}
	require.NoError(t, d.Save(path))

	got, err := LoadDescriptor(path)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"I", "II", "V6"}, got.Channels())

	require.NoError(t, os.WriteFile(path, []byte(`{"labels": {"background": 0}}`), 0644))
	_, err = LoadDescriptor(path)
	assert.Error(t, err)

	bad := testDescriptor()
	bad.FileEnding = ""
	assert.Error(t, bad.Save(filepath.Join(t.TempDir(), "dataset.json")))
}

func sampleCases() []models.Case {
	return []models.Case{
		{ID: "000", Channels: [][]float64{{0.1, 0.2, 0.3, 0.4}}, Label: []uint8{0, 1, 1, 0}},
		{ID: "001", Channels: [][]float64{{1, 2, 3, 4}}, Label: []uint8{1, 1, 0, 0}},
		{ID: "000", Channels: [][]float64{{9, 9, 9, 9}}, Test: true},
	}
}

func TestWriterWriteCases(t *testing.T) {
	l, err := NewLayout(t.TempDir(), DatasetName(995, "IntegrationTest_1d"))
	require.NoError(t, err)

	w := NewWriter(l, 2)
	sum, err := w.WriteCases(context.Background(), sampleCases())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.NumTraining)
	assert.Equal(t, 1, sum.NumTest)
	assert.NotZero(t, sum.Bytes)

	assert.FileExists(t, filepath.Join(l.ImagesTr(), "case_000_0000.npy"))
	assert.FileExists(t, filepath.Join(l.ImagesTr(), "case_001_0000.npy"))
	assert.FileExists(t, filepath.Join(l.LabelsTr(), "case_000.npy"))
	assert.FileExists(t, filepath.Join(l.ImagesTs(), "case_000_0000.npy"))
	assert.NoFileExists(t, filepath.Join(l.LabelsTr(), "case_002.npy"))

	f, err := os.Open(filepath.Join(l.ImagesTr(), "case_000_0000.npy"))
	require.NoError(t, err)
	defer f.Close()
	r, err := npy.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, "<f8", r.Header.Descr.Type)
	var img []float64
	require.NoError(t, r.Read(&img))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, img)

	seg, _, err := imageio.NumpyIO{}.ReadSeg(filepath.Join(l.LabelsTr(), "case_001.npy"))
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 0, 0}, seg.Channel(0))

	d := testDescriptor()
	d.FileEnding = ""
	d.NumTraining = sum.NumTraining
	require.NoError(t, w.Finalize(d))
	assert.Equal(t, ".npy", d.FileEnding)

	n, err := Verify(l)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWriterMultiChannel(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "Dataset002_multi")
	require.NoError(t, err)

	cases := []models.Case{{
		ID:       "a",
		Channels: [][]float64{{1, 2, 3}, {4, 5, 6}},
		Label:    []uint8{0, 2, 0},
	}}
	w := NewWriter(l, 1)
	_, err = w.WriteCases(context.Background(), cases)
	require.NoError(t, err)

	img, _, err := imageio.NumpyIO{}.ReadImages([]string{
		filepath.Join(l.ImagesTr(), "case_a_0000.npy"),
		filepath.Join(l.ImagesTr(), "case_a_0001.npy"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Shape{2, 1, 1, 3}, img.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, img.Data)

	d := testDescriptor()
	d.ChannelNames = map[string]string{"0": "I", "1": "II"}
	d.NumTraining = 1
	require.NoError(t, w.Finalize(d))
	n, err := Verify(l)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriterRejectsBadCases(t *testing.T) {
	tests := []struct {
		name string
		c    models.Case
	}{
		{"no channels", models.Case{ID: "x", Label: []uint8{0}}},
		{"ragged channels", models.Case{ID: "x", Channels: [][]float64{{1, 2}, {1}}, Label: []uint8{0, 0}}},
		{"missing label", models.Case{ID: "x", Channels: [][]float64{{1, 2}}}},
		{"label length", models.Case{ID: "x", Channels: [][]float64{{1, 2}}, Label: []uint8{0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLayout(t.TempDir(), "Dataset003_bad")
			require.NoError(t, err)
			_, err = NewWriter(l, 4).WriteCases(context.Background(), []models.Case{tt.c})
			assert.Error(t, err)
		})
	}
}

func TestValidateCaseID(t *testing.T) {
	for _, id := range []string{"000", "sel100", "case-7_a"} {
		assert.NoError(t, ValidateCaseID(id), id)
	}
	for _, id := range []string{"", "..", "../../x", "a/b", `a\b`, "x..y"} {
		assert.Error(t, ValidateCaseID(id), id)
	}
}

func TestWriterRejectsEscapingCaseID(t *testing.T) {
	root := t.TempDir()
	l, err := NewLayout(filepath.Join(root, "raw"), "Dataset005_escape")
	require.NoError(t, err)

	c := models.Case{ID: "../../x", Channels: [][]float64{{1, 2}}, Label: []uint8{0, 1}}
	_, err = NewWriter(l, 1).WriteCases(context.Background(), []models.Case{c})
	require.Error(t, err)

	var files []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files)
}

func TestWriterCancelled(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "Dataset004_cancel")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewWriter(l, 1).WriteCases(ctx, sampleCases())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyDetectsMissingImages(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "Dataset005_verify")
	require.NoError(t, err)
	w := NewWriter(l, 2)
	_, err = w.WriteCases(context.Background(), sampleCases()[:2])
	require.NoError(t, err)
	require.NoError(t, w.Finalize(testDescriptor()))

	require.NoError(t, os.Remove(filepath.Join(l.ImagesTr(), "case_001_0000.npy")))
	_, err = Verify(l)
	assert.Error(t, err)
}

func TestVerifyCountMismatch(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "Dataset006_count")
	require.NoError(t, err)
	w := NewWriter(l, 2)
	_, err = w.WriteCases(context.Background(), sampleCases()[:1])
	require.NoError(t, err)
	require.NoError(t, w.Finalize(testDescriptor()))

	_, err = Verify(l)
	assert.Error(t, err)
}

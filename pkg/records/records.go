// Package records converts annotated signal records into dataset cases.
package records

import (
	"encoding/json"
	"fmt"
	"os"

	"signalseg/internal/models"
	"signalseg/pkg/dataset"
	"signalseg/pkg/logging"
)

// oneHotLabels maps one-hot channel index to label id. Channel 3 carries
// no label of its own.
var oneHotLabels = []struct {
	channel int
	label   uint8
}{
	{0, 1},
	{1, 2},
	{2, 3},
	{4, 4},
}

// DefaultLabels are the label names of converted records, in id order.
var DefaultLabels = dataset.Labels{
	{Name: "background", ID: 0},
	{Name: "p_wave", ID: 1},
	{Name: "qrs_wave", ID: 2},
	{Name: "t_wave", ID: 3},
	{Name: "noise", ID: 4},
}

// Record is one annotated recording.
type Record struct {
	// Record identifies the recording; it becomes the case id
	Record string `json:"record"`

	// Signal holds the samples of the single recorded lead
	Signal []float64 `json:"signal"`

	// Segmentation is one-hot, indexed [class][sample]
	Segmentation [][]float64 `json:"segmentation"`

	// IsLabeled reports whether Segmentation holds real annotations
	IsLabeled bool `json:"is_labeled"`

	// DB names the source database
	DB string `json:"db"`
}

// Load reads and concatenates the records of one or more JSON files, each
// holding an array of records.
func Load(paths ...string) ([]Record, error) {
	var out []Record
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("error reading records: %w", err)
		}
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		logging.Debugf("loaded %d records from %s", len(recs), p)
		out = append(out, recs...)
	}
	return out, nil
}

// OneHotToIndices collapses a one-hot [class][sample] segmentation into
// per-sample label ids. Where several classes are set the later mapping wins.
func OneHotToIndices(seg [][]float64) ([]uint8, error) {
	if len(seg) <= oneHotLabels[len(oneHotLabels)-1].channel {
		return nil, fmt.Errorf("one-hot segmentation needs at least %d classes, got %d",
			oneHotLabels[len(oneHotLabels)-1].channel+1, len(seg))
	}
	n := len(seg[0])
	for c, row := range seg {
		if len(row) != n {
			return nil, fmt.Errorf("class %d has %d samples, class 0 has %d", c, len(row), n)
		}
	}

	out := make([]uint8, n)
	for _, ol := range oneHotLabels {
		for i, v := range seg[ol.channel] {
			if v == 1 {
				out[i] = ol.label
			}
		}
	}
	return out, nil
}

// Options selects which records become cases.
type Options struct {
	// ExcludedDatabases lists databases whose records are skipped
	ExcludedDatabases []string

	// ChannelName names channel 0 in the descriptor
	ChannelName string
}

// ToCases converts the labeled records that are not from an excluded
// database into training cases.
func ToCases(recs []Record, opts Options) ([]models.Case, error) {
	excluded := make(map[string]bool, len(opts.ExcludedDatabases))
	for _, db := range opts.ExcludedDatabases {
		excluded[db] = true
	}

	var cases []models.Case
	for _, r := range recs {
		if !r.IsLabeled || excluded[r.DB] {
			continue
		}
		if err := dataset.ValidateCaseID(r.Record); err != nil {
			return nil, err
		}
		label, err := OneHotToIndices(r.Segmentation)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.Record, err)
		}
		if len(label) != len(r.Signal) {
			return nil, fmt.Errorf("record %s: segmentation has %d samples, signal has %d",
				r.Record, len(label), len(r.Signal))
		}
		cases = append(cases, models.Case{
			ID:       r.Record,
			Channels: [][]float64{r.Signal},
			Label:    label,
		})
	}
	logging.Infof("converted %d of %d records", len(cases), len(recs))
	return cases, nil
}

// Descriptor returns the dataset.json record for numTraining converted cases.
func Descriptor(numTraining int, opts Options) *dataset.Descriptor {
	name := opts.ChannelName
	if name == "" {
		name = "LeadII"
	}
	return &dataset.Descriptor{
		ChannelNames: map[string]string{"0": name},
		Labels:       append(dataset.Labels(nil), DefaultLabels...),
		NumTraining:  numTraining,
		FileEnding:   ".npy",
	}
}

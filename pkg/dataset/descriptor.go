package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const descriptorSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["channel_names", "labels", "numTraining", "file_ending"],
	"properties": {
		"channel_names": {
			"type": "object",
			"minProperties": 1,
			"propertyNames": {"pattern": "^[0-9]+$"},
			"additionalProperties": {"type": "string", "minLength": 1}
		},
		"labels": {
			"type": "object",
			"required": ["background"],
			"properties": {"background": {"const": 0}},
			"additionalProperties": {"type": "integer", "minimum": 0}
		},
		"numTraining": {"type": "integer", "minimum": 0},
		"file_ending": {"type": "string", "pattern": "^\\.[A-Za-z0-9.]+$"},
		"regions_class_order": {
			"type": ["array", "null"],
			"items": {"type": "integer", "minimum": 0}
		}
	}
}`

var schema = jsonschema.MustCompileString("dataset.schema.json", descriptorSchema)

// Label is one named label id.
type Label struct {
	Name string
	ID   int
}

// Labels maps label names to ids while keeping declaration order, which
// dataset.json consumers rely on (background first).
type Labels []Label

// MarshalJSON writes the labels as an ordered JSON object.
func (ls Labels) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, l := range ls {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(l.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(l.ID))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (ls *Labels) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("labels: expected object, got %v", tok)
	}
	var out Labels
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var id int
		if err := dec.Decode(&id); err != nil {
			return fmt.Errorf("labels: %s: %w", name, err)
		}
		out = append(out, Label{Name: name, ID: id})
	}
	*ls = out
	return nil
}

// ID returns the id of the named label.
func (ls Labels) ID(name string) (int, bool) {
	for _, l := range ls {
		if l.Name == name {
			return l.ID, true
		}
	}
	return 0, false
}

// Descriptor is the dataset.json metadata record of a raw dataset.
type Descriptor struct {
	// ChannelNames maps channel index ("0", "1", ...) to a readable name
	ChannelNames map[string]string `json:"channel_names"`

	// Labels maps label names to integer ids
	Labels Labels `json:"labels"`

	// NumTraining is the number of training cases
	NumTraining int `json:"numTraining"`

	// FileEnding is the extension of all image and label files
	FileEnding string `json:"file_ending"`

	// RegionsClassOrder orders regions for region-based evaluation; null when unused
	RegionsClassOrder []int `json:"regions_class_order"`
}

// Channels returns the channel names in index order.
func (d *Descriptor) Channels() []string {
	idx := make([]int, 0, len(d.ChannelNames))
	for k := range d.ChannelNames {
		if i, err := strconv.Atoi(k); err == nil {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	names := make([]string, len(idx))
	for i, k := range idx {
		names[i] = d.ChannelNames[strconv.Itoa(k)]
	}
	return names
}

// Validate checks the descriptor against the dataset.json schema and
// rejects duplicate label ids.
func (d *Descriptor) Validate() error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := validateRaw(raw); err != nil {
		return err
	}
	seen := make(map[int]string, len(d.Labels))
	for _, l := range d.Labels {
		if other, ok := seen[l.ID]; ok {
			return fmt.Errorf("invalid dataset descriptor: labels %q and %q share id %d", other, l.Name, l.ID)
		}
		seen[l.ID] = l.Name
	}
	return nil
}

func validateRaw(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid dataset descriptor: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid dataset descriptor: %w", err)
	}
	return nil
}

// Save validates d and writes it as indented JSON.
func (d *Descriptor) Save(path string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("error marshaling dataset descriptor: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing dataset descriptor: %w", err)
	}
	return nil
}

// LoadDescriptor reads and validates a dataset.json file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading dataset descriptor: %w", err)
	}
	if err := validateRaw(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &d, nil
}

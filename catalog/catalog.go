// Package catalog holds the static registry of model descriptors known to
// the recognizer. Descriptors are defined once at startup and never mutated;
// everything else (store, downloads, engines) keys off their ids.
package catalog

import "fmt"

// Purpose classifies what a model is used for in the pipeline.
type Purpose string

const (
	PurposeDetector Purpose = "detector"
	PurposeOCR      Purpose = "ocr"
)

// Decode modes understood by the OCR decoder.
const (
	DecodeCTC        = "ctc"
	DecodePositional = "positional"
)

// Descriptor describes a single downloadable model file. The Metadata map is
// free-form; helpers below read the keys the pipeline cares about.
type Descriptor struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	SizeBytes   int64          `json:"sizeBytes"`
	Filename    string         `json:"filename"`
	Purpose     Purpose        `json:"purpose"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InputSize returns the model's expected input width and height from the
// "inputSize" metadata entry. Detectors must carry it; OCR models may.
func (d Descriptor) InputSize() (w, h int, ok bool) {
	raw, found := d.Metadata["inputSize"]
	if !found {
		return 0, 0, false
	}
	switch v := raw.(type) {
	case []int:
		if len(v) == 2 {
			return v[0], v[1], true
		}
	case []any:
		if len(v) == 2 {
			w, wok := toInt(v[0])
			h, hok := toInt(v[1])
			if wok && hok {
				return w, h, true
			}
		}
	}
	return 0, 0, false
}

// Charset returns the OCR vocabulary from the "charset" metadata entry. For
// CTC models index 0 is the reserved blank symbol.
func (d Descriptor) Charset() []string {
	switch v := d.Metadata["charset"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	return nil
}

// DecodeMode returns the OCR decode mode, defaulting to CTC.
func (d Descriptor) DecodeMode() string {
	if s, ok := d.Metadata["decodeMode"].(string); ok {
		return s
	}
	return DecodeCTC
}

// InputName returns the graph input node name, defaulting to "images".
func (d Descriptor) InputName() string {
	if s, ok := d.Metadata["inputName"].(string); ok {
		return s
	}
	return "images"
}

// OutputName returns the graph output node name, defaulting to "output".
func (d Descriptor) OutputName() string {
	if s, ok := d.Metadata["outputName"].(string); ok {
		return s
	}
	return "output"
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Catalog is an immutable, ordered collection of descriptors.
type Catalog struct {
	ordered []Descriptor
	byID    map[string]Descriptor
}

// New builds a catalog from the given descriptors. Duplicate ids are
// rejected so that the download-state table stays one entry per model.
func New(descriptors ...Descriptor) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]Descriptor, 0, len(descriptors)),
		byID:    make(map[string]Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.ID == "" || d.Filename == "" {
			return nil, fmt.Errorf("descriptor %q: id and filename are required", d.ID)
		}
		if _, exists := c.byID[d.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", d.ID)
		}
		c.byID[d.ID] = d
		c.ordered = append(c.ordered, d)
	}
	return c, nil
}

// Get looks a descriptor up by id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// List returns the descriptors matching the given purpose, in registration
// order. An empty purpose returns all descriptors.
func (c *Catalog) List(purpose Purpose) []Descriptor {
	out := make([]Descriptor, 0, len(c.ordered))
	for _, d := range c.ordered {
		if purpose == "" || d.Purpose == purpose {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered descriptors.
func (c *Catalog) Len() int { return len(c.ordered) }

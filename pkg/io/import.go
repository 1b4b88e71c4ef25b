package io

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/grid"
)

// Document is a layout document: items in placement order and an optional
// configuration.
type Document struct {
	Config *config.Partial `json:"config,omitempty" yaml:"config,omitempty" toml:"config,omitempty"`
	Items  []grid.ItemSpec `json:"items" yaml:"items" toml:"items"`
}

// Raw returns the items as values accepted by [grid.New] and
// [grid.Engine.AddItem].
func (d *Document) Raw() []any {
	out := make([]any, len(d.Items))
	for i, it := range d.Items {
		out[i] = it
	}
	return out
}

// ReadJSON decodes a JSON layout document from r. It does not close r.
func ReadJSON(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json document")
	}
	return &doc, nil
}

// ReadYAML decodes a YAML layout document from r. It does not close r.
func ReadYAML(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode yaml document")
	}
	return &doc, nil
}

// ReadTOML decodes a TOML layout document from r. It does not close r.
func ReadTOML(r io.Reader) (*Document, error) {
	var doc Document
	md, err := toml.NewDecoder(r).Decode(&doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode toml document")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 && !allPayload(undecoded) {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown document key %q", undecoded[0].String())
	}
	return &doc, nil
}

// payload tables are decoded into any and reported as undecoded by the
// toml metadata; everything else is a typo
func allPayload(keys []toml.Key) bool {
	for _, k := range keys {
		if len(k) < 2 || k[0] != "items" || k[1] != "payload" {
			return false
		}
	}
	return true
}

// Parse decodes data according to the file extension ext (".json", ".yaml",
// ".yml" or ".toml").
func Parse(data []byte, ext string) (*Document, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(ext) {
	case config.ExtJSON:
		return ReadJSON(r)
	case config.ExtYAML, config.ExtYML:
		return ReadYAML(r)
	case config.ExtTOML:
		return ReadTOML(r)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported document format %q", ext)
	}
}

// ImportFile reads the layout document at path, choosing the decoder by
// extension.
func ImportFile(path string) (*Document, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if err := errors.ValidateExtension(path, config.ExtJSON, config.ExtYAML, config.ExtYML, config.ExtTOML); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	doc, err := Parse(data, ext)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "%s", path)
	}
	return doc, nil
}

package io

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lanegrid/pkg/config"
	"github.com/matzehuels/lanegrid/pkg/errors"
	"github.com/matzehuels/lanegrid/pkg/grid"
)

// Placement is the serializable state of a grid.
type Placement struct {
	Config config.Config `json:"config" yaml:"config"`
	SizeX  int           `json:"size_x" yaml:"size_x"`
	SizeY  int           `json:"size_y" yaml:"size_y"`
	Items  []PlacedItem  `json:"items" yaml:"items"`
	Dump   string        `json:"dump" yaml:"dump"`
}

// PlacedItem is one item of a Placement. Index is the registration index
// shown in the dump.
type PlacedItem struct {
	ID      string `json:"id" yaml:"id"`
	Index   int    `json:"index" yaml:"index"`
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	W       int    `json:"w" yaml:"w"`
	H       int    `json:"h" yaml:"h"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Snapshot captures the current state of e.
func Snapshot(e *grid.Engine) Placement {
	items := e.Items()
	p := Placement{
		Config: e.Config(),
		SizeX:  e.SizeX(),
		SizeY:  e.SizeY(),
		Items:  make([]PlacedItem, len(items)),
		Dump:   e.String(),
	}
	for i, it := range items {
		p.Items[i] = NewPlacedItem(it, i)
	}
	return p
}

// NewPlacedItem converts an engine item registered at index.
func NewPlacedItem(it *grid.Item, index int) PlacedItem {
	return PlacedItem{
		ID:      it.ID(),
		Index:   index,
		X:       it.X,
		Y:       it.Y,
		W:       it.W,
		H:       it.H,
		Payload: it.Payload(),
	}
}

// WriteJSON encodes p as indented JSON to w.
func WriteJSON(p Placement, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode placement")
	}
	return nil
}

// WriteYAML encodes p as YAML to w.
func WriteYAML(p Placement, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode placement")
	}
	return enc.Close()
}

// ReadPlacementJSON decodes a placement written by WriteJSON.
func ReadPlacementJSON(r io.Reader) (Placement, error) {
	var p Placement
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Placement{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode placement")
	}
	return p, nil
}

// ExportFile writes p to path as YAML for ".yaml"/".yml" and JSON otherwise.
func ExportFile(p Placement, path string) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case config.ExtYAML, config.ExtYML:
		return WriteYAML(p, f)
	default:
		return WriteJSON(p, f)
	}
}

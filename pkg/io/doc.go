// Package io reads layout documents and writes placement snapshots.
//
// # Layout Documents
//
// A layout document lists the items to place and, optionally, the grid
// configuration to place them under:
//
//	{
//	  "config": {"x_lanes": {"max": 12}},
//	  "items": [
//	    {"x": 0, "y": 0, "w": 2, "h": 2, "payload": {"title": "cpu"}},
//	    {"x": 0, "y": 0, "w": 1, "h": 1}
//	  ]
//	}
//
// Missing item fields are 0. The same structure is accepted as YAML and TOML
// (items as an array of tables). Unknown fields are rejected so that typos
// in hand-written layouts do not silently place items at the origin.
//
// Use [ImportFile] to read a document by extension, or [ReadJSON],
// [ReadYAML] and [ReadTOML] to read from any io.Reader.
//
// # Placements
//
// A [Placement] is the serializable state of a grid after placement: the
// resolved configuration, the extents, every item with its identifier and
// registration index, and the debug dump. [Snapshot] captures one from a
// live engine; [WriteJSON] and [ExportFile] write it out.
package io

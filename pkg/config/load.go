package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/lanegrid/pkg/errors"
)

// Supported configuration file extensions.
const (
	ExtTOML = ".toml"
	ExtYAML = ".yaml"
	ExtYML  = ".yml"
	ExtJSON = ".json"
)

// Load reads a partial configuration from path. The format is chosen by the
// file extension: TOML, YAML or JSON. Unknown keys are rejected.
func Load(path string) (*Partial, error) {
	if err := errors.ValidateExtension(path, ExtTOML, ExtYAML, ExtYML, ExtJSON); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	p, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return p, nil
}

// Parse decodes a partial configuration in the format named by ext
// (one of the Ext* constants).
func Parse(data []byte, ext string) (*Partial, error) {
	var p Partial
	switch ext {
	case ExtTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&p)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown keys: %v", undecoded)
		}
	case ExtYAML, ExtYML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
	case ExtJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q", ext)
	}
	return &p, nil
}

// Decode converts an untyped map, such as a decoded JSON request body, into a
// partial configuration. Numbers may arrive as float64 or strings; unknown
// keys are rejected with INVALID_CONFIG.
func Decode(m map[string]any) (*Partial, error) {
	var p Partial
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "build config decoder")
	}
	if err := dec.Decode(m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode config")
	}
	return &p, nil
}

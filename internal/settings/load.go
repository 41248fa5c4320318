// Package settings loads the settings document and builds movers,
// resources and tasks from it.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/msageha/conductor/internal/model"
)

// Load reads a settings file, choosing the decoder by extension
// (.yaml/.yml, .toml or .json). Unknown keys are rejected.
func Load(path string) (model.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("read settings: %w", err)
	}
	doc, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return model.Settings{}, model.WrapError(model.KindInvalidSettings, err, "%s", path)
	}
	return doc, nil
}

// Decode parses data in the format named by ext.
func Decode(ext string, data []byte) (model.Settings, error) {
	var doc model.Settings
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return doc, fmt.Errorf("parse YAML: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return doc, fmt.Errorf("parse TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return doc, fmt.Errorf("parse TOML: unknown key %q", undecoded[0].String())
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return doc, fmt.Errorf("parse JSON: %w", err)
		}
	default:
		return doc, fmt.Errorf("unsupported settings format %q", ext)
	}
	return doc, nil
}

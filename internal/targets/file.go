package targets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"pinger/internal/config"
)

// Document is the on-disk layout of the targets file
type Document struct {
	Targets []Entry `json:"targets" toml:"targets" yaml:"targets"`
}

// ReadFile decodes the targets document at path. The format follows the file
// extension; anything other than .toml, .yaml or .yml is read as JSON.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.ConfigError{Field: "TARGETS_FILE", Value: path, Message: "failed to read targets file", Err: err}
	}

	entries, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, &config.ConfigError{Field: "TARGETS_FILE", Value: path, Message: "failed to parse targets file", Err: err}
	}
	return entries, nil
}

// Decode parses a targets document in the format named by ext. Keys the
// agent does not know are ignored so entries for other probe types load.
func Decode(data []byte, ext string) ([]Entry, error) {
	var doc Document
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}

	if doc.Targets == nil {
		return nil, fmt.Errorf("missing targets list")
	}
	return doc.Targets, nil
}

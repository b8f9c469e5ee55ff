package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFilename is the project manifest file name.
const ManifestFilename = "Capstan.yaml"

// Manifest describes a deployment program: its identity, language
// runtime, and the provider plugins it depends on.
type Manifest struct {
	Name        string  `yaml:"name"`
	Runtime     string  `yaml:"runtime"`
	Description string  `yaml:"description,omitempty"`
	Plugins     Plugins `yaml:"plugins,omitempty"`
}

// Plugins groups the plugin requirements of a manifest.
type Plugins struct {
	Providers []Requirement `yaml:"providers,omitempty"`
}

// Requirement names one provider plugin and its version constraint.
// An empty Version means "any".
type Requirement struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// LoadManifest reads and validates the manifest in a program directory.
//
// The raw YAML is checked against the embedded CUE schema before it is
// decoded into the Manifest struct, so schema violations surface with
// field-level messages rather than as zero values downstream.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Message: fmt.Sprintf("read manifest: %v", err)}
	}
	return ParseManifest(path, data)
}

// ParseManifest validates and decodes manifest bytes.
func ParseManifest(path string, data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ManifestError{Path: path, Message: fmt.Sprintf("parse yaml: %v", err)}
	}
	if raw == nil {
		return nil, &ManifestError{Path: path, Message: "manifest is empty"}
	}

	if err := validateSchema(raw); err != nil {
		return nil, &ManifestError{Path: path, Message: err.Error()}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: path, Message: fmt.Sprintf("decode manifest: %v", err)}
	}
	return &m, nil
}

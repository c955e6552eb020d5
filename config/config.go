// Package config loads the optional per-folder project file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileNames are tried in order inside the folder being merged.
var FileNames = []string{"invoice-merge.yml", "invoice-merge.yaml"}

// ProjectConfig holds settings loaded from invoice-merge.yml. Zero values
// mean "use the built-in default".
type ProjectConfig struct {
	SortMode         string `yaml:"sortMode,omitempty"`
	OutputFileName   string `yaml:"outputFileName,omitempty"`
	Workers          int    `yaml:"workers,omitempty"`
	Compression      int    `yaml:"compression,omitempty"`
	DedupeStreams    bool   `yaml:"dedupeStreams,omitempty"`
	PruneUnreachable bool   `yaml:"pruneUnreachable,omitempty"`
	JPEGQuality      int    `yaml:"jpegQuality,omitempty"`
	PDFVersion       string `yaml:"pdfVersion,omitempty"`
	TempDir          string `yaml:"tempDir,omitempty"`
	LogLevel         string `yaml:"logLevel,omitempty"`
	LogFormat        string `yaml:"logFormat,omitempty"`
}

// Load attempts to read invoice-merge.yml or invoice-merge.yaml from the
// given directory. Returns a zero-value config (not an error) if no config
// file exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}
	return &ProjectConfig{}, nil
}

// LoadFile reads an explicit config file. A missing file is an error.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate rejects values no component can honor.
func (c *ProjectConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Compression < 0 || c.Compression > 9 {
		return fmt.Errorf("compression must be between 0 and 9, got %d", c.Compression)
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpegQuality must be between 0 and 100, got %d", c.JPEGQuality)
	}
	switch c.PDFVersion {
	case "", "1.4", "1.5", "1.7":
	default:
		return fmt.Errorf("pdfVersion must be 1.4, 1.5 or 1.7, got %q", c.PDFVersion)
	}
	return nil
}

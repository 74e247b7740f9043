package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type source interface {
	Load() ([]byte, error)
	Path() string
}

type fileSource struct {
	path string
}

func (f fileSource) Load() ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileSource) Path() string {
	return f.path
}

// FormatFor picks the encoding from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses a catalog document. Unknown JSON fields are rejected so
// designer typos surface at load time.
func Decode(data []byte, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("catalog: unsupported format %q", format)
	}
	return doc, nil
}

// Load builds the default catalog and overlays each file in order. Later
// files override earlier ones; missing files are skipped.
func Load(paths ...string) (*Catalog, error) {
	sources := make([]source, 0, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		sources = append(sources, fileSource{path: trimmed})
	}
	return load(sources...)
}

func load(sources ...source) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		data, err := src.Load()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("catalog: failed loading %s: %w", src.Path(), err)
		}
		doc, err := Decode(data, FormatFor(src.Path()))
		if err != nil {
			return nil, fmt.Errorf("catalog: failed parsing %s: %w", src.Path(), err)
		}
		if err := c.Merge(doc); err != nil {
			return nil, fmt.Errorf("catalog: %s: %w", src.Path(), err)
		}
	}
	return c, nil
}

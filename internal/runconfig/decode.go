package runconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a configuration document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("cannot infer configuration format from %q", path)
	}
}

// Decode parses data in the given format.
func Decode(data []byte, format Format) (Configuration, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatYAML:
		return DecodeYAML(data)
	case FormatHCL:
		return DecodeHCL(data, "config.hcl")
	default:
		return Configuration{}, fmt.Errorf("unsupported configuration format %q", format)
	}
}

// LoadFile reads and decodes a configuration file, inferring its format
// from the extension.
func LoadFile(path string) (Configuration, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Configuration{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("read configuration: %w", err)
	}
	if format == FormatHCL {
		return DecodeHCL(data, path)
	}
	return Decode(data, format)
}

// DecodeJSON parses a JSON configuration document.
func DecodeJSON(data []byte) (Configuration, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return Configuration{}, fmt.Errorf("decode json configuration: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Configuration{}, errors.New("decode json configuration: document must be an object")
	}

	var keys []string
	m := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Configuration{}, fmt.Errorf("decode json configuration: %w", err)
		}
		k := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return Configuration{}, fmt.Errorf("decode json configuration %q: %w", k, err)
		}
		if _, dup := m[k]; dup {
			return Configuration{}, fmt.Errorf("decode json configuration: duplicate key %q, use a list for several sections", k)
		}
		keys = append(keys, k)
		m[k] = v
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return Configuration{}, fmt.Errorf("decode json configuration: %w", err)
	}

	return FromMap(keys, m)
}

// DecodeYAML parses a YAML configuration document.
func DecodeYAML(data []byte) (Configuration, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Configuration{}, fmt.Errorf("decode yaml configuration: %w", err)
	}
	if len(doc.Content) == 0 {
		return Configuration{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Configuration{}, errors.New("decode yaml configuration: document must be a mapping")
	}

	var keys []string
	m := make(map[string]any)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k := root.Content[i].Value
		var v any
		if err := root.Content[i+1].Decode(&v); err != nil {
			return Configuration{}, fmt.Errorf("decode yaml configuration %q: %w", k, err)
		}
		if _, dup := m[k]; dup {
			return Configuration{}, fmt.Errorf("decode yaml configuration: duplicate key %q, use a list for several sections", k)
		}
		keys = append(keys, k)
		m[k] = v
	}

	return FromMap(keys, m)
}

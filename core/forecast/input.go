package forecast

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadVessels reads a vessel snapshot list from a JSON or YAML file.
func LoadVessels(path string) ([]Vessel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeVessels(f, ext)
}

// DecodeVessels reads a vessel snapshot list from r in the given format.
func DecodeVessels(r io.Reader, format string) ([]Vessel, error) {
	var vs []Vessel
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&vs); err != nil && err != io.EOF {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&vs); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	for i, v := range vs {
		if v.ID == "" {
			return nil, fmt.Errorf("vessel %d: id is required", i)
		}
	}
	return vs, nil
}

// Package datasets downloads and unpacks dataset and checkpoint archives.
package datasets

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry describes one downloadable dataset.
type Entry struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	SHA256      string `yaml:"sha256,omitempty"`
	Description string `yaml:"description,omitempty"`
	SizeBytes   int64  `yaml:"size_bytes,omitempty"`
}

// Catalog is a named collection of dataset entries loaded from YAML.
type Catalog struct {
	entries map[string]Entry
}

type catalogFile struct {
	Datasets []Entry `yaml:"datasets"`
}

// builtinCatalog is the default dataset list shipped with the library.
const builtinCatalog = `
datasets:
  - name: imagenette2
    url: https://s3.amazonaws.com/fast-ai-imageclas/imagenette2.tgz
    description: Subset of 10 easily classified ImageNet classes.
  - name: imagenette2-320
    url: https://s3.amazonaws.com/fast-ai-imageclas/imagenette2-320.tgz
    description: Imagenette with the shortest side resized to 320 pixels.
  - name: imagewoof2
    url: https://s3.amazonaws.com/fast-ai-imageclas/imagewoof2.tgz
    description: Subset of 10 dog-breed ImageNet classes.
`

// DefaultCatalog returns the catalog of datasets known to the library.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog([]byte(builtinCatalog))
	if err != nil {
		panic(fmt.Sprintf("builtin catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := parseCatalog(buf)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

func parseCatalog(buf []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(file.Datasets))
	for _, e := range file.Datasets {
		if e.Name == "" {
			return nil, fmt.Errorf("dataset entry with empty name")
		}
		if e.URL == "" {
			return nil, fmt.Errorf("dataset %q has no url", e.Name)
		}
		if _, dup := entries[e.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", e.Name)
		}
		entries[e.Name] = e
	}
	return &Catalog{entries: entries}, nil
}

// Get looks up a dataset by name.
func (c *Catalog) Get(name string) (Entry, bool) {
	e, ok := c.entries[name]
	return e, ok
}

// Names returns all dataset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

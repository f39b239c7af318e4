// Package presets holds the read-only catalog of named simulation
// parameter sets. The catalog ships embedded and can be replaced by a
// file; it never changes at runtime.
package presets

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simforge/simforge/pkg/schema"

	_ "embed"
)

//go:embed presets.yaml
var builtin []byte

// Store is an ordered, immutable preset catalog.
type Store struct {
	list   []schema.Preset
	byName map[string]schema.Preset
}

type catalog struct {
	Presets []schema.Preset `yaml:"presets"`
}

// Load decodes a catalog from r, preserving file order.
func Load(r io.Reader) (*Store, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var cat catalog
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decoding preset catalog: %w", err)
	}
	if len(cat.Presets) == 0 {
		return nil, fmt.Errorf("preset catalog is empty")
	}

	byName := make(map[string]schema.Preset, len(cat.Presets))
	for _, p := range cat.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset without a name")
		}
		if _, ok := byName[p.Name]; ok {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		byName[p.Name] = p
	}
	return &Store{list: cat.Presets, byName: byName}, nil
}

// Open loads a catalog override from path.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening preset catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Load(f)
}

// Default returns the embedded catalog. The embedded file is part of the
// build, so a decode failure is a programmer error.
func Default() *Store {
	s, err := Load(bytes.NewReader(builtin))
	if err != nil {
		panic(err)
	}
	return s
}

// List returns the catalog in file order. The slice is a copy.
func (s *Store) List() []schema.Preset {
	out := make([]schema.Preset, len(s.list))
	copy(out, s.list)
	return out
}

// Get looks a preset up by name.
func (s *Store) Get(name string) (schema.Preset, bool) {
	p, ok := s.byName[name]
	return p, ok
}

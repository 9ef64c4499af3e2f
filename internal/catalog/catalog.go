// Package catalog holds the static metadata of the component types an instance can
// render as. The engine reads it when materializing new instances and never mutates it.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"pagecraft/internal/model"
)

// MaxCatalogFileSize caps user catalog files.
const MaxCatalogFileSize = 1 << 20

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type PropDef struct {
	Type     string   `yaml:"type" json:"type"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
}

type Entry struct {
	Type            string             `yaml:"type" json:"type"`
	Label           string             `yaml:"label" json:"label"`
	Container       bool               `yaml:"container,omitempty" json:"container,omitempty"`
	DefaultProps    map[string]any     `yaml:"defaultProps,omitempty" json:"defaultProps,omitempty"`
	DefaultStyles   map[string]string  `yaml:"defaultStyles,omitempty" json:"defaultStyles,omitempty"`
	PropsDefinition map[string]PropDef `yaml:"propsDefinition,omitempty" json:"propsDefinition,omitempty"`
}

type file struct {
	Components []Entry `yaml:"components"`
}

type Catalog struct {
	entries map[string]Entry
	order   []string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the built-in catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultCatalogYAML)
	})
	if defaultErr != nil {
		// The embedded file is part of the build; failing to parse it is a programming error.
		panic(fmt.Sprintf("catalog: embedded catalog.yaml: %v", defaultErr))
	}
	return defaultCat
}

// Parse decodes a YAML catalog.
func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{entries: map[string]Entry{}}
	for _, e := range f.Components {
		if err := c.add(e); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(e Entry) error {
	e.Type = strings.TrimSpace(e.Type)
	if e.Type == "" {
		return errors.New("catalog entry without type")
	}
	if strings.TrimSpace(e.Label) == "" {
		e.Label = e.Type
	}
	for name, def := range e.PropsDefinition {
		if def.Default == nil {
			continue
		}
		if _, ok := e.DefaultProps[name]; ok {
			continue
		}
		if e.DefaultProps == nil {
			e.DefaultProps = map[string]any{}
		}
		e.DefaultProps[name] = def.Default
	}
	if _, ok := c.entries[e.Type]; !ok {
		c.order = append(c.order, e.Type)
	}
	c.entries[e.Type] = e
	return nil
}

// Load returns the built-in catalog with the entries of the YAML file at path merged on
// top. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Size() > MaxCatalogFileSize {
		return nil, fmt.Errorf("catalog file %s exceeds %d bytes", path, MaxCatalogFileSize)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	user, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := &Catalog{entries: map[string]Entry{}}
	for _, t := range base.order {
		_ = out.add(base.entries[t])
	}
	for _, t := range user.order {
		_ = out.add(user.entries[t])
	}
	return out, nil
}

func (c *Catalog) Lookup(typ string) (Entry, bool) {
	e, ok := c.entries[strings.TrimSpace(typ)]
	return e, ok
}

func (c *Catalog) Has(typ string) bool {
	_, ok := c.Lookup(typ)
	return ok
}

// IsContainer reports whether instances of typ accept children. Unknown types do not.
func (c *Catalog) IsContainer(typ string) bool {
	e, ok := c.Lookup(typ)
	return ok && e.Container
}

// Types returns the known types in declaration order.
func (c *Catalog) Types() []string {
	return append([]string{}, c.order...)
}

// Entries returns every entry sorted by type.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// DefaultStyles returns a copy of the default declarations of typ.
func (c *Catalog) DefaultStyles(typ string) map[string]string {
	e, ok := c.Lookup(typ)
	if !ok || len(e.DefaultStyles) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(e.DefaultStyles))
	for k, v := range e.DefaultStyles {
		out[k] = v
	}
	return out
}

// NewInstance materializes an id-less instance of typ with the entry's default props.
func (c *Catalog) NewInstance(typ string) (model.Instance, error) {
	e, ok := c.Lookup(typ)
	if !ok {
		return model.Instance{}, fmt.Errorf("unknown component type: %q", typ)
	}
	return model.Instance{
		Type:  e.Type,
		Label: e.Label,
		Props: model.CloneProps(e.DefaultProps),
	}, nil
}

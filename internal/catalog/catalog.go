// Package catalog holds the read-only library of attack modules and the
// predefined workflow templates built from them.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// ErrUnknownTemplate is returned when a template id is not in the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

// Definition describes a module type. Definitions are never mutated after
// parsing, so instances and history snapshots share them by pointer.
type Definition struct {
	ID          string
	Name        string
	Icon        string
	Description string
	Category    string
	Color       string
	Inputs      []string
	Outputs     []string
	Settings    []Field
}

// Field returns the setting with the given key.
func (d *Definition) Field(key string) (Field, bool) {
	for _, f := range d.Settings {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns a fresh settings map filled with every default value.
func (d *Definition) Defaults() map[string]any {
	out := make(map[string]any, len(d.Settings))
	for _, f := range d.Settings {
		out[f.Key] = f.Spec.DefaultValue()
	}
	return out
}

// DefinitionDoc is the serialized form of a Definition.
type DefinitionDoc struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Icon        string     `yaml:"icon,omitempty" json:"icon,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string     `yaml:"category,omitempty" json:"category,omitempty"`
	Color       string     `yaml:"color,omitempty" json:"color,omitempty"`
	Inputs      []string   `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs     []string   `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Settings    []FieldDoc `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// Doc converts d to its serialized form.
func (d *Definition) Doc() DefinitionDoc {
	doc := DefinitionDoc{
		ID:          d.ID,
		Name:        d.Name,
		Icon:        d.Icon,
		Description: d.Description,
		Category:    d.Category,
		Color:       d.Color,
		Inputs:      slices.Clone(d.Inputs),
		Outputs:     slices.Clone(d.Outputs),
	}
	for _, f := range d.Settings {
		doc.Settings = append(doc.Settings, f.Doc())
	}
	return doc
}

// ParseDefinition validates doc and builds the Definition it describes.
func ParseDefinition(doc DefinitionDoc) (*Definition, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("module without id")
	}
	def := &Definition{
		ID:          doc.ID,
		Name:        doc.Name,
		Icon:        doc.Icon,
		Description: doc.Description,
		Category:    doc.Category,
		Color:       doc.Color,
		Inputs:      slices.Clone(doc.Inputs),
		Outputs:     slices.Clone(doc.Outputs),
	}
	if def.Name == "" {
		def.Name = doc.ID
	}
	seen := make(map[string]bool, len(doc.Settings))
	for _, fd := range doc.Settings {
		f, err := ParseField(fd)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", doc.ID, err)
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("module %q: duplicate setting %q", doc.ID, f.Key)
		}
		seen[f.Key] = true
		def.Settings = append(def.Settings, f)
	}
	return def, nil
}

type Category struct {
	ID      string
	Name    string
	Color   string
	Modules []*Definition
}

type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type TemplateModule struct {
	ModuleID string   `yaml:"module_id"`
	Position Position `yaml:"position"`
}

// TemplateLink connects two template entries by index.
type TemplateLink struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

type Template struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	Description   string           `yaml:"description,omitempty"`
	EstimatedTime string           `yaml:"estimated_time,omitempty"`
	Modules       []TemplateModule `yaml:"modules"`
	Connections   []TemplateLink   `yaml:"connections,omitempty"`
}

// Catalog is the module library. It is safe to share between editors
// because nothing mutates it after Parse.
type Catalog struct {
	Categories []Category
	templates  []Template
	byID       map[string]*Definition
}

type categoryDoc struct {
	ID      string          `yaml:"id"`
	Name    string          `yaml:"name"`
	Color   string          `yaml:"color,omitempty"`
	Modules []DefinitionDoc `yaml:"modules"`
}

type catalogDoc struct {
	Version    int           `yaml:"version"`
	Categories []categoryDoc `yaml:"categories"`
	Templates  []Template    `yaml:"templates,omitempty"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("builtin catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported catalog version: %d", doc.Version)
	}

	c := &Catalog{byID: make(map[string]*Definition)}
	for _, cd := range doc.Categories {
		if cd.ID == "" {
			return nil, fmt.Errorf("category without id")
		}
		cat := Category{ID: cd.ID, Name: cd.Name, Color: cd.Color}
		if cat.Name == "" {
			cat.Name = cd.ID
		}
		for _, md := range cd.Modules {
			if md.Category == "" {
				md.Category = cd.ID
			}
			if md.Color == "" {
				md.Color = cd.Color
			}
			def, err := ParseDefinition(md)
			if err != nil {
				return nil, err
			}
			if _, dup := c.byID[def.ID]; dup {
				return nil, fmt.Errorf("duplicate module id %q", def.ID)
			}
			c.byID[def.ID] = def
			cat.Modules = append(cat.Modules, def)
		}
		c.Categories = append(c.Categories, cat)
	}

	seen := make(map[string]bool, len(doc.Templates))
	for _, t := range doc.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// Definition looks up a module definition by id.
func (c *Catalog) Definition(id string) (*Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Template looks up a template by id.
func (c *Catalog) Template(id string) (Template, bool) {
	for _, t := range c.templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Templates returns every template in catalog order.
func (c *Catalog) Templates() []Template {
	return slices.Clone(c.templates)
}

// Modules returns every definition in library order.
func (c *Catalog) Modules() []*Definition {
	var out []*Definition
	for _, cat := range c.Categories {
		out = append(out, cat.Modules...)
	}
	return out
}

// Search filters the library by a case-insensitive query on module name,
// id and description, and optionally by category id. Categories left
// without modules are omitted.
func (c *Catalog) Search(query, categoryID string) []Category {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Category
	for _, cat := range c.Categories {
		if categoryID != "" && cat.ID != categoryID {
			continue
		}
		filtered := Category{ID: cat.ID, Name: cat.Name, Color: cat.Color}
		for _, def := range cat.Modules {
			if query == "" ||
				strings.Contains(strings.ToLower(def.Name), query) ||
				strings.Contains(strings.ToLower(def.ID), query) ||
				strings.Contains(strings.ToLower(def.Description), query) {
				filtered.Modules = append(filtered.Modules, def)
			}
		}
		if len(filtered.Modules) > 0 {
			out = append(out, filtered)
		}
	}
	return out
}

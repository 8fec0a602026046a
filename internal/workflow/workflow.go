// Package workflow converts a graph to and from the portable JSON workflow
// document, and replays catalog templates onto a graph.
package workflow

import (
	"errors"
	"fmt"
	"slices"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/graph"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Version is the document version written by Export and accepted by Decode.
const Version = 1

// ErrInvalidDocument wraps every reason Decode rejects a document.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Warning describes something Apply or LoadTemplate repaired or skipped.
type Warning string

type moduleOut struct {
	ID       string                `json:"id"`
	Def      catalog.DefinitionDoc `json:"def"`
	X        float64               `json:"x"`
	Y        float64               `json:"y"`
	Settings map[string]any        `json:"settings"`
}

type connectionOut struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type Metadata struct {
	TotalModules     int      `json:"total_modules"`
	TotalConnections int      `json:"total_connections"`
	Categories       []string `json:"categories"`
}

type documentOut struct {
	Version     int             `json:"version"`
	Modules     []moduleOut     `json:"modules"`
	Connections []connectionOut `json:"connections"`
	Metadata    Metadata        `json:"metadata"`
}

// Export renders g as an indented JSON document. Map keys are sorted, so
// equal graphs export to identical bytes.
func Export(g *graph.Graph) ([]byte, error) {
	out := documentOut{
		Version:     Version,
		Modules:     []moduleOut{},
		Connections: []connectionOut{},
		Metadata:    Metadata{Categories: []string{}},
	}
	for _, in := range g.Instances() {
		settings := in.Settings
		if settings == nil {
			settings = map[string]any{}
		}
		out.Modules = append(out.Modules, moduleOut{
			ID:       in.ID,
			Def:      in.Def.Doc(),
			X:        in.Position.X,
			Y:        in.Position.Y,
			Settings: settings,
		})
		if cat := in.Def.Category; cat != "" && !slices.Contains(out.Metadata.Categories, cat) {
			out.Metadata.Categories = append(out.Metadata.Categories, cat)
		}
	}
	for _, c := range g.Connections() {
		out.Connections = append(out.Connections, connectionOut{Source: c.Source, Target: c.Target})
	}
	slices.Sort(out.Metadata.Categories)
	out.Metadata.TotalModules = len(out.Modules)
	out.Metadata.TotalConnections = len(out.Connections)

	data, err := json.Marshal(out, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return nil, fmt.Errorf("export workflow: %w", err)
	}
	return data, nil
}

// Document is a decoded and validated workflow document.
type Document struct {
	Version     int
	Instances   []graph.Instance
	Connections []graph.Connection
	Metadata    *Metadata
}

// Pointers mark required members: a nil pointer after decoding means the
// member was absent or null.
type moduleIn struct {
	ID       *string                `json:"id"`
	Def      *catalog.DefinitionDoc `json:"def"`
	X        *float64               `json:"x"`
	Y        *float64               `json:"y"`
	Settings map[string]any         `json:"settings"`
}

type connectionIn struct {
	Source *string `json:"source"`
	Target *string `json:"target"`
}

type documentIn struct {
	Version     *int            `json:"version"`
	Modules     *[]moduleIn     `json:"modules"`
	Connections *[]connectionIn `json:"connections"`
	Metadata    *Metadata       `json:"metadata"`
}

// Decode parses and validates data without touching any graph. Unknown
// members, missing members, unknown setting keys and values that do not
// fit their setting type all reject the whole document. Setting keys the
// document omits are filled from the definition's defaults.
func Decode(data []byte) (*Document, error) {
	var in documentIn
	if err := json.Unmarshal(data, &in, json.RejectUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	doc := &Document{Version: Version, Metadata: in.Metadata}
	if in.Version != nil {
		if *in.Version != Version {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidDocument, *in.Version)
		}
	}
	if in.Modules == nil {
		return nil, fmt.Errorf("%w: missing modules", ErrInvalidDocument)
	}
	if in.Connections == nil {
		return nil, fmt.Errorf("%w: missing connections", ErrInvalidDocument)
	}

	seen := make(map[string]bool, len(*in.Modules))
	for i, m := range *in.Modules {
		inst, err := decodeModule(m)
		if err != nil {
			return nil, fmt.Errorf("%w: module %d: %w", ErrInvalidDocument, i, err)
		}
		if seen[inst.ID] {
			return nil, fmt.Errorf("%w: module %d: duplicate id %q", ErrInvalidDocument, i, inst.ID)
		}
		seen[inst.ID] = true
		doc.Instances = append(doc.Instances, inst)
	}
	for i, c := range *in.Connections {
		if c.Source == nil || c.Target == nil {
			return nil, fmt.Errorf("%w: connection %d: missing source or target", ErrInvalidDocument, i)
		}
		doc.Connections = append(doc.Connections, graph.Connection{Source: *c.Source, Target: *c.Target})
	}
	return doc, nil
}

func decodeModule(m moduleIn) (graph.Instance, error) {
	switch {
	case m.ID == nil || *m.ID == "":
		return graph.Instance{}, errors.New("missing id")
	case m.Def == nil:
		return graph.Instance{}, errors.New("missing def")
	case m.X == nil || m.Y == nil:
		return graph.Instance{}, errors.New("missing position")
	case m.Settings == nil:
		return graph.Instance{}, errors.New("missing settings")
	}
	def, err := catalog.ParseDefinition(*m.Def)
	if err != nil {
		return graph.Instance{}, err
	}
	settings, err := coerceSettings(def, m.Settings)
	if err != nil {
		return graph.Instance{}, err
	}
	return graph.Instance{
		ID:       *m.ID,
		Def:      def,
		Position: graph.Position{X: *m.X, Y: *m.Y},
		Settings: settings,
	}, nil
}

func coerceSettings(def *catalog.Definition, raw map[string]any) (map[string]any, error) {
	var errs []error
	for key := range raw {
		if _, ok := def.Field(key); !ok {
			errs = append(errs, fmt.Errorf("unknown setting %q", key))
		}
	}
	out := make(map[string]any, len(def.Settings))
	for _, f := range def.Settings {
		v, ok := raw[f.Key]
		if !ok {
			out[f.Key] = f.Spec.DefaultValue()
			continue
		}
		cv, err := coerce(f.Spec, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("setting %q: %w", f.Key, err))
			continue
		}
		out[f.Key] = cv
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func coerce(spec catalog.Spec, v any) (any, error) {
	switch s := spec.(type) {
	case catalog.TextSpec:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return str, nil
	case catalog.NumberSpec:
		n, ok := catalog.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("want number, got %T", v)
		}
		return s.Clamp(n), nil
	case catalog.SelectSpec:
		str, ok := v.(string)
		if !ok || !slices.Contains(s.Options, str) {
			return nil, fmt.Errorf("%v is not one of %v", v, s.Options)
		}
		return str, nil
	case catalog.BooleanSpec:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want boolean, got %T", v)
		}
		return b, nil
	case catalog.MultiSelectSpec:
		list, ok := catalog.ToStrings(v)
		if !ok {
			return nil, fmt.Errorf("want list of strings, got %T", v)
		}
		for _, item := range list {
			if !slices.Contains(s.Options, item) {
				return nil, fmt.Errorf("%q is not one of %v", item, s.Options)
			}
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported setting type %T", spec)
	}
}

// Apply resets g and replays doc onto it, keeping instance ids.
// Connections whose endpoints are not in the document are dropped and
// reported.
func Apply(doc *Document, g *graph.Graph) []Warning {
	var warnings []Warning
	g.Reset()
	for _, in := range doc.Instances {
		if err := g.Insert(in); err != nil {
			warnings = append(warnings, Warning(fmt.Sprintf("module %s skipped: %v", in.ID, err)))
		}
	}
	for _, c := range doc.Connections {
		if !g.Connect(c.Source, c.Target) {
			warnings = append(warnings, Warning(fmt.Sprintf("connection %s -> %s dropped: endpoint missing", c.Source, c.Target)))
		}
	}
	return warnings
}

// LoadTemplate resets g and places every module of the template the same
// way a drop does, then wires the template's links by entry index.
// Entries naming a module the catalog does not know are skipped.
func LoadTemplate(g *graph.Graph, cat *catalog.Catalog, id string) ([]Warning, error) {
	tpl, ok := cat.Template(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", catalog.ErrUnknownTemplate, id)
	}
	var warnings []Warning
	g.Reset()
	placed := make([]string, len(tpl.Modules))
	for i, m := range tpl.Modules {
		def, ok := cat.Definition(m.ModuleID)
		if !ok {
			warnings = append(warnings, Warning(fmt.Sprintf("template %s: unknown module %q skipped", tpl.ID, m.ModuleID)))
			continue
		}
		placed[i] = g.Place(def, m.Position.X, m.Position.Y)
	}
	for _, link := range tpl.Connections {
		if link.From < 0 || link.From >= len(placed) || link.To < 0 || link.To >= len(placed) ||
			!g.Connect(placed[link.From], placed[link.To]) {
			warnings = append(warnings, Warning(fmt.Sprintf("template %s: link %d -> %d dropped", tpl.ID, link.From, link.To)))
		}
	}
	return warnings, nil
}

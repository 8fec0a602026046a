// Package graph is the canvas model: the module instances placed on the
// workflow canvas and the connections between them.
//
// A Graph is owned by a single editor and is not safe for concurrent use.
package graph

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"

	"attackbuilder/internal/catalog"

	"github.com/google/uuid"
)

// Footprint of a placed node in canvas units, used for hit testing,
// bounds and rendering.
const (
	NodeWidth  = 200.0
	NodeHeight = 75.0
)

// Auto layout grid, matching the spacing of the stock templates.
const (
	layoutOriginX  = 100.0
	layoutOriginY  = 100.0
	layoutSpacingX = 250.0
	layoutSpacingY = 150.0
)

var ErrDuplicateID = errors.New("duplicate instance id")

type Position struct {
	X float64
	Y float64
}

// Instance is a placed copy of a module definition.
type Instance struct {
	ID       string
	Def      *catalog.Definition
	Position Position
	Settings map[string]any
}

// DefinitionID returns the id of the definition the instance was created from.
func (in Instance) DefinitionID() string {
	if in.Def == nil {
		return ""
	}
	return in.Def.ID
}

// Clone deep-copies the instance. The definition is shared: definitions
// are immutable.
func (in Instance) Clone() Instance {
	out := in
	out.Settings = CloneSettings(in.Settings)
	return out
}

// Connection is a directed edge between two instances.
type Connection struct {
	Source string
	Target string
}

type Graph struct {
	instances   []Instance
	connections []Connection
	newID       func() string
}

func New() *Graph {
	return &Graph{newID: uuid.NewString}
}

// Place creates an instance of def at (x, y) with default settings and
// returns its id.
func (g *Graph) Place(def *catalog.Definition, x, y float64) string {
	id := g.nextID()
	g.instances = append(g.instances, Instance{
		ID:       id,
		Def:      def,
		Position: Position{X: x, Y: y},
		Settings: def.Defaults(),
	})
	return id
}

func (g *Graph) nextID() string {
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	for {
		id := g.newID()
		if g.index(id) < 0 {
			return id
		}
	}
}

// Insert adds a fully formed instance, keeping its id.
func (g *Graph) Insert(in Instance) error {
	if in.ID == "" {
		return fmt.Errorf("instance without id")
	}
	if in.Def == nil {
		return fmt.Errorf("instance %s: missing definition", in.ID)
	}
	if g.index(in.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, in.ID)
	}
	g.instances = append(g.instances, in.Clone())
	return nil
}

// Move updates the position of id. Unknown ids are ignored.
func (g *Graph) Move(id string, x, y float64) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	g.instances[i].Position = Position{X: x, Y: y}
	return true
}

// Remove deletes id and every connection that touches it. Unknown ids are
// ignored.
func (g *Graph) Remove(id string) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	g.instances = slices.Delete(g.instances, i, i+1)
	g.connections = slices.DeleteFunc(g.connections, func(c Connection) bool {
		return c.Source == id || c.Target == id
	})
	return true
}

// Reset removes every instance and connection.
func (g *Graph) Reset() {
	g.instances = nil
	g.connections = nil
}

// Connect adds an edge when both ends are live instances.
func (g *Graph) Connect(source, target string) bool {
	if g.index(source) < 0 || g.index(target) < 0 {
		return false
	}
	g.connections = append(g.connections, Connection{Source: source, Target: target})
	return true
}

// Disconnect removes the most recent edge from source to target.
func (g *Graph) Disconnect(source, target string) bool {
	for i := len(g.connections) - 1; i >= 0; i-- {
		c := g.connections[i]
		if c.Source == source && c.Target == target {
			g.connections = slices.Delete(g.connections, i, i+1)
			return true
		}
	}
	return false
}

// SetSettings replaces the settings of id with a copy of settings.
func (g *Graph) SetSettings(id string, settings map[string]any) bool {
	i := g.index(id)
	if i < 0 {
		return false
	}
	g.instances[i].Settings = CloneSettings(settings)
	return true
}

func (g *Graph) Len() int { return len(g.instances) }

func (g *Graph) ConnectionCount() int { return len(g.connections) }

// Instance returns a copy of the instance with the given id.
func (g *Graph) Instance(id string) (Instance, bool) {
	i := g.index(id)
	if i < 0 {
		return Instance{}, false
	}
	return g.instances[i].Clone(), true
}

// Has reports whether id is a live instance.
func (g *Graph) Has(id string) bool { return g.index(id) >= 0 }

// Instances returns copies of every instance in placement order.
func (g *Graph) Instances() []Instance {
	out := make([]Instance, len(g.instances))
	for i, in := range g.instances {
		out[i] = in.Clone()
	}
	return out
}

// Connections returns a copy of the edge list.
func (g *Graph) Connections() []Connection {
	return slices.Clone(g.connections)
}

// InstanceAt returns the top-most instance whose footprint contains (x, y).
func (g *Graph) InstanceAt(x, y float64) (string, bool) {
	for i := len(g.instances) - 1; i >= 0; i-- {
		p := g.instances[i].Position
		if x >= p.X && x < p.X+NodeWidth && y >= p.Y && y < p.Y+NodeHeight {
			return g.instances[i].ID, true
		}
	}
	return "", false
}

// Bounds returns the rectangle covering every node footprint. ok is false
// for an empty graph.
func (g *Graph) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if len(g.instances) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, in := range g.instances {
		minX = math.Min(minX, in.Position.X)
		minY = math.Min(minY, in.Position.Y)
		maxX = math.Max(maxX, in.Position.X+NodeWidth)
		maxY = math.Max(maxY, in.Position.Y+NodeHeight)
	}
	return minX, minY, maxX, maxY, true
}

// AutoLayout arranges instances on a square grid in placement order.
func (g *Graph) AutoLayout() {
	if len(g.instances) == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(g.instances)))))
	for i := range g.instances {
		row, col := i/cols, i%cols
		g.instances[i].Position = Position{
			X: layoutOriginX + float64(col)*layoutSpacingX,
			Y: layoutOriginY + float64(row)*layoutSpacingY,
		}
	}
}

// Clone returns a deep copy sharing nothing mutable with g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		instances:   make([]Instance, len(g.instances)),
		connections: slices.Clone(g.connections),
		newID:       g.newID,
	}
	for i, in := range g.instances {
		out.instances[i] = in.Clone()
	}
	return out
}

// Restore replaces the contents of g with a copy of snap.
func (g *Graph) Restore(snap *Graph) {
	c := snap.Clone()
	g.instances = c.instances
	g.connections = c.connections
}

// Equal reports whether both graphs hold the same instances and
// connections in the same order.
func (g *Graph) Equal(other *Graph) bool {
	if other == nil {
		return false
	}
	if len(g.instances) != len(other.instances) || !slices.Equal(g.connections, other.connections) {
		return false
	}
	for i, a := range g.instances {
		b := other.instances[i]
		if a.ID != b.ID || a.Position != b.Position || defID(a.Def) != defID(b.Def) {
			return false
		}
		if !settingsEqual(a.Settings, b.Settings) {
			return false
		}
	}
	return true
}

func defID(def *catalog.Definition) string {
	if def == nil {
		return ""
	}
	return def.ID
}

// settingsEqual compares settings by content. Nil and empty lists are the
// same value.
func settingsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		la, okA := va.([]string)
		lb, okB := vb.([]string)
		if okA && okB {
			if !slices.Equal(la, lb) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(va, vb) {
			return false
		}
	}
	return true
}

func (g *Graph) index(id string) int {
	return slices.IndexFunc(g.instances, func(in Instance) bool { return in.ID == id })
}

// CloneSettings copies a settings map, including list values.
func CloneSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	out := maps.Clone(settings)
	for k, v := range out {
		if list, ok := v.([]string); ok {
			out[k] = slices.Clone(list)
		}
	}
	return out
}

package graph

import (
	"fmt"
	"testing"

	"attackbuilder/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definition(t *testing.T, id string) *catalog.Definition {
	t.Helper()
	def, ok := catalog.Default().Definition(id)
	require.True(t, ok, "definition %s", id)
	return def
}

// sequential swaps the uuid source for predictable ids.
func sequential(g *Graph) {
	n := 0
	g.newID = func() string {
		n++
		return fmt.Sprintf("node-%d", n)
	}
}

func TestPlaceUsesDefaults(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")

	id := g.Place(def, 300, 200)
	require.NotEmpty(t, id)

	in, ok := g.Instance(id)
	require.True(t, ok)
	assert.Equal(t, "port_scan", in.DefinitionID())
	assert.Equal(t, Position{X: 300, Y: 200}, in.Position)
	assert.Equal(t, def.Defaults(), in.Settings)
	assert.Same(t, def, in.Def)
}

func TestPlaceGeneratesUniqueIDs(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")

	seen := map[string]bool{}
	for range 50 {
		id := g.Place(def, 0, 0)
		assert.False(t, seen[id], "id %s reused", id)
		seen[id] = true
	}
}

func TestPlaceSkipsTakenIDs(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")
	require.NoError(t, g.Insert(Instance{ID: "node-1", Def: def}))

	sequential(g)
	assert.Equal(t, "node-2", g.Place(def, 0, 0))
}

func TestRemoveDropsTouchingConnections(t *testing.T) {
	g := New()
	sequential(g)
	def := definition(t, "port_scan")
	a := g.Place(def, 0, 0)
	b := g.Place(def, 0, 0)
	c := g.Place(def, 0, 0)
	require.True(t, g.Connect(a, b))
	require.True(t, g.Connect(b, c))
	require.True(t, g.Connect(a, c))

	assert.True(t, g.Remove(b))
	assert.False(t, g.Has(b))
	assert.Equal(t, []Connection{{Source: a, Target: c}}, g.Connections())

	assert.False(t, g.Remove(b), "second remove is a no-op")
	assert.Equal(t, 2, g.Len())
}

func TestConnectRequiresLiveEndpoints(t *testing.T) {
	g := New()
	a := g.Place(definition(t, "port_scan"), 0, 0)

	assert.False(t, g.Connect(a, "ghost"))
	assert.False(t, g.Connect("ghost", a))
	assert.Zero(t, g.ConnectionCount())

	// duplicates and self loops are allowed
	assert.True(t, g.Connect(a, a))
	assert.True(t, g.Connect(a, a))
	assert.Equal(t, 2, g.ConnectionCount())

	assert.True(t, g.Disconnect(a, a))
	assert.Equal(t, 1, g.ConnectionCount())
	assert.False(t, g.Disconnect(a, "ghost"))
}

func TestMoveAndSettings(t *testing.T) {
	g := New()
	id := g.Place(definition(t, "port_scan"), 0, 0)

	assert.True(t, g.Move(id, 10, 20))
	assert.False(t, g.Move("ghost", 1, 1))

	settings := map[string]any{"ports": "80,443", "timeout": 100.0, "scan_type": "udp"}
	assert.True(t, g.SetSettings(id, settings))
	settings["ports"] = "changed"

	in, _ := g.Instance(id)
	assert.Equal(t, Position{X: 10, Y: 20}, in.Position)
	assert.Equal(t, "80,443", in.Settings["ports"])
}

func TestInsert(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")

	require.NoError(t, g.Insert(Instance{ID: "x", Def: def, Settings: def.Defaults()}))
	err := g.Insert(Instance{ID: "x", Def: def})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Error(t, g.Insert(Instance{ID: "", Def: def}))
	assert.Error(t, g.Insert(Instance{ID: "y"}))
	assert.Equal(t, 1, g.Len())
}

func TestInstanceAtPrefersTopMost(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")
	bottom := g.Place(def, 0, 0)
	top := g.Place(def, 100, 0)

	id, ok := g.InstanceAt(150, 10)
	require.True(t, ok)
	assert.Equal(t, top, id)

	id, ok = g.InstanceAt(50, 10)
	require.True(t, ok)
	assert.Equal(t, bottom, id)

	_, ok = g.InstanceAt(50, NodeHeight+1)
	assert.False(t, ok)
}

func TestBounds(t *testing.T) {
	g := New()
	_, _, _, _, ok := g.Bounds()
	assert.False(t, ok)

	def := definition(t, "port_scan")
	g.Place(def, -50, 10)
	g.Place(def, 300, 400)

	minX, minY, maxX, maxY, ok := g.Bounds()
	require.True(t, ok)
	assert.Equal(t, -50.0, minX)
	assert.Equal(t, 10.0, minY)
	assert.Equal(t, 300+NodeWidth, maxX)
	assert.Equal(t, 400+NodeHeight, maxY)
}

func TestAutoLayout(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")
	for range 5 {
		g.Place(def, 999, 999)
	}

	g.AutoLayout()

	want := []Position{
		{100, 100}, {350, 100}, {600, 100},
		{100, 250}, {350, 250},
	}
	for i, in := range g.Instances() {
		assert.Equal(t, want[i], in.Position, "instance %d", i)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := New()
	id := g.Place(definition(t, "dns_enum"), 0, 0)
	other := g.Place(definition(t, "port_scan"), 0, 0)
	g.Connect(id, other)

	snap := g.Clone()
	require.True(t, g.Equal(snap))

	g.instances[0].Settings["record_types"].([]string)[0] = "TXT"
	g.Move(id, 5, 5)
	g.Disconnect(id, other)

	in, _ := snap.Instance(id)
	assert.Equal(t, []string{"A", "MX"}, in.Settings["record_types"])
	assert.Equal(t, Position{}, in.Position)
	assert.Equal(t, 1, snap.ConnectionCount())
	assert.False(t, g.Equal(snap))
}

func TestRestore(t *testing.T) {
	g := New()
	def := definition(t, "port_scan")
	g.Place(def, 0, 0)
	snap := g.Clone()

	g.Place(def, 10, 10)
	g.Restore(snap)

	assert.True(t, g.Equal(snap))
	assert.Equal(t, 1, g.Len())
}

func TestEqualComparesSettings(t *testing.T) {
	g := New()
	id := g.Place(definition(t, "port_scan"), 0, 0)
	snap := g.Clone()

	g.SetSettings(id, map[string]any{"ports": "1-1024", "timeout": 5000.0, "scan_type": "connect"})
	assert.False(t, g.Equal(snap))
	assert.False(t, g.Equal(nil))
}

func TestEqualComparesContent(t *testing.T) {
	g := New()
	id := g.Place(definition(t, "dns_enum"), 0, 0)
	g.SetSettings(id, map[string]any{"record_types": []string(nil)})

	other := g.Clone()
	other.SetSettings(id, map[string]any{"record_types": []string{}})
	assert.True(t, g.Equal(other))

	// a reloaded catalog hands out new definition values with the same id
	reloaded := *definition(t, "dns_enum")
	other.instances[0].Def = &reloaded
	assert.True(t, g.Equal(other))

	other.SetSettings(id, map[string]any{"record_types": []string{"A"}})
	assert.False(t, g.Equal(other))
	other.SetSettings(id, map[string]any{"depth": []string{}})
	assert.False(t, g.Equal(other))
}

package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallCatalog = `version: 1
categories:
  - id: recon
    name: Recon
    color: "#10B981"
    modules:
      - id: port_scan
        name: Port scanner
        settings:
          - key: timeout
            type: number
            default: 5000
            min: 100
            max: 60000
          - key: verbose
            type: checkbox
          - key: mode
            type: select
            options: [fast, full]
templates:
  - id: solo
    name: Solo
    modules:
      - {module_id: port_scan, position: {x: 50, y: 50}}
`

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	require.Len(t, c.Categories, 8)
	assert.Len(t, c.Modules(), 26)
	assert.Len(t, c.Templates(), 3)

	def, ok := c.Definition("port_scan")
	require.True(t, ok)
	f, ok := def.Field("timeout")
	require.True(t, ok)
	spec, ok := f.Spec.(NumberSpec)
	require.True(t, ok)
	assert.Equal(t, 5000.0, spec.Default)
	assert.Equal(t, 100.0, spec.Min)
	assert.Equal(t, 60000.0, spec.Max)
	assert.Equal(t, "signature_analysis", def.Category)
	assert.Equal(t, "#3B82F6", def.Color)

	// every template entry must resolve
	for _, tpl := range c.Templates() {
		for _, m := range tpl.Modules {
			_, ok := c.Definition(m.ModuleID)
			assert.True(t, ok, "template %s references %s", tpl.ID, m.ModuleID)
		}
	}
}

func TestParseSettingKinds(t *testing.T) {
	c := Default()

	tests := []struct {
		module string
		key    string
		kind   Kind
		def    any
	}{
		{"sig_scanner", "target", KindText, "192.168.1.0/24"},
		{"sig_scanner", "threads", KindNumber, 10.0},
		{"decision_engine", "confidence_threshold", KindRange, 0.7},
		{"service_detector", "service_db", KindSelect, "standard"},
		{"service_detector", "deep_scan", KindBoolean, false},
		{"dns_enum", "record_types", KindMultiSelect, []string{"A", "MX"}},
	}
	for _, tt := range tests {
		t.Run(tt.module+"/"+tt.key, func(t *testing.T) {
			def, ok := c.Definition(tt.module)
			require.True(t, ok)
			f, ok := def.Field(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.kind, f.Spec.Kind())
			assert.Equal(t, tt.def, f.Spec.DefaultValue())
		})
	}
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	def, ok := Default().Definition("dns_enum")
	require.True(t, ok)

	a := def.Defaults()
	a["record_types"].([]string)[0] = "TXT"

	b := def.Defaults()
	assert.Equal(t, []string{"A", "MX"}, b["record_types"])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad version", "version: 2\n"},
		{"duplicate module", `version: 1
categories:
  - id: a
    modules:
      - {id: x}
      - {id: x}
`},
		{"select default not an option", `version: 1
categories:
  - id: a
    modules:
      - id: x
        settings:
          - {key: s, type: select, options: [a, b], default: c}
`},
		{"unknown setting type", `version: 1
categories:
  - id: a
    modules:
      - id: x
        settings:
          - {key: s, type: color}
`},
		{"min above max", `version: 1
categories:
  - id: a
    modules:
      - id: x
        settings:
          - {key: n, type: number, min: 10, max: 1}
`},
		{"not yaml", "version: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestFieldDocRoundTrip(t *testing.T) {
	def, ok := Default().Definition("decision_engine")
	require.True(t, ok)

	again, err := ParseDefinition(def.Doc())
	require.NoError(t, err)
	assert.Equal(t, def, again)
}

func TestSearch(t *testing.T) {
	c := Default()

	got := c.Search("dns", "")
	require.Len(t, got, 1)
	assert.Equal(t, "reconnaissance", got[0].ID)
	assert.Equal(t, "dns_enum", got[0].Modules[0].ID)

	got = c.Search("", "evasion")
	require.Len(t, got, 1)
	assert.Len(t, got[0].Modules, 3)

	assert.Empty(t, c.Search("no such module", ""))
	assert.Len(t, c.Search("", ""), 8)
}

func TestTemplateLookup(t *testing.T) {
	c, err := Parse([]byte(smallCatalog))
	require.NoError(t, err)

	tpl, ok := c.Template("solo")
	require.True(t, ok)
	assert.Equal(t, "port_scan", tpl.Modules[0].ModuleID)
	assert.Equal(t, Position{X: 50, Y: 50}, tpl.Modules[0].Position)

	_, ok = c.Template("missing")
	assert.False(t, ok)

	def, ok := c.Definition("port_scan")
	require.True(t, ok)
	f, _ := def.Field("mode")
	assert.Equal(t, "fast", f.Spec.DefaultValue(), "select defaults to its first option")
	f, _ = def.Field("verbose")
	assert.Equal(t, "verbose", f.Label)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatchReloadsCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallCatalog), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Catalog, 1)
	require.NoError(t, Watch(ctx, path, func(c *Catalog) {
		select {
		case reloaded <- c:
		default:
		}
	}, nil))

	updated := smallCatalog + `  - id: second
    name: Second
    modules:
      - {module_id: port_scan, position: {x: 1, y: 2}}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case c := <-reloaded:
		_, ok := c.Template("second")
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
}

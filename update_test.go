package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/editor"
	"attackbuilder/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ed := editor.New(catalog.Default(), editor.Options{Logger: logger})
	cfg := defaultConfig()
	cfg.Confirmations = false
	cfg.SaveDirectory = t.TempDir()
	m := newModel(ed, cfg, nil, logger, nil)
	return send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func send(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(model)
	require.True(t, ok)
	return out
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+z":
		return tea.KeyMsg{Type: tea.KeyCtrlZ}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func pressKeys(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		m = send(t, m, keyMsg(k))
	}
	return m
}

// typeText enters s one rune at a time, as a terminal would.
func typeText(t *testing.T, m model, s string) model {
	t.Helper()
	for _, r := range s {
		m = pressKeys(t, m, string(r))
	}
	return m
}

// runCmd feeds the message a command produces back into the model.
func runCmd(t *testing.T, m model, key string) model {
	t.Helper()
	next, cmd := m.Update(keyMsg(key))
	require.NotNil(t, cmd)
	return send(t, next.(model), cmd())
}

func placeAt(t *testing.T, m model, defID string, x, y float64) string {
	t.Helper()
	require.True(t, m.editor.BeginLibraryDrag(defID))
	id, ok := m.editor.Drop(x, y)
	require.True(t, ok)
	return id
}

func TestLibraryEnterPlacesModuleAtCursor(t *testing.T) {
	m := newTestModel(t)

	m = pressKeys(t, m, "tab")
	assert.Equal(t, ModeLibrary, m.mode)

	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	require.Equal(t, 1, m.editor.Len())

	in := m.editor.Instances()[0]
	assert.Equal(t, catalog.Default().Modules()[0].ID, in.DefinitionID())
	assert.Equal(t, 0.0, in.Position.X)
	assert.Equal(t, 0.0, in.Position.Y)

	id, ok := m.editor.Selected()
	require.True(t, ok)
	assert.Equal(t, in.ID, id)
	assert.Contains(t, m.successMessage, "Added")
}

func TestLibraryNavigationFollowsFilter(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "tab", "down", "down")
	assert.Equal(t, 2, m.libraryIndex)

	m = pressKeys(t, m, "c")
	assert.Equal(t, 0, m.libraryIndex)
	assert.Equal(t, catalog.Default().Categories[0].ID, m.libraryCategory)
	for _, def := range m.libraryModules() {
		assert.Equal(t, m.libraryCategory, def.Category)
	}
}

func TestSearchFiltersLibrary(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "/")
	assert.Equal(t, ModeSearch, m.mode)

	m = typeText(t, m, "port")
	assert.Equal(t, "port", m.libraryQuery)
	def, ok := m.selectedLibraryModule()
	require.True(t, ok)
	assert.Equal(t, "port_scan", def.ID)

	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeLibrary, m.mode)

	m = pressKeys(t, m, "/", "esc")
	assert.Empty(t, m.libraryQuery)
}

func TestUndoRedoKeys(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "tab", "enter")
	require.Equal(t, 1, m.editor.Len())

	m = runCmd(t, m, "ctrl+z")
	assert.Equal(t, 0, m.editor.Len())
	assert.Equal(t, "Undone", m.successMessage)

	m = runCmd(t, m, "ctrl+y")
	assert.Equal(t, 1, m.editor.Len())

	m = runCmd(t, m, "ctrl+y")
	assert.Equal(t, "Nothing to redo", m.successMessage)
}

func TestPropertiesEditAndSave(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 0, 0)

	m = pressKeys(t, m, "e")
	require.Equal(t, ModeProperties, m.mode)
	require.Equal(t, "timeout", m.form.Fields[1].Key)

	m = pressKeys(t, m, "down", "backspace", "backspace", "backspace", "backspace")
	m = typeText(t, m, "12000")
	m = pressKeys(t, m, "down", "right")
	m = pressKeys(t, m, "enter")

	assert.Equal(t, ModeNormal, m.mode)
	in, ok := m.editor.Instance(id)
	require.True(t, ok)
	assert.Equal(t, 12000.0, in.Settings["timeout"])
	assert.Equal(t, "connect", in.Settings["scan_type"])
	assert.Equal(t, "1-1024", in.Settings["ports"])
}

func TestPropertiesStepRangeField(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "decision_engine", 0, 0)

	m = pressKeys(t, m, "e", "down")
	require.Equal(t, "confidence_threshold", m.form.Fields[m.formField].Key)
	m = pressKeys(t, m, "right", "right", "right", "right", "left")
	assert.Equal(t, "0.9", m.form.Fields[m.formField].Text)

	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	in, ok := m.editor.Instance(id)
	require.True(t, ok)
	assert.Equal(t, 0.9, in.Settings["confidence_threshold"])
}

func TestPropertiesRejectsBadNumber(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 0, 0)
	before := m.editor.HistoryLen()

	m = pressKeys(t, m, "e", "down")
	m = typeText(t, m, "abc")
	m = pressKeys(t, m, "enter")

	assert.Equal(t, ModeProperties, m.mode)
	assert.NotEmpty(t, m.errorMessage)
	in, _ := m.editor.Instance(id)
	assert.Equal(t, 5000.0, in.Settings["timeout"])
	assert.Equal(t, before, m.editor.HistoryLen())

	m = pressKeys(t, m, "esc")
	assert.Equal(t, ModeNormal, m.mode)
}

func TestLinkAndUnlinkKeys(t *testing.T) {
	m := newTestModel(t)
	first := placeAt(t, m, "port_scan", 0, 0)
	second := placeAt(t, m, "sig_scanner", 400, 0)

	m = pressKeys(t, m, "a")
	require.Equal(t, ModeLink, m.mode)
	assert.Equal(t, first, m.linkFrom)

	m.cursorX = 41
	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	conns := m.editor.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, first, conns[0].Source)
	assert.Equal(t, second, conns[0].Target)

	// unlink works from either end
	m = pressKeys(t, m, "A")
	require.Equal(t, ModeUnlink, m.mode)
	m.cursorX = 0
	m = pressKeys(t, m, "enter")
	assert.Empty(t, m.editor.Connections())
}

func TestLinkToSelfIsRefused(t *testing.T) {
	m := newTestModel(t)
	placeAt(t, m, "port_scan", 0, 0)

	m = pressKeys(t, m, "a", "enter")
	assert.Equal(t, ModeLink, m.mode)
	assert.NotEmpty(t, m.errorMessage)
	assert.Empty(t, m.editor.Connections())
}

func TestMoveModeCommitsOnce(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 0, 0)
	before := m.editor.HistoryLen()

	m = pressKeys(t, m, "m", "l", "l", "j")
	assert.Equal(t, ModeMove, m.mode)
	assert.Equal(t, before, m.editor.HistoryLen())

	m = pressKeys(t, m, "enter")
	in, _ := m.editor.Instance(id)
	assert.Equal(t, 20.0, in.Position.X)
	assert.Equal(t, 25.0, in.Position.Y)
	assert.Equal(t, before+1, m.editor.HistoryLen())
}

func TestMoveModeEscapeRestores(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 0, 0)

	m = pressKeys(t, m, "m", "l", "esc")
	in, _ := m.editor.Instance(id)
	assert.Equal(t, 0.0, in.Position.X)
}

func TestRemoveWithConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.config.Confirmations = true
	placeAt(t, m, "port_scan", 0, 0)

	m = pressKeys(t, m, "d")
	require.Equal(t, ModeConfirm, m.mode)
	m = pressKeys(t, m, "n")
	assert.Equal(t, 1, m.editor.Len())

	m = pressKeys(t, m, "d", "y")
	assert.Equal(t, 0, m.editor.Len())
}

func TestResetKey(t *testing.T) {
	m := newTestModel(t)
	placeAt(t, m, "port_scan", 0, 0)
	placeAt(t, m, "sig_scanner", 400, 0)

	m = pressKeys(t, m, "R")
	assert.Equal(t, 0, m.editor.Len())

	before := m.editor.HistoryLen()
	m = pressKeys(t, m, "R")
	assert.Equal(t, before, m.editor.HistoryLen())
}

func TestAddActionShowsHint(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "i")
	assert.Equal(t, 0, m.editor.Len())
	assert.Contains(t, m.successMessage, "Drag a module")
}

func TestZoomKeys(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "+", "+")
	assert.InDelta(t, 1.2, m.editor.Zoom(), 1e-9)
	m = pressKeys(t, m, "0")
	assert.Equal(t, 1.0, m.editor.Zoom())
	for range 10 {
		m = pressKeys(t, m, "-")
	}
	assert.Equal(t, editor.MinZoom, m.editor.Zoom())
}

func TestFitToScreen(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "f")
	assert.Equal(t, "Canvas is empty", m.successMessage)

	id := placeAt(t, m, "port_scan", 1000, 500)
	hist := m.editor.HistoryLen()

	m = pressKeys(t, m, "f")
	assert.Equal(t, editor.MaxZoom, m.editor.Zoom())
	assert.Equal(t, hist, m.editor.HistoryLen())

	in, ok := m.editor.Instance(id)
	require.True(t, ok)
	w, h := m.canvasSize()
	r := m.canvasViewport().rectOf(in)
	assert.True(t, r.x >= 0 && r.x+r.w <= w, "box columns %d..%d", r.x, r.x+r.w)
	assert.True(t, r.y >= 0 && r.y+r.h <= h, "box rows %d..%d", r.y, r.y+r.h)
}

func TestFitToScreenSpreadOut(t *testing.T) {
	m := newTestModel(t)
	a := placeAt(t, m, "port_scan", 0, 0)
	b := placeAt(t, m, "port_scan", 600, 300)

	m = pressKeys(t, m, "f")
	assert.InDelta(t, 0.625, m.editor.Zoom(), 1e-9)

	w, h := m.canvasSize()
	vp := m.canvasViewport()
	for _, id := range []string{a, b} {
		in, ok := m.editor.Instance(id)
		require.True(t, ok)
		r := vp.rectOf(in)
		assert.True(t, r.x >= 0 && r.x+r.w <= w, "box columns %d..%d", r.x, r.x+r.w)
		assert.True(t, r.y >= 0 && r.y+r.h <= h, "box rows %d..%d", r.y, r.y+r.h)
	}

	placeAt(t, m, "port_scan", 5000, 0)
	m = pressKeys(t, m, "f")
	assert.Equal(t, editor.MinZoom, m.editor.Zoom())
}

func TestViewWithFarAwayImportedModule(t *testing.T) {
	src := newTestModel(t)
	a := placeAt(t, src, "port_scan", 50, 50)
	b := placeAt(t, src, "port_scan", 1e12, 50)
	require.True(t, src.editor.Connect(a, b))
	data, err := src.editor.Export()
	require.NoError(t, err)

	m := newTestModel(t)
	_, err = m.editor.Import(data)
	require.NoError(t, err)

	done := make(chan string, 1)
	go func() { done <- m.View() }()
	select {
	case view := <-done:
		assert.Contains(t, view, "Port scanner")
	case <-time.After(2 * time.Second):
		t.Fatal("view did not render")
	}

	m = pressKeys(t, m, "T")
	m = typeText(t, m, "far")
	m = pressKeys(t, m, "enter")
	assert.Contains(t, m.errorMessage, "too large")
}

func TestTemplatePicker(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "t")
	require.Equal(t, ModeTemplates, m.mode)

	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	tpl := catalog.Default().Templates()[0]
	assert.Equal(t, len(tpl.Modules), m.editor.Len())
	assert.Len(t, m.editor.Connections(), len(tpl.Connections))
}

func TestTemplateConfirmReplacesCanvas(t *testing.T) {
	m := newTestModel(t)
	m.config.Confirmations = true
	placeAt(t, m, "port_scan", 0, 0)

	m = pressKeys(t, m, "t", "enter")
	require.Equal(t, ModeConfirm, m.mode)
	m = pressKeys(t, m, "esc")
	assert.Equal(t, ModeTemplates, m.mode)
	assert.Equal(t, 1, m.editor.Len())
}

func TestExportAndImportFile(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 100, 50)

	m = pressKeys(t, m, "s")
	require.Equal(t, ModeFileInput, m.mode)
	m = typeText(t, m, "flow")
	m = pressKeys(t, m, "enter")
	require.Empty(t, m.errorMessage)
	assert.Equal(t, ModeNormal, m.mode)
	_, err := os.Stat(filepath.Join(m.config.SaveDirectory, "flow.json"))
	require.NoError(t, err)

	m = pressKeys(t, m, "R")
	require.Equal(t, 0, m.editor.Len())

	m = pressKeys(t, m, "o")
	m = typeText(t, m, "flow")
	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	require.Equal(t, 1, m.editor.Len())
	in, ok := m.editor.Instance(id)
	require.True(t, ok)
	assert.Equal(t, 100.0, in.Position.X)
}

func TestImportMissingFileKeepsPrompt(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "o")
	m = typeText(t, m, "nope")
	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeFileInput, m.mode)
	assert.NotEmpty(t, m.errorMessage)
}

func TestOverwriteNeedsConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.config.Confirmations = true
	placeAt(t, m, "port_scan", 0, 0)
	path := filepath.Join(m.config.SaveDirectory, "art.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	m = pressKeys(t, m, "T")
	m = typeText(t, m, "art")
	m = pressKeys(t, m, "enter")
	require.Equal(t, ModeConfirm, m.mode)
	m = pressKeys(t, m, "y")
	assert.Equal(t, ModeNormal, m.mode)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Port scanner")
}

func TestSnapshotsSaveAndLoad(t *testing.T) {
	m := newTestModel(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	m.store = st

	placeAt(t, m, "port_scan", 0, 0)
	m = pressKeys(t, m, "w")
	m = typeText(t, m, "first")
	m = pressKeys(t, m, "enter")
	require.Empty(t, m.errorMessage)

	m = pressKeys(t, m, "R")
	require.Equal(t, 0, m.editor.Len())

	m = pressKeys(t, m, "W")
	require.Equal(t, ModeSnapshots, m.mode)
	require.Len(t, m.snapshots, 1)
	assert.Equal(t, "first", m.snapshots[0].Name)
	assert.Equal(t, 1, m.snapshots[0].Modules)

	m = pressKeys(t, m, "enter")
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, 1, m.editor.Len())

	m = pressKeys(t, m, "W", "x", "y")
	assert.Equal(t, ModeSnapshots, m.mode)
	assert.Empty(t, m.snapshots)
}

func TestSnapshotDeleteKeepsPosition(t *testing.T) {
	m := newTestModel(t)
	st, err := store.Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	m.store = st

	placeAt(t, m, "port_scan", 0, 0)
	for _, name := range []string{"one", "two", "three"} {
		m = pressKeys(t, m, "w")
		m = typeText(t, m, name)
		m = pressKeys(t, m, "enter")
		require.Empty(t, m.errorMessage)
	}

	m = pressKeys(t, m, "W", "down")
	require.Len(t, m.snapshots, 3)
	deleted := m.snapshots[1].Name

	m = pressKeys(t, m, "x", "y")
	require.Len(t, m.snapshots, 2)
	assert.Equal(t, 1, m.listIndex)
	assert.NotEqual(t, deleted, m.snapshots[1].Name)

	m = pressKeys(t, m, "x", "y")
	require.Len(t, m.snapshots, 1)
	assert.Equal(t, 0, m.listIndex)
}

func TestSnapshotsWithoutStore(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "w")
	assert.Equal(t, ModeNormal, m.mode)
	assert.NotEmpty(t, m.errorMessage)
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestCatalogReload(t *testing.T) {
	m := newTestModel(t)
	cat, err := catalog.Parse([]byte(`
version: 1
categories:
  - id: recon
    name: Recon
    modules:
      - id: ping
        name: Ping sweep
`))
	require.NoError(t, err)

	m = send(t, m, catalogReloadedMsg{catalog: cat})
	defs := m.libraryModules()
	require.Len(t, defs, 1)
	assert.Equal(t, "ping", defs[0].ID)
	assert.Contains(t, m.successMessage, "reloaded")
}

func TestMouseDragFromLibrary(t *testing.T) {
	m := newTestModel(t)

	// row 5 is the first module: border, three header rows, category row
	m = send(t, m, tea.MouseMsg{X: 5, Y: 5, Type: tea.MouseLeft})
	require.True(t, m.dragging)
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 10, Y: 10, Type: tea.MouseMotion})
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 10, Y: 10, Type: tea.MouseRelease})

	require.Equal(t, 1, m.editor.Len())
	in := m.editor.Instances()[0]
	assert.Equal(t, "port_scan", in.DefinitionID())
	assert.Equal(t, 100.0, in.Position.X)
	assert.Equal(t, 250.0, in.Position.Y)
	assert.False(t, m.dragging)
}

func TestMouseReleaseOutsideCanvasCancels(t *testing.T) {
	m := newTestModel(t)
	before := m.editor.HistoryLen()

	m = send(t, m, tea.MouseMsg{X: 5, Y: 5, Type: tea.MouseLeft})
	m = send(t, m, tea.MouseMsg{X: 2, Y: 5, Type: tea.MouseRelease})

	assert.Equal(t, 0, m.editor.Len())
	assert.Equal(t, before, m.editor.HistoryLen())
}

func TestMouseDragMovesInstance(t *testing.T) {
	m := newTestModel(t)
	id := placeAt(t, m, "port_scan", 0, 0)
	before := m.editor.HistoryLen()

	m = send(t, m, tea.MouseMsg{X: libraryWidth + 2, Y: 1, Type: tea.MouseLeft})
	require.True(t, m.dragging)
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 12, Y: 5, Type: tea.MouseMotion})
	assert.Equal(t, before, m.editor.HistoryLen())
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 12, Y: 5, Type: tea.MouseRelease})

	in, _ := m.editor.Instance(id)
	assert.Equal(t, 100.0, in.Position.X)
	assert.Equal(t, 100.0, in.Position.Y)
	assert.Equal(t, before+1, m.editor.HistoryLen())
}

func TestMouseClickEmptyCanvasClearsSelection(t *testing.T) {
	m := newTestModel(t)
	placeAt(t, m, "port_scan", 0, 0)
	_, ok := m.editor.Selected()
	require.True(t, ok)

	m = send(t, m, tea.MouseMsg{X: libraryWidth + 40, Y: 20, Type: tea.MouseLeft})
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 40, Y: 20, Type: tea.MouseRelease})
	_, ok = m.editor.Selected()
	assert.False(t, ok)
}

func TestCtrlWheelZooms(t *testing.T) {
	m := newTestModel(t)
	m = send(t, m, tea.MouseMsg{X: libraryWidth + 5, Y: 5, Type: tea.MouseWheelUp, Ctrl: true})
	assert.InDelta(t, 1.1, m.editor.Zoom(), 1e-9)

	m = send(t, m, tea.MouseMsg{X: libraryWidth + 5, Y: 5, Type: tea.MouseWheelDown})
	assert.InDelta(t, 1.1, m.editor.Zoom(), 1e-9)
	assert.Greater(t, m.panY, 0.0)
}

func TestViewShowsPanels(t *testing.T) {
	m := newTestModel(t)
	out := m.View()
	assert.Contains(t, out, "Modules")
	assert.Contains(t, out, "Select a module")
	assert.Contains(t, out, "Mode: NORMAL")

	placeAt(t, m, "port_scan", 0, 0)
	out = m.View()
	assert.Contains(t, out, "Port scanner")
	assert.Contains(t, out, "Timeout (ms)")
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t)
	m = pressKeys(t, m, "?")
	require.True(t, m.help)
	assert.Contains(t, m.View(), "Attack Builder Help")

	m = pressKeys(t, m, "j")
	assert.Equal(t, 1, m.helpScroll)
	m = pressKeys(t, m, "esc")
	assert.False(t, m.help)
}

// Package editor is the interaction layer of the attack builder. It turns
// pointer, keyboard and toolbar gestures into graph mutations and decides
// when a gesture is complete enough to become a history entry.
//
// An Editor is driven from a single event loop and is not safe for
// concurrent use. Independent editors share nothing but the catalog.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/graph"
	"attackbuilder/internal/history"
	"attackbuilder/internal/property"
	"attackbuilder/internal/workflow"
)

// Zoom bounds. Zoom is view state and never enters history.
const (
	MinZoom = 0.5
	MaxZoom = 2.0
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a transient message for the user.
type Notice struct {
	Level Level
	Text  string
}

// Action is a toolbar button.
type Action int

const (
	ActionAdd Action = iota
	ActionRemove
	ActionReset
)

type Options struct {
	// HistoryLimit caps the undo list; zero means history.DefaultLimit.
	HistoryLimit int
	Logger       *slog.Logger
}

type Editor struct {
	graph    *graph.Graph
	history  *history.History
	catalog  *catalog.Catalog
	selected string
	zoom     float64
	drag     dragState
	notices  []Notice
	logger   *slog.Logger
}

// New returns an editor with an empty canvas. The empty canvas is the first
// history entry, so undo can always return to it.
func New(cat *catalog.Catalog, opts Options) *Editor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	e := &Editor{
		graph:   graph.New(),
		history: history.New(opts.HistoryLimit),
		catalog: cat,
		zoom:    1,
		logger:  logger,
	}
	e.history.Commit(e.graph)
	return e
}

func (e *Editor) commit(action string) bool {
	if !e.history.Commit(e.graph) {
		e.logger.Debug("nothing to commit", "action", action)
		return false
	}
	e.logger.Debug("committed", "action", action,
		"cursor", e.history.Cursor(), "instances", e.graph.Len(), "connections", e.graph.ConnectionCount())
	return true
}

func (e *Editor) notify(level Level, format string, args ...any) {
	n := Notice{Level: level, Text: fmt.Sprintf(format, args...)}
	e.notices = append(e.notices, n)
	switch level {
	case LevelError:
		e.logger.Warn("editor notice", "level", level.String(), "text", n.Text)
	default:
		e.logger.Debug("editor notice", "level", level.String(), "text", n.Text)
	}
}

// Notices returns every notice not yet drained.
func (e *Editor) Notices() []Notice { return append([]Notice(nil), e.notices...) }

// DrainNotices returns the pending notices and forgets them.
func (e *Editor) DrainNotices() []Notice {
	out := e.notices
	e.notices = nil
	return out
}

// Read access for rendering. The returned values are copies.

func (e *Editor) Instances() []graph.Instance     { return e.graph.Instances() }
func (e *Editor) Connections() []graph.Connection { return e.graph.Connections() }
func (e *Editor) Len() int                        { return e.graph.Len() }

func (e *Editor) Instance(id string) (graph.Instance, bool) { return e.graph.Instance(id) }

func (e *Editor) InstanceAt(x, y float64) (string, bool) { return e.graph.InstanceAt(x, y) }

// Bounds is the area covered by the live graph, see graph.Graph.Bounds.
func (e *Editor) Bounds() (minX, minY, maxX, maxY float64, ok bool) { return e.graph.Bounds() }

// Snapshot returns a copy of the live graph, including any drag in progress.
func (e *Editor) Snapshot() *graph.Graph { return e.graph.Clone() }

func (e *Editor) CanUndo() bool      { return e.history.CanUndo() }
func (e *Editor) CanRedo() bool      { return e.history.CanRedo() }
func (e *Editor) HistoryLen() int    { return e.history.Len() }
func (e *Editor) HistoryCursor() int { return e.history.Cursor() }

func (e *Editor) Catalog() *catalog.Catalog { return e.catalog }

// SetCatalog swaps the module library. Placed instances keep the
// definitions they were created with.
func (e *Editor) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	e.catalog = cat
	e.notify(LevelInfo, "Module library reloaded (%d modules)", len(cat.Modules()))
}

// Library returns the catalog filtered by query and category id.
func (e *Editor) Library(query, categoryID string) []catalog.Category {
	return e.catalog.Search(query, categoryID)
}

// Selection

func (e *Editor) Select(id string) bool {
	if !e.graph.Has(id) {
		return false
	}
	e.selected = id
	return true
}

func (e *Editor) ClearSelection() { e.selected = "" }

func (e *Editor) Selected() (string, bool) {
	if e.selected == "" || !e.graph.Has(e.selected) {
		return "", false
	}
	return e.selected, true
}

// Click selects the instance under (x, y), or clears the selection when
// the click lands on empty canvas.
func (e *Editor) Click(x, y float64) (string, bool) {
	id, ok := e.graph.InstanceAt(x, y)
	if !ok {
		e.ClearSelection()
		return "", false
	}
	e.selected = id
	return id, true
}

// PropertyForm describes the settings form of the selected instance.
func (e *Editor) PropertyForm() (property.Form, bool) {
	id, ok := e.Selected()
	if !ok {
		return property.Form{}, false
	}
	in, _ := e.graph.Instance(id)
	return property.Build(in), true
}

// SaveProperties parses values for the selected instance and commits the
// new settings. On any error the instance is left unchanged.
func (e *Editor) SaveProperties(values property.Values) error {
	e.CancelDrag()
	id, ok := e.Selected()
	if !ok {
		return errors.New("no module selected")
	}
	in, _ := e.graph.Instance(id)
	settings, err := property.Parse(in.Def, in.Settings, values)
	if err != nil {
		e.notify(LevelError, "Settings not saved: %v", err)
		return fmt.Errorf("save settings of %s: %w", id, err)
	}
	e.graph.SetSettings(id, settings)
	if e.commit("settings") {
		e.notify(LevelInfo, "Saved settings of %s", in.Def.Name)
	}
	return nil
}

// Zoom

func (e *Editor) Zoom() float64 { return e.zoom }

func (e *Editor) SetZoom(z float64) float64 {
	if math.IsNaN(z) {
		return e.zoom
	}
	e.zoom = min(max(z, MinZoom), MaxZoom)
	return e.zoom
}

func (e *Editor) ZoomBy(delta float64) float64 { return e.SetZoom(e.zoom + delta) }

// History

// Undo restores the previous snapshot. Any drag in progress is cancelled
// first and the selection is cleared.
func (e *Editor) Undo() bool {
	e.CancelDrag()
	snap, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.graph.Restore(snap)
	e.ClearSelection()
	return true
}

func (e *Editor) Redo() bool {
	e.CancelDrag()
	snap, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.graph.Restore(snap)
	e.ClearSelection()
	return true
}

// Toolbar

// Do runs a toolbar action and reports whether the graph changed.
func (e *Editor) Do(a Action) bool {
	switch a {
	case ActionAdd:
		e.notify(LevelInfo, "Drag a module from the library onto the canvas")
		return false
	case ActionRemove:
		return e.RemoveSelected()
	case ActionReset:
		return e.Reset()
	default:
		return false
	}
}

// RemoveSelected deletes the selected instance with its connections.
func (e *Editor) RemoveSelected() bool {
	e.CancelDrag()
	id, ok := e.Selected()
	if !ok {
		e.notify(LevelInfo, "Select a module to remove")
		return false
	}
	in, _ := e.graph.Instance(id)
	e.graph.Remove(id)
	e.ClearSelection()
	e.commit("remove")
	e.notify(LevelInfo, "Removed %s", in.Def.Name)
	return true
}

// Reset clears the canvas. Resetting an empty canvas records nothing.
func (e *Editor) Reset() bool {
	e.CancelDrag()
	e.graph.Reset()
	e.ClearSelection()
	if !e.commit("reset") {
		return false
	}
	e.notify(LevelInfo, "Canvas cleared")
	return true
}

func (e *Editor) Connect(source, target string) bool {
	e.CancelDrag()
	if !e.graph.Connect(source, target) {
		e.notify(LevelWarn, "Cannot link: module no longer exists")
		return false
	}
	e.commit("connect")
	e.notify(LevelInfo, "Linked modules")
	return true
}

func (e *Editor) Disconnect(source, target string) bool {
	e.CancelDrag()
	if !e.graph.Disconnect(source, target) {
		e.notify(LevelInfo, "No link between those modules")
		return false
	}
	e.commit("disconnect")
	e.notify(LevelInfo, "Removed link")
	return true
}

// AutoLayout arranges every instance on a grid.
func (e *Editor) AutoLayout() bool {
	e.CancelDrag()
	e.graph.AutoLayout()
	return e.commit("layout")
}

// Export serializes the committed graph state.
func (e *Editor) Export() ([]byte, error) {
	e.CancelDrag()
	data, err := workflow.Export(e.graph)
	if err != nil {
		e.notify(LevelError, "Export failed: %v", err)
		return nil, err
	}
	e.logger.Info("workflow exported", "modules", e.graph.Len(), "bytes", len(data))
	return data, nil
}

// Import replaces the canvas with the workflow in data. A document that
// fails validation leaves the canvas untouched.
func (e *Editor) Import(data []byte) ([]workflow.Warning, error) {
	doc, err := workflow.Decode(data)
	if err != nil {
		e.notify(LevelError, "Import failed: %v", err)
		return nil, err
	}
	e.CancelDrag()
	warnings := workflow.Apply(doc, e.graph)
	e.ClearSelection()
	e.commit("import")
	for _, w := range warnings {
		e.notify(LevelWarn, "%s", string(w))
	}
	e.notify(LevelInfo, "Imported %d modules", e.graph.Len())
	e.logger.Info("workflow imported", "modules", e.graph.Len(), "warnings", len(warnings))
	return warnings, nil
}

// LoadTemplate replaces the canvas with a catalog template as a single
// history entry.
func (e *Editor) LoadTemplate(id string) ([]workflow.Warning, error) {
	if _, ok := e.catalog.Template(id); !ok {
		err := fmt.Errorf("%w: %q", catalog.ErrUnknownTemplate, id)
		e.notify(LevelError, "%v", err)
		return nil, err
	}
	e.CancelDrag()
	warnings, err := workflow.LoadTemplate(e.graph, e.catalog, id)
	if err != nil {
		e.notify(LevelError, "%v", err)
		return nil, err
	}
	e.ClearSelection()
	e.commit("template")
	for _, w := range warnings {
		e.notify(LevelWarn, "%s", string(w))
	}
	tpl, _ := e.catalog.Template(id)
	e.notify(LevelInfo, "Loaded template %s", tpl.Name)
	return warnings, nil
}

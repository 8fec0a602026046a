package editor

import (
	"attackbuilder/internal/catalog"
	"attackbuilder/internal/graph"
)

type DragKind int

const (
	DragNone DragKind = iota
	DragDefinition
	DragInstance
)

type dragState struct {
	kind DragKind
	def  *catalog.Definition
	id   string
	// origin is the committed position of a dragged instance.
	origin graph.Position
	// grab offset between the pointer and the instance's top-left corner
	grabX, grabY float64
	x, y         float64
}

// Drag describes the gesture in progress, for rendering.
type Drag struct {
	Kind         DragKind
	DefinitionID string
	InstanceID   string
	X, Y         float64
}

func (e *Editor) Drag() Drag {
	d := Drag{Kind: e.drag.kind, InstanceID: e.drag.id, X: e.drag.x, Y: e.drag.y}
	if e.drag.def != nil {
		d.DefinitionID = e.drag.def.ID
	}
	return d
}

func (e *Editor) Dragging() bool { return e.drag.kind != DragNone }

// BeginLibraryDrag starts dragging a new module of type defID.
func (e *Editor) BeginLibraryDrag(defID string) bool {
	e.CancelDrag()
	def, ok := e.catalog.Definition(defID)
	if !ok {
		e.notify(LevelWarn, "Unknown module %q", defID)
		return false
	}
	e.drag = dragState{kind: DragDefinition, def: def}
	return true
}

// Drop places the dragged library module at (x, y) and commits. It returns
// the new instance id.
func (e *Editor) Drop(x, y float64) (string, bool) {
	if e.drag.kind != DragDefinition {
		return "", false
	}
	def := e.drag.def
	e.drag = dragState{}
	id := e.graph.Place(def, x, y)
	e.selected = id
	e.commit("place")
	e.notify(LevelInfo, "Added %s", def.Name)
	return id, true
}

// BeginInstanceDrag starts moving id, grabbed at pointer position (x, y).
func (e *Editor) BeginInstanceDrag(id string, x, y float64) bool {
	e.CancelDrag()
	in, ok := e.graph.Instance(id)
	if !ok {
		return false
	}
	e.drag = dragState{
		kind:   DragInstance,
		id:     id,
		origin: in.Position,
		grabX:  x - in.Position.X,
		grabY:  y - in.Position.Y,
		x:      x,
		y:      y,
	}
	e.selected = id
	return true
}

// PointerMove follows the pointer during a drag. Instance moves are
// transient until EndDrag.
func (e *Editor) PointerMove(x, y float64) {
	e.drag.x, e.drag.y = x, y
	if e.drag.kind == DragInstance {
		e.graph.Move(e.drag.id, x-e.drag.grabX, y-e.drag.grabY)
	}
}

// EndDrag finishes the gesture at (x, y). Released on the canvas, a library
// drag places a module and an instance drag records its final position as
// one history entry. Released anywhere else, nothing is committed and a
// moved instance returns to where it was.
func (e *Editor) EndDrag(x, y float64, onCanvas bool) bool {
	switch e.drag.kind {
	case DragDefinition:
		if !onCanvas {
			e.drag = dragState{}
			return false
		}
		_, ok := e.Drop(x, y)
		return ok
	case DragInstance:
		if !onCanvas {
			e.CancelDrag()
			return false
		}
		d := e.drag
		e.drag = dragState{}
		if !e.graph.Move(d.id, x-d.grabX, y-d.grabY) {
			return false
		}
		return e.commit("move")
	default:
		return false
	}
}

// CancelDrag abandons the gesture in progress without committing.
func (e *Editor) CancelDrag() {
	if e.drag.kind == DragInstance {
		e.graph.Move(e.drag.id, e.drag.origin.X, e.drag.origin.Y)
	}
	e.drag = dragState{}
}

// MoveSelected shifts the selected instance by (dx, dy) as a transient
// keyboard move. CommitMove ends it.
func (e *Editor) MoveSelected(dx, dy float64) bool {
	id, ok := e.Selected()
	if !ok {
		return false
	}
	if e.drag.kind != DragInstance || e.drag.id != id {
		in, _ := e.graph.Instance(id)
		if !e.BeginInstanceDrag(id, in.Position.X, in.Position.Y) {
			return false
		}
	}
	e.PointerMove(e.drag.x+dx, e.drag.y+dy)
	return true
}

// CommitMove ends a keyboard move started by MoveSelected.
func (e *Editor) CommitMove() bool {
	if e.drag.kind != DragInstance {
		return false
	}
	return e.EndDrag(e.drag.x, e.drag.y, true)
}

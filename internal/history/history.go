// Package history keeps a bounded linear list of graph snapshots with a
// cursor for undo and redo.
package history

import "attackbuilder/internal/graph"

// DefaultLimit is the number of snapshots kept when New is given a
// non-positive limit.
const DefaultLimit = 50

type State int

const (
	NoHistory State = iota
	HasHistory
)

func (s State) String() string {
	if s == HasHistory {
		return "has-history"
	}
	return "no-history"
}

type History struct {
	snapshots []*graph.Graph
	cursor    int
	limit     int
}

func New(limit int) *History {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &History{cursor: -1, limit: limit}
}

// Commit records a copy of g as the newest snapshot, discarding every
// snapshot after the cursor. A graph equal to the current snapshot is not
// recorded and Commit returns false.
func (h *History) Commit(g *graph.Graph) bool {
	if cur := h.current(); cur != nil && cur.Equal(g) {
		return false
	}
	h.snapshots = append(h.snapshots[:h.cursor+1], g.Clone())
	if over := len(h.snapshots) - h.limit; over > 0 {
		clear(h.snapshots[:over])
		h.snapshots = h.snapshots[over:]
	}
	h.cursor = len(h.snapshots) - 1
	return true
}

// Undo steps the cursor back and returns a copy of the snapshot there.
func (h *History) Undo() (*graph.Graph, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.snapshots[h.cursor].Clone(), true
}

// Redo steps the cursor forward and returns a copy of the snapshot there.
func (h *History) Redo() (*graph.Graph, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.snapshots[h.cursor].Clone(), true
}

// Current returns a copy of the snapshot under the cursor.
func (h *History) Current() (*graph.Graph, bool) {
	cur := h.current()
	if cur == nil {
		return nil, false
	}
	return cur.Clone(), true
}

func (h *History) current() *graph.Graph {
	if h.cursor < 0 {
		return nil
	}
	return h.snapshots[h.cursor]
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.snapshots)-1 }
func (h *History) Len() int      { return len(h.snapshots) }
func (h *History) Cursor() int   { return h.cursor }
func (h *History) Limit() int    { return h.limit }

func (h *History) State() State {
	if len(h.snapshots) == 0 {
		return NoHistory
	}
	return HasHistory
}

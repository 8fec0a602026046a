package main

import tea "github.com/charmbracelet/bubbletea"

// handleMouse maps terminal mouse events onto the editor: presses in the
// library start a drag, presses on a module grab it, and the release ends
// the gesture. Ctrl+wheel zooms and the plain wheel scrolls.
func (m *model) handleMouse(msg tea.MouseMsg) {
	if m.help || m.mode == ModeTemplates || m.mode == ModeSnapshots || m.mode == ModeConfirm {
		return
	}
	w, h := m.canvasSize()
	cx, cy := msg.X-libraryWidth, msg.Y
	onCanvas := cx >= 0 && cx < w && cy >= 0 && cy < h
	vp := m.canvasViewport()
	wx, wy := vp.toWorld(cx, cy)

	switch msg.Type {
	case tea.MouseWheelUp, tea.MouseWheelDown:
		delta := 1.0
		if msg.Type == tea.MouseWheelUp {
			delta = -1
		}
		if msg.Ctrl {
			m.editor.ZoomBy(-delta * zoomStep)
			return
		}
		if onCanvas {
			m.panY += delta * 3 * cellHeight / m.editor.Zoom()
		} else if msg.X < libraryWidth {
			m.moveLibrarySelection(int(delta))
		}

	case tea.MouseLeft:
		if m.dragging {
			// some terminals report held-button motion as repeated presses
			m.editor.PointerMove(wx, wy)
			return
		}
		m.press(msg.X, msg.Y, cx, cy, onCanvas, h)

	case tea.MouseMotion:
		if m.dragging {
			m.editor.PointerMove(wx, wy)
		}

	case tea.MouseRelease:
		if !m.dragging {
			return
		}
		m.dragging = false
		if m.editor.EndDrag(wx, wy, onCanvas) {
			m.cursorX, m.cursorY = cx, cy
			m.ensureCursorInBounds()
		} else if !onCanvas {
			m.successMessage = "Drag cancelled"
		}
	}
}

func (m *model) press(x, y, cx, cy int, onCanvas bool, h int) {
	if m.mode != ModeNormal && m.mode != ModeLibrary {
		return
	}
	if x < libraryWidth {
		// row 0 is the panel border
		line, ok := m.libraryLineAt(y-1, libraryWidth-2, h-2)
		if !ok {
			return
		}
		if line.def == nil {
			if m.libraryCategory == line.category.ID {
				m.libraryCategory = ""
			} else {
				m.libraryCategory = line.category.ID
			}
			m.libraryIndex = 0
			return
		}
		m.libraryIndex = line.index
		if m.editor.BeginLibraryDrag(line.def.ID) {
			// ghost starts under the pointer, left of the canvas
			m.editor.PointerMove(m.canvasViewport().toWorld(cx, cy))
			m.dragging = true
		}
		return
	}
	if !onCanvas {
		return
	}
	m.mode = ModeNormal
	m.cursorX, m.cursorY = cx, cy
	id, ok := m.instanceAtCell(cx, cy)
	if !ok {
		m.clickCell(cx, cy)
		return
	}
	wx, wy := m.canvasViewport().toWorld(cx, cy)
	if m.editor.BeginInstanceDrag(id, wx, wy) {
		m.dragging = true
	}
}

package main

import (
	"fmt"
	"math"
)

func (m *model) handleNavigation(key string, speed int) {
	if m.zPanMode {
		m.handlePan(key, speed)
		return
	}
	m.handleCursorMove(key, speed)
}

// handlePan scrolls the view. Pan offsets are canvas units, so the view
// stays put when the zoom changes.
func (m *model) handlePan(key string, speed int) {
	stepX := float64(speed) * cellWidth / m.editor.Zoom()
	stepY := float64(speed) * cellHeight / m.editor.Zoom()
	switch key {
	case "h", "left", "H", "shift+left":
		m.panX -= stepX
	case "l", "right", "L", "shift+right":
		m.panX += stepX
	case "k", "up", "K", "shift+up":
		m.panY -= stepY
	case "j", "down", "J", "shift+down":
		m.panY += stepY
	}
}

func (m *model) handleCursorMove(key string, speed int) {
	switch key {
	case "h", "left", "H", "shift+left":
		m.cursorX -= speed
	case "l", "right", "L", "shift+right":
		m.cursorX += speed
	case "k", "up", "K", "shift+up":
		m.cursorY -= speed
	case "j", "down", "J", "shift+down":
		m.cursorY += speed
	}
	m.ensureCursorInBounds()
}

// handleModuleMove nudges the selected module one cell per key press.
func (m *model) handleModuleMove(key string, speed int) {
	dx, dy := 0.0, 0.0
	stepX := float64(speed) * cellWidth / m.editor.Zoom()
	stepY := float64(speed) * cellHeight / m.editor.Zoom()
	switch key {
	case "h", "left", "H", "shift+left":
		dx = -stepX
	case "l", "right", "L", "shift+right":
		dx = stepX
	case "k", "up", "K", "shift+up":
		dy = -stepY
	case "j", "down", "J", "shift+down":
		dy = stepY
	}
	m.editor.MoveSelected(dx, dy)
}

func (m *model) getMoveSpeed(key string) int {
	switch key {
	case "H", "L", "K", "J", "shift+left", "shift+right", "shift+up", "shift+down":
		return 2
	default:
		return 1
	}
}

func isDirectionKey(key string) bool {
	switch key {
	case "h", "j", "k", "l", "H", "J", "K", "L",
		"left", "right", "up", "down",
		"shift+left", "shift+right", "shift+up", "shift+down":
		return true
	}
	return false
}

func (m *model) ensureCursorInBounds() {
	w, h := m.canvasSize()
	if m.cursorX < 0 {
		m.cursorX = 0
	}
	if m.cursorY < 0 {
		m.cursorY = 0
	}
	if w > 0 && m.cursorX >= w {
		m.cursorX = w - 1
	}
	if h > 0 && m.cursorY >= h {
		m.cursorY = h - 1
	}
}

// fitToScreen zooms and pans so every module is on screen. Only the view
// changes.
func (m *model) fitToScreen() {
	minX, minY, maxX, maxY, ok := m.editor.Bounds()
	if !ok {
		m.successMessage = "Canvas is empty"
		return
	}
	const margin = 2
	w, h := m.canvasSize()
	zoom := math.Min(
		float64(max(w-2*margin, 1))*cellWidth/(maxX-minX),
		float64(max(h-2*margin, 1))*cellHeight/(maxY-minY),
	)
	zoom = m.editor.SetZoom(zoom)
	m.panX = (minX+maxX)/2 - float64(w)*cellWidth/zoom/2
	m.panY = (minY+maxY)/2 - float64(h)*cellHeight/zoom/2
	m.successMessage = fmt.Sprintf("Zoom %d%%", int(zoom*100+0.5))
}

package main

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
)

const shortcutDebounce = 100 * time.Millisecond

// shortcuts coalesces bursts of undo and redo key presses into one call
// each. The debounced call reaches the update loop through Program.Send.
type shortcuts struct {
	mu   sync.Mutex
	send func(tea.Msg)
	undo func(func())
	redo func(func())
}

func newShortcuts() *shortcuts {
	return &shortcuts{
		undo: debounce.New(shortcutDebounce),
		redo: debounce.New(shortcutDebounce),
	}
}

func (s *shortcuts) attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

// queue schedules msg. Without an attached program (tests) the message is
// delivered straight away as a command.
func (s *shortcuts) queue(msg tea.Msg) tea.Cmd {
	if s == nil {
		return func() tea.Msg { return msg }
	}
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send == nil {
		return func() tea.Msg { return msg }
	}
	switch msg.(type) {
	case undoMsg:
		s.undo(func() { send(msg) })
	case redoMsg:
		s.redo(func() { send(msg) })
	default:
		send(msg)
	}
	return nil
}

func (m *model) undo() {
	if !m.editor.Undo() {
		m.successMessage = "Nothing to undo"
		return
	}
	m.resetTransientState()
	m.successMessage = "Undone"
}

func (m *model) redo() {
	if !m.editor.Redo() {
		m.successMessage = "Nothing to redo"
		return
	}
	m.resetTransientState()
	m.successMessage = "Redone"
}

// resetTransientState drops per-gesture UI state after the graph was
// replaced wholesale.
func (m *model) resetTransientState() {
	m.linkFrom = ""
	m.dragging = false
	if m.mode == ModeMove || m.mode == ModeProperties || m.mode == ModeLink || m.mode == ModeUnlink {
		m.mode = ModeNormal
	}
}

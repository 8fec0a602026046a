package main

import (
	"log/slog"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/editor"
	"attackbuilder/internal/property"
	"attackbuilder/internal/store"
)

type model struct {
	width      int
	height     int
	cursorX    int
	cursorY    int
	zPanMode   bool
	panX       float64
	panY       float64
	mode       Mode
	help       bool
	helpScroll int

	editor *editor.Editor
	config *Config
	store  *store.Store
	logger *slog.Logger
	keys   *shortcuts

	libraryQuery    string
	libraryCategory string
	libraryIndex    int

	form       property.Form
	formField  int
	formOption int

	linkFrom string

	filename string
	fileOp   FileOperation

	listIndex int
	snapshots []store.Snapshot

	confirmAction ConfirmAction
	confirmTarget string

	// dragging tracks a mouse gesture started with a left press.
	dragging bool

	errorMessage   string
	successMessage string
}

// libraryLine is one rendered row of the library panel. def is nil for
// category headers.
type libraryLine struct {
	text     string
	def      *catalog.Definition
	category catalog.Category
	index    int
}

type catalogReloadedMsg struct {
	catalog *catalog.Catalog
}

type undoMsg struct{}

type redoMsg struct{}

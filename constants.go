package main

type Mode int

const (
	ModeNormal Mode = iota
	ModeLibrary
	ModeSearch
	ModeMove
	ModeProperties
	ModeLink
	ModeUnlink
	ModeFileInput
	ModeTemplates
	ModeSnapshots
	ModeConfirm
)

type FileOperation int

const (
	FileOpExport FileOperation = iota
	FileOpImport
	FileOpSavePNG
	FileOpSaveVisualTXT
	FileOpSaveSnapshot
)

type ConfirmAction int

const (
	ConfirmRemoveModule ConfirmAction = iota
	ConfirmReset
	ConfirmQuit
	ConfirmOverwriteFile
	ConfirmLoadTemplate
	ConfirmDeleteSnapshot
)

// Terminal cell size in canvas units at zoom 1. A node (200x75) fills
// 20x3 cells.
const (
	cellWidth  = 10.0
	cellHeight = 25.0
)

const (
	libraryWidth    = 30
	propertiesWidth = 36
	minCanvasWidth  = 20
	minBoxWidth     = 8
	minBoxHeight    = 3
	zoomStep        = 0.1
)

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/editor"
	"attackbuilder/internal/property"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureCursorInBounds()
		return m, nil

	case catalogReloadedMsg:
		m.editor.SetCatalog(msg.catalog)
		m.clampLibraryIndex(len(m.libraryModules()))

	case undoMsg:
		m.undo()

	case redoMsg:
		m.redo()

	case tea.MouseMsg:
		m.handleMouse(msg)

	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}
	m.absorbNotices()
	return m, cmd
}

// absorbNotices moves editor notices into the status line and the log.
func (m *model) absorbNotices() {
	for _, n := range m.editor.DrainNotices() {
		switch n.Level {
		case editor.LevelError:
			m.errorMessage = n.Text
			m.logger.Error(n.Text)
		case editor.LevelWarn:
			m.successMessage = n.Text
			m.logger.Warn(n.Text)
		default:
			m.successMessage = n.Text
			m.logger.Debug(n.Text)
		}
	}
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	if m.help {
		m.handleHelpKey(key)
		return nil
	}

	// file input keeps its error so the user can retry
	if m.mode != ModeFileInput {
		m.errorMessage = ""
	}
	m.successMessage = ""

	switch m.mode {
	case ModeLibrary:
		m.handleLibraryKey(key)
	case ModeSearch:
		m.handleSearchKey(msg)
	case ModeMove:
		m.handleMoveKey(key)
	case ModeProperties:
		m.handlePropertiesKey(msg)
	case ModeLink, ModeUnlink:
		m.handleLinkKey(key)
	case ModeFileInput:
		m.handleFileInputKey(msg)
	case ModeTemplates:
		m.handleTemplatesKey(key)
	case ModeSnapshots:
		m.handleSnapshotsKey(key)
	case ModeConfirm:
		return m.handleConfirmKey(key)
	default:
		return m.handleNormalKey(key)
	}
	return nil
}

func (m *model) handleHelpKey(key string) {
	switch key {
	case "j", "down":
		maxScroll := max(len(helpLines)-max(m.height-1, 1), 0)
		if m.helpScroll < maxScroll {
			m.helpScroll++
		}
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	default:
		m.help = false
		m.helpScroll = 0
	}
}

func (m *model) handleNormalKey(key string) tea.Cmd {
	if isDirectionKey(key) {
		m.handleNavigation(key, m.getMoveSpeed(key))
		return nil
	}

	switch key {
	case "?":
		m.help = true
	case "q":
		if m.config.Confirmations {
			m.confirm(ConfirmQuit, "")
			return nil
		}
		return tea.Quit
	case "esc":
		m.editor.ClearSelection()
		m.zPanMode = false
	case "z":
		m.zPanMode = !m.zPanMode
	case "tab":
		m.mode = ModeLibrary
	case "/":
		m.mode = ModeSearch
	case "c":
		m.cycleCategory(1)
	case "i":
		m.editor.Do(editor.ActionAdd)
	case "enter", " ":
		m.clickCell(m.cursorX, m.cursorY)
	case "m":
		if _, ok := m.targetModule(); ok {
			m.mode = ModeMove
		}
	case "e":
		m.openProperties()
	case "a", "A":
		id, ok := m.targetModule()
		if !ok {
			return nil
		}
		m.linkFrom = id
		if key == "a" {
			m.mode = ModeLink
		} else {
			m.mode = ModeUnlink
		}
	case "d", "delete":
		if _, ok := m.targetModule(); !ok {
			return nil
		}
		if m.config.Confirmations {
			m.confirm(ConfirmRemoveModule, "")
			return nil
		}
		m.editor.Do(editor.ActionRemove)
	case "R":
		if m.editor.Len() == 0 {
			m.successMessage = "Canvas is already empty"
			return nil
		}
		if m.config.Confirmations {
			m.confirm(ConfirmReset, "")
			return nil
		}
		m.editor.Do(editor.ActionReset)
	case "ctrl+z", "u":
		return m.keys.queue(undoMsg{})
	case "ctrl+y", "U":
		return m.keys.queue(redoMsg{})
	case "+", "=":
		m.editor.ZoomBy(zoomStep)
	case "-":
		m.editor.ZoomBy(-zoomStep)
	case "0":
		m.editor.SetZoom(1)
	case "f":
		m.fitToScreen()
	case "g":
		if m.editor.AutoLayout() {
			m.successMessage = "Arranged modules"
		}
	case "s":
		m.beginFileInput(FileOpExport)
	case "o":
		m.beginFileInput(FileOpImport)
	case "S":
		m.beginFileInput(FileOpSavePNG)
	case "T":
		m.beginFileInput(FileOpSaveVisualTXT)
	case "w":
		if m.store == nil {
			m.errorMessage = "Snapshot storage is unavailable"
			return nil
		}
		m.beginFileInput(FileOpSaveSnapshot)
	case "W":
		m.openSnapshots()
	case "t":
		m.mode = ModeTemplates
		m.listIndex = 0
	case "y":
		m.copyToClipboard()
	case "p":
		m.pasteFromClipboard()
	}
	return nil
}

// targetModule selects the module under the cursor, falling back to the
// current selection.
func (m *model) targetModule() (string, bool) {
	if id, ok := m.instanceAtCell(m.cursorX, m.cursorY); ok {
		m.editor.Select(id)
		return id, true
	}
	if id, ok := m.editor.Selected(); ok {
		return id, true
	}
	m.errorMessage = "No module under cursor"
	return "", false
}

// instanceAtCell hit-tests drawn boxes, top-most first.
func (m *model) instanceAtCell(cx, cy int) (string, bool) {
	vp := m.canvasViewport()
	instances := m.editor.Instances()
	for i := len(instances) - 1; i >= 0; i-- {
		if vp.rectOf(instances[i]).contains(cx, cy) {
			return instances[i].ID, true
		}
	}
	return "", false
}

// clickCell selects what is drawn at a canvas cell, or clears the selection
// on empty canvas.
func (m *model) clickCell(cx, cy int) (string, bool) {
	if id, ok := m.instanceAtCell(cx, cy); ok {
		m.editor.Select(id)
		return id, true
	}
	x, y := m.canvasViewport().toWorldCenter(cx, cy)
	return m.editor.Click(x, y)
}

func (m *model) confirm(action ConfirmAction, target string) {
	m.confirmAction = action
	m.confirmTarget = target
	m.mode = ModeConfirm
}

func (m *model) handleLibraryKey(key string) {
	switch key {
	case "up", "k":
		m.moveLibrarySelection(-1)
	case "down", "j":
		m.moveLibrarySelection(1)
	case "pgup":
		m.moveLibrarySelection(-10)
	case "pgdown":
		m.moveLibrarySelection(10)
	case "enter":
		if m.placeFromLibrary() {
			m.mode = ModeNormal
		}
	case "/":
		m.mode = ModeSearch
	case "c":
		m.cycleCategory(1)
	case "C":
		m.cycleCategory(-1)
	case "?":
		m.help = true
	case "tab", "esc":
		m.mode = ModeNormal
	}
}

func (m *model) handleSearchKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = ModeLibrary
	case tea.KeyEsc:
		m.libraryQuery = ""
		m.libraryIndex = 0
		m.mode = ModeLibrary
	case tea.KeyUp:
		m.moveLibrarySelection(-1)
	case tea.KeyDown:
		m.moveLibrarySelection(1)
	case tea.KeyBackspace:
		if runes := []rune(m.libraryQuery); len(runes) > 0 {
			m.libraryQuery = string(runes[:len(runes)-1])
			m.libraryIndex = 0
		}
	case tea.KeySpace:
		m.libraryQuery += " "
		m.libraryIndex = 0
	case tea.KeyRunes:
		m.libraryQuery += string(msg.Runes)
		m.libraryIndex = 0
	}
}

func (m *model) handleMoveKey(key string) {
	switch {
	case isDirectionKey(key):
		m.handleModuleMove(key, m.getMoveSpeed(key))
	case key == "enter":
		if m.editor.CommitMove() {
			m.successMessage = "Moved module"
		}
		m.mode = ModeNormal
	case key == "esc":
		m.editor.CancelDrag()
		m.mode = ModeNormal
	}
}

func (m *model) openProperties() {
	if _, ok := m.targetModule(); !ok {
		return
	}
	form, ok := m.editor.PropertyForm()
	if !ok {
		return
	}
	if len(form.Fields) == 0 {
		m.successMessage = form.Title + " has no settings"
		return
	}
	m.form = form
	m.formField = 0
	m.formOption = 0
	m.mode = ModeProperties
}

func (m *model) handlePropertiesKey(msg tea.KeyMsg) {
	if len(m.form.Fields) == 0 {
		m.mode = ModeNormal
		return
	}
	field := &m.form.Fields[m.formField]

	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.successMessage = "Changes discarded"
		return
	case "enter":
		if err := m.editor.SaveProperties(m.form.Values()); err != nil {
			m.logger.Warn("settings rejected", "instance", m.form.InstanceID, "error", err)
			return
		}
		m.mode = ModeNormal
		return
	case "up", "shift+tab":
		m.formField = (m.formField - 1 + len(m.form.Fields)) % len(m.form.Fields)
		m.formOption = 0
		return
	case "down", "tab":
		m.formField = (m.formField + 1) % len(m.form.Fields)
		m.formOption = 0
		return
	}

	switch spec := field.Spec.(type) {
	case catalog.SelectSpec:
		switch msg.String() {
		case "left", "h":
			field.Cycle(-1)
		case "right", "l", " ":
			field.Cycle(1)
		}
	case catalog.BooleanSpec:
		switch msg.String() {
		case " ", "left", "right", "x":
			field.Toggle("")
		}
	case catalog.MultiSelectSpec:
		switch msg.String() {
		case "left", "h", "k":
			m.formOption = max(m.formOption-1, 0)
		case "right", "l", "j":
			m.formOption = min(m.formOption+1, len(spec.Options)-1)
		case " ", "x":
			if m.formOption < len(spec.Options) {
				field.Toggle(spec.Options[m.formOption])
			}
		}
	case catalog.NumberSpec:
		switch msg.String() {
		case "left":
			field.Step(-1)
		case "right":
			field.Step(1)
		default:
			editText(field, msg)
		}
	default:
		editText(field, msg)
	}
}

func editText(field *property.Field, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyBackspace:
		if runes := []rune(field.Text); len(runes) > 0 {
			field.Text = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		field.Text += " "
	case tea.KeyRunes:
		field.Text += string(msg.Runes)
	}
}

func (m *model) handleLinkKey(key string) {
	if isDirectionKey(key) {
		m.handleNavigation(key, m.getMoveSpeed(key))
		return
	}
	switch key {
	case "esc":
		m.linkFrom = ""
		m.mode = ModeNormal
	case "enter", "a", "A", " ":
		target, ok := m.instanceAtCell(m.cursorX, m.cursorY)
		if !ok {
			m.errorMessage = "No module under cursor"
			return
		}
		if target == m.linkFrom {
			m.errorMessage = "Pick a different module"
			return
		}
		if m.mode == ModeLink {
			m.editor.Connect(m.linkFrom, target)
		} else {
			m.unlink(m.linkFrom, target)
		}
		m.linkFrom = ""
		m.mode = ModeNormal
	}
}

// unlink removes a link between a and b in whichever direction it runs.
func (m *model) unlink(a, b string) {
	for _, c := range m.editor.Connections() {
		if c.Source == b && c.Target == a {
			m.editor.Disconnect(b, a)
			return
		}
	}
	m.editor.Disconnect(a, b)
}

func (m *model) beginFileInput(op FileOperation) {
	m.fileOp = op
	m.filename = ""
	m.errorMessage = ""
	m.mode = ModeFileInput
}

func (m *model) handleFileInputKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEsc:
		m.errorMessage = ""
		m.mode = ModeNormal
	case tea.KeyEnter:
		m.submitFileInput()
	case tea.KeyBackspace:
		if runes := []rune(m.filename); len(runes) > 0 {
			m.filename = string(runes[:len(runes)-1])
		}
	case tea.KeySpace:
		m.filename += " "
	case tea.KeyRunes:
		m.filename += string(msg.Runes)
	}
}

func (m *model) submitFileInput() {
	name := strings.TrimSpace(m.filename)
	if name == "" {
		m.errorMessage = "Enter a name"
		return
	}
	m.filename = name
	if path := m.targetPath(m.fileOp, name); path != "" && m.config.Confirmations {
		if _, err := os.Stat(path); err == nil {
			m.confirm(ConfirmOverwriteFile, path)
			return
		}
	}
	m.runFileOp()
}

// runFileOp performs the pending file operation. On failure the file prompt
// stays open with the error shown.
func (m *model) runFileOp() {
	var (
		path string
		err  error
		verb string
	)
	switch m.fileOp {
	case FileOpExport:
		path, err = m.exportJSON(m.filename)
		verb = "Exported workflow to"
	case FileOpImport:
		path, err = m.importJSON(m.filename)
		verb = "Imported"
	case FileOpSavePNG:
		path, err = m.exportPNG(m.filename)
		verb = "Exported PNG to"
	case FileOpSaveVisualTXT:
		path, err = m.exportVisualTXT(m.filename)
		verb = "Exported drawing to"
	case FileOpSaveSnapshot:
		err = m.saveSnapshot(m.filename)
		path = m.filename
		verb = "Saved snapshot"
	}
	// editor notices for import carry their own detail
	m.absorbNotices()
	if err != nil {
		m.logger.Error("file operation failed", "op", fileOpLabel(m.fileOp), "name", m.filename, "error", err)
		m.errorMessage = err.Error()
		m.successMessage = ""
		m.mode = ModeFileInput
		return
	}
	m.logger.Info("file operation done", "op", fileOpLabel(m.fileOp), "path", path)
	m.errorMessage = ""
	m.successMessage = fmt.Sprintf("%s %s", verb, path)
	m.mode = ModeNormal
}

func (m *model) handleTemplatesKey(key string) {
	templates := m.editor.Catalog().Templates()
	switch key {
	case "up", "k":
		if m.listIndex > 0 {
			m.listIndex--
		}
	case "down", "j":
		if m.listIndex < len(templates)-1 {
			m.listIndex++
		}
	case "enter":
		if m.listIndex >= len(templates) {
			return
		}
		id := templates[m.listIndex].ID
		if m.config.Confirmations && m.editor.Len() > 0 {
			m.confirm(ConfirmLoadTemplate, id)
			return
		}
		m.loadTemplate(id)
	case "esc", "q":
		m.mode = ModeNormal
	}
}

func (m *model) loadTemplate(id string) {
	m.mode = ModeNormal
	if _, err := m.editor.LoadTemplate(id); err != nil {
		m.logger.Error("template load failed", "template", id, "error", err)
		return
	}
	m.panX, m.panY = 0, 0
}

func (m *model) handleSnapshotsKey(key string) {
	switch key {
	case "up", "k":
		if m.listIndex > 0 {
			m.listIndex--
		}
	case "down", "j":
		if m.listIndex < len(m.snapshots)-1 {
			m.listIndex++
		}
	case "enter":
		if m.listIndex < len(m.snapshots) {
			m.loadSnapshot(m.snapshots[m.listIndex].Name)
		}
	case "x", "d", "delete":
		if m.listIndex < len(m.snapshots) {
			m.confirm(ConfirmDeleteSnapshot, m.snapshots[m.listIndex].Name)
		}
	case "esc", "q":
		m.mode = ModeNormal
	}
}

func (m *model) handleConfirmKey(key string) tea.Cmd {
	switch key {
	case "y", "Y":
		return m.runConfirmed()
	case "n", "N", "esc":
		switch m.confirmAction {
		case ConfirmOverwriteFile:
			m.mode = ModeFileInput
		case ConfirmDeleteSnapshot:
			m.mode = ModeSnapshots
		case ConfirmLoadTemplate:
			m.mode = ModeTemplates
		default:
			m.mode = ModeNormal
		}
	}
	return nil
}

func (m *model) runConfirmed() tea.Cmd {
	m.mode = ModeNormal
	switch m.confirmAction {
	case ConfirmQuit:
		return tea.Quit
	case ConfirmRemoveModule:
		m.editor.Do(editor.ActionRemove)
	case ConfirmReset:
		m.editor.Do(editor.ActionReset)
		m.panX, m.panY = 0, 0
	case ConfirmOverwriteFile:
		m.runFileOp()
	case ConfirmLoadTemplate:
		m.loadTemplate(m.confirmTarget)
	case ConfirmDeleteSnapshot:
		m.deleteSnapshot(m.confirmTarget)
	}
	return nil
}

func (m *model) copyToClipboard() {
	data, err := m.editor.Export()
	if err != nil {
		return
	}
	if err := writeClipboardText(string(data)); err != nil {
		m.errorMessage = fmt.Sprintf("Clipboard unavailable: %v", err)
		m.logger.Error("clipboard write failed", "error", err)
		return
	}
	m.successMessage = "Copied workflow JSON to clipboard"
}

func (m *model) pasteFromClipboard() {
	text, err := readClipboardText()
	if err != nil {
		m.errorMessage = fmt.Sprintf("Clipboard unavailable: %v", err)
		m.logger.Error("clipboard read failed", "error", err)
		return
	}
	text = cleanClipboardText(text)
	if text == "" {
		m.errorMessage = "Clipboard is empty"
		return
	}
	if _, err := m.editor.Import([]byte(text)); err != nil {
		m.logger.Warn("clipboard import rejected", "error", err)
	}
}

// Snapshots

func (m *model) saveSnapshot(name string) error {
	if m.store == nil {
		return errors.New("snapshot storage is unavailable")
	}
	data, err := m.editor.Export()
	if err != nil {
		return err
	}
	return m.store.Save(context.Background(), name, data)
}

func (m *model) openSnapshots() {
	if m.store == nil {
		m.errorMessage = "Snapshot storage is unavailable"
		return
	}
	list, err := m.store.List(context.Background())
	if err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("list snapshots failed", "error", err)
		return
	}
	m.snapshots = list
	m.listIndex = 0
	m.mode = ModeSnapshots
}

func (m *model) loadSnapshot(name string) {
	data, err := m.store.Load(context.Background(), name)
	if err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("load snapshot failed", "name", name, "error", err)
		return
	}
	m.mode = ModeNormal
	if _, err := m.editor.Import(data); err != nil {
		m.logger.Error("snapshot import failed", "name", name, "error", err)
		return
	}
	m.panX, m.panY = 0, 0
}

func (m *model) deleteSnapshot(name string) {
	if err := m.store.Delete(context.Background(), name); err != nil {
		m.errorMessage = err.Error()
		m.logger.Error("delete snapshot failed", "name", name, "error", err)
	} else {
		m.successMessage = "Deleted snapshot " + name
	}
	index := m.listIndex
	m.openSnapshots()
	m.listIndex = max(min(index, len(m.snapshots)-1), 0)
}

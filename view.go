package main

import (
	"fmt"
	"slices"
	"strings"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/editor"
	"attackbuilder/internal/property"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	focusedPanelStyle = panelStyle.Copy().
				BorderForeground(lipgloss.Color("63"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// canvasSize is the canvas area in cells, between the two side panels and
// above the status line.
func (m model) canvasSize() (int, int) {
	w := max(m.width-libraryWidth-propertiesWidth, minCanvasWidth)
	h := max(m.height-1, 1)
	return w, h
}

func (m model) canvasViewport() viewport {
	w, h := m.canvasSize()
	return viewport{width: w, height: h, panX: m.panX, panY: m.panY, zoom: m.editor.Zoom()}
}

func (m model) View() string {
	if m.help {
		return m.helpView()
	}
	if m.mode == ModeTemplates || m.mode == ModeSnapshots {
		return m.listView()
	}

	w, h := m.canvasSize()
	vp := m.canvasViewport()

	opts := renderOptions{
		linkFrom:   m.linkFrom,
		cursorX:    m.cursorX,
		cursorY:    m.cursorY,
		showCursor: m.mode != ModeFileInput && m.mode != ModeProperties,
	}
	if id, ok := m.editor.Selected(); ok {
		opts.selected = id
	}
	if d := m.editor.Drag(); d.Kind == editor.DragDefinition {
		if def, ok := m.editor.Catalog().Definition(d.DefinitionID); ok {
			opts.ghost = def.Name
			opts.ghostX, opts.ghostY = vp.toScreen(d.X, d.Y)
		}
	}
	canvas := strings.Join(renderCanvas(m.editor.Instances(), m.editor.Connections(), vp, opts), "\n")

	libStyle := panelStyle
	if m.mode == ModeLibrary || m.mode == ModeSearch {
		libStyle = focusedPanelStyle
	}
	library := libStyle.Width(libraryWidth - 2).Height(h - 2).
		Render(strings.Join(m.renderLibrary(libraryWidth-2, h-2), "\n"))

	propStyle := panelStyle
	if m.mode == ModeProperties {
		propStyle = focusedPanelStyle
	}
	props := propStyle.Width(propertiesWidth - 2).Height(h - 2).
		Render(strings.Join(m.renderProperties(propertiesWidth-2, h-2), "\n"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, library, lipgloss.NewStyle().Width(w).Render(canvas), props)
	return body + "\n" + m.statusLine()
}

// renderProperties draws the settings of the selected module. While the
// form is being edited the field under edit is marked.
func (m model) renderProperties(width, height int) []string {
	var form property.Form
	editing := m.mode == ModeProperties
	if editing {
		form = m.form
	} else if f, ok := m.editor.PropertyForm(); ok {
		form = f
	} else {
		return []string{
			truncate("Properties", width),
			strings.Repeat("─", max(width, 0)),
			truncate("Select a module", width),
			truncate("to edit its settings", width),
		}
	}

	out := []string{truncate(form.Title, width)}
	if in, ok := m.editor.Instance(form.InstanceID); ok && in.Def != nil {
		out = append(out, truncate("["+in.Def.Category+"] "+shortID(in.ID), width))
	}
	out = append(out, strings.Repeat("─", max(width, 0)))
	if len(form.Fields) == 0 {
		out = append(out, truncate("No settings", width))
	}
	for i, f := range form.Fields {
		marker := " "
		if editing && i == m.formField {
			marker = ">"
		}
		label := f.Label
		if f.Required {
			label += "*"
		}
		out = append(out, truncate(marker+label, width))
		for _, line := range fieldValueLines(f, editing && i == m.formField, m.formOption) {
			out = append(out, truncate("   "+line, width))
		}
	}
	if len(out) > height {
		// keep the field under edit on screen
		start := 0
		if editing {
			start = max(min(m.fieldRow(form)-height/2, len(out)-height), 0)
		}
		out = out[start : start+height]
	}
	return out
}

// fieldRow is the panel row of the field under edit.
func (m model) fieldRow(form property.Form) int {
	row := 3
	for i := 0; i < m.formField && i < len(form.Fields); i++ {
		row += 1 + len(fieldValueLines(form.Fields[i], false, 0))
	}
	return row
}

func fieldValueLines(f property.Field, active bool, option int) []string {
	switch spec := f.Spec.(type) {
	case catalog.BooleanSpec:
		if f.Checked {
			return []string{"[x]"}
		}
		return []string{"[ ]"}
	case catalog.SelectSpec:
		if active {
			return []string{"< " + f.Text + " >"}
		}
		return []string{f.Text}
	case catalog.MultiSelectSpec:
		if !active {
			if len(f.Chosen) == 0 {
				return []string{"(none)"}
			}
			return []string{strings.Join(f.Chosen, ", ")}
		}
		lines := make([]string, 0, len(spec.Options))
		for i, opt := range spec.Options {
			box := "[ ]"
			if slices.Contains(f.Chosen, opt) {
				box = "[x]"
			}
			cursor := " "
			if i == option {
				cursor = ">"
			}
			lines = append(lines, cursor+box+" "+opt)
		}
		return lines
	case catalog.NumberSpec:
		text := f.Text
		if active {
			text += "█"
		}
		if spec.HasMin || spec.HasMax {
			text += fmt.Sprintf(" (%s)", numberRange(spec))
		}
		return []string{text}
	default:
		if active {
			return []string{f.Text + "█"}
		}
		return []string{f.Text}
	}
}

func numberRange(spec catalog.NumberSpec) string {
	lo, hi := "", ""
	if spec.HasMin {
		lo = property.FormatNumber(spec.Min)
	}
	if spec.HasMax {
		hi = property.FormatNumber(spec.Max)
	}
	return lo + ".." + hi
}

func (m model) statusLine() string {
	var status string
	switch m.mode {
	case ModeSearch:
		status = fmt.Sprintf("Mode: SEARCH | %s█ | Enter=done, Esc=clear", m.libraryQuery)
	case ModeLibrary:
		name := "-"
		if def, ok := m.selectedLibraryModule(); ok {
			name = def.Name
		}
		status = fmt.Sprintf("Mode: LIBRARY | %s | ↑/↓=select, Enter=place at cursor, /=search, c=category, Tab/Esc=canvas", name)
	case ModeMove:
		status = "Mode: MOVE | hjkl/arrows=move, Enter=finish, Esc=cancel"
	case ModeProperties:
		status = "Mode: PROPERTIES | ↑/↓=field, type=edit, ←/→=option or step, Space=toggle, Enter=save, Esc=cancel"
	case ModeLink:
		status = "Mode: LINK | move to the target module and press a/Enter, Esc=cancel"
	case ModeUnlink:
		status = "Mode: UNLINK | move to the target module and press A/Enter, Esc=cancel"
	case ModeFileInput:
		status = fmt.Sprintf("Mode: FILE | %s: %s█ | Enter=confirm, Esc=cancel", fileOpLabel(m.fileOp), m.filename)
	case ModeConfirm:
		status = "Mode: CONFIRM | " + m.confirmMessage()
	default:
		modeStr := m.modeString()
		if m.zPanMode {
			modeStr = "PAN"
		}
		status = fmt.Sprintf("Mode: %s | Cursor: (%d,%d) | Zoom: %d%% | Modules: %d | Links: %d | History: %d/%d",
			modeStr, m.cursorX, m.cursorY, int(m.editor.Zoom()*100+0.5),
			m.editor.Len(), len(m.editor.Connections()),
			m.editor.HistoryCursor()+1, m.editor.HistoryLen())
		if m.errorMessage == "" && m.successMessage == "" {
			status += " | ? for help | q to quit"
		}
	}
	if m.successMessage != "" {
		status += " | " + successStyle.Render(m.successMessage)
	}
	if m.errorMessage != "" {
		status += " | " + errorStyle.Render("ERROR: "+m.errorMessage)
	}
	return status
}

func fileOpLabel(op FileOperation) string {
	switch op {
	case FileOpExport:
		return "Export JSON"
	case FileOpImport:
		return "Import JSON"
	case FileOpSavePNG:
		return "Export PNG"
	case FileOpSaveVisualTXT:
		return "Export TXT"
	case FileOpSaveSnapshot:
		return "Snapshot name"
	default:
		return "File"
	}
}

func (m model) confirmMessage() string {
	switch m.confirmAction {
	case ConfirmRemoveModule:
		return "Remove the selected module and its links? (y/n)"
	case ConfirmReset:
		return "Clear the canvas? (y/n)"
	case ConfirmQuit:
		return "Quit? Unexported changes will be lost. (y/n)"
	case ConfirmOverwriteFile:
		return fmt.Sprintf("File %s already exists. Overwrite? (y/n)", m.confirmTarget)
	case ConfirmLoadTemplate:
		return fmt.Sprintf("Replace the canvas with template %s? (y/n)", m.confirmTarget)
	case ConfirmDeleteSnapshot:
		return fmt.Sprintf("Delete snapshot %s? (y/n)", m.confirmTarget)
	default:
		return "(y/n)"
	}
}

// listView shows the template or snapshot picker in place of the canvas.
func (m model) listView() string {
	var title string
	var items []string
	switch m.mode {
	case ModeTemplates:
		title = "Load a template:"
		for _, t := range m.editor.Catalog().Templates() {
			item := fmt.Sprintf("%s (%d modules)", t.Name, len(t.Modules))
			if t.EstimatedTime != "" {
				item += " ~" + t.EstimatedTime
			}
			if t.Description != "" {
				item += " - " + t.Description
			}
			items = append(items, item)
		}
	case ModeSnapshots:
		title = "Snapshots:"
		for _, s := range m.snapshots {
			items = append(items, fmt.Sprintf("%s (%d modules, %d links) %s",
				s.Name, s.Modules, s.Connections, s.UpdatedAt.Local().Format("2006-01-02 15:04")))
		}
	}

	width := max(m.width, 1)
	var result strings.Builder
	result.WriteString(title)
	result.WriteString("\n")
	result.WriteString(strings.Repeat("─", width))
	result.WriteString("\n")

	if len(items) == 0 {
		result.WriteString("(nothing here yet)\n")
	} else {
		maxItems := max(m.height-4, 1)
		start := 0
		if m.listIndex >= maxItems {
			start = m.listIndex - maxItems + 1
		}
		end := min(start+maxItems, len(items))
		for i := start; i < end; i++ {
			if i == m.listIndex {
				result.WriteString("> " + truncate(items[i], width-2))
			} else {
				result.WriteString("  " + truncate(items[i], width-2))
			}
			result.WriteString("\n")
		}
	}
	result.WriteString(strings.Repeat("─", width))
	result.WriteString("\n")

	status := "Mode: TEMPLATES | ↑/↓=navigate, Enter=load, Esc=cancel"
	if m.mode == ModeSnapshots {
		status = "Mode: SNAPSHOTS | ↑/↓=navigate, Enter=load, x=delete, Esc=cancel"
	}
	if m.errorMessage != "" {
		status += " | " + errorStyle.Render("ERROR: "+m.errorMessage)
	}
	result.WriteString(status)
	return result.String()
}

func (m model) modeString() string {
	switch m.mode {
	case ModeNormal:
		return "NORMAL"
	case ModeLibrary:
		return "LIBRARY"
	case ModeSearch:
		return "SEARCH"
	case ModeMove:
		return "MOVE"
	case ModeProperties:
		return "PROPERTIES"
	case ModeLink:
		return "LINK"
	case ModeUnlink:
		return "UNLINK"
	case ModeFileInput:
		return "FILE"
	case ModeTemplates:
		return "TEMPLATES"
	case ModeSnapshots:
		return "SNAPSHOTS"
	case ModeConfirm:
		return "CONFIRM"
	default:
		return "UNKNOWN"
	}
}

var helpLines = []string{
	"Attack Builder Help",
	"===================",
	"",
	"Navigation:",
	"-----------",
	"  h/←/j/↓/k/↑/l/→  Move cursor around the canvas",
	"  Shift+h/j/k/l    Move cursor 2x faster",
	"  z                Toggle pan mode (direction keys scroll the canvas)",
	"  +/-/0            Zoom in, zoom out, reset zoom (also Ctrl+mouse wheel)",
	"  f                Fit every module on screen",
	"",
	"Module Library:",
	"---------------",
	"  Tab              Focus the library panel",
	"  ↑/↓              Choose a module",
	"  Enter            Place the module at the cursor",
	"  /                Search modules by name, id or description",
	"  c                Cycle the category filter",
	"  i                How to add modules",
	"  Mouse            Drag a module from the library onto the canvas",
	"",
	"Modules:",
	"--------",
	"  Enter/Space      Select the module under the cursor",
	"  m                Move the selected module (Enter=finish, Esc=cancel)",
	"  e                Edit the selected module's settings",
	"  d/Delete         Remove the selected module and its links",
	"  a                Link the selected module to another",
	"  A                Remove a link from the selected module",
	"  g                Arrange all modules on a grid",
	"  R                Clear the canvas",
	"  Mouse            Click to select, drag to move",
	"",
	"Properties:",
	"-----------",
	"  ↑/↓              Previous/next field",
	"  Type             Edit text and number fields",
	"  ←/→              Cycle a select, pick a multi-select option, or step a number",
	"  Space            Toggle a checkbox or multi-select option",
	"  Enter            Validate and save",
	"  Esc              Discard changes",
	"",
	"Workflows:",
	"----------",
	"  s                Export workflow as JSON",
	"  o                Import workflow from JSON",
	"  y                Copy workflow JSON to the clipboard",
	"  p                Import workflow JSON from the clipboard",
	"  S                Export as PNG image",
	"  T                Export as text drawing",
	"  t                Load a template",
	"  w                Save a named snapshot",
	"  W                Browse snapshots",
	"",
	"General:",
	"--------",
	"  Ctrl+z/u         Undo",
	"  Ctrl+y/U         Redo",
	"  Esc              Clear selection/cancel current operation",
	"  ?                Toggle this help screen",
	"  q/Ctrl+C         Quit",
}

func (m model) helpView() string {
	visibleHeight := max(m.height-1, 1)

	startLine := m.helpScroll
	if startLine > len(helpLines)-visibleHeight {
		startLine = max(len(helpLines)-visibleHeight, 0)
	}
	endLine := min(startLine+visibleHeight, len(helpLines))

	result := strings.Join(helpLines[startLine:endLine], "\n")
	result += "\n" + fmt.Sprintf("Help (%d-%d of %d lines) | j/k to scroll, Esc to close",
		startLine+1, endLine, len(helpLines))
	return result
}

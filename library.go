package main

import (
	"fmt"
	"strings"

	"attackbuilder/internal/catalog"
)

// libraryLines flattens the filtered catalog into panel rows: a header per
// category followed by its modules. index counts modules only.
func (m *model) libraryLines() []libraryLine {
	var lines []libraryLine
	n := 0
	for _, cat := range m.editor.Library(m.libraryQuery, m.libraryCategory) {
		lines = append(lines, libraryLine{
			text:     fmt.Sprintf("%s (%d)", cat.Name, len(cat.Modules)),
			category: cat,
			index:    -1,
		})
		for _, def := range cat.Modules {
			lines = append(lines, libraryLine{
				text:     "  " + def.Name,
				def:      def,
				category: cat,
				index:    n,
			})
			n++
		}
	}
	return lines
}

func (m *model) libraryModules() []*catalog.Definition {
	var defs []*catalog.Definition
	for _, cat := range m.editor.Library(m.libraryQuery, m.libraryCategory) {
		defs = append(defs, cat.Modules...)
	}
	return defs
}

// selectedLibraryModule is the highlighted module in the library panel.
func (m *model) selectedLibraryModule() (*catalog.Definition, bool) {
	defs := m.libraryModules()
	if len(defs) == 0 {
		return nil, false
	}
	m.clampLibraryIndex(len(defs))
	return defs[m.libraryIndex], true
}

func (m *model) clampLibraryIndex(n int) {
	if m.libraryIndex >= n {
		m.libraryIndex = n - 1
	}
	if m.libraryIndex < 0 {
		m.libraryIndex = 0
	}
}

func (m *model) moveLibrarySelection(delta int) {
	m.libraryIndex += delta
	m.clampLibraryIndex(len(m.libraryModules()))
}

// cycleCategory steps the category filter through "all" and then each
// category in library order.
func (m *model) cycleCategory(delta int) {
	cats := m.editor.Catalog().Categories
	ids := make([]string, 0, len(cats)+1)
	ids = append(ids, "")
	for _, c := range cats {
		ids = append(ids, c.ID)
	}
	cur := 0
	for i, id := range ids {
		if id == m.libraryCategory {
			cur = i
			break
		}
	}
	n := len(ids)
	m.libraryCategory = ids[((cur+delta)%n+n)%n]
	m.libraryIndex = 0
}

func (m *model) categoryLabel() string {
	if m.libraryCategory == "" {
		return "all"
	}
	for _, c := range m.editor.Catalog().Categories {
		if c.ID == m.libraryCategory {
			return c.Name
		}
	}
	return m.libraryCategory
}

// placeFromLibrary drops the highlighted module at the keyboard cursor.
func (m *model) placeFromLibrary() bool {
	def, ok := m.selectedLibraryModule()
	if !ok {
		m.errorMessage = "No module matches the filter"
		return false
	}
	if !m.editor.BeginLibraryDrag(def.ID) {
		return false
	}
	x, y := m.canvasViewport().toWorld(m.cursorX, m.cursorY)
	_, ok = m.editor.Drop(x, y)
	return ok
}

// libraryHeader is the fixed part of the panel above the module list.
func (m *model) libraryHeader(width int) []string {
	header := []string{
		truncate("Modules", width),
		truncate(fmt.Sprintf("filter: %s", m.categoryLabel()), width),
	}
	if m.libraryQuery != "" || m.mode == ModeSearch {
		q := "search: " + m.libraryQuery
		if m.mode == ModeSearch {
			q += "█"
		}
		header = append(header, truncate(q, width))
	}
	return append(header, strings.Repeat("─", max(width, 0)))
}

// libraryStart is the first list row shown so that the highlighted module
// stays in view.
func (m *model) libraryStart(lines []libraryLine, visible int) int {
	selectedRow := 0
	for i, l := range lines {
		if l.def != nil && l.index == m.libraryIndex {
			selectedRow = i
			break
		}
	}
	if selectedRow < visible {
		return 0
	}
	return selectedRow - visible + 1
}

// libraryLineAt maps a panel body row to a list line.
func (m *model) libraryLineAt(row, width, height int) (libraryLine, bool) {
	headerLen := len(m.libraryHeader(width))
	lines := m.libraryLines()
	visible := max(height-headerLen, 1)
	i := m.libraryStart(lines, visible) + row - headerLen
	if row < headerLen || i < 0 || i >= len(lines) {
		return libraryLine{}, false
	}
	return lines[i], true
}

// renderLibrary draws the panel body.
func (m *model) renderLibrary(width, height int) []string {
	out := m.libraryHeader(width)
	lines := m.libraryLines()
	if len(lines) == 0 {
		return append(out, truncate("(no modules)", width))
	}

	visible := max(height-len(out), 1)
	start := m.libraryStart(lines, visible)
	focused := m.mode == ModeLibrary || m.mode == ModeSearch
	for i := start; i < len(lines) && i < start+visible; i++ {
		l := lines[i]
		text := l.text
		if l.def != nil && l.index == m.libraryIndex && focused {
			text = ">" + text[1:]
		}
		out = append(out, truncate(text, width))
	}
	return out
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

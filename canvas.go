package main

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"

	"attackbuilder/internal/graph"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// viewport maps canvas units onto terminal cells.
type viewport struct {
	width  int
	height int
	panX   float64
	panY   float64
	zoom   float64
}

// maxScreenCell bounds screen coordinates so positions far off the canvas
// still convert to a usable int.
const maxScreenCell = 1 << 24

func (v viewport) toScreen(x, y float64) (int, int) {
	return screenCell((x - v.panX) * v.zoom / cellWidth),
		screenCell((y - v.panY) * v.zoom / cellHeight)
}

func screenCell(f float64) int {
	return int(math.Max(math.Min(math.Floor(f), maxScreenCell), -maxScreenCell))
}

// toWorld returns the canvas position of the top-left corner of a cell.
func (v viewport) toWorld(cx, cy int) (float64, float64) {
	return v.panX + float64(cx)*cellWidth/v.zoom, v.panY + float64(cy)*cellHeight/v.zoom
}

// toWorldCenter returns the canvas position of the middle of a cell, used
// for hit testing.
func (v viewport) toWorldCenter(cx, cy int) (float64, float64) {
	return v.panX + (float64(cx)+0.5)*cellWidth/v.zoom, v.panY + (float64(cy)+0.5)*cellHeight/v.zoom
}

func (v viewport) boxSize() (int, int) {
	w := int(math.Round(graph.NodeWidth * v.zoom / cellWidth))
	h := int(math.Round(graph.NodeHeight * v.zoom / cellHeight))
	return max(w, minBoxWidth), max(h, minBoxHeight)
}

type rect struct {
	x, y, w, h int
}

func (v viewport) rectOf(in graph.Instance) rect {
	x, y := v.toScreen(in.Position.X, in.Position.Y)
	w, h := v.boxSize()
	return rect{x: x, y: y, w: w, h: h}
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

type renderOptions struct {
	selected   string
	linkFrom   string
	cursorX    int
	cursorY    int
	showCursor bool
	ghost      string
	ghostX     int
	ghostY     int
}

// renderCanvas draws instances and connections as ASCII boxes and
// orthogonal links, one string per row.
func renderCanvas(instances []graph.Instance, connections []graph.Connection, vp viewport, opts renderOptions) []string {
	if vp.width < 1 || vp.height < 1 {
		return nil
	}
	grid := make([][]rune, vp.height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", vp.width))
	}

	rects := make(map[string]rect, len(instances))
	for _, in := range instances {
		rects[in.ID] = vp.rectOf(in)
	}

	// links first so boxes draw over them
	for _, c := range connections {
		from, ok1 := rects[c.Source]
		to, ok2 := rects[c.Target]
		if ok1 && ok2 {
			drawLink(grid, from, to)
		}
	}

	for _, in := range instances {
		style := borderNormal
		switch in.ID {
		case opts.linkFrom:
			style = borderLinkSource
		case opts.selected:
			style = borderSelected
		}
		drawBoxAt(grid, rects[in.ID], boxLines(in, rects[in.ID].h-2), style)
	}

	if opts.ghost != "" {
		w, h := vp.boxSize()
		drawBoxAt(grid, rect{x: opts.ghostX, y: opts.ghostY, w: w, h: h}, []string{"+ " + opts.ghost}, borderGhost)
	}

	if opts.showCursor && isValidPos(grid, opts.cursorX, opts.cursorY) {
		grid[opts.cursorY][opts.cursorX] = '█'
	}

	out := make([]string, len(grid))
	for i, row := range grid {
		out[i] = string(row)
	}
	return out
}

// boxLines picks what fits inside a box with room for n text rows.
func boxLines(in graph.Instance, n int) []string {
	if in.Def == nil || n <= 0 {
		return nil
	}
	lines := []string{in.Def.Name}
	if n > 1 && in.Def.Category != "" {
		lines = append(lines, "["+in.Def.Category+"]")
	}
	if n > 2 {
		lines = append(lines, fmt.Sprintf("%d settings", len(in.Def.Settings)))
	}
	if n > 3 {
		lines = append(lines, "id "+shortID(in.ID))
	}
	return lines
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type borderStyle struct {
	corner, horizontal, vertical rune
}

var (
	borderNormal     = borderStyle{'+', '-', '|'}
	borderSelected   = borderStyle{'#', '#', '#'}
	borderLinkSource = borderStyle{'*', '=', '!'}
	borderGhost      = borderStyle{'.', '.', ':'}
)

func drawBoxAt(grid [][]rune, r rect, lines []string, style borderStyle) {
	for y := r.y; y < r.y+r.h; y++ {
		for x := r.x; x < r.x+r.w; x++ {
			if !isValidPos(grid, x, y) {
				continue
			}
			switch {
			case (y == r.y || y == r.y+r.h-1) && (x == r.x || x == r.x+r.w-1):
				grid[y][x] = style.corner
			case y == r.y || y == r.y+r.h-1:
				grid[y][x] = style.horizontal
			case x == r.x || x == r.x+r.w-1:
				grid[y][x] = style.vertical
			default:
				grid[y][x] = ' '
			}
		}
	}

	maxWidth := max(r.w-2, 0)
	for i, line := range lines {
		textY := r.y + 1 + i
		if textY >= r.y+r.h-1 {
			break
		}
		runes := []rune(line)
		if len(runes) > maxWidth {
			runes = runes[:maxWidth]
		}
		for j, ch := range runes {
			if isValidPos(grid, r.x+1+j, textY) {
				grid[textY][r.x+1+j] = ch
			}
		}
	}
}

// drawLink routes a connection between two boxes with at most two bends
// and marks the target end with an arrow.
func drawLink(grid [][]rune, from, to rect) {
	switch {
	case to.x >= from.x+from.w+2:
		x1, y1 := from.x+from.w, from.y+from.h/2
		x2, y2 := to.x-1, to.y+to.h/2
		drawElbowH(grid, x1, y1, x2, y2)
		setCell(grid, x2, y2, '>')
	case to.x+to.w+2 <= from.x:
		x1, y1 := from.x-1, from.y+from.h/2
		x2, y2 := to.x+to.w, to.y+to.h/2
		drawElbowH(grid, x1, y1, x2, y2)
		setCell(grid, x2, y2, '<')
	case to.y >= from.y+from.h+1:
		x1, y1 := from.x+from.w/2, from.y+from.h
		x2, y2 := to.x+to.w/2, to.y-1
		drawElbowV(grid, x1, y1, x2, y2)
		setCell(grid, x2, y2, 'v')
	case to.y+to.h+1 <= from.y:
		x1, y1 := from.x+from.w/2, from.y-1
		x2, y2 := to.x+to.w/2, to.y+to.h
		drawElbowV(grid, x1, y1, x2, y2)
		setCell(grid, x2, y2, '^')
	}
}

func drawElbowH(grid [][]rune, x1, y1, x2, y2 int) {
	mid := (x1 + x2) / 2
	hline(grid, y1, x1, mid)
	hline(grid, y2, mid, x2)
	if y1 != y2 {
		vline(grid, mid, y1, y2)
		setCell(grid, mid, y1, '+')
		setCell(grid, mid, y2, '+')
	}
}

func drawElbowV(grid [][]rune, x1, y1, x2, y2 int) {
	mid := (y1 + y2) / 2
	vline(grid, x1, y1, mid)
	vline(grid, x2, mid, y2)
	if x1 != x2 {
		hline(grid, mid, x1, x2)
		setCell(grid, x1, mid, '+')
		setCell(grid, x2, mid, '+')
	}
}

func hline(grid [][]rune, y, x1, x2 int) {
	if y < 0 || y >= len(grid) {
		return
	}
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	x1, x2 = max(x1, 0), min(x2, len(grid[y])-1)
	for x := x1; x <= x2; x++ {
		mergeCell(grid, x, y, '-')
	}
}

func vline(grid [][]rune, x, y1, y2 int) {
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	y1, y2 = max(y1, 0), min(y2, len(grid)-1)
	for y := y1; y <= y2; y++ {
		mergeCell(grid, x, y, '|')
	}
}

// mergeCell draws a line character, turning crossings into '+'.
func mergeCell(grid [][]rune, x, y int, ch rune) {
	if !isValidPos(grid, x, y) {
		return
	}
	switch cur := grid[y][x]; {
	case cur == ' ' || cur == ch:
		grid[y][x] = ch
	case (cur == '-' && ch == '|') || (cur == '|' && ch == '-'):
		grid[y][x] = '+'
	}
}

func setCell(grid [][]rune, x, y int, ch rune) {
	if isValidPos(grid, x, y) {
		grid[y][x] = ch
	}
}

func isValidPos(grid [][]rune, x, y int) bool {
	return y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y])
}

// Export size limits. Modules spread further apart than this cannot be
// drawn as one picture.
const (
	maxExportCells  = 2000
	maxExportPixels = 16000
)

var errTooLarge = errors.New("workflow too large to draw")

// renderWhole draws the entire graph at zoom 1 with a small margin, for
// the text export.
func renderWhole(g *graph.Graph) ([]string, error) {
	minX, minY, maxX, maxY, ok := g.Bounds()
	if !ok {
		return nil, fmt.Errorf("nothing to export")
	}
	const margin = 2
	vp := viewport{
		panX: minX - margin*cellWidth,
		panY: minY - margin*cellHeight,
		zoom: 1,
	}
	w := math.Ceil((maxX-minX)/cellWidth) + 2*margin + 1
	h := math.Ceil((maxY-minY)/cellHeight) + 2*margin + 1
	if w > maxExportCells || h > maxExportCells {
		return nil, fmt.Errorf("%w: %.0fx%.0f cells", errTooLarge, w, h)
	}
	vp.width, vp.height = int(w), int(h)
	lines := renderCanvas(g.Instances(), g.Connections(), vp, renderOptions{})
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return lines, nil
}

const pngPadding = 40.0

// ExportToPNG draws the graph with one pixel per canvas unit.
func ExportToPNG(g *graph.Graph, filename string) error {
	minX, minY, maxX, maxY, ok := g.Bounds()
	if !ok {
		return fmt.Errorf("nothing to export")
	}
	minX -= pngPadding
	minY -= pngPadding
	maxX += pngPadding
	maxY += pngPadding

	w, h := math.Ceil(maxX-minX), math.Ceil(maxY-minY)
	if w > maxExportPixels || h > maxExportPixels {
		return fmt.Errorf("%w: %.0fx%.0f pixels", errTooLarge, w, h)
	}

	dc := gg.NewContext(int(w), int(h))
	dc.SetColor(color.White)
	dc.Clear()

	ttfFont, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(ttfFont, &truetype.Options{
		Size:    14,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	instances := g.Instances()
	byID := make(map[string]graph.Instance, len(instances))
	for _, in := range instances {
		byID[in.ID] = in
	}

	for _, c := range g.Connections() {
		from, ok1 := byID[c.Source]
		to, ok2 := byID[c.Target]
		if ok1 && ok2 {
			drawConnectionPNG(dc, from, to, minX, minY)
		}
	}
	for _, in := range instances {
		drawBoxPNG(dc, in, minX, minY)
	}

	return dc.SavePNG(filename)
}

func drawConnectionPNG(dc *gg.Context, from, to graph.Instance, minX, minY float64) {
	x1 := from.Position.X - minX + graph.NodeWidth
	y1 := from.Position.Y - minY + graph.NodeHeight/2
	x2 := to.Position.X - minX
	y2 := to.Position.Y - minY + graph.NodeHeight/2
	mid := (x1 + x2) / 2

	dc.SetLineWidth(2)
	dc.SetColor(color.Black)
	dc.MoveTo(x1, y1)
	dc.LineTo(mid, y1)
	dc.LineTo(mid, y2)
	dc.LineTo(x2, y2)
	dc.Stroke()
	drawArrowPNG(dc, mid, y2, x2, y2)
}

func drawArrowPNG(dc *gg.Context, fx, fy, tx, ty float64) {
	dx := tx - fx
	dy := ty - fy
	length := math.Sqrt(dx*dx + dy*dy)
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length

	const arrowSize = 10.0
	const arrowAngle = 0.5

	dc.MoveTo(tx, ty)
	dc.LineTo(tx-arrowSize*dx+arrowSize*dy*arrowAngle, ty-arrowSize*dy-arrowSize*dx*arrowAngle)
	dc.LineTo(tx-arrowSize*dx-arrowSize*dy*arrowAngle, ty-arrowSize*dy+arrowSize*dx*arrowAngle)
	dc.ClosePath()
	dc.Fill()
}

func drawBoxPNG(dc *gg.Context, in graph.Instance, minX, minY float64) {
	x := in.Position.X - minX
	y := in.Position.Y - minY

	dc.DrawRoundedRectangle(x, y, graph.NodeWidth, graph.NodeHeight, 8)
	if in.Def != nil && strings.HasPrefix(in.Def.Color, "#") {
		dc.SetHexColor(in.Def.Color)
	} else {
		dc.SetColor(color.Gray{Y: 200})
	}
	dc.FillPreserve()
	dc.SetColor(color.Black)
	dc.SetLineWidth(1.5)
	dc.Stroke()

	if in.Def == nil {
		return
	}
	dc.SetColor(color.White)
	dc.DrawStringAnchored(in.Def.Name, x+graph.NodeWidth/2, y+graph.NodeHeight/2-8, 0.5, 0.5)
	if in.Def.Category != "" {
		dc.DrawStringAnchored(in.Def.Category, x+graph.NodeWidth/2, y+graph.NodeHeight/2+12, 0.5, 0.5)
	}
}

package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alDuncanson/dupescope/viewer"
)

// cellAspect is how many canvas units one terminal row spans. Cells are
// roughly twice as tall as they are wide, so a row covers two units and a
// column covers one, which keeps the point cloud's proportions.
const cellAspect = 2.0

// canvasCell represents a single cell in the rendering grid with its character and styling.
type canvasCell struct {
	char  rune
	style lipgloss.Style
	mark  bool
}

// cellCanvas is a viewer.Canvas backed by a grid of terminal cells.
type cellCanvas struct {
	width, height int
	grid          [][]canvasCell
	styles        markStyles
	readout       string
	rendered      string
}

// markStyles holds the lipgloss styles used for each mark tone.
type markStyles struct {
	unknown  lipgloss.Style
	open     lipgloss.Style
	closed   lipgloss.Style
	selected lipgloss.Style
	rect     lipgloss.Style
}

func newMarkStyles() markStyles {
	return markStyles{
		unknown:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		open:     lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		closed:   lipgloss.NewStyle().Foreground(lipgloss.Color("#A371F7")),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		rect:     lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	}
}

func newCellCanvas(width, height int) *cellCanvas {
	c := &cellCanvas{styles: newMarkStyles()}
	c.resize(width, height)
	return c
}

// size is the canvas extent in viewer units.
func (c *cellCanvas) size() viewer.Size {
	return viewer.Size{Width: float64(c.width), Height: float64(c.height) * cellAspect}
}

func (c *cellCanvas) resize(width, height int) {
	c.width = max(width, 1)
	c.height = max(height, 1)
	c.grid = make([][]canvasCell, c.height)
	for row := range c.grid {
		c.grid[row] = make([]canvasCell, c.width)
	}
	c.Clear()
}

// Clear empties every cell.
func (c *cellCanvas) Clear() {
	blank := lipgloss.NewStyle()
	for row := range c.grid {
		for col := range c.grid[row] {
			c.grid[row][col] = canvasCell{char: ' ', style: blank}
		}
	}
	c.rendered = ""
}

// cellAt maps viewer coordinates to a cell, reporting false off-canvas.
func (c *cellCanvas) cellAt(x, y float64) (col, row int, ok bool) {
	col = int(math.Floor(x))
	row = int(math.Floor(y / cellAspect))
	ok = col >= 0 && col < c.width && row >= 0 && row < c.height
	return col, row, ok
}

// DrawMark paints one point. Later marks overwrite earlier ones, so the
// draw order the controller chooses decides what stays visible.
func (c *cellCanvas) DrawMark(m viewer.Mark) {
	col, row, ok := c.cellAt(m.X, m.Y)
	if !ok {
		return
	}

	char := '○'
	if m.Filled {
		char = '●'
	}
	if m.Selected {
		char = '◉'
		if m.Filled {
			char = '◆'
		}
	}

	c.grid[row][col] = canvasCell{char: char, style: c.styleFor(m.Tone), mark: true}
	c.rendered = ""
}

func (c *cellCanvas) styleFor(tone viewer.Tone) lipgloss.Style {
	switch tone {
	case viewer.ToneOpen:
		return c.styles.open
	case viewer.ToneClosed:
		return c.styles.closed
	case viewer.ToneSelected:
		return c.styles.selected
	default:
		return c.styles.unknown
	}
}

// DrawDashedRect outlines the selection rectangle on empty cells only.
func (c *cellCanvas) DrawDashedRect(r viewer.Rect) {
	left, right, top, bottom := r.Normalize()
	col0, row0, _ := c.cellAt(left, top)
	col1, row1, _ := c.cellAt(right, bottom)
	col0, col1 = max(col0, 0), min(col1, c.width-1)
	row0, row1 = max(row0, 0), min(row1, c.height-1)

	for col := col0; col <= col1; col++ {
		if (col-col0)%2 == 0 {
			c.setRectCell(col, row0, '┄')
			c.setRectCell(col, row1, '┄')
		}
	}
	for row := row0; row <= row1; row++ {
		c.setRectCell(col0, row, '┆')
		c.setRectCell(col1, row, '┆')
	}
	c.rendered = ""
}

func (c *cellCanvas) setRectCell(col, row int, char rune) {
	if col < 0 || col >= c.width || row < 0 || row >= c.height {
		return
	}
	if c.grid[row][col].mark {
		return
	}
	c.grid[row][col] = canvasCell{char: char, style: c.styles.rect}
}

// SetReadout records the visible/total counter shown in the header.
func (c *cellCanvas) SetReadout(visible, total int) {
	c.readout = fmt.Sprintf("%d / %d visible", visible, total)
}

// String converts the grid into a renderable string. The result is kept
// until the next paint touches the grid.
func (c *cellCanvas) String() string {
	if c.rendered != "" {
		return c.rendered
	}

	var outputBuilder strings.Builder
	for rowIndex, gridRow := range c.grid {
		for _, cell := range gridRow {
			if cell.char == ' ' {
				outputBuilder.WriteByte(' ')
				continue
			}
			outputBuilder.WriteString(cell.style.Render(string(cell.char)))
		}
		if rowIndex < len(c.grid)-1 {
			outputBuilder.WriteString("\n")
		}
	}

	c.rendered = outputBuilder.String()
	return c.rendered
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/points"
	"github.com/alDuncanson/dupescope/viewer"
)

const (
	overlayPanelWidth = 48
	inputOverlayWidth = 60
	minCanvasWidth    = 40
	minCanvasHeight   = 10
	headerHeight      = 1
	statusBarHeight   = 1
	messageHeight     = 1
	borderSize        = 2
	chromeHeight      = headerHeight + statusBarHeight + messageHeight + borderSize

	// The canvas interior starts inside the left border, below the header
	// and the top border.
	canvasOriginX = 1
	canvasOriginY = headerHeight + 1
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeSearch
	modeCredential
	modeFind
	modeGlob
)

type layoutDimensions struct {
	totalWidth   int
	canvasWidth  int
	canvasHeight int
}

func (m Model) calculateLayout() layoutDimensions {
	return layoutDimensions{
		totalWidth:   max(m.width, minCanvasWidth+borderSize),
		canvasWidth:  max(m.width-borderSize, minCanvasWidth),
		canvasHeight: max(m.height-chromeHeight, minCanvasHeight),
	}
}

type styles struct {
	title       lipgloss.Style
	canvas      lipgloss.Style
	overlay     lipgloss.Style
	input       lipgloss.Style
	filterOn    lipgloss.Style
	filterOff   lipgloss.Style
	label       lipgloss.Style
	value       lipgloss.Style
	statusBar   lipgloss.Style
	statusText  lipgloss.Style
	errorText   lipgloss.Style
	selectBadge lipgloss.Style
}

func newStyles() styles {
	accentColor := lipgloss.Color("#FF87D7")
	borderColor := lipgloss.Color("#5F5FAF")
	canvasBorderColor := lipgloss.Color("#FF8700")
	dimColor := lipgloss.Color("#6C6C6C")
	bgColor := lipgloss.Color("#303030")

	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor),

		canvas: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(canvasBorderColor),

		overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Background(bgColor).
			Padding(0, 1),

		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Background(bgColor).
			Padding(0, 1),

		filterOn: lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor),

		filterOff: lipgloss.NewStyle().
			Foreground(dimColor).
			Strikethrough(true),

		label: lipgloss.NewStyle().
			Foreground(dimColor),

		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")),

		statusBar: lipgloss.NewStyle().
			Foreground(dimColor),

		statusText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("117")),

		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")),

		selectBadge: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
	}
}

// View renders the complete UI as a string.
func (m Model) View() string {
	s := newStyles()
	layout := m.calculateLayout()

	canvasBox := s.canvas.
		Width(layout.canvasWidth).
		Height(layout.canvasHeight).
		Render(m.canvas.String())

	if m.showMetadata && len(m.ctrl.Selected()) > 0 {
		canvasBox = m.overlayMetadataPanel(canvasBox, s, layout)
	}
	if m.inputMode != modeNormal {
		canvasBox = m.overlayInputBox(canvasBox, s, layout)
	}

	return strings.Join([]string{
		m.renderHeader(s, layout.totalWidth),
		canvasBox,
		m.renderStatusBar(s, layout.totalWidth),
		m.renderMessage(s),
	}, "\n")
}

func (m Model) renderHeader(s styles, width int) string {
	left := s.title.Render("dupescope")
	if m.title != "" {
		left += " " + s.value.Render(m.title)
	}
	left += "  " + s.label.Render(strings.ToUpper(m.ctrl.Mode().String()))

	filters := m.ctrl.Filters()
	toggles := []struct {
		name string
		on   bool
	}{
		{"PRs", filters.ShowPullRequests},
		{"Issues", filters.ShowIssues},
		{"Open", filters.ShowOpen},
		{"Closed", filters.ShowClosed},
	}
	for _, toggle := range toggles {
		style := s.filterOff
		if toggle.on {
			style = s.filterOn
		}
		left += " " + style.Render(toggle.name)
	}
	if filters.PathGlob != "" {
		left += " " + s.filterOn.Render("path:"+filters.PathGlob)
	}

	right := s.label.Render(m.canvas.readout)
	if n := len(m.ctrl.Selected()); n > 0 {
		right += s.label.Render(" · ") + s.selectBadge.Render(fmt.Sprintf("%d selected", n))
	}
	if m.selectMode {
		right += " " + s.selectBadge.Render("[select]")
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) overlayMetadataPanel(base string, s styles, layout layoutDimensions) string {
	panelInnerWidth := overlayPanelWidth - 4
	panelInnerHeight := layout.canvasHeight - 4
	if panelInnerHeight < 1 {
		return base
	}

	metadataContent := m.renderMetadata(s, panelInnerWidth, panelInnerHeight)
	panel := s.overlay.
		Width(panelInnerWidth).
		Render(metadataContent)

	return overlayAt(base, panel, layout.canvasWidth-overlayPanelWidth+1, 1)
}

// renderMetadata lists the selected records, two lines each, for as many as
// fit in panelHeight.
func (m Model) renderMetadata(s styles, panelWidth, panelHeight int) string {
	selected := m.ctrl.SelectedPoints()
	caser := cases.Title(language.English)

	contentLines := []string{s.title.Render(fmt.Sprintf("Selected (%d)", len(selected)))}
	for i, p := range selected {
		if len(contentLines)+2 > panelHeight {
			remaining := len(selected) - i
			contentLines = append(contentLines, s.label.Render(fmt.Sprintf("… %d more", remaining)))
			break
		}
		contentLines = append(contentLines,
			s.value.Render(truncate.StringWithTail(headline(p), uint(panelWidth), "…")),
			s.label.Render(truncate.StringWithTail(describe(caser, p), uint(panelWidth), "…")),
		)
	}

	return strings.Join(contentLines, "\n")
}

func headline(p points.Point) string {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	if p.Number != nil {
		return fmt.Sprintf("#%d %s", *p.Number, title)
	}
	return title
}

// describe summarises the state, kind and touched files of p.
func describe(caser cases.Caser, p points.Point) string {
	var parts []string
	if p.State != dataimport.StateUnknown {
		parts = append(parts, caser.String(string(p.State)))
	}
	switch p.Kind {
	case dataimport.KindPullRequest:
		parts = append(parts, caser.String("pull request"))
	case dataimport.KindIssue:
		parts = append(parts, caser.String("issue"))
	}
	if n := len(p.Files); n > 0 {
		parts = append(parts, fmt.Sprintf("%d files", n))
	}
	if len(parts) == 0 {
		return p.URL
	}
	return strings.Join(parts, " · ")
}

func (m Model) overlayInputBox(base string, s styles, layout layoutDimensions) string {
	inputWidth := inputOverlayWidth - 4

	prompt, placeholder := m.promptText()
	text := string(m.input)
	if m.inputMode == modeCredential {
		text = strings.Repeat("•", len(m.input))
	}
	if text == "" {
		text = s.label.Render(placeholder)
	}

	inputBox := s.input.
		Width(inputWidth).
		Render(s.title.Render(prompt) + " " + text)

	x := (layout.canvasWidth - inputOverlayWidth) / 2
	y := layout.canvasHeight / 2

	return overlayAt(base, inputBox, x, y)
}

func (m Model) promptText() (prompt, placeholder string) {
	switch m.inputMode {
	case modeSearch:
		return "search", "describe what you are looking for"
	case modeCredential:
		return "api key", "kept in memory for this session"
	case modeFind:
		return "find", "words in titles, bodies or paths"
	case modeGlob:
		return "path", "glob such as src/**/*.go, empty clears"
	default:
		return "", ""
	}
}

func overlayAt(base, overlay string, x, y int) string {
	bgLines, bgWidth := getLines(base)
	fgLines, fgWidth := getLines(overlay)
	bgHeight := len(bgLines)
	fgHeight := len(fgLines)

	if fgWidth >= bgWidth && fgHeight >= bgHeight {
		return overlay
	}

	x = min(max(x, 0), max(bgWidth-fgWidth, 0))
	y = min(max(y, 0), max(bgHeight-fgHeight, 0))

	var b strings.Builder
	for i, bgLine := range bgLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i < y || i >= y+fgHeight {
			b.WriteString(bgLine)
			continue
		}

		pos := 0
		if x > 0 {
			left := truncate.String(bgLine, uint(x))
			pos = ansi.StringWidth(left)
			b.WriteString(left)
			if pos < x {
				b.WriteString(strings.Repeat(" ", x-pos))
				pos = x
			}
		}

		fgLine := fgLines[i-y]
		b.WriteString(fgLine)
		pos += ansi.StringWidth(fgLine)

		right := ansi.TruncateLeft(bgLine, pos, "")
		lineWidth := ansi.StringWidth(bgLine)
		rightWidth := ansi.StringWidth(right)
		if rightWidth <= lineWidth-pos {
			b.WriteString(strings.Repeat(" ", lineWidth-rightWidth-pos))
		}
		b.WriteString(right)
	}

	return b.String()
}

func getLines(s string) ([]string, int) {
	lines := strings.Split(s, "\n")
	widest := 0
	for _, l := range lines {
		widest = max(widest, ansi.StringWidth(l))
	}
	return lines, widest
}

func (m Model) renderStatusBar(s styles, width int) string {
	var help string

	if m.inputMode != modeNormal {
		help = "Enter: submit │ Esc: cancel"
	} else {
		drag := "drag: pan"
		if m.ctrl.Mode() == viewer.Mode3D {
			drag = "drag: rotate"
		}
		help = drag + " │ shift/v: select │ m: 2D/3D │ +/-: zoom │ r: reset │ p i o c: filters │ g: path │ /: search │ f: find │ n/N: groups │ y: export │ x: clear │ q: quit"
	}

	version := m.version
	padding := width - lipgloss.Width(help) - lipgloss.Width(version)
	if padding < 1 {
		padding = 1
	}

	return s.statusBar.Render(help + strings.Repeat(" ", padding) + version)
}

func (m Model) renderMessage(s styles) string {
	if m.err != nil {
		return s.errorText.Render("Error: " + m.err.Error())
	}
	return s.statusText.Render(m.status)
}

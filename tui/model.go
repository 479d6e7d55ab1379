// Package tui is the terminal front end of the viewer. It drives a
// viewer.Controller from bubbletea key and mouse events and paints the
// controller's frames onto a grid of terminal cells.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/embedding"
	"github.com/alDuncanson/dupescope/fileutil"
	"github.com/alDuncanson/dupescope/keyword"
	"github.com/alDuncanson/dupescope/logging"
	"github.com/alDuncanson/dupescope/points"
	"github.com/alDuncanson/dupescope/viewer"
)

const (
	frameInterval = time.Second / 30
	keyZoomFactor = 1.25
	wheelZoom     = 1.1
	arrowStep     = 4.0
)

// Options configure a Model.
type Options struct {
	Title  string
	Points []points.Point
	// Keywords enables the literal find prompt when set.
	Keywords *keyword.Index
	// Search enables semantic search when set.
	Search *viewer.SearchClient
	// Groups are candidate duplicate groups as point indices, cycled with n
	// and N.
	Groups     [][]int
	Viewer     viewer.Options
	ExportPath string
	Version    string
	Logger     *logging.Logger
}

// Model represents the terminal viewer state.
type Model struct {
	ctx           context.Context
	ctrl          *viewer.Controller
	canvas        *cellCanvas
	keywords      *keyword.Index
	search        *viewer.SearchClient
	groups        [][]int
	groupPos      int
	logger        *logging.Logger
	title         string
	version       string
	exportPath    string
	width, height int
	sized         bool
	inputMode     inputMode
	input         []rune
	cursorPos     int
	pendingQuery  string
	status        string
	err           error
	showMetadata  bool
	selectMode    bool
}

// frameMsg asks the controller for a frame.
type frameMsg time.Time

// searchResult is the message returned after a query embedding finished.
type searchResult struct {
	request *viewer.SearchRequest
	vector  []float32
	err     error
}

// exportResult is the message returned after the selection was written out.
type exportResult struct {
	path  string
	count int
	err   error
}

// NewModel creates and initializes a Model for opts.Points.
func NewModel(ctx context.Context, opts Options) Model {
	canvas := newCellCanvas(80-borderSize, 24-chromeHeight)
	exportPath := opts.ExportPath
	if exportPath == "" {
		exportPath = "selection.txt"
	}
	return Model{
		ctx:          ctx,
		ctrl:         viewer.NewController(opts.Points, canvas.size(), opts.Viewer),
		canvas:       canvas,
		keywords:     opts.Keywords,
		search:       opts.Search,
		groups:       opts.Groups,
		groupPos:     -1,
		logger:       opts.Logger,
		title:        opts.Title,
		version:      opts.Version,
		exportPath:   exportPath,
		width:        80,
		height:       24,
		showMetadata: true,
	}
}

// Controller exposes the viewer state driven by this model.
func (m Model) Controller() *viewer.Controller { return m.ctrl }

// Init starts the frame clock.
func (m Model) Init() tea.Cmd {
	return frameTick()
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update handles all incoming messages and updates the model state accordingly.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch message := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(message.Width, message.Height)

	case frameMsg:
		m.ctrl.Frame(m.canvas)
		return m, frameTick()

	case tea.KeyMsg:
		if m.inputMode != modeNormal {
			return m.handleInputKey(message)
		}
		return m.handleKeyPress(message)

	case tea.MouseMsg:
		m.handleMouse(message)

	case searchResult:
		return m.handleSearchResult(message)

	case exportResult:
		if message.err != nil {
			m.err = message.err
		} else {
			m.err = nil
			m.status = fmt.Sprintf("wrote %d urls to %s", message.count, message.path)
		}
	}

	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	layout := m.calculateLayout()
	m.canvas.resize(layout.canvasWidth, layout.canvasHeight)
	m.ctrl.Resize(m.canvas.size())
	if !m.sized {
		m.ctrl.ResetView()
		m.sized = true
	}
}

// handleKeyPress processes keyboard input outside of prompts.
func (m Model) handleKeyPress(keyMessage tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil

	switch keyMessage.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "esc":
		if m.ctrl.Gesture().State != viewer.GestureIdle {
			m.ctrl.CancelGesture()
			return m, nil
		}
		return m, tea.Quit

	case "m":
		m.ctrl.ToggleMode()

	case "r":
		m.ctrl.ResetView()

	case "+", "=":
		m.ctrl.Zoom(keyZoomFactor)

	case "-":
		m.ctrl.Zoom(1 / keyZoomFactor)

	case "left":
		m.nudge(-arrowStep, 0)
	case "right":
		m.nudge(arrowStep, 0)
	case "up":
		m.nudge(0, -arrowStep)
	case "down":
		m.nudge(0, arrowStep)

	case "p":
		m.ctrl.ToggleKind(dataimport.KindPullRequest)
	case "i":
		m.ctrl.ToggleKind(dataimport.KindIssue)
	case "o":
		m.ctrl.ToggleState(dataimport.StateOpen)
	case "c":
		m.ctrl.ToggleState(dataimport.StateClosed)

	case "v":
		m.selectMode = !m.selectMode

	case "x":
		m.ctrl.ClearSelection()

	case "n":
		m.cycleGroup(1)
	case "N":
		m.cycleGroup(-1)

	case "tab":
		m.showMetadata = !m.showMetadata

	case "y":
		if len(m.ctrl.Selected()) == 0 {
			m.status = "nothing selected"
			return m, nil
		}
		return m, m.exportSelection()

	case "g":
		m.openInput(modeGlob, m.ctrl.Filters().PathGlob)

	case "f":
		if m.keywords == nil {
			m.status = "keyword find is unavailable"
			return m, nil
		}
		m.openInput(modeFind, "")

	case "/", "s":
		if m.search == nil {
			m.status = "search needs embeddings; re-run project with --include-embeddings"
			return m, nil
		}
		m.openInput(modeSearch, "")
	}

	return m, nil
}

// nudge pans the flat view or turns the perspective view.
func (m *Model) nudge(dx, dy float64) {
	if m.ctrl.Mode() == viewer.Mode3D {
		m.ctrl.Rotate(dx, dy)
		return
	}
	m.ctrl.Pan(dx, dy)
}

// cycleGroup selects the next or previous duplicate group.
func (m *Model) cycleGroup(step int) {
	if len(m.groups) == 0 {
		m.status = "no duplicate groups"
		return
	}

	switch {
	case m.groupPos < 0 && step < 0:
		m.groupPos = len(m.groups) - 1
	default:
		m.groupPos = (m.groupPos + step + len(m.groups)) % len(m.groups)
	}

	members := m.groups[m.groupPos]
	m.ctrl.ReplaceSelection(members)
	m.status = fmt.Sprintf("group %d/%d (%d records)", m.groupPos+1, len(m.groups), len(members))
}

func (m *Model) openInput(mode inputMode, initial string) {
	m.inputMode = mode
	m.input = []rune(initial)
	m.cursorPos = len(m.input)
}

func (m *Model) closeInput() {
	m.inputMode = modeNormal
	m.input = nil
	m.cursorPos = 0
}

// handleInputKey edits the active prompt.
func (m Model) handleInputKey(keyMessage tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMessage.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.inputMode == modeCredential {
			m.status = "search cancelled"
		}
		m.closeInput()

	case tea.KeyEnter:
		return m.submitInput()

	case tea.KeyBackspace:
		if m.cursorPos > 0 {
			m.input = append(m.input[:m.cursorPos-1], m.input[m.cursorPos:]...)
			m.cursorPos--
		}

	case tea.KeyLeft:
		if m.cursorPos > 0 {
			m.cursorPos--
		}

	case tea.KeyRight:
		if m.cursorPos < len(m.input) {
			m.cursorPos++
		}

	case tea.KeySpace:
		m.insert([]rune{' '})

	case tea.KeyRunes:
		m.insert(keyMessage.Runes)
	}

	return m, nil
}

// insert places typed runes at the cursor position.
func (m *Model) insert(runes []rune) {
	updated := make([]rune, 0, len(m.input)+len(runes))
	updated = append(updated, m.input[:m.cursorPos]...)
	updated = append(updated, runes...)
	updated = append(updated, m.input[m.cursorPos:]...)
	m.input = updated
	m.cursorPos += len(runes)
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(string(m.input))
	mode := m.inputMode
	m.closeInput()
	m.err = nil

	switch mode {
	case modeSearch:
		m.pendingQuery = text
		return m.startSearch(text)

	case modeCredential:
		m.search.SetCredential(text)
		return m.startSearch(m.pendingQuery)

	case modeFind:
		if text == "" {
			return m, nil
		}
		hits, err := m.keywords.Find(text, viewer.MaxSearchResults)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.ctrl.ReplaceSelection(hits)
		m.status = fmt.Sprintf("%d keyword matches for %q", len(hits), text)

	case modeGlob:
		if err := m.ctrl.SetPathGlob(text); err != nil {
			m.err = err
			return m, nil
		}
		if text == "" {
			m.status = "path filter cleared"
		} else {
			m.status = "path filter " + text
		}
	}

	return m, nil
}

// startSearch begins a semantic search, prompting for a key first when the
// provider needs one. The request itself runs off the event loop.
func (m Model) startSearch(query string) (tea.Model, tea.Cmd) {
	request, err := m.search.Begin(query)
	switch {
	case errors.Is(err, embedding.ErrMissingCredential):
		m.openInput(modeCredential, "")
		m.status = "enter an API key for search; it is kept in memory only"
		return m, nil
	case err != nil:
		m.err = err
		return m, nil
	}

	m.status = fmt.Sprintf("searching for %q...", request.Query)
	ctx := m.ctx
	return m, func() tea.Msg {
		vector, err := request.Run(ctx)
		return searchResult{request: request, vector: vector, err: err}
	}
}

func (m Model) handleSearchResult(result searchResult) (tea.Model, tea.Cmd) {
	vector, err := m.search.Finish(result.request, result.vector, result.err)
	if err != nil {
		m.logger.Warn("Search failed: %v", err)
		m.err = err
		m.status = ""
		return m, nil
	}

	matches := m.ctrl.ApplySearch(vector)
	if len(matches) == 0 {
		m.status = fmt.Sprintf("no matches for %q", result.request.Query)
		return m, nil
	}
	m.status = fmt.Sprintf("%d matches for %q, best %.3f", len(matches), result.request.Query, matches[0].Similarity)
	return m, nil
}

// handleMouse translates terminal mouse events into pointer gestures.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	x, y, inside := m.toCanvas(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		if !inside {
			return
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.ctrl.ZoomAt(x, y, wheelZoom)
		case tea.MouseButtonWheelDown:
			m.ctrl.ZoomAt(x, y, 1/wheelZoom)
		case tea.MouseButtonLeft:
			m.ctrl.PointerDown(x, y, viewer.Modifiers{
				Shift: msg.Shift || m.selectMode,
				Ctrl:  msg.Ctrl,
				Meta:  msg.Alt,
			})
		}

	case tea.MouseActionMotion:
		m.ctrl.PointerMove(x, y)

	case tea.MouseActionRelease:
		m.ctrl.PointerUp(x, y)
	}
}

// toCanvas maps a terminal cell to the centre of that cell in viewer units.
func (m Model) toCanvas(col, row int) (x, y float64, inside bool) {
	col -= canvasOriginX
	row -= canvasOriginY
	inside = col >= 0 && col < m.canvas.width && row >= 0 && row < m.canvas.height
	x = float64(col) + 0.5
	y = (float64(row) + 0.5) * cellAspect
	return x, y, inside
}

// exportSelection writes the selected urls, one per line.
func (m Model) exportSelection() tea.Cmd {
	selected := m.ctrl.SelectedPoints()
	urls := make([]string, 0, len(selected))
	for _, p := range selected {
		urls = append(urls, p.URL)
	}
	path := m.exportPath
	return func() tea.Msg {
		data := []byte(strings.Join(urls, "\n") + "\n")
		if err := fileutil.WriteAtomic(path, data, 0o644); err != nil {
			return exportResult{err: fmt.Errorf("export selection: %w", err)}
		}
		return exportResult{path: path, count: len(urls)}
	}
}

package viewer

import (
	"sort"

	"github.com/alDuncanson/dupescope/dataimport"
)

// Tone is the colour role of a mark; front ends map it to real colours.
type Tone int

const (
	ToneUnknown Tone = iota
	ToneOpen
	ToneClosed
	ToneSelected
)

// Mark is one point as it should be drawn.
type Mark struct {
	Index  int
	X, Y   float64
	Radius float64
	// Filled marks pull requests; issues and untyped records are rings.
	Filled   bool
	Selected bool
	Tone     Tone
}

const (
	markRadius         = 1.0
	selectedMarkRadius = 1.6
)

// Canvas receives one paint. Calls arrive in draw order: Clear, the marks
// back to front, the selection rectangle if any, then the readout.
type Canvas interface {
	Clear()
	DrawMark(m Mark)
	DrawDashedRect(r Rect)
	SetReadout(visible, total int)
}

// Scheduler coalesces repaint requests. Any number of Invalidate calls
// between two frames produce a single paint.
type Scheduler struct {
	pending bool
	paints  int
}

// Invalidate marks the canvas stale.
func (s *Scheduler) Invalidate() { s.pending = true }

// Pending reports whether the next frame will paint.
func (s *Scheduler) Pending() bool { return s.pending }

// Paints is the number of paints performed so far.
func (s *Scheduler) Paints() int { return s.paints }

// Frame runs paint if a repaint is pending and reports whether it did.
func (s *Scheduler) Frame(paint func()) bool {
	if !s.pending {
		return false
	}
	s.pending = false
	s.paints++
	paint()
	return true
}

type projected struct {
	index  int
	screen ScreenPoint
}

// paint draws the current state onto canvas.
func (c *Controller) paint(canvas Canvas) {
	canvas.Clear()

	visible := 0
	drawn := make([]projected, 0, len(c.points))
	for i := range c.points {
		if !c.filters.Visible(c.points[i]) {
			continue
		}
		visible++
		sp := ProjectToScreen(c.points[i], c.mode, c.view, c.size)
		if sp.Culled {
			continue
		}
		drawn = append(drawn, projected{index: i, screen: sp})
	}

	if c.mode == Mode3D {
		sort.SliceStable(drawn, func(a, b int) bool {
			return drawn[a].screen.Depth < drawn[b].screen.Depth
		})
	} else {
		// Selected points go on top in the flat view.
		sort.SliceStable(drawn, func(a, b int) bool {
			return !c.selection.Has(drawn[a].index) && c.selection.Has(drawn[b].index)
		})
	}

	for _, d := range drawn {
		canvas.DrawMark(c.markFor(d))
	}

	if c.gesture.State == GestureRectSelecting {
		canvas.DrawDashedRect(c.gesture.Rect)
	}
	canvas.SetReadout(visible, len(c.points))
}

func (c *Controller) markFor(d projected) Mark {
	p := c.points[d.index]
	m := Mark{
		Index:  d.index,
		X:      d.screen.X,
		Y:      d.screen.Y,
		Radius: markRadius,
		Filled: p.Kind == dataimport.KindPullRequest,
	}

	switch p.State {
	case dataimport.StateOpen:
		m.Tone = ToneOpen
	case dataimport.StateClosed:
		m.Tone = ToneClosed
	}

	if c.selection.Has(d.index) {
		m.Selected = true
		m.Radius = selectedMarkRadius
		m.Tone = ToneSelected
	}
	return m
}

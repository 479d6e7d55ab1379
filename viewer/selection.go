package viewer

import (
	"math"
	"sort"
)

// Selection is a set of point indices into the currently loaded dataset.
type Selection struct {
	members map[int]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{members: make(map[int]struct{})}
}

func (s *Selection) Has(index int) bool {
	_, ok := s.members[index]
	return ok
}

func (s *Selection) Add(index int) { s.members[index] = struct{}{} }

func (s *Selection) Clear() { clear(s.members) }

func (s *Selection) Len() int { return len(s.members) }

// Replace discards the current members and adds indices in their place.
func (s *Selection) Replace(indices []int) {
	s.Clear()
	for _, i := range indices {
		s.Add(i)
	}
}

// Indices returns the members in ascending order.
func (s *Selection) Indices() []int {
	out := make([]int, 0, len(s.members))
	for i := range s.members {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// GestureState is the phase of the pointer gesture machine.
type GestureState int

const (
	GestureIdle GestureState = iota
	GestureDragging
	GestureRectSelecting
)

func (g GestureState) String() string {
	switch g {
	case GestureDragging:
		return "dragging"
	case GestureRectSelecting:
		return "selecting"
	default:
		return "idle"
	}
}

// DragMode is what a drag does to the camera.
type DragMode int

const (
	DragPan    DragMode = iota // 2D translate
	DragRotate                 // 3D yaw/pitch
	DragPan3D                  // 3D translate
)

// Modifiers are the keys held when a pointer button went down.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Meta  bool
}

// Rect is a selection rectangle spanned by two corners in any order.
type Rect struct {
	X0, Y0 float64
	X1, Y1 float64
}

// Normalize returns the rectangle's left, right, top and bottom edges.
func (r Rect) Normalize() (left, right, top, bottom float64) {
	return math.Min(r.X0, r.X1), math.Max(r.X0, r.X1), math.Min(r.Y0, r.Y1), math.Max(r.Y0, r.Y1)
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	left, right, top, bottom := r.Normalize()
	return x >= left && x <= right && y >= top && y <= bottom
}

// Gesture is the in-progress pointer interaction.
type Gesture struct {
	State    GestureState
	Drag     DragMode
	Additive bool

	// Rect tracks the selection rectangle; X1/Y1 is the live corner.
	Rect Rect

	startX, startY float64
	lastX, lastY   float64
	// travel is the largest distance from the press position seen so far.
	travel float64
}

// beginGesture picks the gesture for a press. Shift always selects; ctrl or
// meta selects additively in 2D but pans in 3D; a bare press pans in 2D and
// rotates in 3D.
func beginGesture(x, y float64, mods Modifiers, mode Mode) Gesture {
	g := Gesture{
		Rect:   Rect{X0: x, Y0: y, X1: x, Y1: y},
		startX: x,
		startY: y,
		lastX:  x,
		lastY:  y,
	}
	command := mods.Ctrl || mods.Meta

	switch {
	case mods.Shift:
		g.State = GestureRectSelecting
		g.Additive = command
	case command && mode == Mode2D:
		g.State = GestureRectSelecting
		g.Additive = true
	case command:
		g.State = GestureDragging
		g.Drag = DragPan3D
	case mode == Mode2D:
		g.State = GestureDragging
		g.Drag = DragPan
	default:
		g.State = GestureDragging
		g.Drag = DragRotate
	}
	return g
}

// move records a pointer position and returns the delta since the last one.
func (g *Gesture) move(x, y float64) (dx, dy float64) {
	dx, dy = x-g.lastX, y-g.lastY
	g.lastX, g.lastY = x, y
	g.travel = math.Max(g.travel, math.Hypot(x-g.startX, y-g.startY))
	if g.State == GestureRectSelecting {
		g.Rect.X1, g.Rect.Y1 = x, y
	}
	return dx, dy
}

package viewer

import (
	"github.com/alDuncanson/dupescope/dataimport"
	"github.com/alDuncanson/dupescope/points"
)

// Options tune pointer handling. Zero values pick the defaults.
type Options struct {
	// HitRadius is how close a click must land to a point to count as a hit.
	HitRadius float64
	// ClickThreshold is the travel below which a press and release is a click.
	ClickThreshold float64
	// RotateSpeed is radians of rotation per canvas unit dragged.
	RotateSpeed float64
}

func (o Options) withDefaults() Options {
	if o.HitRadius <= 0 {
		o.HitRadius = 6
	}
	if o.ClickThreshold <= 0 {
		o.ClickThreshold = 4
	}
	if o.RotateSpeed <= 0 {
		o.RotateSpeed = 0.01
	}
	return o
}

// Controller owns all mutable viewer state for one loaded dataset: camera,
// filters, selection, the active gesture and the repaint flag.
type Controller struct {
	points    []points.Point
	mode      Mode
	size      Size
	view      View
	filters   Filters
	selection *Selection
	gesture   Gesture
	scheduler Scheduler
	opts      Options
}

// NewController loads pts and schedules the first paint.
func NewController(pts []points.Point, size Size, opts Options) *Controller {
	c := &Controller{
		size:      size,
		view:      DefaultView(size),
		filters:   DefaultFilters(),
		selection: NewSelection(),
		opts:      opts.withDefaults(),
	}
	c.Load(pts)
	return c
}

// Load replaces the dataset. The selection and any gesture are discarded
// because their indices refer to the previous points.
func (c *Controller) Load(pts []points.Point) {
	c.points = pts
	c.selection.Clear()
	c.gesture = Gesture{}
	c.scheduler.Invalidate()
}

func (c *Controller) Points() []points.Point { return c.points }
func (c *Controller) Mode() Mode             { return c.mode }
func (c *Controller) View() View             { return c.view }
func (c *Controller) Size() Size             { return c.size }
func (c *Controller) Filters() Filters       { return c.filters }
func (c *Controller) Gesture() Gesture       { return c.gesture }

// Scheduler exposes the repaint state, mostly for front ends that want to
// skip work when nothing is pending.
func (c *Controller) Scheduler() *Scheduler { return &c.scheduler }

// Invalidate requests a repaint on the next frame.
func (c *Controller) Invalidate() { c.scheduler.Invalidate() }

// Frame paints onto canvas if anything changed since the last frame.
func (c *Controller) Frame(canvas Canvas) bool {
	return c.scheduler.Frame(func() { c.paint(canvas) })
}

// SetMode switches between the flat and perspective views. Each mode keeps
// its own camera.
func (c *Controller) SetMode(mode Mode) {
	if c.mode == mode {
		return
	}
	c.mode = mode
	c.gesture = Gesture{}
	c.scheduler.Invalidate()
}

func (c *Controller) ToggleMode() {
	if c.mode == Mode2D {
		c.SetMode(Mode3D)
	} else {
		c.SetMode(Mode2D)
	}
}

// Resize changes the canvas size, keeping camera offsets.
func (c *Controller) Resize(size Size) {
	c.size = size
	c.scheduler.Invalidate()
}

// ResetView restores the default camera for both modes.
func (c *Controller) ResetView() {
	c.view = DefaultView(c.size)
	c.scheduler.Invalidate()
}

// SetFilters replaces all filters. The path glob must be valid.
func (c *Controller) SetFilters(f Filters) error {
	if err := ValidatePathGlob(f.PathGlob); err != nil {
		return err
	}
	c.filters = f
	c.scheduler.Invalidate()
	return nil
}

// ToggleKind flips the visibility of one record kind.
func (c *Controller) ToggleKind(kind dataimport.Kind) {
	switch kind {
	case dataimport.KindPullRequest:
		c.filters.ShowPullRequests = !c.filters.ShowPullRequests
	case dataimport.KindIssue:
		c.filters.ShowIssues = !c.filters.ShowIssues
	default:
		return
	}
	c.scheduler.Invalidate()
}

// ToggleState flips the visibility of one record state.
func (c *Controller) ToggleState(state dataimport.State) {
	switch state {
	case dataimport.StateOpen:
		c.filters.ShowOpen = !c.filters.ShowOpen
	case dataimport.StateClosed:
		c.filters.ShowClosed = !c.filters.ShowClosed
	default:
		return
	}
	c.scheduler.Invalidate()
}

// SetPathGlob sets the touched-file filter; an empty pattern clears it.
func (c *Controller) SetPathGlob(pattern string) error {
	f := c.filters
	f.PathGlob = pattern
	return c.SetFilters(f)
}

// ZoomAt zooms by factor. In 2D the content under (x, y) stays put; in 3D
// the camera zooms about the centre.
func (c *Controller) ZoomAt(x, y, factor float64) {
	if factor <= 0 {
		return
	}
	if c.mode == Mode2D {
		c.view.Flat = c.view.Flat.zoomAt(x, y, factor)
	} else {
		c.view.Deep = c.view.Deep.zoomBy(factor)
	}
	c.scheduler.Invalidate()
}

// Zoom zooms about the canvas centre.
func (c *Controller) Zoom(factor float64) {
	c.ZoomAt(c.size.Width/2, c.size.Height/2, factor)
}

// Pan moves the active camera by (dx, dy) canvas units.
func (c *Controller) Pan(dx, dy float64) {
	if c.mode == Mode2D {
		c.view.Flat.OffsetX += dx
		c.view.Flat.OffsetY += dy
	} else {
		c.view.Deep.OffsetX += dx
		c.view.Deep.OffsetY += dy
	}
	c.scheduler.Invalidate()
}

// Rotate turns the 3D camera by a drag of (dx, dy) canvas units. It does
// nothing in 2D.
func (c *Controller) Rotate(dx, dy float64) {
	if c.mode != Mode3D {
		return
	}
	c.view.Deep = c.view.Deep.rotateBy(dx*c.opts.RotateSpeed, dy*c.opts.RotateSpeed)
	c.scheduler.Invalidate()
}

// PointerDown starts a gesture. A press while another gesture is active
// restarts from the new position.
func (c *Controller) PointerDown(x, y float64, mods Modifiers) {
	c.gesture = beginGesture(x, y, mods, c.mode)
	if c.gesture.State == GestureRectSelecting {
		c.scheduler.Invalidate()
	}
}

// PointerMove applies the delta since the previous move to the active drag,
// or moves the live corner of the selection rectangle.
func (c *Controller) PointerMove(x, y float64) {
	if c.gesture.State == GestureIdle {
		return
	}
	dx, dy := c.gesture.move(x, y)

	switch c.gesture.State {
	case GestureRectSelecting:
		c.scheduler.Invalidate()
	case GestureDragging:
		switch c.gesture.Drag {
		case DragRotate:
			c.Rotate(dx, dy)
		default:
			c.Pan(dx, dy)
		}
	}
}

// PointerUp finishes the gesture. A selection rectangle is always evaluated.
// A drag whose travel stayed under the click threshold is a click: it clears
// the selection when no visible point lies within the hit radius, and never
// adds to it.
func (c *Controller) PointerUp(x, y float64) {
	if c.gesture.State == GestureIdle {
		return
	}
	c.PointerMove(x, y)
	g := c.gesture
	c.gesture = Gesture{}

	switch g.State {
	case GestureRectSelecting:
		c.selectRect(g.Rect, g.Additive)
	case GestureDragging:
		if g.travel < c.opts.ClickThreshold {
			c.click(x, y)
		}
	}
	c.scheduler.Invalidate()
}

// CancelGesture drops the active gesture without touching the selection.
func (c *Controller) CancelGesture() {
	if c.gesture.State == GestureIdle {
		return
	}
	c.gesture = Gesture{}
	c.scheduler.Invalidate()
}

func (c *Controller) click(x, y float64) {
	if _, hit := c.HitTest(x, y); hit {
		return
	}
	c.selection.Clear()
}

// selectRect adds every visible point inside r. A non-additive selection
// replaces the previous one.
func (c *Controller) selectRect(r Rect, additive bool) {
	if !additive {
		c.selection.Clear()
	}
	for _, i := range c.PointsInRect(r) {
		c.selection.Add(i)
	}
}

// PointsInRect lists the visible, unculled points whose screen position lies
// inside r, edges included.
func (c *Controller) PointsInRect(r Rect) []int {
	var inside []int
	for i := range c.points {
		sp, ok := c.screenPosition(i)
		if ok && r.Contains(sp.X, sp.Y) {
			inside = append(inside, i)
		}
	}
	return inside
}

// HitTest returns the first visible point within the hit radius of (x, y).
func (c *Controller) HitTest(x, y float64) (int, bool) {
	radiusSq := c.opts.HitRadius * c.opts.HitRadius
	for i := range c.points {
		sp, ok := c.screenPosition(i)
		if !ok {
			continue
		}
		dx, dy := sp.X-x, sp.Y-y
		if dx*dx+dy*dy <= radiusSq {
			return i, true
		}
	}
	return 0, false
}

func (c *Controller) screenPosition(i int) (ScreenPoint, bool) {
	if !c.filters.Visible(c.points[i]) {
		return ScreenPoint{}, false
	}
	sp := ProjectToScreen(c.points[i], c.mode, c.view, c.size)
	return sp, !sp.Culled
}

// IsVisible reports whether point i passes the current filters.
func (c *Controller) IsVisible(i int) bool {
	return i >= 0 && i < len(c.points) && c.filters.Visible(c.points[i])
}

// VisibleCount counts points passing the current filters.
func (c *Controller) VisibleCount() int {
	n := 0
	for i := range c.points {
		if c.filters.Visible(c.points[i]) {
			n++
		}
	}
	return n
}

// Selected returns the selected indices in ascending order.
func (c *Controller) Selected() []int { return c.selection.Indices() }

// IsSelected reports whether point i is selected.
func (c *Controller) IsSelected(i int) bool { return c.selection.Has(i) }

// SelectedPoints returns the selected points in index order.
func (c *Controller) SelectedPoints() []points.Point {
	indices := c.selection.Indices()
	out := make([]points.Point, len(indices))
	for n, i := range indices {
		out[n] = c.points[i]
	}
	return out
}

// ReplaceSelection makes indices the whole selection. Out-of-range indices
// are ignored.
func (c *Controller) ReplaceSelection(indices []int) {
	valid := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(c.points) {
			valid = append(valid, i)
		}
	}
	c.selection.Replace(valid)
	c.scheduler.Invalidate()
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.selection.Clear()
	c.scheduler.Invalidate()
}

// ApplySearch ranks every point against query and replaces the selection
// with the top matches. The matches are returned best first.
func (c *Controller) ApplySearch(query []float32) []Match {
	matches := RankBySimilarity(query, c.points, MaxSearchResults)
	indices := make([]int, len(matches))
	for i, m := range matches {
		indices[i] = m.Index
	}
	c.ReplaceSelection(indices)
	return matches
}

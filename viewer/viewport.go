// Package viewer is the interactive engine behind every dupescope front end:
// camera state for the 2D and 3D views, visibility filters, the selection
// gesture machine, frame-coalesced painting and semantic search ranking.
//
// Everything here is single-threaded. A Controller is owned by one event
// loop; handlers mutate it to completion before the next event is handled.
// The only blocking work, the search embedding request, runs outside the
// loop and reports back through SearchClient.Finish.
package viewer

import (
	"math"

	"github.com/alDuncanson/dupescope/points"
)

// Mode selects the flat or the rotatable perspective view.
type Mode int

const (
	Mode2D Mode = iota
	Mode3D
)

func (m Mode) String() string {
	if m == Mode3D {
		return "3d"
	}
	return "2d"
}

// Size is the drawable area in canvas units.
type Size struct {
	Width, Height float64
}

// ViewState2D is the flat view's affine transform.
type ViewState2D struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// ViewState3D is the perspective view's camera. RotateY is unbounded and
// wraps through the trigonometry; RotateX is clamped short of ±π/2.
type ViewState3D struct {
	RotateX float64
	RotateY float64
	Zoom    float64
	OffsetX float64
	OffsetY float64
}

// View bundles both camera states so switching modes keeps each one.
type View struct {
	Flat ViewState2D
	Deep ViewState3D
}

// ScreenPoint is a point's position on the canvas. Depth grows toward the
// viewer, so ascending order is back to front. Culled points are behind the
// near plane and must be neither drawn nor hit-tested.
type ScreenPoint struct {
	X, Y   float64
	Depth  float64
	Culled bool
}

const (
	MinScale = 0.2
	MaxScale = 40.0
	MinZoom  = 0.2
	MaxZoom  = 20.0

	// MaxPitch keeps the camera from tipping over the pole.
	MaxPitch = math.Pi/2 - 0.01

	// perspective is k in 1 / (1 + z*k).
	perspective = 0.6
	// nearPlane culls points once 1 + z*k falls to this value.
	nearPlane = 0.1

	// Default flat-view margin as a fraction of the canvas.
	defaultMargin = 0.05
)

// DefaultView fits the unit square into size with a small margin.
func DefaultView(size Size) View {
	scale := 1 - 2*defaultMargin
	return View{
		Flat: ViewState2D{
			Scale:   scale,
			OffsetX: size.Width * defaultMargin,
			OffsetY: size.Height * defaultMargin,
		},
		Deep: ViewState3D{
			RotateX: -0.35,
			RotateY: 0.6,
			Zoom:    0.8,
		},
	}
}

// ProjectToScreen maps a normalized point to canvas coordinates. It has no
// side effects and returns the same result for the same arguments.
func ProjectToScreen(p points.Point, mode Mode, view View, size Size) ScreenPoint {
	if mode == Mode2D {
		v := view.Flat
		return ScreenPoint{
			X: p.X*size.Width*v.Scale + v.OffsetX,
			Y: p.Y*size.Height*v.Scale + v.OffsetY,
		}
	}

	v := view.Deep
	x := (p.X3 - 0.5) * v.Zoom
	y := (p.Y3 - 0.5) * v.Zoom
	z := (p.Z3 - 0.5) * v.Zoom

	// Yaw about the vertical axis, then pitch about the horizontal one.
	sinY, cosY := math.Sincos(v.RotateY)
	x1 := x*cosY + z*sinY
	z1 := -x*sinY + z*cosY

	sinX, cosX := math.Sincos(v.RotateX)
	y2 := y*cosX - z1*sinX
	z2 := y*sinX + z1*cosX

	denominator := 1 + z2*perspective
	if denominator <= nearPlane {
		return ScreenPoint{Depth: -z2, Culled: true}
	}
	factor := 1 / denominator

	extent := math.Min(size.Width, size.Height)
	return ScreenPoint{
		X:     size.Width/2 + x1*factor*extent + v.OffsetX,
		Y:     size.Height/2 + y2*factor*extent + v.OffsetY,
		Depth: -z2,
	}
}

// zoomAt scales the flat view about (cx, cy), keeping the content under the
// cursor fixed. The ratio actually applied is limited by the scale bounds.
func (v ViewState2D) zoomAt(cx, cy, factor float64) ViewState2D {
	next := clamp(v.Scale*factor, MinScale, MaxScale)
	ratio := next / v.Scale
	return ViewState2D{
		Scale:   next,
		OffsetX: cx - (cx-v.OffsetX)*ratio,
		OffsetY: cy - (cy-v.OffsetY)*ratio,
	}
}

func (v ViewState3D) zoomBy(factor float64) ViewState3D {
	v.Zoom = clamp(v.Zoom*factor, MinZoom, MaxZoom)
	return v
}

func (v ViewState3D) rotateBy(dYaw, dPitch float64) ViewState3D {
	v.RotateY += dYaw
	v.RotateX = clamp(v.RotateX+dPitch, -MaxPitch, MaxPitch)
	return v
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

package viewer

import (
	"math"
	"testing"

	"github.com/alDuncanson/dupescope/points"
)

func TestProjectToScreen2D(t *testing.T) {
	view := View{Flat: ViewState2D{Scale: 2, OffsetX: 10, OffsetY: -5}}
	size := Size{Width: 200, Height: 100}

	sp := ProjectToScreen(points.Point{X: 0.25, Y: 0.5}, Mode2D, view, size)

	if sp.X != 0.25*200*2+10 || sp.Y != 0.5*100*2-5 {
		t.Errorf("unexpected screen position %+v", sp)
	}
	if sp.Culled {
		t.Error("2D points are never culled")
	}
}

func TestProjectToScreenIsPure(t *testing.T) {
	p := points.Point{X: 0.3, Y: 0.7, X3: 0.2, Y3: 0.9, Z3: 0.4}
	view := DefaultView(Size{Width: 120, Height: 80})
	view.Deep.RotateX = 0.4
	view.Deep.RotateY = 2.1
	size := Size{Width: 120, Height: 80}

	for _, mode := range []Mode{Mode2D, Mode3D} {
		first := ProjectToScreen(p, mode, view, size)
		second := ProjectToScreen(p, mode, view, size)
		if first != second {
			t.Errorf("%s: repeated projection differs: %+v vs %+v", mode, first, second)
		}
	}
}

func TestProjectToScreen3DCentre(t *testing.T) {
	view := View{Deep: ViewState3D{RotateX: 0.7, RotateY: -1.3, Zoom: 3}}
	size := Size{Width: 100, Height: 60}

	sp := ProjectToScreen(points.Point{X3: 0.5, Y3: 0.5, Z3: 0.5}, Mode3D, view, size)

	if math.Abs(sp.X-50) > 1e-9 || math.Abs(sp.Y-30) > 1e-9 || sp.Depth != 0 {
		t.Errorf("centre should map to canvas centre at depth 0, got %+v", sp)
	}
}

func TestProjectToScreen3DPerspective(t *testing.T) {
	view := View{Deep: ViewState3D{Zoom: 1}}
	size := Size{Width: 100, Height: 100}

	near := ProjectToScreen(points.Point{X3: 1, Y3: 0.5, Z3: 0}, Mode3D, view, size)
	far := ProjectToScreen(points.Point{X3: 1, Y3: 0.5, Z3: 1}, Mode3D, view, size)

	if near.Depth <= far.Depth {
		t.Errorf("expected near depth %f > far depth %f", near.Depth, far.Depth)
	}
	if near.X-50 <= far.X-50 {
		t.Errorf("nearer points should spread further from the centre: near %f, far %f", near.X, far.X)
	}

	// x = 0.5, z = -0.5: factor 1 / (1 - 0.5*k).
	expected := 50 + 0.5/(1-0.5*perspective)*100
	if math.Abs(near.X-expected) > 1e-9 {
		t.Errorf("expected x %f, got %f", expected, near.X)
	}
}

func TestProjectToScreenCullsBehindCamera(t *testing.T) {
	view := View{Deep: ViewState3D{Zoom: 4}}
	size := Size{Width: 100, Height: 100}

	sp := ProjectToScreen(points.Point{X3: 0.5, Y3: 0.5, Z3: 0}, Mode3D, view, size)
	if !sp.Culled {
		t.Errorf("expected point past the near plane to be culled, got %+v", sp)
	}

	sp = ProjectToScreen(points.Point{X3: 0.5, Y3: 0.5, Z3: 1}, Mode3D, view, size)
	if sp.Culled {
		t.Error("point far from the camera should not be culled")
	}
}

func TestYawQuarterTurn(t *testing.T) {
	view := View{Deep: ViewState3D{Zoom: 1, RotateY: math.Pi / 2}}
	size := Size{Width: 100, Height: 100}

	// Yaw by 90° turns +x into -z, toward the camera.
	sp := ProjectToScreen(points.Point{X3: 1, Y3: 0.5, Z3: 0.5}, Mode3D, view, size)
	if math.Abs(sp.X-50) > 1e-9 || math.Abs(sp.Depth-0.5) > 1e-9 {
		t.Errorf("unexpected rotated position %+v", sp)
	}
}

func TestZoomAtKeepsCursorAnchored(t *testing.T) {
	v := ViewState2D{Scale: 1}
	size := Size{Width: 100, Height: 100}
	p := points.Point{X: 0.3, Y: 0.4}

	tests := []struct {
		name   string
		factor float64
		scale  float64
	}{
		{"zoom in", 2, 2},
		{"zoom out", 0.5, 0.5},
		{"clamped high", 1000, MaxScale},
		{"clamped low", 0.0001, MinScale},
	}

	for _, tc := range tests {
		zoomed := v.zoomAt(30, 40, tc.factor)
		if math.Abs(zoomed.Scale-tc.scale) > 1e-12 {
			t.Errorf("%s: expected scale %g, got %g", tc.name, tc.scale, zoomed.Scale)
		}
		sp := ProjectToScreen(p, Mode2D, View{Flat: zoomed}, size)
		if math.Abs(sp.X-30) > 1e-9 || math.Abs(sp.Y-40) > 1e-9 {
			t.Errorf("%s: point under cursor moved to (%f, %f)", tc.name, sp.X, sp.Y)
		}
	}
}

func TestRotateClampsPitch(t *testing.T) {
	v := ViewState3D{Zoom: 1}

	up := v.rotateBy(0, 100)
	if up.RotateX != MaxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", MaxPitch, up.RotateX)
	}
	down := v.rotateBy(0, -100)
	if down.RotateX != -MaxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", -MaxPitch, down.RotateX)
	}
	spun := v.rotateBy(100, 0)
	if spun.RotateY != 100 {
		t.Errorf("yaw should be unbounded, got %f", spun.RotateY)
	}
}

func TestRectNormalize(t *testing.T) {
	left, right, top, bottom := Rect{X0: 9, Y0: 2, X1: 3, Y1: 7}.Normalize()
	if left != 3 || right != 9 || top != 2 || bottom != 7 {
		t.Errorf("unexpected edges %f %f %f %f", left, right, top, bottom)
	}

	r := Rect{X0: 10, Y0: 10, X1: 0, Y1: 0}
	if !r.Contains(0, 0) || !r.Contains(10, 5) || r.Contains(10.01, 5) {
		t.Error("Contains should include edges and nothing beyond")
	}
}

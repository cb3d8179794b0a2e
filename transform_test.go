package reel

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertMatrix(t *testing.T, name string, got, want [6]float64) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
		}
	}
}

// --- Transform.Matrix ---

func TestTransformMatrixIdentity(t *testing.T) {
	assertMatrix(t, "identity", IdentityTransform.Matrix(), identityAffine)
}

func TestTransformMatrixTranslation(t *testing.T) {
	tr := IdentityTransform
	tr.Position = Vec2{10, 20}
	assertMatrix(t, "translation", tr.Matrix(), [6]float64{1, 0, 0, 1, 10, 20})
}

func TestTransformMatrixScale(t *testing.T) {
	tr := IdentityTransform
	tr.Scale = Vec2{2, 3}
	assertMatrix(t, "scale", tr.Matrix(), [6]float64{2, 0, 0, 3, 0, 0})
}

func TestTransformMatrixRotation90(t *testing.T) {
	tr := IdentityTransform
	tr.Rotation = 90
	// cos(90)=0, sin(90)=1 → a=0, b=1, c=-1, d=0
	assertMatrix(t, "rot90", tr.Matrix(), [6]float64{0, 1, -1, 0, 0, 0})
}

func TestTransformMatrixAnchor(t *testing.T) {
	tr := IdentityTransform
	tr.Position = Vec2{100, 200}
	tr.Anchor = Vec2{16, 16}
	// T(100,200) * T(-16,-16) = [1,0,0,1, 84, 184]
	assertMatrix(t, "anchor", tr.Matrix(), [6]float64{1, 0, 0, 1, 84, 184})
}

func TestTransformMatrixCombined(t *testing.T) {
	tr := Transform{Position: Vec2{50, 100}, Scale: Vec2{2, 2}, Rotation: 90, Opacity: 1}
	// Scale(2,2) then Rotate(90°):
	// a = 0, b = 2, c = -2, d = 0, tx = 50, ty = 100
	assertMatrix(t, "combined", tr.Matrix(), [6]float64{0, 2, -2, 0, 50, 100})
}

func TestTransformAnchorStaysAtPosition(t *testing.T) {
	tr := Transform{Position: Vec2{300, 200}, Scale: Vec2{0.5, 2}, Anchor: Vec2{40, 10}, Rotation: 33, Opacity: 1}
	x, y := tr.LocalToCanvas(40, 10)
	assertNear(t, "anchor x", x, 300)
	assertNear(t, "anchor y", y, 200)

	lx, ly := tr.CanvasToLocal(x, y)
	assertNear(t, "back x", lx, 40)
	assertNear(t, "back y", ly, 10)
}

// --- multiplyAffine ---

func TestMultiplyAffineIdentity(t *testing.T) {
	m := [6]float64{2, 1, 3, 4, 5, 6}
	assertMatrix(t, "id*m", multiplyAffine(identityAffine, m), m)
	assertMatrix(t, "m*id", multiplyAffine(m, identityAffine), m)
}

func TestMultiplyAffineTranslations(t *testing.T) {
	a := [6]float64{1, 0, 0, 1, 10, 20}
	b := [6]float64{1, 0, 0, 1, 5, 3}
	assertMatrix(t, "translations", multiplyAffine(a, b), [6]float64{1, 0, 0, 1, 15, 23})
}

// --- invertAffine ---

func TestInvertAffine(t *testing.T) {
	m := [6]float64{2, 0, 0, 3, 10, 20}
	assertMatrix(t, "m*inv=id", multiplyAffine(m, invertAffine(m)), identityAffine)
}

func TestInvertAffineSingular(t *testing.T) {
	assertMatrix(t, "singular", invertAffine([6]float64{0, 0, 0, 0, 5, 5}), identityAffine)
}

// --- parents ---

func TestWorldMatrixAppliesParentsOutermostFirst(t *testing.T) {
	outer := IdentityTransform
	outer.Position = Vec2{100, 0}
	inner := IdentityTransform
	inner.Scale = Vec2{2, 2}
	own := IdentityTransform
	own.Position = Vec2{5, 5}

	m := worldMatrix([]Transform{outer, inner}, own)
	x, y := transformPoint(m, 0, 0)
	assertNear(t, "x", x, 110)
	assertNear(t, "y", y, 10)
}

func TestWorldOpacityMultiplies(t *testing.T) {
	half := IdentityTransform
	half.Opacity = 0.5
	assertNear(t, "opacity", worldOpacity([]Transform{half, half}, half), 0.125)
}

func TestTransformRect(t *testing.T) {
	tr := IdentityTransform
	tr.Rotation = 90
	got := transformRect(tr.Matrix(), Rect{0, 0, 10, 20})
	assertNear(t, "x", got.X, -20)
	assertNear(t, "y", got.Y, 0)
	assertNear(t, "w", got.Width, 20)
	assertNear(t, "h", got.Height, 10)
}

package reel

import "math"

// Transform places a frame object on the canvas. Scale and Opacity are
// factors (1 = 100%); Rotation is in degrees, clockwise on screen.
type Transform struct {
	Position Vec2
	Scale    Vec2
	Anchor   Vec2
	Rotation float64
	Opacity  float64
}

// IdentityTransform leaves content where it is.
var IdentityTransform = Transform{Scale: Vec2{1, 1}, Opacity: 1}

// identityAffine is the identity affine matrix.
var identityAffine = [6]float64{1, 0, 0, 1, 0, 0}

// Matrix computes the affine matrix for t. Returns [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Translate(-Anchor) -> Scale -> Rotate -> Translate(Position)
func (t Transform) Matrix() [6]float64 {
	sx, sy := t.Scale.X, t.Scale.Y
	sin, cos := math.Sincos(t.Rotation * math.Pi / 180)

	// After Scale * Translate(-anchor):
	//   a=sx, b=0, c=0, d=sy, tx=-ax*sx, ty=-ay*sy
	preTx := -t.Anchor.X * sx
	preTy := -t.Anchor.Y * sy

	return [6]float64{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		cos*preTx - sin*preTy + t.Position.X,
		sin*preTx + cos*preTy + t.Position.Y,
	}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular (determinant ~ 0).
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityAffine
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// worldMatrix composes the parent transforms (outermost first) with the
// object's own transform.
func worldMatrix(parents []Transform, own Transform) [6]float64 {
	m := identityAffine
	for _, p := range parents {
		m = multiplyAffine(m, p.Matrix())
	}
	return multiplyAffine(m, own.Matrix())
}

// worldOpacity multiplies the opacity of every level.
func worldOpacity(parents []Transform, own Transform) float64 {
	a := own.Opacity
	for _, p := range parents {
		a *= p.Opacity
	}
	return a
}

// transformRect returns the axis-aligned bounds of r after applying m.
func transformRect(m [6]float64, r Rect) Rect {
	xs := [4]float64{r.X, r.X + r.Width, r.X, r.X + r.Width}
	ys := [4]float64{r.Y, r.Y, r.Y + r.Height, r.Y + r.Height}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range 4 {
		x, y := transformPoint(m, xs[i], ys[i])
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// LocalToCanvas converts a point in the object's local space to canvas
// space.
func (t Transform) LocalToCanvas(lx, ly float64) (float64, float64) {
	return transformPoint(t.Matrix(), lx, ly)
}

// CanvasToLocal converts a canvas point into the object's local space.
func (t Transform) CanvasToLocal(cx, cy float64) (float64, float64) {
	return transformPoint(invertAffine(t.Matrix()), cx, cy)
}

package reel

import (
	"math"
	"strings"
)

// applyEffectors folds effector snapshots into an object's transform.
// Effectors run in application order. Unknown types are skipped.
//
//	effector.transform  tx, ty, scale_x, scale_y, rotation
//	effector.opacity    opacity (0-100), mode Set | Add | Multiply
func applyEffectors(t Transform, effectors []EffectSnapshot) Transform {
	for i := range effectors {
		e := &effectors[i]
		switch strings.TrimPrefix(e.Type, "effector.") {
		case "transform":
			t.Position.X += e.Number("tx", 0)
			t.Position.Y += e.Number("ty", 0)
			t.Scale.X *= e.Number("scale_x", 1)
			t.Scale.Y *= e.Number("scale_y", 1)
			t.Rotation += e.Number("rotation", 0)
		case "opacity":
			v := e.Number("opacity", 0) / 100
			switch strings.ToLower(e.Text("mode", "set")) {
			case "add":
				t.Opacity += v
			case "multiply":
				t.Opacity *= v
			default:
				t.Opacity = v
			}
			t.Opacity = clamp01(t.Opacity)
		default:
			logger().Debug("reel: effector not supported by renderer", "type", e.Type)
		}
	}
	return t
}

// Backplate shapes.
const (
	backplateRect        = "rect"
	backplateRoundedRect = "rounded_rect"
	backplateCircle      = "circle"
)

// backplate is a decoration drawn behind an object's content.
type backplate struct {
	Path  ShapePath
	Color Color
}

// backplates builds the decorations for content with the given local
// bounds. Only decorator.backplate is drawn; it covers the whole block.
func backplates(decorators []EffectSnapshot, bounds Rect) []backplate {
	var out []backplate
	for i := range decorators {
		d := &decorators[i]
		if strings.TrimPrefix(d.Type, "decorator.") != "backplate" {
			logger().Debug("reel: decorator not supported by renderer", "type", d.Type)
			continue
		}
		pad := d.Number("padding", 4)
		r := Rect{
			X:      bounds.X - pad,
			Y:      bounds.Y - pad,
			Width:  bounds.Width + 2*pad,
			Height: bounds.Height + 2*pad,
		}
		var path ShapePath
		switch strings.ToLower(d.Text("shape", backplateRect)) {
		case backplateRoundedRect, "roundrect":
			path = roundedRectPath(r, d.Number("radius", 0))
		case backplateCircle:
			path = ellipsePath(r)
		default:
			path = roundedRectPath(r, 0)
		}
		out = append(out, backplate{Path: path, Color: d.Color("color", Color{0, 0, 0, 128})})
	}
	return out
}

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// roundedRectPath returns a closed rectangle with corners of the given
// radius, clamped to half the shorter side.
func roundedRectPath(r Rect, radius float64) ShapePath {
	x0, y0, x1, y1 := r.X, r.Y, r.X+r.Width, r.Y+r.Height
	radius = math.Max(0, math.Min(radius, math.Min(r.Width, r.Height)/2))
	if radius == 0 {
		return ShapePath{
			{Op: OpMoveTo, Pts: []Vec2{{x0, y0}}},
			{Op: OpLineTo, Pts: []Vec2{{x1, y0}}},
			{Op: OpLineTo, Pts: []Vec2{{x1, y1}}},
			{Op: OpLineTo, Pts: []Vec2{{x0, y1}}},
			{Op: OpClose},
		}
	}
	k := radius * kappa
	return ShapePath{
		{Op: OpMoveTo, Pts: []Vec2{{x0 + radius, y0}}},
		{Op: OpLineTo, Pts: []Vec2{{x1 - radius, y0}}},
		{Op: OpCubicTo, Pts: []Vec2{{x1 - radius + k, y0}, {x1, y0 + radius - k}, {x1, y0 + radius}}},
		{Op: OpLineTo, Pts: []Vec2{{x1, y1 - radius}}},
		{Op: OpCubicTo, Pts: []Vec2{{x1, y1 - radius + k}, {x1 - radius + k, y1}, {x1 - radius, y1}}},
		{Op: OpLineTo, Pts: []Vec2{{x0 + radius, y1}}},
		{Op: OpCubicTo, Pts: []Vec2{{x0 + radius - k, y1}, {x0, y1 - radius + k}, {x0, y1 - radius}}},
		{Op: OpLineTo, Pts: []Vec2{{x0, y0 + radius}}},
		{Op: OpCubicTo, Pts: []Vec2{{x0, y0 + radius - k}, {x0 + radius - k, y0}, {x0 + radius, y0}}},
		{Op: OpClose},
	}
}

// ellipsePath returns the closed ellipse inscribed in r.
func ellipsePath(r Rect) ShapePath {
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	rx, ry := r.Width/2, r.Height/2
	kx, ky := rx*kappa, ry*kappa
	return ShapePath{
		{Op: OpMoveTo, Pts: []Vec2{{cx + rx, cy}}},
		{Op: OpCubicTo, Pts: []Vec2{{cx + rx, cy + ky}, {cx + kx, cy + ry}, {cx, cy + ry}}},
		{Op: OpCubicTo, Pts: []Vec2{{cx - kx, cy + ry}, {cx - rx, cy + ky}, {cx - rx, cy}}},
		{Op: OpCubicTo, Pts: []Vec2{{cx - rx, cy - ky}, {cx - kx, cy - ry}, {cx, cy - ry}}},
		{Op: OpCubicTo, Pts: []Vec2{{cx + kx, cy - ry}, {cx + rx, cy - ky}, {cx + rx, cy}}},
		{Op: OpClose},
	}
}

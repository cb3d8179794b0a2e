package reel

import (
	"math"
	"math/rand/v2"
)

// polyline is one flattened subpath.
type polyline struct {
	Pts    []Vec2
	Closed bool
}

// curveSteps is the number of line segments each curve is flattened into.
const curveSteps = 16

// flatten converts a path to polylines, approximating curves with
// curveSteps segments each.
func flatten(p ShapePath) []polyline {
	var out []polyline
	var cur *polyline
	var pen Vec2
	for _, seg := range p {
		switch seg.Op {
		case OpMoveTo:
			out = append(out, polyline{Pts: []Vec2{seg.Pts[0]}})
			cur = &out[len(out)-1]
			pen = seg.Pts[0]
			continue
		case OpClose:
			if cur != nil {
				cur.Closed = true
				pen = cur.Pts[0]
				cur = nil
			}
			continue
		}
		if cur == nil {
			// Drawing after a close continues from the subpath start.
			out = append(out, polyline{Pts: []Vec2{pen}})
			cur = &out[len(out)-1]
		}
		switch seg.Op {
		case OpLineTo:
			cur.Pts = append(cur.Pts, seg.Pts[0])
		case OpQuadTo:
			c, e := seg.Pts[0], seg.Pts[1]
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				u := 1 - t
				cur.Pts = append(cur.Pts, Vec2{
					u*u*pen.X + 2*u*t*c.X + t*t*e.X,
					u*u*pen.Y + 2*u*t*c.Y + t*t*e.Y,
				})
			}
		case OpCubicTo:
			c1, c2, e := seg.Pts[0], seg.Pts[1], seg.Pts[2]
			for i := 1; i <= curveSteps; i++ {
				t := float64(i) / curveSteps
				u := 1 - t
				a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
				cur.Pts = append(cur.Pts, Vec2{
					a*pen.X + b*c1.X + c*c2.X + d*e.X,
					a*pen.Y + b*c1.Y + c*c2.Y + d*e.Y,
				})
			}
		}
		pen = cur.Pts[len(cur.Pts)-1]
	}
	return out
}

// points returns the vertices of pl, repeating the first one at the end
// when it is closed.
func (pl polyline) points() []Vec2 {
	if pl.Closed && len(pl.Pts) > 1 {
		return append(pl.Pts[:len(pl.Pts):len(pl.Pts)], pl.Pts[0])
	}
	return pl.Pts
}

func dist(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func lerpVec(a, b Vec2, t float64) Vec2 {
	return Vec2{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// cumulative returns the running arc length at each point.
func cumulative(pts []Vec2) []float64 {
	acc := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		acc[i] = acc[i-1] + dist(pts[i-1], pts[i])
	}
	return acc
}

// slicePolyline returns the open piece of pts between arc lengths from and
// to.
func slicePolyline(pts []Vec2, acc []float64, from, to float64) []Vec2 {
	if len(pts) < 2 || to <= from {
		return nil
	}
	at := func(s float64) (Vec2, int) {
		for i := 1; i < len(pts); i++ {
			if s <= acc[i] {
				seg := acc[i] - acc[i-1]
				if seg == 0 {
					return pts[i], i
				}
				return lerpVec(pts[i-1], pts[i], (s-acc[i-1])/seg), i
			}
		}
		return pts[len(pts)-1], len(pts) - 1
	}
	start, si := at(from)
	end, ei := at(to)
	out := []Vec2{start}
	for i := si; i < ei; i++ {
		out = append(out, pts[i])
	}
	return append(out, end)
}

// applyPathEffects flattens p and runs the effects over it in order.
func applyPathEffects(p ShapePath, effects []PathEffect) []polyline {
	lines := flatten(p)
	for _, e := range effects {
		switch e.Kind {
		case PathTrim:
			lines = trimPolylines(lines, e.Start, e.End)
		case PathDash:
			lines = dashPolylines(lines, e.Intervals, e.Phase)
		case PathCorner:
			lines = roundCorners(lines, e.Radius)
		case PathDiscrete:
			lines = discretePolylines(lines, e.SegLength, e.Deviation, e.Seed)
		}
	}
	return lines
}

// trimPolylines keeps the [start, end] fraction of the total path length.
func trimPolylines(lines []polyline, start, end float64) []polyline {
	start, end = clamp01(start), clamp01(end)
	if start == 0 && end == 1 {
		return lines
	}
	if end <= start {
		return nil
	}
	total := 0.0
	accs := make([][]float64, len(lines))
	for i, pl := range lines {
		accs[i] = cumulative(pl.points())
		total += accs[i][len(accs[i])-1]
	}
	from, to := start*total, end*total
	var out []polyline
	offset := 0.0
	for i, pl := range lines {
		pts := pl.points()
		acc := accs[i]
		length := acc[len(acc)-1]
		lo, hi := max(from-offset, 0), min(to-offset, length)
		if hi > lo {
			out = append(out, polyline{Pts: slicePolyline(pts, acc, lo, hi)})
		}
		offset += length
	}
	return out
}

// dashPolylines cuts every subpath into on/off runs. An odd interval list
// is repeated to make it even; a list without a positive total is a no-op.
func dashPolylines(lines []polyline, intervals []float64, phase float64) []polyline {
	if len(intervals)%2 == 1 {
		intervals = append(intervals[:len(intervals):len(intervals)], intervals...)
	}
	period := 0.0
	for _, v := range intervals {
		if v < 0 {
			return lines
		}
		period += v
	}
	if period <= 0 {
		return lines
	}
	var out []polyline
	for _, pl := range lines {
		pts := pl.points()
		acc := cumulative(pts)
		length := acc[len(acc)-1]

		// Find where the phase lands in the pattern.
		idx := 0
		rem := math.Mod(phase, period)
		if rem < 0 {
			rem += period
		}
		for rem >= intervals[idx] {
			rem -= intervals[idx]
			idx = (idx + 1) % len(intervals)
		}
		pos := -rem
		for pos < length {
			next := pos + intervals[idx]
			if idx%2 == 0 && next > 0 {
				if piece := slicePolyline(pts, acc, max(pos, 0), min(next, length)); len(piece) > 1 {
					out = append(out, polyline{Pts: piece})
				}
			}
			pos = next
			idx = (idx + 1) % len(intervals)
		}
	}
	return out
}

// roundCorners replaces each interior vertex with a quadratic arc that
// starts and ends radius away from it along the adjacent edges.
func roundCorners(lines []polyline, radius float64) []polyline {
	if radius <= 0 {
		return lines
	}
	out := make([]polyline, 0, len(lines))
	for _, pl := range lines {
		n := len(pl.Pts)
		if n < 3 {
			out = append(out, pl)
			continue
		}
		var pts []Vec2
		corner := func(prev, v, next Vec2) {
			r := min(radius, dist(prev, v)/2, dist(v, next)/2)
			a := lerpVec(v, prev, r/max(dist(prev, v), 1e-12))
			b := lerpVec(v, next, r/max(dist(v, next), 1e-12))
			for i := 0; i <= curveSteps/2; i++ {
				t := float64(i) / (curveSteps / 2)
				u := 1 - t
				pts = append(pts, Vec2{
					u*u*a.X + 2*u*t*v.X + t*t*b.X,
					u*u*a.Y + 2*u*t*v.Y + t*t*b.Y,
				})
			}
		}
		if pl.Closed {
			for i := range n {
				corner(pl.Pts[(i+n-1)%n], pl.Pts[i], pl.Pts[(i+1)%n])
			}
		} else {
			pts = append(pts, pl.Pts[0])
			for i := 1; i < n-1; i++ {
				corner(pl.Pts[i-1], pl.Pts[i], pl.Pts[i+1])
			}
			pts = append(pts, pl.Pts[n-1])
		}
		out = append(out, polyline{Pts: pts, Closed: pl.Closed})
	}
	return out
}

// discretePolylines resamples every subpath at segLength and pushes each
// new vertex up to deviation away along both axes. The same seed always
// produces the same shape.
func discretePolylines(lines []polyline, segLength, deviation float64, seed uint64) []polyline {
	if segLength <= 0 {
		return lines
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	jitter := func() float64 { return (rng.Float64()*2 - 1) * deviation }
	out := make([]polyline, 0, len(lines))
	for _, pl := range lines {
		pts := pl.points()
		acc := cumulative(pts)
		length := acc[len(acc)-1]
		n := max(int(math.Ceil(length/segLength)), 1)
		res := make([]Vec2, 0, n+1)
		for i := 0; i <= n; i++ {
			s := length * float64(i) / float64(n)
			p := slicePolyline(pts, acc, 0, s)
			v := pts[0]
			if len(p) > 0 {
				v = p[len(p)-1]
			}
			if i > 0 && i < n {
				v.X += jitter()
				v.Y += jitter()
			}
			res = append(res, v)
		}
		if pl.Closed && len(res) > 1 {
			res = res[:len(res)-1]
		}
		out = append(out, polyline{Pts: res, Closed: pl.Closed})
	}
	return out
}

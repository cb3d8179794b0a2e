package reel

import (
	"fmt"
	"math"
	"strconv"
)

// PathOp is an absolute path drawing command.
type PathOp uint8

const (
	OpMoveTo PathOp = iota
	OpLineTo
	OpQuadTo
	OpCubicTo
	OpClose
)

// PathSegment is one absolute command. Pts holds 1 point for MoveTo and
// LineTo, 2 for QuadTo (control, end), 3 for CubicTo and none for Close.
type PathSegment struct {
	Op  PathOp
	Pts []Vec2
}

// ShapePath is a parsed SVG path in absolute coordinates.
type ShapePath []PathSegment

// ParseSVGPath parses SVG path data. Relative commands are made absolute,
// H and V become lines, S and T are expanded to full curves and elliptical
// arcs are approximated by cubic curves.
func ParseSVGPath(d string) (ShapePath, error) {
	sc := pathScanner{src: d}
	var (
		out     ShapePath
		cur     Vec2
		start   Vec2
		lastCP  Vec2
		lastCmd byte
		cmd     byte
	)
	for {
		sc.skipSeparators()
		if sc.done() {
			break
		}
		if c := sc.peek(); isPathCommand(c) {
			cmd = c
			sc.pos++
		} else if cmd == 0 || cmd == 'Z' || cmd == 'z' {
			return nil, fmt.Errorf("reel: svg path: expected command at %d", sc.pos)
		} else if cmd == 'M' {
			cmd = 'L' // implicit lineto after moveto
		} else if cmd == 'm' {
			cmd = 'l'
		}

		rel := cmd >= 'a'
		upper := cmd
		if rel {
			upper = cmd - 'a' + 'A'
		}
		abs := func(p Vec2) Vec2 {
			if rel {
				return Vec2{cur.X + p.X, cur.Y + p.Y}
			}
			return p
		}

		switch upper {
		case 'Z':
			out = append(out, PathSegment{Op: OpClose})
			cur = start
			lastCmd = 'Z'
			continue
		case 'M', 'L':
			p, err := sc.point()
			if err != nil {
				return nil, err
			}
			p = abs(p)
			op := OpLineTo
			if upper == 'M' {
				op = OpMoveTo
				start = p
			}
			out = append(out, PathSegment{Op: op, Pts: []Vec2{p}})
			cur = p
		case 'H':
			x, err := sc.number()
			if err != nil {
				return nil, err
			}
			if rel {
				x += cur.X
			}
			cur = Vec2{x, cur.Y}
			out = append(out, PathSegment{Op: OpLineTo, Pts: []Vec2{cur}})
		case 'V':
			y, err := sc.number()
			if err != nil {
				return nil, err
			}
			if rel {
				y += cur.Y
			}
			cur = Vec2{cur.X, y}
			out = append(out, PathSegment{Op: OpLineTo, Pts: []Vec2{cur}})
		case 'C':
			pts, err := sc.points(3)
			if err != nil {
				return nil, err
			}
			c1, c2, end := abs(pts[0]), abs(pts[1]), abs(pts[2])
			out = append(out, PathSegment{Op: OpCubicTo, Pts: []Vec2{c1, c2, end}})
			lastCP, cur = c2, end
		case 'S':
			pts, err := sc.points(2)
			if err != nil {
				return nil, err
			}
			c1 := cur
			if lastCmd == 'C' || lastCmd == 'S' {
				c1 = reflectControl(lastCP, cur)
			}
			c2, end := abs(pts[0]), abs(pts[1])
			out = append(out, PathSegment{Op: OpCubicTo, Pts: []Vec2{c1, c2, end}})
			lastCP, cur = c2, end
		case 'Q':
			pts, err := sc.points(2)
			if err != nil {
				return nil, err
			}
			c, end := abs(pts[0]), abs(pts[1])
			out = append(out, PathSegment{Op: OpQuadTo, Pts: []Vec2{c, end}})
			lastCP, cur = c, end
		case 'T':
			p, err := sc.point()
			if err != nil {
				return nil, err
			}
			c := cur
			if lastCmd == 'Q' || lastCmd == 'T' {
				c = reflectControl(lastCP, cur)
			}
			end := abs(p)
			out = append(out, PathSegment{Op: OpQuadTo, Pts: []Vec2{c, end}})
			lastCP, cur = c, end
		case 'A':
			vals := make([]float64, 7)
			for i := range vals {
				v, err := sc.number()
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			end := abs(Vec2{vals[5], vals[6]})
			out = append(out, arcToCubics(cur, vals[0], vals[1], vals[2], vals[3] != 0, vals[4] != 0, end)...)
			cur = end
		}
		lastCmd = upper
	}
	return out, nil
}

// Bounds returns the axis-aligned box of every point in the path,
// control points included. ok is false for an empty path.
func (p ShapePath) Bounds() (Rect, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, seg := range p {
		for _, pt := range seg.Pts {
			found = true
			minX = math.Min(minX, pt.X)
			minY = math.Min(minY, pt.Y)
			maxX = math.Max(maxX, pt.X)
			maxY = math.Max(maxY, pt.Y)
		}
	}
	if !found {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

func reflectControl(cp, about Vec2) Vec2 {
	return Vec2{2*about.X - cp.X, 2*about.Y - cp.Y}
}

// arcToCubics converts an SVG endpoint-parameterized arc to cubic segments
// of at most 90 degrees each.
func arcToCubics(from Vec2, rx, ry, rotDeg float64, large, sweep bool, to Vec2) []PathSegment {
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 || (from == to) {
		return []PathSegment{{Op: OpLineTo, Pts: []Vec2{to}}}
	}
	sinPhi, cosPhi := math.Sincos(rotDeg * math.Pi / 180)
	dx, dy := (from.X-to.X)/2, (from.Y-to.Y)/2
	x1 := cosPhi*dx + sinPhi*dy
	y1 := -sinPhi*dx + cosPhi*dy

	if l := x1*x1/(rx*rx) + y1*y1/(ry*ry); l > 1 {
		s := math.Sqrt(l)
		rx, ry = rx*s, ry*s
	}
	num := rx*rx*ry*ry - rx*rx*y1*y1 - ry*ry*x1*x1
	den := rx*rx*y1*y1 + ry*ry*x1*x1
	coef := math.Sqrt(math.Max(0, num/den))
	if large == sweep {
		coef = -coef
	}
	cx1 := coef * rx * y1 / ry
	cy1 := -coef * ry * x1 / rx
	cx := cosPhi*cx1 - sinPhi*cy1 + (from.X+to.X)/2
	cy := sinPhi*cx1 + cosPhi*cy1 + (from.Y+to.Y)/2

	angle := func(ux, uy, vx, vy float64) float64 {
		return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
	}
	theta := angle(1, 0, (x1-cx1)/rx, (y1-cy1)/ry)
	delta := angle((x1-cx1)/rx, (y1-cy1)/ry, (-x1-cx1)/rx, (-y1-cy1)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta) / (math.Pi / 2)))
	step := delta / float64(n)
	k := 4.0 / 3.0 * math.Tan(step/4)
	point := func(a float64) (Vec2, Vec2) {
		sa, ca := math.Sincos(a)
		px := rx * ca
		py := ry * sa
		tx := -rx * sa
		ty := ry * ca
		return Vec2{cosPhi*px - sinPhi*py + cx, sinPhi*px + cosPhi*py + cy},
			Vec2{cosPhi*tx - sinPhi*ty, sinPhi*tx + cosPhi*ty}
	}

	segs := make([]PathSegment, 0, n)
	a := theta
	p0, d0 := point(a)
	for i := 0; i < n; i++ {
		p1, d1 := point(a + step)
		end := p1
		if i == n-1 {
			end = to
		}
		segs = append(segs, PathSegment{Op: OpCubicTo, Pts: []Vec2{
			{p0.X + k*d0.X, p0.Y + k*d0.Y},
			{p1.X - k*d1.X, p1.Y - k*d1.Y},
			end,
		}})
		a += step
		p0, d0 = p1, d1
	}
	return segs
}

func isPathCommand(c byte) bool {
	switch c {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's',
		'Q', 'q', 'T', 't', 'A', 'a', 'Z', 'z':
		return true
	}
	return false
}

type pathScanner struct {
	src string
	pos int
}

func (s *pathScanner) done() bool { return s.pos >= len(s.src) }

func (s *pathScanner) peek() byte { return s.src[s.pos] }

func (s *pathScanner) skipSeparators() {
	for !s.done() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', ',':
			s.pos++
		default:
			return
		}
	}
}

func (s *pathScanner) number() (float64, error) {
	s.skipSeparators()
	begin := s.pos
	if !s.done() && (s.peek() == '-' || s.peek() == '+') {
		s.pos++
	}
	sawDot, sawExp := false, false
scan:
	for !s.done() {
		c := s.peek()
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !sawDot && !sawExp:
			sawDot = true
		case (c == 'e' || c == 'E') && !sawExp && s.pos > begin:
			sawExp = true
			if s.pos+1 < len(s.src) && (s.src[s.pos+1] == '-' || s.src[s.pos+1] == '+') {
				s.pos++
			}
		default:
			break scan
		}
		s.pos++
	}
	if s.pos == begin {
		return 0, fmt.Errorf("reel: svg path: expected number at %d", begin)
	}
	f, err := strconv.ParseFloat(s.src[begin:s.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("reel: svg path: %w", err)
	}
	return f, nil
}

func (s *pathScanner) point() (Vec2, error) {
	x, err := s.number()
	if err != nil {
		return Vec2{}, err
	}
	y, err := s.number()
	if err != nil {
		return Vec2{}, err
	}
	return Vec2{x, y}, nil
}

func (s *pathScanner) points(n int) ([]Vec2, error) {
	pts := make([]Vec2, n)
	for i := range pts {
		p, err := s.point()
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	return pts, nil
}

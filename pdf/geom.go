package pdf

import "math"

// Rect is an axis-aligned rectangle in PDF user space: origin at the
// bottom-left corner of the page, Y growing upward. All box math in this
// package goes through these methods so the numerically delicate parts stay
// in one place.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func NewRect(x0, y0, x1, y1 float64) Rect {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

func (r Rect) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Pad grows the rectangle by m on every side.
func (r Rect) Pad(m float64) Rect {
	return Rect{X0: r.X0 - m, Y0: r.Y0 - m, X1: r.X1 + m, Y1: r.Y1 + m}
}

// Intersects reports whether r and o share any area. Touching edges do not
// count as an intersection.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Clamp restricts r to the given bounds.
func (r Rect) Clamp(bounds Rect) Rect {
	return Rect{
		X0: math.Max(r.X0, bounds.X0),
		Y0: math.Max(r.Y0, bounds.Y0),
		X1: math.Min(r.X1, bounds.X1),
		Y1: math.Min(r.Y1, bounds.Y1),
	}
}

package geometry

// Point is a 2D point in pixel coordinates
type Point struct {
	X, Y float32
}

// Box is an axis-aligned rectangle given by its corners
type Box struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// BoxFromXYWH builds a box from its top-left corner and size
func BoxFromXYWH(x, y, w, h float32) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// Width returns box width
func (b Box) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns the box center point
func (b Box) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Area returns box area, zero for degenerate boxes
func (b Box) Area() float32 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersect returns the overlap of two boxes. ok is false when they do not overlap.
func (b Box) Intersect(o Box) (Box, bool) {
	r := Box{
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2),
		Y2: min(b.Y2, o.Y2),
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return Box{}, false
	}
	return r, true
}

// IoU returns intersection over union. A non-positive union yields 0.
func IoU(a, b Box) float32 {
	inter, ok := a.Intersect(b)
	if !ok {
		return 0
	}
	i := inter.Area()
	union := a.Area() + b.Area() - i
	if union <= 0 {
		return 0
	}
	return i / union
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

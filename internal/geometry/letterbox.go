package geometry

// Letterbox records how an image was scaled and padded into a square
// network input. The same value maps network coordinates back.
type Letterbox struct {
	Size     int     // side of the square input
	Scale    float32 // resized / original
	SrcW     int
	SrcH     int
	ResizedW int
	ResizedH int
	PadW     int // total horizontal padding
	PadH     int // total vertical padding
}

// NewLetterbox computes the letterbox geometry for a srcW x srcH image.
// The longer side is scaled to size; the shorter side is truncated but
// never below one pixel.
func NewLetterbox(srcW, srcH, size int) Letterbox {
	lb := Letterbox{Size: size, SrcW: srcW, SrcH: srcH}
	if srcW <= 0 || srcH <= 0 || size <= 0 {
		return lb
	}

	if srcW > srcH {
		lb.Scale = float32(size) / float32(srcW)
		lb.ResizedW = size
		lb.ResizedH = max(1, int(float32(srcH)*lb.Scale))
	} else {
		lb.Scale = float32(size) / float32(srcH)
		lb.ResizedH = size
		lb.ResizedW = max(1, int(float32(srcW)*lb.Scale))
	}
	lb.PadW = size - lb.ResizedW
	lb.PadH = size - lb.ResizedH
	return lb
}

// Left is the padding placed before the resized image horizontally
func (l Letterbox) Left() int { return l.PadW / 2 }

// Top is the padding placed above the resized image
func (l Letterbox) Top() int { return l.PadH / 2 }

// Right is the trailing horizontal padding
func (l Letterbox) Right() int { return l.PadW - l.PadW/2 }

// Bottom is the trailing vertical padding
func (l Letterbox) Bottom() int { return l.PadH - l.PadH/2 }

// Forward maps a source-image point into network input space
func (l Letterbox) Forward(p Point) Point {
	return Point{
		X: p.X*l.Scale + float32(l.Left()),
		Y: p.Y*l.Scale + float32(l.Top()),
	}
}

// Inverse maps a network input point back into source-image space
func (l Letterbox) Inverse(p Point) Point {
	if l.Scale == 0 {
		return Point{}
	}
	return Point{
		X: (p.X - float32(l.Left())) / l.Scale,
		Y: (p.Y - float32(l.Top())) / l.Scale,
	}
}

// ClampPoint limits p to the source image, [0, W-1] x [0, H-1]
func (l Letterbox) ClampPoint(p Point) Point {
	return Point{
		X: Clamp(p.X, 0, float32(l.SrcW-1)),
		Y: Clamp(p.Y, 0, float32(l.SrcH-1)),
	}
}

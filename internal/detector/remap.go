package detector

import "github.com/dudu/facekit/internal/geometry"

// Remap maps a candidate from network input space into the source image,
// clamping corners and landmarks to [0, W-1] x [0, H-1].
func Remap(c Candidate, lb geometry.Letterbox) Candidate {
	tl := lb.ClampPoint(lb.Inverse(geometry.Point{X: c.Box.X1, Y: c.Box.Y1}))
	br := lb.ClampPoint(lb.Inverse(geometry.Point{X: c.Box.X2, Y: c.Box.Y2}))

	out := Candidate{
		Box:   geometry.Box{X1: tl.X, Y1: tl.Y, X2: br.X, Y2: br.Y},
		Score: c.Score,
	}
	for i, p := range c.Landmarks {
		out.Landmarks[i] = lb.ClampPoint(lb.Inverse(p))
	}
	return out
}

// RemapAll applies Remap to every candidate
func RemapAll(cands []Candidate, lb geometry.Letterbox) []Candidate {
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		out[i] = Remap(c, lb)
	}
	return out
}

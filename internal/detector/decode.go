package detector

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/dudu/facekit/internal/geometry"
)

// DefaultLandmarkStride is the number of values per landmark emitted by
// yolov7-face: x, y and a visibility score.
const DefaultLandmarkStride = 3

// DecodeParams configures decoding of a single head
type DecodeParams struct {
	Stride         int
	Anchors        []Anchor
	InputWidth     int
	InputHeight    int
	ProbThreshold  float32
	LandmarkStride int // values per landmark, 0 means DefaultLandmarkStride
	Workers        int // <= 1 decodes on the calling goroutine
}

func (p DecodeParams) landmarkStride() int {
	if p.LandmarkStride <= 0 {
		return DefaultLandmarkStride
	}
	return p.LandmarkStride
}

// Decode turns one head's raw tensor into candidates in input-pixel
// coordinates. Output order is raster order over (anchor, row, column)
// regardless of Workers.
func Decode(raw RawTensor, p DecodeParams) ([]Candidate, error) {
	if p.Stride <= 0 {
		return nil, errors.Errorf("invalid stride %d", p.Stride)
	}
	gridW := p.InputWidth / p.Stride
	gridH := p.InputHeight / p.Stride
	if raw.Channels != len(p.Anchors) {
		return nil, errors.Wrapf(ErrTensorShape, "stride %d: %d channels for %d anchors",
			p.Stride, raw.Channels, len(p.Anchors))
	}
	if raw.Rows != gridW*gridH {
		return nil, errors.Wrapf(ErrTensorShape, "stride %d: %d rows for a %dx%d grid",
			p.Stride, raw.Rows, gridW, gridH)
	}
	numClasses := raw.Cols - 5 - NumLandmarks*p.landmarkStride()
	if numClasses < 1 {
		return nil, errors.Wrapf(ErrTensorShape, "stride %d: %d features leave no class scores",
			p.Stride, raw.Cols)
	}

	d := cellDecoder{raw: raw, params: p, gridW: gridW, numClasses: numClasses}
	total := raw.Channels * gridH

	workers := p.Workers
	if workers > total {
		workers = total
	}
	if workers <= 1 {
		return d.span(0, total, nil), nil
	}

	// Each worker owns a contiguous span of (anchor, grid row) pairs and
	// its own result slice; concatenating in span order keeps raster order.
	parts := make([][]Candidate, workers)
	chunk := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, total)
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			parts[w] = d.span(lo, hi, nil)
		}(w, lo, hi)
	}
	wg.Wait()

	var n int
	for _, part := range parts {
		n += len(part)
	}
	out := make([]Candidate, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

type cellDecoder struct {
	raw        RawTensor
	params     DecodeParams
	gridW      int
	numClasses int
}

// span decodes grid rows lo..hi, where row index k means anchor k/gridH, grid row k%gridH
func (d cellDecoder) span(lo, hi int, out []Candidate) []Candidate {
	gridH := d.raw.Rows / d.gridW
	for k := lo; k < hi; k++ {
		q, i := k/gridH, k%gridH
		for j := 0; j < d.gridW; j++ {
			if c, ok := d.cell(q, i, j); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (d cellDecoder) cell(q, i, j int) (Candidate, bool) {
	p := d.params
	f := d.raw.Row(q, i*d.gridW+j)

	objectness := sigmoid(f[4])
	if objectness < p.ProbThreshold {
		return Candidate{}, false
	}

	classScore := f[5]
	for k := 1; k < d.numClasses; k++ {
		classScore = max(classScore, f[5+k])
	}
	confidence := objectness * sigmoid(classScore)
	if confidence < p.ProbThreshold {
		return Candidate{}, false
	}

	stride := float32(p.Stride)
	anchor := p.Anchors[q]
	gx, gy := float32(j), float32(i)

	cx := (sigmoid(f[0])*2 - 0.5 + gx) * stride
	cy := (sigmoid(f[1])*2 - 0.5 + gy) * stride
	bw := sq(sigmoid(f[2])*2) * anchor.W
	bh := sq(sigmoid(f[3])*2) * anchor.H

	c := Candidate{
		Box:   geometry.BoxFromXYWH(cx-bw*0.5, cy-bh*0.5, bw, bh),
		Score: confidence,
	}
	base := 5 + d.numClasses
	ls := p.landmarkStride()
	for l := 0; l < NumLandmarks; l++ {
		c.Landmarks[l] = geometry.Point{
			X: (f[base+l*ls]*2 - 0.5 + gx) * stride,
			Y: (f[base+l*ls+1]*2 - 0.5 + gy) * stride,
		}
	}
	return c, true
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func sq(x float32) float32 { return x * x }

package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/align"
	"github.com/dudu/facekit/internal/detector"
	"github.com/dudu/facekit/internal/enhancer"
	"github.com/dudu/facekit/internal/geometry"
	"github.com/dudu/facekit/internal/inference"
	"github.com/dudu/facekit/internal/log"
)

// Config holds pipeline settings
type Config struct {
	MaxSide int // longer image side is limited to this before detection, 0 disables
}

// Timing holds per-stage durations
type Timing struct {
	Resize    time.Duration
	Detection time.Duration
	Alignment time.Duration
	Restore   time.Duration
	Blend     time.Duration
	Total     time.Duration
}

// FaceResult is one aligned face
type FaceResult struct {
	Box       geometry.Box
	Landmarks detector.Landmarks
	Score     float32
	Crop      gocv.Mat
	Forward   geometry.Affine // working image -> crop
	Inverse   geometry.Affine // crop -> working image at the restoration scale
}

// Skip records a detected face that could not be aligned
type Skip struct {
	Index  int
	Score  float32
	Reason string
}

// Result is the output of Process. Coordinates refer to Image.
type Result struct {
	ID      string
	Image   gocv.Mat // working copy after size limiting
	Width   int
	Height  int
	Faces   []FaceResult
	Skipped []Skip
	Dropped int
	Timing  Timing
}

// Close releases the working image and crops
func (r *Result) Close() error {
	for i := range r.Faces {
		r.Faces[i].Crop.Close()
	}
	return r.Image.Close()
}

// Pipeline runs detection and alignment, and optionally restoration
type Pipeline struct {
	config   Config
	detector FaceDetector
	aligner  *align.Aligner
	restorer Restorer
	upscaler Upscaler
	blender  *enhancer.Blender
	log      *logrus.Entry
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithRestorer enables face restoration in Enhance
func WithRestorer(r Restorer) Option {
	return func(p *Pipeline) { p.restorer = r }
}

// WithUpscaler sets the background upscaler used by Enhance
func WithUpscaler(u Upscaler) Option {
	return func(p *Pipeline) { p.upscaler = u }
}

// WithLogger sets the log entry
func WithLogger(l *logrus.Entry) Option {
	return func(p *Pipeline) { p.log = l }
}

// New assembles a pipeline from its stages
func New(config Config, det FaceDetector, aligner *align.Aligner, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:   config,
		detector: det,
		aligner:  aligner,
		upscaler: enhancer.ResizeUpscaler{},
		blender:  enhancer.NewBlender(),
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process detects and aligns every face in img. A face whose landmarks
// cannot be fitted is recorded in Skipped; the others are still returned.
func (p *Pipeline) Process(ctx context.Context, img gocv.Mat) (*Result, error) {
	totalStart := time.Now()
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	ctx, id := log.WithRequest(ctx)
	res := &Result{ID: id}
	entry := p.log.WithField(log.RequestIDKey, id)

	start := time.Now()
	res.Image = limitSize(img, p.config.MaxSide)
	res.Width, res.Height = res.Image.Cols(), res.Image.Rows()
	res.Timing.Resize = time.Since(start)

	fail := func(err error) (*Result, error) {
		res.Close()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	start = time.Now()
	det, err := p.detector.Detect(res.Image)
	res.Timing.Detection = time.Since(start)
	if err != nil {
		return fail(errors.Wrap(err, "detection failed"))
	}
	res.Dropped = det.Dropped

	res.Faces = make([]FaceResult, 0, len(det.Faces))
	for i, face := range det.Faces {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		start = time.Now()
		aligned, err := p.aligner.Align(res.Image, face.Landmarks)
		res.Timing.Alignment += time.Since(start)
		if err != nil {
			entry.WithFields(logrus.Fields{
				"face":  i,
				"score": face.Score,
				"error": err.Error(),
			}).Warn("skipping face, alignment failed")
			res.Skipped = append(res.Skipped, Skip{Index: i, Score: face.Score, Reason: err.Error()})
			continue
		}

		res.Faces = append(res.Faces, FaceResult{
			Box:       face.Box,
			Landmarks: face.Landmarks,
			Score:     face.Score,
			Crop:      aligned.Crop,
			Forward:   aligned.Forward,
			Inverse:   aligned.Inverse,
		})
	}

	res.Timing.Total = time.Since(totalStart)
	entry.WithFields(logrus.Fields{
		"width":     res.Width,
		"height":    res.Height,
		"faces":     len(res.Faces),
		"skipped":   len(res.Skipped),
		"dropped":   res.Dropped,
		"detect_ms": res.Timing.Detection.Milliseconds(),
		"total_ms":  res.Timing.Total.Milliseconds(),
	}).Info("faces processed")
	return res, nil
}

// Enhance processes img, restores each face and pastes it into the
// upscaled working image. The canvas is InverseScale times the working size.
func (p *Pipeline) Enhance(ctx context.Context, img gocv.Mat) (gocv.Mat, *Result, error) {
	res, err := p.Process(ctx, img)
	if err != nil {
		return gocv.NewMat(), nil, err
	}

	canvas, err := p.upscaler.Upscale(res.Image, p.aligner.Options().InverseScale)
	if err != nil {
		res.Close()
		return gocv.NewMat(), nil, errors.Wrap(err, "background upscale failed")
	}

	for i, face := range res.Faces {
		if err := ctx.Err(); err != nil {
			canvas.Close()
			res.Close()
			return gocv.NewMat(), nil, err
		}

		restored, owned := face.Crop, false
		if p.restorer != nil {
			start := time.Now()
			out, err := p.restorer.Restore(face.Crop)
			res.Timing.Restore += time.Since(start)
			if err != nil {
				p.log.WithFields(logrus.Fields{
					log.RequestIDKey: res.ID,
					"face":           i,
					"error":          err.Error(),
				}).Warn("restoration failed, keeping original face")
				continue
			}
			restored, owned = out, true
		}

		start := time.Now()
		err := p.blender.Paste(&canvas, restored, face.Inverse)
		res.Timing.Blend += time.Since(start)
		if owned {
			restored.Close()
		}
		if err != nil {
			canvas.Close()
			res.Close()
			return gocv.NewMat(), nil, errors.Wrap(err, "paste failed")
		}
	}

	return canvas, res, nil
}

// Close releases every stage
func (p *Pipeline) Close() error {
	var errs []error
	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.restorer != nil {
		if err := p.restorer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.upscaler != nil {
		if err := p.upscaler.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := inference.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// limitSize returns a copy of img whose longer side is at most maxSide
func limitSize(img gocv.Mat, maxSide int) gocv.Mat {
	w, h := img.Cols(), img.Rows()
	long := max(w, h)
	if maxSide <= 0 || long <= maxSide {
		return img.Clone()
	}
	scale := float64(maxSide) / float64(long)
	size := image.Pt(max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))
	if w >= h {
		size.X = maxSide
	} else {
		size.Y = maxSide
	}
	out := gocv.NewMat()
	gocv.Resize(img, &out, size, 0, 0, gocv.InterpolationLinear)
	return out
}

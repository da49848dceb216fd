package ui

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/pipeline"
)

var (
	boxColor      = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	landmarkColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	skipColor     = color.RGBA{R: 255, G: 160, B: 0, A: 255}
)

// Annotate draws boxes, scores and landmarks of res onto img in place
func Annotate(img *gocv.Mat, res *pipeline.Result) {
	thickness := max(1, max(img.Cols(), img.Rows())/500)
	for _, f := range res.Faces {
		rect := image.Rect(int(f.Box.X1), int(f.Box.Y1), int(f.Box.X2), int(f.Box.Y2))
		gocv.Rectangle(img, rect, boxColor, thickness)
		gocv.PutText(img, fmt.Sprintf("%.2f", f.Score), image.Pt(rect.Min.X, max(rect.Min.Y-4, 12)),
			gocv.FontHersheyPlain, 1, boxColor, thickness)
		for _, p := range f.Landmarks {
			gocv.Circle(img, image.Pt(int(p.X), int(p.Y)), 2*thickness, landmarkColor, -1)
		}
	}
	if len(res.Skipped) > 0 || res.Dropped > 0 {
		gocv.PutText(img, fmt.Sprintf("skipped %d dropped %d", len(res.Skipped), res.Dropped),
			image.Pt(10, 20), gocv.FontHersheyPlain, 1.2, skipColor, thickness)
	}
}

// Window shows pipeline output
type Window struct {
	window *gocv.Window
}

// NewWindow creates a preview window
func NewWindow(name string) *Window {
	window := gocv.NewWindow(name)
	window.ResizeWindow(1280, 720)
	return &Window{window: window}
}

// Show displays img with a timing overlay and waits for a key
func (w *Window) Show(img gocv.Mat, timing pipeline.Timing) int {
	frame := img.Clone()
	defer frame.Close()
	text := fmt.Sprintf("detect %dms align %dms total %dms",
		timing.Detection.Milliseconds(), timing.Alignment.Milliseconds(), timing.Total.Milliseconds())
	gocv.PutText(&frame, text, image.Pt(10, frame.Rows()-12),
		gocv.FontHersheyPlain, 1.2, boxColor, 2)
	w.window.IMShow(frame)
	return w.window.WaitKey(0)
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}

package server

import (
	"context"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/detector"
	"github.com/dudu/facekit/internal/log"
	"github.com/dudu/facekit/internal/pipeline"
)

// Processor runs the face stage on a decoded image
type Processor interface {
	Process(ctx context.Context, img gocv.Mat) (*pipeline.Result, error)
}

type boxJSON struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

type pointJSON struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type faceJSON struct {
	Box           boxJSON       `json:"box"`
	Score         float32       `json:"score"`
	Landmarks     []pointJSON   `json:"landmarks"`
	InverseAffine [2][3]float64 `json:"inverse_affine"`
}

type skipJSON struct {
	Index  int     `json:"index"`
	Score  float32 `json:"score"`
	Reason string  `json:"reason"`
}

// FacesResponse is the body of a successful detection request
type FacesResponse struct {
	ID      string     `json:"id"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Faces   []faceJSON `json:"faces"`
	Skipped []skipJSON `json:"skipped"`
	Dropped int        `json:"dropped"`
}

// RequestIDHeader carries the request id on every /v1 response
const RequestIDHeader = "X-Request-ID"

type errorJSON struct {
	Error string `json:"error"`
}

// New builds the HTTP app
func New(proc Processor, bodyLimit int, log *logrus.Entry) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	h := &handler{proc: proc, log: log}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post("/v1/faces", h.faces)
	return app
}

type handler struct {
	proc Processor
	log  *logrus.Entry
}

func (h *handler) faces(c *fiber.Ctx) error {
	ctx, id := log.WithRequest(log.NewContext(c.UserContext(), strings.Clone(c.Get(RequestIDHeader))))
	c.Set(RequestIDHeader, id)

	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON{Error: "missing image field"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON{Error: "unreadable upload"})
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON{Error: "unreadable upload"})
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		img.Close()
		return c.Status(fiber.StatusBadRequest).JSON(errorJSON{Error: "cannot decode image"})
	}
	defer img.Close()

	res, err := h.proc.Process(ctx, img)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			log.RequestIDKey: id,
			"error":          err.Error(),
		}).Error("face processing failed")
		return c.Status(fiber.StatusInternalServerError).JSON(errorJSON{Error: "processing failed"})
	}
	defer res.Close()

	return c.JSON(toResponse(res))
}

func toResponse(res *pipeline.Result) FacesResponse {
	out := FacesResponse{
		ID:      res.ID,
		Width:   res.Width,
		Height:  res.Height,
		Faces:   make([]faceJSON, 0, len(res.Faces)),
		Skipped: make([]skipJSON, 0, len(res.Skipped)),
		Dropped: res.Dropped,
	}
	for _, f := range res.Faces {
		out.Faces = append(out.Faces, faceJSON{
			Box:           boxJSON{X: f.Box.X1, Y: f.Box.Y1, Width: f.Box.Width(), Height: f.Box.Height()},
			Score:         f.Score,
			Landmarks:     points(f.Landmarks),
			InverseAffine: f.Inverse,
		})
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, skipJSON{Index: s.Index, Score: s.Score, Reason: s.Reason})
	}
	return out
}

func points(l detector.Landmarks) []pointJSON {
	out := make([]pointJSON, len(l))
	for i, p := range l {
		out[i] = pointJSON{X: p.X, Y: p.Y}
	}
	return out
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/dudu/facekit/internal/colorize"
	"github.com/dudu/facekit/internal/config"
	"github.com/dudu/facekit/internal/log"
	"github.com/dudu/facekit/internal/pipeline"
	"github.com/dudu/facekit/internal/ui"
)

func init() {
	// highgui needs the main OS thread on macOS
	runtime.LockOSThread()
}

type Options struct {
	ConfigPath string
	Input      string
	OutputDir  string
	Restore    bool
	Colorize   bool
	Preview    bool
}

func main() {
	opts := parseFlags()

	if opts.Input == "" {
		fmt.Fprintln(os.Stderr, "Error: --in flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Options {
	opts := Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "YAML configuration file (shorthand)")
	flag.StringVar(&opts.Input, "in", "", "Input photo (required)")
	flag.StringVar(&opts.Input, "i", "", "Input photo (shorthand)")
	flag.StringVar(&opts.OutputDir, "out", "out", "Output directory")
	flag.StringVar(&opts.OutputDir, "o", "out", "Output directory (shorthand)")
	flag.BoolVar(&opts.Restore, "restore", false, "Restore faces and paste them into an upscaled image")
	flag.BoolVar(&opts.Restore, "r", false, "Restore faces (shorthand)")
	flag.BoolVar(&opts.Colorize, "colorize", false, "Colorize the photo before face processing")
	flag.BoolVar(&opts.Preview, "preview", false, "Show annotated result in a window")
	flag.BoolVar(&opts.Preview, "p", false, "Show annotated result (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "facekit - face detection, alignment and restoration for photos\n\n")
		fmt.Fprintf(os.Stderr, "Usage: facekit [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  facekit --in photo.jpg\n")
		fmt.Fprintf(os.Stderr, "  facekit --config facekit.yaml --in photo.jpg --restore\n")
		fmt.Fprintf(os.Stderr, "  facekit --in old.jpg --colorize --restore --preview\n")
	}

	flag.Parse()
	return opts
}

func run(opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log.Init(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	entry := log.With(log.Fields{"cmd": "facekit"})
	log.Debug(log.Fields{"config": opts.ConfigPath, "input": opts.Input}, "configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	img := gocv.IMRead(opts.Input, gocv.IMReadColor)
	if img.Empty() {
		return errors.Errorf("failed to load image: %s", opts.Input)
	}
	defer img.Close()

	src := img

	p, err := pipeline.FromConfig(cfg, opts.Restore, entry)
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline")
	}
	defer p.Close()

	if opts.Colorize {
		if cfg.Models.Colorizer == "" {
			return errors.New("colorize requested but models.colorizer is not set")
		}
		c, err := colorize.NewColorizer(cfg.Models.Colorizer, cfg.Models.ColorizerStem)
		if err != nil {
			return err
		}
		colored, err := c.Colorize(img)
		c.Close()
		if err != nil {
			return err
		}
		defer colored.Close()
		src = colored
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	stem := strings.TrimSuffix(filepath.Base(opts.Input), filepath.Ext(opts.Input))
	outPath := func(suffix string) string {
		return filepath.Join(opts.OutputDir, stem+suffix)
	}

	var res *pipeline.Result
	if opts.Restore {
		canvas, r, err := p.Enhance(ctx, src)
		if err != nil {
			return err
		}
		defer canvas.Close()
		res = r
		if !gocv.IMWrite(outPath("_restored.png"), canvas) {
			return errors.Errorf("failed to write %s", outPath("_restored.png"))
		}
	} else {
		res, err = p.Process(ctx, src)
		if err != nil {
			return err
		}
	}
	defer res.Close()

	for i, f := range res.Faces {
		name := outPath(fmt.Sprintf("_face%02d.png", i))
		if !gocv.IMWrite(name, f.Crop) {
			return errors.Errorf("failed to write %s", name)
		}
	}

	annotated := res.Image.Clone()
	defer annotated.Close()
	ui.Annotate(&annotated, res)
	if !gocv.IMWrite(outPath("_faces.jpg"), annotated) {
		return errors.Errorf("failed to write %s", outPath("_faces.jpg"))
	}

	log.Info(log.Fields{
		log.RequestIDKey: res.ID,
		"faces":          len(res.Faces),
		"skipped":        len(res.Skipped),
		"dropped":        res.Dropped,
		"output":         opts.OutputDir,
	}, "faces written")

	if opts.Preview {
		window := ui.NewWindow("facekit")
		defer window.Close()
		window.Show(annotated, res.Timing)
	}
	return nil
}

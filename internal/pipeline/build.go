package pipeline

import (
	"image/color"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dudu/facekit/internal/align"
	"github.com/dudu/facekit/internal/config"
	"github.com/dudu/facekit/internal/detector"
	"github.com/dudu/facekit/internal/enhancer"
	"github.com/dudu/facekit/internal/inference"
)

// DetectorConfig maps application settings onto the detector
func DetectorConfig(cfg config.Config) detector.Config {
	dc := detector.DefaultConfig()
	dc.InputSize = cfg.Detection.InputSize
	dc.ProbThreshold = cfg.Detection.ProbThreshold
	dc.NMSThreshold = cfg.Detection.NMSThreshold
	dc.MaxFaces = cfg.Detection.MaxFaces
	dc.Workers = cfg.Detection.Workers
	return dc
}

// AlignOptions maps application settings onto the aligner
func AlignOptions(cfg config.Config) align.Options {
	opts := align.DefaultOptions()
	opts.CropSize = cfg.Alignment.CropSize
	opts.InverseScale = cfg.Alignment.InverseScale
	b := cfg.Alignment.Border
	opts.Border = color.RGBA{B: uint8(b[0]), G: uint8(b[1]), R: uint8(b[2])}
	return opts
}

// FromConfig initializes ONNX Runtime and loads every configured model.
// withRestore loads the restorer and background upscaler as well.
func FromConfig(cfg config.Config, withRestore bool, log *logrus.Entry) (*Pipeline, error) {
	if err := inference.Initialize(inference.Options{
		LibraryPath:    cfg.Models.RuntimeLibrary,
		IntraOpThreads: cfg.Models.IntraOpThreads,
		InterOpThreads: cfg.Models.InterOpThreads,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to initialize inference")
	}

	det, err := detector.NewONNX(cfg.Models.Detector, DetectorConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(log)}
	if withRestore {
		var restorer *enhancer.GFPGAN
		if cfg.Models.Restorer != "" {
			restorer, err = enhancer.NewGFPGAN(cfg.Models.Restorer)
			if err != nil {
				det.Close()
				return nil, err
			}
			opts = append(opts, WithRestorer(restorer))
		}
		if cfg.Pipeline.BackgroundUpscale && cfg.Models.Upsampler != "" {
			up, err := enhancer.NewRealESRGAN(cfg.Models.Upsampler)
			if err != nil {
				det.Close()
				if restorer != nil {
					restorer.Close()
				}
				return nil, err
			}
			opts = append(opts, WithUpscaler(up))
		}
	}

	return New(Config{MaxSide: cfg.Pipeline.MaxSide}, det, align.NewAligner(AlignOptions(cfg)), opts...), nil
}

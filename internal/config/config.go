package config

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Models lists model artifacts. Optional stages are disabled when their path is empty.
type Models struct {
	RuntimeLibrary string `yaml:"runtime_library"`
	Detector       string `yaml:"detector" validate:"required"`
	Restorer       string `yaml:"restorer"`
	Upsampler      string `yaml:"upsampler"`
	Colorizer      string `yaml:"colorizer"`
	ColorizerStem  string `yaml:"colorizer_stem"` // set when the colorizer is split at its slice layer
	IntraOpThreads int    `yaml:"intra_op_threads" validate:"gte=0"`
	InterOpThreads int    `yaml:"inter_op_threads" validate:"gte=0"`
}

// Detection configures the face detector
type Detection struct {
	InputSize     int     `yaml:"input_size" validate:"gt=0"`
	ProbThreshold float32 `yaml:"prob_threshold" validate:"gt=0,lte=1"`
	NMSThreshold  float32 `yaml:"nms_threshold" validate:"gt=0,lte=1"`
	MaxFaces      int     `yaml:"max_faces" validate:"gt=0"`
	Workers       int     `yaml:"workers" validate:"gte=1"`
}

// Alignment configures the aligner
type Alignment struct {
	CropSize     int     `yaml:"crop_size" validate:"gt=0"`
	InverseScale float64 `yaml:"inverse_scale" validate:"gt=0"`
	Border       [3]int  `yaml:"border_bgr"`
}

// Pipeline configures request-level behaviour
type Pipeline struct {
	MaxSide           int  `yaml:"max_side" validate:"gte=0"`
	BackgroundUpscale bool `yaml:"background_upscale"`
}

// Log configures the process logger
type Log struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File  string `yaml:"file"`
}

// Server configures the HTTP surface
type Server struct {
	Addr         string `yaml:"addr" validate:"required"`
	MaxBodyBytes int    `yaml:"max_body_bytes" validate:"gt=0"`
}

// Config is the complete application configuration
type Config struct {
	Models    Models    `yaml:"models"`
	Detection Detection `yaml:"detection"`
	Alignment Alignment `yaml:"alignment"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		Models: Models{
			Detector: "models/yolov7-lite-e.onnx",
		},
		Detection: Detection{
			InputSize:     640,
			ProbThreshold: 0.5,
			NMSThreshold:  0.65,
			MaxFaces:      32,
			Workers:       1,
		},
		Alignment: Alignment{
			CropSize:     512,
			InverseScale: 2,
			Border:       [3]int{135, 133, 132},
		},
		Pipeline: Pipeline{
			MaxSide:           1500,
			BackgroundUpscale: true,
		},
		Log: Log{
			Level: "info",
		},
		Server: Server{
			Addr:         ":8080",
			MaxBodyBytes: 20 << 20,
		},
	}
}

// Load reads path (optional) over the defaults, applies .env and
// FACEKIT_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, errors.Wrap(err, "load .env")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	for _, c := range cfg.Alignment.Border {
		if c < 0 || c > 255 {
			return errors.Errorf("invalid config: border component %d out of range", c)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"FACEKIT_RUNTIME_LIBRARY": &cfg.Models.RuntimeLibrary,
		"FACEKIT_DETECTOR_MODEL":  &cfg.Models.Detector,
		"FACEKIT_RESTORER_MODEL":  &cfg.Models.Restorer,
		"FACEKIT_UPSAMPLER_MODEL": &cfg.Models.Upsampler,
		"FACEKIT_COLORIZER_MODEL": &cfg.Models.Colorizer,
		"FACEKIT_COLORIZER_STEM":  &cfg.Models.ColorizerStem,
		"FACEKIT_LOG_LEVEL":       &cfg.Log.Level,
		"FACEKIT_LOG_FILE":        &cfg.Log.File,
		"FACEKIT_ADDR":            &cfg.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"FACEKIT_MAX_FACES": &cfg.Detection.MaxFaces,
		"FACEKIT_WORKERS":   &cfg.Detection.Workers,
		"FACEKIT_MAX_SIDE":  &cfg.Pipeline.MaxSide,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "parse %s", key)
			}
			*dst = n
		}
	}

	floats := map[string]*float32{
		"FACEKIT_PROB_THRESHOLD": &cfg.Detection.ProbThreshold,
		"FACEKIT_NMS_THRESHOLD":  &cfg.Detection.NMSThreshold,
	}
	for key, dst := range floats {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return errors.Wrapf(err, "parse %s", key)
			}
			*dst = float32(f)
		}
	}
	return nil
}

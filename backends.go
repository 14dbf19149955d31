package passportphoto

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/pkg/analyzer"
	"github.com/menta2k/passport-photo/pkg/client"
	"github.com/menta2k/passport-photo/pkg/cropper"
	"github.com/menta2k/passport-photo/pkg/detection"
	"github.com/menta2k/passport-photo/pkg/enhance"
	"github.com/menta2k/passport-photo/pkg/llamacpp"
	"github.com/menta2k/passport-photo/pkg/ollama"
	"github.com/menta2k/passport-photo/pkg/processing"
	"github.com/menta2k/passport-photo/pkg/resize"
	"github.com/menta2k/passport-photo/pkg/segment"
)

// NewFromConfig builds the pipeline and its collaborators from an
// application configuration
func NewFromConfig(cfg *config.Config) (*Pipeline, error) {
	pipelineConfig, err := ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	segmenter, err := NewSegmenter(cfg.Segmenter, cfg.Output.TempDir)
	if err != nil {
		return nil, err
	}

	locator, err := NewLocator(cfg.Detector)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(segmenter, locator, pipelineConfig)
}

// ConfigFrom converts the application configuration to a pipeline Config
func ConfigFrom(cfg *config.Config) (Config, error) {
	bg, err := cfg.BackgroundColor()
	if err != nil {
		return Config{}, err
	}

	resizer, err := resize.ByName(cfg.Photo.Resizer)
	if err != nil {
		return Config{}, err
	}

	pc := DefaultConfig()
	pc.TargetWidth = cfg.Photo.TargetWidth
	pc.TargetHeight = cfg.Photo.TargetHeight
	pc.Background = bg
	pc.TempDir = cfg.Output.TempDir
	pc.Debug = cfg.Output.Debug
	pc.Analyzer = analyzer.Config{
		SupportedFormats: pc.Analyzer.SupportedFormats,
		MinImageSize:     cfg.Photo.MinImageSize,
	}
	pc.Cropper = cropper.Config{MarginRatio: cfg.Photo.MarginRatio}
	pc.Processing = processing.Config{
		JPEGQuality:      cfg.Output.JPEGQuality,
		WebPQuality:      cfg.Output.WebPQuality,
		WebPLossless:     cfg.Output.WebPLossless,
		Resizer:          resizer,
		MaxDownloadBytes: pc.Processing.MaxDownloadBytes,
	}
	pc.Enhance = enhance.Config{
		Brightness:         cfg.Enhance.Brightness,
		Contrast:           cfg.Enhance.Contrast,
		SharpnessThreshold: cfg.Enhance.SharpnessThreshold,
		SharpnessBoost:     cfg.Enhance.SharpnessBoost,
		BlurSigma:          cfg.Enhance.BlurSigma,
		Background:         bg,
	}
	return pc, nil
}

// NewSegmenter builds the configured background remover
func NewSegmenter(cfg config.SegmenterConfig, tempDir string) (client.Segmenter, error) {
	switch cfg.Backend {
	case config.SegmenterRembgHTTP:
		return segment.NewHTTPSegmenter(cfg.URL, time.Duration(cfg.Timeout)), nil
	case config.SegmenterRembgCLI:
		return segment.NewCommandSegmenter(cfg.Command, cfg.Args, tempDir), nil
	case config.SegmenterNone:
		return segment.Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown segmenter backend %q", cfg.Backend)
	}
}

// NewLocator builds the configured face locator
func NewLocator(cfg config.DetectorConfig) (client.FaceLocator, error) {
	switch cfg.Backend {
	case config.DetectorPigo:
		l, err := detection.NewPigoLocatorFromFile(cfg.CascadePath, detection.PigoConfig{
			MinSize:          cfg.MinSize,
			MaxSize:          cfg.MaxSize,
			ShiftFactor:      cfg.ShiftFactor,
			ScaleFactor:      cfg.ScaleFactor,
			QualityThreshold: float32(cfg.Quality),
			IoUThreshold:     cfg.IoU,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.DetectorHaar:
		l, err := detection.NewHaarLocator(cfg.CascadePath, detection.HaarConfig{
			ScaleFactor:  cfg.ScaleFactor,
			MinNeighbors: cfg.MinNeighbors,
			MinSize:      cfg.MinSize,
			MaxSize:      cfg.MaxSize,
		})
		if err != nil {
			return nil, err
		}
		return l, nil
	case config.DetectorOllama:
		c, err := newOllama(cfg)
		if err != nil {
			return nil, err
		}
		return detection.NewVisionLocator(c, visionConfig(cfg)), nil
	case config.DetectorLlamaCpp:
		c, err := newLlamaCpp(cfg)
		if err != nil {
			return nil, err
		}
		return detection.NewVisionLocator(c, visionConfig(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// CheckDetector verifies that the configured face locator works before any
// photo is processed. Cascade backends are loaded and run on a blank frame.
// Vision backends must pass the server health check and describe a blank
// frame, and the model's description is returned.
func CheckDetector(ctx context.Context, cfg config.DetectorConfig) (string, error) {
	blank := image.NewGray(image.Rect(0, 0, 64, 64))

	switch cfg.Backend {
	case config.DetectorOllama:
		c, err := newOllama(cfg)
		if err != nil {
			return "", err
		}
		if err := c.Ping(ctx); err != nil {
			return "", err
		}
		return detection.NewVisionLocator(c, visionConfig(cfg)).TestVision(ctx, blank)
	case config.DetectorLlamaCpp:
		c, err := newLlamaCpp(cfg)
		if err != nil {
			return "", err
		}
		if err := c.Health(ctx); err != nil {
			return "", fmt.Errorf("llama.cpp health check: %w", err)
		}
		return detection.NewVisionLocator(c, visionConfig(cfg)).TestVision(ctx, blank)
	}

	locator, err := NewLocator(cfg)
	if err != nil {
		return "", err
	}
	if c, ok := locator.(io.Closer); ok {
		defer c.Close()
	}
	faces, err := locator.LocateFaces(ctx, blank)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s cascade loaded, %d face(s) in a blank frame", cfg.Backend, len(faces)), nil
}

func newOllama(cfg config.DetectorConfig) (*ollama.Client, error) {
	return ollama.NewClient(cfg.URL, ollama.WithTimeout(time.Duration(cfg.Timeout)))
}

func newLlamaCpp(cfg config.DetectorConfig) (*llamacpp.Client, error) {
	return llamacpp.NewClient(cfg.URL,
		llamacpp.WithAPIKey(cfg.APIKey),
		llamacpp.WithTimeout(time.Duration(cfg.Timeout)))
}

func visionConfig(cfg config.DetectorConfig) detection.VisionConfig {
	vc := detection.DefaultVisionConfig(cfg.Model)
	vc.MinConfidence = cfg.MinConfidence
	return vc
}

// Package passportphoto turns a portrait photo into a passport style photo.
//
// The pipeline removes the background, finds the largest face, crops around
// it with a margin proportional to the face size, flattens the cut-out onto
// a solid background, resizes to the target resolution and finally adjusts
// brightness, contrast and sharpness.
//
// Background removal and face detection are delegated to collaborators
// behind client.Segmenter and client.FaceLocator:
//
//	segmenter := segment.NewHTTPSegmenter("http://localhost:7000", 0)
//	locator, err := detection.NewPigoLocator(detection.Facefinder, detection.DefaultPigoConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pipeline := passportphoto.New(segmenter, locator)
//	result := pipeline.Process(ctx, "me.jpg", "passport.png")
//	fmt.Println(result.Message())
//	os.Exit(result.Status.ExitCode())
//
// Outcomes are reported as a Result with a Status instead of an error, so
// "no face in the photo" is distinguishable from a failure. The output file
// is only ever written on StatusSuccess, and it is written atomically.
package passportphoto

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/passport-photo/internal/log"
	"github.com/menta2k/passport-photo/internal/utils"
	"github.com/menta2k/passport-photo/pkg/analyzer"
	"github.com/menta2k/passport-photo/pkg/client"
	"github.com/menta2k/passport-photo/pkg/cropper"
	"github.com/menta2k/passport-photo/pkg/enhance"
	"github.com/menta2k/passport-photo/pkg/processing"
	"github.com/menta2k/passport-photo/pkg/types"
	"github.com/menta2k/passport-photo/pkg/vision"
)

// Version of the passport photo library
const Version = "1.0.0"

// Config holds every tunable of the pipeline. It is read-only once the
// pipeline is built.
type Config struct {
	TargetWidth  int
	TargetHeight int
	Background   color.Color
	// TempDir holds the background-removed intermediate, os.TempDir when empty
	TempDir string
	// Debug writes <output>_debug.png showing the detections and the crop
	Debug bool

	Analyzer   analyzer.Config
	Cropper    cropper.Config
	Processing processing.Config
	Enhance    enhance.Config
}

// DefaultConfig returns a 3000x3000 white background configuration
func DefaultConfig() Config {
	return Config{
		TargetWidth:  3000,
		TargetHeight: 3000,
		Background:   color.White,
		Analyzer: analyzer.Config{
			SupportedFormats: []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"},
			MinImageSize:     64,
		},
		Cropper:    cropper.Config{MarginRatio: cropper.DefaultMarginRatio},
		Processing: processing.DefaultConfig(),
		Enhance:    enhance.DefaultConfig(),
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.TargetWidth < 1 || c.TargetHeight < 1 {
		return fmt.Errorf("invalid target size %dx%d", c.TargetWidth, c.TargetHeight)
	}
	if c.Cropper.MarginRatio < 0 {
		return fmt.Errorf("margin ratio must not be negative, got %f", c.Cropper.MarginRatio)
	}
	return c.Enhance.Validate()
}

// Pipeline produces passport photos. It is safe for concurrent use when its
// collaborators are.
type Pipeline struct {
	segmenter client.Segmenter
	locator   client.FaceLocator

	analyzer  *analyzer.ImageAnalyzer
	planner   *cropper.Planner
	processor *processing.Processor
	enhancer  *enhance.Enhancer

	config Config
}

// New creates a pipeline with the default configuration. It panics when
// segmenter or locator is nil.
func New(segmenter client.Segmenter, locator client.FaceLocator) *Pipeline {
	p, err := NewWithConfig(segmenter, locator, DefaultConfig())
	if err != nil {
		panic("passportphoto: " + err.Error())
	}
	return p
}

// NewWithConfig creates a pipeline with a custom configuration
func NewWithConfig(segmenter client.Segmenter, locator client.FaceLocator, config Config) (*Pipeline, error) {
	if segmenter == nil || locator == nil {
		return nil, errors.New("a segmenter and a face locator are required")
	}
	if config.Background == nil {
		config.Background = color.White
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	enhanceConfig := config.Enhance
	enhanceConfig.Background = config.Background

	return &Pipeline{
		segmenter: segmenter,
		locator:   locator,
		analyzer:  analyzer.NewWithConfig(config.Analyzer),
		planner:   cropper.NewWithConfig(config.Cropper),
		processor: processing.NewProcessorWithConfig(config.Processing),
		enhancer:  enhance.NewWithConfig(enhanceConfig),
		config:    config,
	}, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.config
}

// Close releases collaborators that hold native resources
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range []any{p.segmenter, p.locator} {
		if closer, ok := c.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}

// Process reads input (a file path or an http(s) URL) and writes the
// passport photo to output, whose extension selects the format.
func (p *Pipeline) Process(ctx context.Context, input, output string) Result {
	start := time.Now()
	logger := log.With("input", input, "output", output)

	data, err := p.processor.ReadSource(ctx, input)
	if err != nil {
		return p.finish(logger, Result{Status: StatusInputError, Err: err}, start)
	}
	return p.finish(logger, p.run(ctx, logger, data, output), start)
}

// ProcessBytes is Process for an image already in memory
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte, output string) Result {
	start := time.Now()
	logger := log.With("output", output)
	return p.finish(logger, p.run(ctx, logger, data, output), start)
}

func (p *Pipeline) finish(logger *slog.Logger, result Result, start time.Time) Result {
	result.Duration = time.Since(start)
	switch result.Status {
	case StatusSuccess:
		logger.Info("passport photo generated", "faces", len(result.Faces), "crop", result.Crop,
			"sharpened", result.Enhancement.Sharpened, "duration", result.Duration)
	case StatusNoFaceDetected:
		logger.Warn("no faces detected", "duration", result.Duration)
	case StatusInputError:
		logger.Warn("invalid input", "err", result.Err)
	default:
		logger.Error("processing failed", "err", result.Err)
	}
	return result
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, data []byte, output string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Status: StatusProcessingError, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	fail := func(status Status, err error) Result {
		result.Status = status
		result.Err = err
		return result
	}

	if !p.processor.SupportsOutput(output) {
		return fail(StatusInputError, fmt.Errorf("%w: cannot write %s", processing.ErrUnsupportedFormat, filepath.Ext(output)))
	}

	info, err := p.analyzer.ValidateBytes(data)
	if err != nil {
		return fail(StatusInputError, err)
	}
	result.Input = info
	logger.Debug("input validated", "width", info.Width, "height", info.Height, "mime", info.MIME)

	cut, err := p.segmenter.Segment(ctx, data)
	if err != nil {
		return fail(StatusProcessingError, fmt.Errorf("background removal failed: %w", err))
	}

	tmpPath, err := utils.WriteTempFile(p.config.TempDir, "passport-photo-*.png", cut)
	if err != nil {
		return fail(StatusProcessingError, err)
	}
	defer os.Remove(tmpPath)
	logger.Debug("background removed", "temp", tmpPath, "size", utils.FormatFileSize(int64(len(cut))))

	transparent, err := p.processor.LoadImage(tmpPath)
	if err != nil {
		return fail(StatusProcessingError, fmt.Errorf("failed to load background-removed image: %w", err))
	}
	if err := p.analyzer.ValidateImage(transparent); err != nil {
		return fail(StatusProcessingError, fmt.Errorf("background remover returned an unusable image: %w", err))
	}
	bounds := transparent.Bounds()

	faces, err := p.locator.LocateFaces(ctx, vision.Grayscale(transparent))
	if err != nil {
		return fail(StatusProcessingError, fmt.Errorf("face detection failed: %w", err))
	}
	result.Faces = faces
	logger.Debug("faces located", "count", len(faces))

	face, crop, err := p.planner.PlanLargest(faces, bounds.Dx(), bounds.Dy())
	if errors.Is(err, cropper.ErrNoFace) {
		result.Status = StatusNoFaceDetected
		return result
	}
	if err != nil {
		return fail(StatusProcessingError, err)
	}
	result.Face, result.Crop = face, crop
	logger.Debug("crop planned", "face", face, "crop", crop)

	photo, err := p.compose(transparent, crop)
	if err != nil {
		return fail(StatusProcessingError, err)
	}

	enhanced, report := p.enhancer.Enhance(photo)
	result.Enhancement = report
	logger.Debug("enhanced", "sharpness", report.Sharpness, "sharpened", report.Sharpened)

	if err := ctx.Err(); err != nil {
		return fail(StatusProcessingError, err)
	}
	if err := p.processor.SaveImage(enhanced, output); err != nil {
		return fail(StatusProcessingError, fmt.Errorf("failed to save output: %w", err))
	}

	result.Status = StatusSuccess
	result.Output = output
	if p.config.Debug {
		result.DebugOutput = p.writeDebug(logger, transparent, faces, face, crop, output)
	}
	return result
}

// compose flattens the cut-out onto the background, crops and resizes it
func (p *Pipeline) compose(transparent image.Image, crop types.CropRectangle) (image.Image, error) {
	composited := p.processor.Composite(transparent, p.config.Background)

	cropped, err := p.processor.Crop(composited, crop)
	if err != nil {
		return nil, err
	}

	resized, err := p.processor.Resize(cropped, p.config.TargetWidth, p.config.TargetHeight)
	if err != nil {
		return nil, fmt.Errorf("resize failed: %w", err)
	}
	return resized, nil
}

func (p *Pipeline) writeDebug(logger *slog.Logger, img image.Image, faces []types.BoundingBox, face types.BoundingBox, crop types.CropRectangle, output string) string {
	path := utils.GenerateOutputFilename(output, filepath.Dir(output), "", "_debug", "png")
	overlay := p.processor.CreateDebugOverlay(img, faces, face, crop)
	if err := p.processor.SaveImage(overlay, path); err != nil {
		logger.Warn("failed to write debug overlay", "path", path, "err", err)
		return ""
	}
	return path
}

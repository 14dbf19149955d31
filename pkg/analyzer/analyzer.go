package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/passport-photo/pkg/types"
)

// ErrInvalidInput marks input that is not a usable photo
var ErrInvalidInput = errors.New("invalid input image")

// ImageAnalyzer validates input photos before they enter the pipeline
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"},
			MinImageSize:     64,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	return &ImageAnalyzer{config: config}
}

// ValidateBytes sniffs the content type of data, checks the format is
// supported and the dimensions are large enough, without decoding pixels.
func (a *ImageAnalyzer) ValidateBytes(data []byte) (types.ImageInfo, error) {
	if len(data) == 0 {
		return types.ImageInfo{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return types.ImageInfo{}, fmt.Errorf("%w: not an image (%s)", ErrInvalidInput, mtype.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.ImageInfo{}, fmt.Errorf("%w: failed to decode %s header: %v", ErrInvalidInput, mtype.String(), err)
	}
	if !a.isFormatSupported(format) {
		return types.ImageInfo{}, fmt.Errorf("%w: unsupported image format: %s", ErrInvalidInput, format)
	}

	info := types.ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		MIME:   mtype.String(),
	}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}

	if err := a.checkSize(cfg.Width, cfg.Height); err != nil {
		return info, err
	}
	return info, nil
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	return a.checkSize(bounds.Dx(), bounds.Dy())
}

func (a *ImageAnalyzer) checkSize(width, height int) error {
	if width < a.config.MinImageSize || height < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			ErrInvalidInput, width, height, a.config.MinImageSize)
	}
	return nil
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	if len(a.config.SupportedFormats) == 0 {
		return true
	}
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) || (strings.EqualFold(supported, "jpeg") && strings.EqualFold(format, "jpg")) {
			return true
		}
	}
	return false
}

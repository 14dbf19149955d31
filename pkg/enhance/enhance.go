// Package enhance applies the fixed post-resize adjustments to a passport
// photo: brightness, contrast, a conditional sharpness boost and a light
// Gaussian blur, in that order.
package enhance

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"

	"github.com/menta2k/passport-photo/pkg/vision"
)

// Config holds the enhancement factors and thresholds
type Config struct {
	// Brightness multiplies every color channel
	Brightness float64 `json:"brightness"`
	// Contrast scales the distance of every channel from mid-gray
	Contrast float64 `json:"contrast"`
	// SharpnessThreshold is the mean gradient magnitude (0-255 luminance)
	// under which the sharpness boost is applied
	SharpnessThreshold float64 `json:"sharpness_threshold"`
	// SharpnessBoost is the sharpness enhancement factor, 1 leaves the image unchanged
	SharpnessBoost float64 `json:"sharpness_boost"`
	// BlurSigma is the standard deviation of the final Gaussian blur, 0 disables it
	BlurSigma float64 `json:"blur_sigma"`
	// Background replaces any alpha left after filtering
	Background color.Color `json:"-"`
}

// DefaultConfig returns the standard enhancement settings
func DefaultConfig() Config {
	return Config{
		Brightness:         1.2,
		Contrast:           1.3,
		SharpnessThreshold: 30,
		SharpnessBoost:     1.5,
		BlurSigma:          1,
		Background:         color.White,
	}
}

// Validate checks the factors are usable
func (c Config) Validate() error {
	if c.Brightness < 0 {
		return fmt.Errorf("brightness must not be negative")
	}
	if c.Contrast < 0 {
		return fmt.Errorf("contrast must not be negative")
	}
	if c.SharpnessThreshold < 0 {
		return fmt.Errorf("sharpness threshold must not be negative")
	}
	if c.SharpnessBoost < 0 {
		return fmt.Errorf("sharpness boost must not be negative")
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur sigma must not be negative")
	}
	return nil
}

// Report describes what Enhance did
type Report struct {
	Sharpness float64
	Sharpened bool
}

// Enhancer runs the enhancement chain
type Enhancer struct {
	config Config
}

// New creates an Enhancer with default configuration
func New() *Enhancer {
	return &Enhancer{config: DefaultConfig()}
}

// NewWithConfig creates an Enhancer with custom configuration
func NewWithConfig(config Config) *Enhancer {
	if config.Background == nil {
		config.Background = color.White
	}
	return &Enhancer{config: config}
}

// Enhance applies brightness, contrast, the conditional sharpness boost and
// the blur, then flattens the result onto the background color.
//
// The sharpness score is measured after brightness and contrast. The blur
// always runs, also right after a sharpness boost.
func (e *Enhancer) Enhance(img image.Image) (*image.NRGBA, Report) {
	var report Report

	adjusted := apply(img, Brightness(e.config.Brightness), Contrast(e.config.Contrast))

	report.Sharpness = vision.EstimateSharpness(adjusted)
	if report.Sharpness < e.config.SharpnessThreshold {
		adjusted = apply(adjusted, Sharpness(e.config.SharpnessBoost))
		report.Sharpened = true
	}

	if e.config.BlurSigma > 0 {
		adjusted = apply(adjusted, gift.GaussianBlur(float32(e.config.BlurSigma)))
	}

	return Flatten(adjusted, e.config.Background), report
}

// Brightness scales every color channel by factor; alpha is kept
func Brightness(factor float64) gift.Filter {
	f := float32(factor)
	return gift.ColorFunc(func(r0, g0, b0, a0 float32) (r, g, b, a float32) {
		return r0 * f, g0 * f, b0 * f, a0
	})
}

// Contrast scales the distance of every color channel from mid-gray by factor
func Contrast(factor float64) gift.Filter {
	f := float32(factor)
	return gift.ColorFunc(func(r0, g0, b0, a0 float32) (r, g, b, a float32) {
		return (r0-0.5)*f + 0.5, (g0-0.5)*f + 0.5, (b0-0.5)*f + 0.5, a0
	})
}

// Sharpness extrapolates between a smoothed copy of the image and the image
// itself: out = smooth + factor*(in - smooth), with the 3x3 smoothing kernel
// [1 1 1; 1 5 1; 1 1 1]/13. Both steps fold into a single convolution.
func Sharpness(factor float64) gift.Filter {
	f := float32(factor)
	side := (1 - f) / 13
	center := f + (1-f)*5/13
	kernel := []float32{
		side, side, side,
		side, center, side,
		side, side, side,
	}
	return gift.Convolution(kernel, false, false, false, 0)
}

// Flatten composites img over an opaque canvas of color bg
func Flatten(img image.Image, bg color.Color) *image.NRGBA {
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func apply(img image.Image, filters ...gift.Filter) *image.NRGBA {
	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

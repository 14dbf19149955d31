// Package detection provides the face locators the pipeline can use: a pure
// Go pigo cascade, an OpenCV haar cascade (built with -tags gocv) and a
// vision model reached through a client.VisionClient.
package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/passport-photo/pkg/client"
	"github.com/menta2k/passport-photo/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt asks a vision model for every human face in the image
const FacePrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- One entry per visible human face, frontal or near-frontal.
- All coordinates are normalized to [0,1] (NOT pixels), x/y is the top-left corner.
- The box covers forehead to chin and ear to ear, not hair or shoulders.
- If there is no face, return {"faces": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionConfig configures a VisionLocator
type VisionConfig struct {
	Model  string
	Prompt string
	// MaxSide downsizes the image sent to the model, 0 sends it as is
	MaxSide       int
	MinConfidence float64
}

// DefaultVisionConfig returns the defaults for the given model
func DefaultVisionConfig(model string) VisionConfig {
	return VisionConfig{
		Model:         model,
		Prompt:        FacePrompt,
		MaxSide:       1024,
		MinConfidence: 0.3,
	}
}

// VisionLocator finds faces by asking a multimodal model
type VisionLocator struct {
	client client.VisionClient
	config VisionConfig
}

// NewVisionLocator creates a locator backed by a vision client
func NewVisionLocator(client client.VisionClient, config VisionConfig) *VisionLocator {
	if config.Prompt == "" {
		config.Prompt = FacePrompt
	}
	return &VisionLocator{client: client, config: config}
}

// LocateFaces implements client.FaceLocator
func (d *VisionLocator) LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error) {
	imgB64, err := d.encode(img)
	if err != nil {
		return nil, err
	}

	result, err := d.client.DetectFaces(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return nil, fmt.Errorf("vision model face detection failed: %w", err)
	}

	bounds := img.Bounds()
	faces := make([]types.BoundingBox, 0, len(result.Faces))
	for _, f := range result.Faces {
		if f.Confidence < d.config.MinConfidence {
			continue
		}
		box, ok := toPixels(normalizeBox(f.Box), bounds.Dx(), bounds.Dy())
		if !ok {
			continue
		}
		faces = append(faces, box)
	}
	return faces, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *VisionLocator) TestVision(ctx context.Context, img *image.Gray) (string, error) {
	imgB64, err := d.encode(img)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.config.Model, SimpleTestPrompt, imgB64)
}

func (d *VisionLocator) encode(img *image.Gray) (string, error) {
	var src image.Image = img
	b := img.Bounds()
	if d.config.MaxSide > 0 && (b.Dx() > d.config.MaxSide || b.Dy() > d.config.MaxSide) {
		src = imaging.Fit(img, d.config.MaxSide, d.config.MaxSide, imaging.Linear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode image for the model: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// toPixels converts a normalized box to pixel coordinates inside a width x height image
func toPixels(b types.Box, width, height int) (types.BoundingBox, bool) {
	x0 := int(math.Round(b.X * float64(width)))
	y0 := int(math.Round(b.Y * float64(height)))
	x1 := int(math.Round((b.X + b.W) * float64(width)))
	y1 := int(math.Round((b.Y + b.H) * float64(height)))
	return clip(image.Rect(x0, y0, x1, y1), image.Rect(0, 0, width, height))
}

// clip intersects r with bounds and shifts the result to a zero origin.
// The second result is false when nothing is left.
func clip(r, bounds image.Rectangle) (types.BoundingBox, bool) {
	r = r.Intersect(bounds)
	if r.Empty() {
		return types.BoundingBox{}, false
	}
	return types.BoxFromRect(r.Sub(bounds.Min)), true
}

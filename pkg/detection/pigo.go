package detection

import (
	"context"
	_ "embed"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/passport-photo/pkg/types"
)

// Facefinder is the frontal face cascade distributed with pigo
//
//go:embed cascade/facefinder
var Facefinder []byte

// PigoConfig holds the cascade parameters of a PigoLocator
type PigoConfig struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// Angle rotates the cascade, 0 for upright faces
	Angle float64
	// QualityThreshold drops detections pigo scores below it
	QualityThreshold float32
	// IoUThreshold merges overlapping detections
	IoUThreshold float64
}

// DefaultPigoConfig returns the parameters used by the pigo examples for frontal faces
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:          30,
		MaxSize:          0,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		QualityThreshold: 5.0,
		IoUThreshold:     0.2,
	}
}

// PigoLocator detects faces with a pigo pixel-intensity cascade
type PigoLocator struct {
	classifier *pigo.Pigo
	config     PigoConfig
}

// NewPigoLocatorFromFile loads a facefinder cascade from path, or uses the
// embedded Facefinder cascade when path is empty
func NewPigoLocatorFromFile(path string, config PigoConfig) (*PigoLocator, error) {
	if path == "" {
		return NewPigoLocator(Facefinder, config)
	}
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoLocator(cascade, config)
}

// NewPigoLocator unpacks a facefinder cascade
func NewPigoLocator(cascade []byte, config PigoConfig) (l *PigoLocator, err error) {
	if len(cascade) == 0 {
		return nil, fmt.Errorf("empty cascade")
	}
	if config.ScaleFactor <= 1 {
		return nil, fmt.Errorf("scale factor must be greater than 1, got %f", config.ScaleFactor)
	}
	if config.ShiftFactor <= 0 {
		return nil, fmt.Errorf("shift factor must be positive, got %f", config.ShiftFactor)
	}

	// pigo indexes into the cascade without bounds checks
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, fmt.Errorf("corrupt cascade: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &PigoLocator{classifier: classifier, config: config}, nil
}

// LocateFaces implements client.FaceLocator
func (l *PigoLocator) LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	pixels, stride := img.Pix, img.Stride
	if b.Min != (image.Point{}) {
		packed := image.NewGray(image.Rect(0, 0, cols, rows))
		for y := 0; y < rows; y++ {
			copy(packed.Pix[y*packed.Stride:], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:cols])
		}
		pixels, stride = packed.Pix, packed.Stride
	}

	maxSize := l.config.MaxSize
	if maxSize <= 0 {
		maxSize = min(rows, cols)
	}

	params := pigo.CascadeParams{
		MinSize:     l.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: l.config.ShiftFactor,
		ScaleFactor: l.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    stride,
		},
	}

	dets := l.classifier.RunCascade(params, l.config.Angle)
	dets = l.classifier.ClusterDetections(dets, l.config.IoUThreshold)

	return detectionsToBoxes(dets, l.config.QualityThreshold, cols, rows), nil
}

// detectionsToBoxes converts centre/scale detections to boxes clipped to the image
func detectionsToBoxes(dets []pigo.Detection, threshold float32, width, height int) []types.BoundingBox {
	bounds := image.Rect(0, 0, width, height)
	boxes := make([]types.BoundingBox, 0, len(dets))
	for _, det := range dets {
		if det.Q < threshold {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale)
		if box, ok := clip(r, bounds); ok {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

//go:build gocv

package detection

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/passport-photo/pkg/types"
)

// HaarAvailable reports whether the binary was built with OpenCV support
const HaarAvailable = true

// HaarLocator detects faces with an OpenCV haar cascade such as
// haarcascade_frontalface_default.xml
type HaarLocator struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	config     HaarConfig
}

// NewHaarLocator loads the cascade at path
func NewHaarLocator(path string, config HaarConfig) (*HaarLocator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load haar cascade %s", path)
	}
	return &HaarLocator{classifier: classifier, config: config}, nil
}

// LocateFaces implements client.FaceLocator
func (l *HaarLocator) LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image for OpenCV: %w", err)
	}
	defer mat.Close()

	minSize := image.Pt(l.config.MinSize, l.config.MinSize)
	maxSize := image.Pt(l.config.MaxSize, l.config.MaxSize)

	// CascadeClassifier is not safe for concurrent use
	l.mu.Lock()
	rects := l.classifier.DetectMultiScaleWithParams(mat, l.config.ScaleFactor, l.config.MinNeighbors, 0, minSize, maxSize)
	l.mu.Unlock()

	b := img.Bounds()
	bounds := image.Rect(0, 0, b.Dx(), b.Dy())
	boxes := make([]types.BoundingBox, 0, len(rects))
	for _, r := range rects {
		if box, ok := clip(r, bounds); ok {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

// Close releases the OpenCV classifier
func (l *HaarLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.classifier.Close()
}

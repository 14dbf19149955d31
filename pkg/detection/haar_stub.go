//go:build !gocv

package detection

import (
	"context"
	"image"

	"github.com/menta2k/passport-photo/pkg/types"
)

// HaarAvailable reports whether the binary was built with OpenCV support
const HaarAvailable = false

// HaarLocator is a placeholder for builds without OpenCV
type HaarLocator struct{}

// NewHaarLocator always fails without OpenCV
func NewHaarLocator(path string, config HaarConfig) (*HaarLocator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return nil, ErrHaarUnavailable
}

// LocateFaces implements client.FaceLocator
func (l *HaarLocator) LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error) {
	return nil, ErrHaarUnavailable
}

// Close is a no-op
func (l *HaarLocator) Close() error {
	return nil
}

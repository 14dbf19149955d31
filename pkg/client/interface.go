package client

import (
	"context"
	"image"

	"github.com/menta2k/passport-photo/pkg/types"
)

// Segmenter removes the background of an encoded image. The returned bytes
// are an encoded image with an alpha channel where the background is transparent.
type Segmenter interface {
	Segment(ctx context.Context, img []byte) ([]byte, error)
}

// FaceLocator finds faces in a grayscale image. The result may be empty and
// carries no ordering guarantee.
type FaceLocator interface {
	LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error)
}

// SegmenterFunc adapts a function to a Segmenter
type SegmenterFunc func(ctx context.Context, img []byte) ([]byte, error)

// Segment calls f
func (f SegmenterFunc) Segment(ctx context.Context, img []byte) ([]byte, error) {
	return f(ctx, img)
}

// FaceLocatorFunc adapts a function to a FaceLocator
type FaceLocatorFunc func(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error)

// LocateFaces calls f
func (f FaceLocatorFunc) LocateFaces(ctx context.Context, img *image.Gray) ([]types.BoundingBox, error) {
	return f(ctx, img)
}

// VisionClient talks to a multimodal model server
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	DetectFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceDetection, error)
}

package types

import "image"

// BoundingBox locates a detected face in pixel coordinates, origin top-left
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns Width*Height
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts an image.Rectangle to a BoundingBox
func BoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// CropRectangle is the region cut out of the composited image.
// It always satisfies 0 <= X, 0 <= Y, X+Width <= image width, Y+Height <= image height.
type CropRectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect converts the crop rectangle to an image.Rectangle
func (c CropRectangle) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.Width, c.Y+c.Height)
}

// Within reports whether the rectangle lies inside a width x height image
func (c CropRectangle) Within(width, height int) bool {
	return c.X >= 0 && c.Y >= 0 && c.Width >= 0 && c.Height >= 0 &&
		c.X+c.Width <= width && c.Y+c.Height <= height
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Face is a single face reported by a vision model
type Face struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceDetection contains the complete answer from the vision model
type FaceDetection struct {
	Faces []Face `json:"faces"`
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Format      string  `json:"format"`
	MIME        string  `json:"mime"`
}

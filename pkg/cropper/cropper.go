package cropper

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/passport-photo/pkg/types"
)

// ErrNoFace is returned when there is no face to plan a crop around
var ErrNoFace = errors.New("no face detected")

// Planner selects a face and computes the crop rectangle around it
type Planner struct {
	config Config
}

// Config holds configuration for crop planning
type Config struct {
	// MarginRatio is the fraction of the face width/height added on each side
	MarginRatio float64
}

// DefaultMarginRatio is the margin used by New
const DefaultMarginRatio = 0.6

// New creates a new Planner with default configuration
func New() *Planner {
	return &Planner{
		config: Config{
			MarginRatio: DefaultMarginRatio,
		},
	}
}

// NewWithConfig creates a new Planner with custom configuration
func NewWithConfig(config Config) *Planner {
	return &Planner{config: config}
}

// MarginRatio returns the configured margin ratio
func (p *Planner) MarginRatio() float64 {
	return p.config.MarginRatio
}

// SelectLargestFace returns the face with the biggest area.
// Ties go to the face that comes first. ok is false when faces is empty.
func SelectLargestFace(faces []types.BoundingBox) (face types.BoundingBox, ok bool) {
	if len(faces) == 0 {
		return types.BoundingBox{}, false
	}
	face = faces[0]
	for _, f := range faces[1:] {
		if f.Area() > face.Area() {
			face = f
		}
	}
	return face, true
}

// Margins computes the horizontal and vertical margin around face.
//
// The margin starts at round(size * ratio) and is clamped against the
// left/top edge first, then against the right/bottom edge, on the same
// variable. The result is the more restrictive of the two constraints, so
// a face near one edge gets the same reduced margin on both sides.
func (p *Planner) Margins(face types.BoundingBox, imageWidth, imageHeight int) (int, int) {
	marginX := int(math.Round(float64(face.Width) * p.config.MarginRatio))
	marginY := int(math.Round(float64(face.Height) * p.config.MarginRatio))

	if face.X-marginX < 0 {
		marginX = face.X
	}
	if face.Y-marginY < 0 {
		marginY = face.Y
	}
	if face.X+face.Width+marginX > imageWidth {
		marginX = imageWidth - face.X - face.Width
	}
	if face.Y+face.Height+marginY > imageHeight {
		marginY = imageHeight - face.Y - face.Height
	}

	return marginX, marginY
}

// Plan computes the crop rectangle for face inside an imageWidth x imageHeight image
func (p *Planner) Plan(face types.BoundingBox, imageWidth, imageHeight int) (types.CropRectangle, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return types.CropRectangle{}, fmt.Errorf("invalid image dimensions %dx%d", imageWidth, imageHeight)
	}
	if face.Width <= 0 || face.Height <= 0 {
		return types.CropRectangle{}, fmt.Errorf("invalid face box %dx%d", face.Width, face.Height)
	}
	if face.X < 0 || face.Y < 0 || face.X+face.Width > imageWidth || face.Y+face.Height > imageHeight {
		return types.CropRectangle{}, fmt.Errorf("face box (%d,%d,%d,%d) outside %dx%d image",
			face.X, face.Y, face.Width, face.Height, imageWidth, imageHeight)
	}

	marginX, marginY := p.Margins(face, imageWidth, imageHeight)

	cropX := max(0, face.X-marginX)
	cropY := max(0, face.Y-marginY)

	return types.CropRectangle{
		X:      cropX,
		Y:      cropY,
		Width:  min(face.Width+2*marginX, imageWidth-cropX),
		Height: min(face.Height+2*marginY, imageHeight-cropY),
	}, nil
}

// PlanLargest selects the largest face and plans a crop around it
func (p *Planner) PlanLargest(faces []types.BoundingBox, imageWidth, imageHeight int) (types.BoundingBox, types.CropRectangle, error) {
	face, ok := SelectLargestFace(faces)
	if !ok {
		return types.BoundingBox{}, types.CropRectangle{}, ErrNoFace
	}
	rect, err := p.Plan(face, imageWidth, imageHeight)
	if err != nil {
		return face, types.CropRectangle{}, err
	}
	return face, rect, nil
}

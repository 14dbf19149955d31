package detection

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/passport-photo/pkg/types"
	"github.com/menta2k/passport-photo/pkg/vision"
)

// loadFace returns the 320x400 frontal portrait in testdata as grayscale
func loadFace(t *testing.T) *image.Gray {
	t.Helper()
	img, err := imaging.Open("testdata/face.jpg")
	require.NoError(t, err)
	return vision.Grayscale(img)
}

func largest(boxes []types.BoundingBox) types.BoundingBox {
	var best types.BoundingBox
	for _, b := range boxes {
		if b.Width*b.Height > best.Width*best.Height {
			best = b
		}
	}
	return best
}

func TestPigoLocatorFindsFace(t *testing.T) {
	for _, scale := range []float64{1.1, 1.2} {
		cfg := DefaultPigoConfig()
		cfg.ScaleFactor = scale

		locator, err := NewPigoLocatorFromFile("", cfg)
		require.NoError(t, err)

		gray := loadFace(t)
		boxes, err := locator.LocateFaces(context.Background(), gray)
		require.NoError(t, err)
		require.NotEmpty(t, boxes, "scale %.1f", scale)

		bounds := gray.Bounds()
		for _, b := range boxes {
			assert.True(t, b.X >= 0 && b.Y >= 0 && b.X+b.Width <= bounds.Dx() && b.Y+b.Height <= bounds.Dy(),
				"box %+v outside %v", b, bounds)
		}

		// the face spans roughly x 60-260 and y 80-350, eyes at y 185
		face := largest(boxes)
		cx, cy := face.X+face.Width/2, face.Y+face.Height/2
		assert.InDelta(t, 160, cx, 50, "scale %.1f: face %+v", scale, face)
		assert.InDelta(t, 210, cy, 70, "scale %.1f: face %+v", scale, face)
		assert.Greater(t, face.Width, 100)
	}
}

func TestPigoLocatorFlatImage(t *testing.T) {
	locator, err := NewPigoLocator(Facefinder, DefaultPigoConfig())
	require.NoError(t, err)

	flat := image.NewGray(image.Rect(0, 0, 200, 200))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)

	boxes, err := locator.LocateFaces(context.Background(), flat)
	require.NoError(t, err)
	assert.Empty(t, boxes)

	boxes, err = locator.LocateFaces(context.Background(), image.NewGray(image.Rectangle{}))
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestPigoLocatorSubImage(t *testing.T) {
	locator, err := NewPigoLocator(Facefinder, DefaultPigoConfig())
	require.NoError(t, err)

	gray := loadFace(t)
	want, err := locator.LocateFaces(context.Background(), gray)
	require.NoError(t, err)

	// the same pixels at an offset inside a wider canvas
	offset := image.Pt(37, 23)
	canvas := image.NewGray(image.Rect(0, 0, gray.Bounds().Dx()+80, gray.Bounds().Dy()+60))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, gray.Bounds().Add(offset), gray, image.Point{}, draw.Src)
	sub := canvas.SubImage(gray.Bounds().Add(offset)).(*image.Gray)

	got, err := locator.LocateFaces(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPigoLocatorCancelled(t *testing.T) {
	locator, err := NewPigoLocator(Facefinder, DefaultPigoConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locator.LocateFaces(ctx, loadFace(t))
	assert.ErrorIs(t, err, context.Canceled)
}

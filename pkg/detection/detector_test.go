package detection

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"path/filepath"
	"strings"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/passport-photo/pkg/types"
)

type fakeVisionClient struct {
	result *types.FaceDetection
	err    error
	answer string

	model  string
	prompt string
	imgB64 string
}

func (f *fakeVisionClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.model, f.prompt, f.imgB64 = model, prompt, imgB64
	return f.answer, f.err
}

func (f *fakeVisionClient) DetectFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceDetection, error) {
	f.model, f.prompt, f.imgB64 = model, prompt, imgB64
	return f.result, f.err
}

func face(conf, x, y, w, h float64) types.Face {
	return types.Face{Confidence: conf, Box: types.Box{X: x, Y: y, W: w, H: h}}
}

func TestVisionLocatorConvertsToPixels(t *testing.T) {
	fake := &fakeVisionClient{result: &types.FaceDetection{Faces: []types.Face{
		face(0.9, 0.25, 0.5, 0.5, 0.25),
		// below confidence
		face(0.1, 0, 0, 0.5, 0.5),
		// clipped to the corner
		face(0.8, 0.9, 0.9, 0.5, 0.5),
		// entirely outside
		face(0.8, 1.2, 0.1, 0.1, 0.1),
	}}}

	locator := NewVisionLocator(fake, DefaultVisionConfig("llava"))
	boxes, err := locator.LocateFaces(context.Background(), image.NewGray(image.Rect(0, 0, 400, 200)))
	require.NoError(t, err)

	assert.Equal(t, []types.BoundingBox{
		{X: 100, Y: 100, Width: 200, Height: 50},
		{X: 360, Y: 180, Width: 40, Height: 20},
	}, boxes)
	assert.Equal(t, "llava", fake.model)
	assert.Equal(t, FacePrompt, fake.prompt)
}

func TestVisionLocatorSendsJPEG(t *testing.T) {
	fake := &fakeVisionClient{result: &types.FaceDetection{}}
	cfg := DefaultVisionConfig("m")
	cfg.MaxSide = 100

	locator := NewVisionLocator(fake, cfg)
	boxes, err := locator.LocateFaces(context.Background(), image.NewGray(image.Rect(0, 0, 400, 200)))
	require.NoError(t, err)
	assert.Empty(t, boxes)

	data, err := base64.StdEncoding.DecodeString(fake.imgB64)
	require.NoError(t, err)
	cfgImg, err := jpeg.DecodeConfig(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, 100, cfgImg.Width)
	assert.Equal(t, 50, cfgImg.Height)
}

func TestVisionLocatorError(t *testing.T) {
	boom := errors.New("model offline")
	locator := NewVisionLocator(&fakeVisionClient{err: boom}, DefaultVisionConfig("m"))

	_, err := locator.LocateFaces(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, boom)
}

func TestTestVision(t *testing.T) {
	fake := &fakeVisionClient{answer: "a grey square"}
	locator := NewVisionLocator(fake, VisionConfig{Model: "m"})

	answer, err := locator.TestVision(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)
	assert.Equal(t, "a grey square", answer)
	assert.Equal(t, SimpleTestPrompt, fake.prompt)
}

func TestNormalizeBox(t *testing.T) {
	assert.Equal(t, types.Box{X: 0, Y: 0.5, W: 1, H: 0.5}, normalizeBox(types.Box{X: -0.2, Y: 0.5, W: 1.5, H: 0.9}))
}

func TestClip(t *testing.T) {
	bounds := image.Rect(10, 10, 110, 60)

	box, ok := clip(image.Rect(0, 0, 30, 30), bounds)
	require.True(t, ok)
	assert.Equal(t, types.BoundingBox{X: 0, Y: 0, Width: 20, Height: 20}, box)

	_, ok = clip(image.Rect(200, 200, 210, 210), bounds)
	assert.False(t, ok)
}

func TestDetectionsToBoxes(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 100, Col: 100, Scale: 60, Q: 12},
		// clipped at the top left
		{Row: 10, Col: 10, Scale: 40, Q: 8},
		// below threshold
		{Row: 50, Col: 50, Scale: 40, Q: 2},
	}

	boxes := detectionsToBoxes(dets, 5, 150, 150)
	assert.Equal(t, []types.BoundingBox{
		{X: 70, Y: 70, Width: 60, Height: 60},
		{X: 0, Y: 0, Width: 30, Height: 30},
	}, boxes)
}

func TestNewPigoLocatorErrors(t *testing.T) {
	_, err := NewPigoLocatorFromFile(filepath.Join(t.TempDir(), "missing"), DefaultPigoConfig())
	assert.Error(t, err)

	_, err = NewPigoLocator(nil, DefaultPigoConfig())
	assert.Error(t, err)

	cfg := DefaultPigoConfig()
	cfg.ScaleFactor = 1
	_, err = NewPigoLocator([]byte{1, 2, 3, 4}, cfg)
	assert.Error(t, err)

	_, err = NewPigoLocator([]byte{1, 2, 3}, DefaultPigoConfig())
	assert.Error(t, err)
}

func TestHaarConfig(t *testing.T) {
	cfg := DefaultHaarConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 1.2, cfg.ScaleFactor)
	assert.Equal(t, 5, cfg.MinNeighbors)
	assert.Equal(t, 30, cfg.MinSize)

	cfg.MaxSize = 10
	assert.Error(t, cfg.Validate())
}

func TestHaarLocatorMissingCascade(t *testing.T) {
	_, err := NewHaarLocator(filepath.Join(t.TempDir(), "missing.xml"), DefaultHaarConfig())
	assert.Error(t, err)
	if !HaarAvailable {
		assert.ErrorIs(t, err, ErrHaarUnavailable)
	}
}

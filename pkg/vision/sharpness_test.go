package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createTestImage creates an image with a checkerboard of the given cell size
func createTestImage(width, height, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}

	return img
}

func createUniformImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestEstimateSharpnessUniform(t *testing.T) {
	colors := []color.Color{
		color.NRGBA{255, 255, 255, 255},
		color.NRGBA{12, 200, 77, 255},
		color.NRGBA{0, 0, 0, 0},
	}

	for _, c := range colors {
		sharpness := EstimateSharpness(createUniformImage(64, 48, c))
		if sharpness != 0 {
			t.Errorf("Expected sharpness 0 for uniform %v, got %f", c, sharpness)
		}
	}
}

func TestEstimateSharpnessCheckerboard(t *testing.T) {
	// 1px checkerboard: every step flips between 0 and 255 in both directions
	sharpness := EstimateSharpness(createTestImage(10, 10, 1))
	expected := math.Sqrt(2 * 255 * 255)

	if math.Abs(sharpness-expected) > 1e-6 {
		t.Errorf("Expected sharpness %f, got %f", expected, sharpness)
	}
}

func TestEstimateSharpnessOrdering(t *testing.T) {
	fine := EstimateSharpness(createTestImage(64, 64, 2))
	coarse := EstimateSharpness(createTestImage(64, 64, 16))

	if fine <= coarse {
		t.Errorf("Expected fine pattern (%f) to be sharper than coarse pattern (%f)", fine, coarse)
	}
}

func TestEstimateSharpnessTiny(t *testing.T) {
	if s := EstimateSharpness(createTestImage(1, 10, 1)); s != 0 {
		t.Errorf("Expected 0 for single column image, got %f", s)
	}
	if s := EstimateSharpness(createTestImage(10, 1, 1)); s != 0 {
		t.Errorf("Expected 0 for single row image, got %f", s)
	}
}

func TestEstimateSharpnessGenericImage(t *testing.T) {
	// same pattern through the generic At() path
	nrgba := createTestImage(20, 20, 1)
	rgba := image.NewRGBA(nrgba.Bounds())
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			rgba.Set(x, y, nrgba.At(x, y))
		}
	}

	a := EstimateSharpness(nrgba)
	b := EstimateSharpness(rgba)
	if math.Abs(a-b) > 1e-6 {
		t.Errorf("Expected NRGBA and RGBA paths to agree, got %f and %f", a, b)
	}
}

func TestEstimateSharpnessSubImage(t *testing.T) {
	img := createTestImage(40, 40, 1)
	// uniform region carved out of a busy image
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			img.Set(x, y, color.NRGBA{90, 90, 90, 255})
		}
	}

	sub := img.SubImage(image.Rect(10, 10, 20, 20))
	if s := EstimateSharpness(sub); s != 0 {
		t.Errorf("Expected 0 for uniform sub image, got %f", s)
	}
}

func TestGrayscale(t *testing.T) {
	img := createUniformImage(8, 4, color.NRGBA{255, 255, 255, 255})
	img.Set(0, 0, color.NRGBA{255, 255, 255, 0})

	gray := Grayscale(img)
	if gray.Bounds().Dx() != 8 || gray.Bounds().Dy() != 4 {
		t.Fatalf("Expected 8x4 gray image, got %v", gray.Bounds())
	}

	if gray.GrayAt(0, 0).Y != 0 {
		t.Errorf("Expected transparent pixel to be black, got %d", gray.GrayAt(0, 0).Y)
	}
	if gray.GrayAt(7, 3).Y != 255 {
		t.Errorf("Expected white pixel to stay white, got %d", gray.GrayAt(7, 3).Y)
	}
}

func TestGrayscaleOffsetBounds(t *testing.T) {
	img := createTestImage(20, 20, 1)
	sub := img.SubImage(image.Rect(5, 5, 15, 15))

	gray := Grayscale(sub)
	if gray.Bounds().Min != (image.Point{}) {
		t.Errorf("Expected origin at 0,0, got %v", gray.Bounds().Min)
	}
	if gray.GrayAt(0, 0).Y != 255 {
		t.Errorf("Expected pixel (5,5) of the source to be white, got %d", gray.GrayAt(0, 0).Y)
	}
}

func BenchmarkEstimateSharpness(b *testing.B) {
	img := createTestImage(1000, 1000, 3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EstimateSharpness(img)
	}
}

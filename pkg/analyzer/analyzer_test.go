package analyzer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill with a gradient pattern
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func encode(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s failed: %v", format, err)
	}
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	analyzer := New()
	if analyzer == nil {
		t.Fatal("New() returned nil")
	}

	if analyzer.config.MinImageSize != 64 {
		t.Errorf("Expected min size 64, got %d", analyzer.config.MinImageSize)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := Config{
		SupportedFormats: []string{"png"},
		MinImageSize:     200,
	}

	analyzer := NewWithConfig(cfg)
	if analyzer.config.MinImageSize != 200 {
		t.Errorf("Expected min size 200, got %d", analyzer.config.MinImageSize)
	}
}

func TestValidateBytes(t *testing.T) {
	analyzer := New()

	tests := []struct {
		name   string
		format string
		mime   string
		w, h   int
	}{
		{"png", "png", "image/png", 200, 100},
		{"jpeg", "jpeg", "image/jpeg", 120, 160},
		{"gif", "gif", "image/gif", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := analyzer.ValidateBytes(encode(t, tt.format, createTestImage(tt.w, tt.h)))
			if err != nil {
				t.Fatalf("ValidateBytes failed: %v", err)
			}
			if info.Width != tt.w || info.Height != tt.h {
				t.Errorf("Expected %dx%d, got %dx%d", tt.w, tt.h, info.Width, info.Height)
			}
			if info.Format != tt.format {
				t.Errorf("Expected format %s, got %s", tt.format, info.Format)
			}
			if info.MIME != tt.mime {
				t.Errorf("Expected MIME %s, got %s", tt.mime, info.MIME)
			}
		})
	}
}

func TestValidateBytesRejects(t *testing.T) {
	analyzer := New()

	inputs := map[string][]byte{
		"empty":     nil,
		"text":      []byte("hello, this is not a photo"),
		"truncated": encode(t, "png", createTestImage(100, 100))[:20],
		"too small": encode(t, "png", createTestImage(10, 300)),
	}

	for name, data := range inputs {
		if _, err := analyzer.ValidateBytes(data); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestValidateBytesUnsupportedFormat(t *testing.T) {
	analyzer := NewWithConfig(Config{SupportedFormats: []string{"png"}, MinImageSize: 1})

	_, err := analyzer.ValidateBytes(encode(t, "jpeg", createTestImage(100, 100)))
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for jpeg, got %v", err)
	}
}

func TestValidateBytesInfo(t *testing.T) {
	analyzer := New()

	info, err := analyzer.ValidateBytes(encode(t, "png", createTestImage(400, 300)))
	if err != nil {
		t.Fatalf("ValidateBytes failed: %v", err)
	}

	if info.Width != 400 {
		t.Errorf("Expected width 400, got %d", info.Width)
	}

	if info.Height != 300 {
		t.Errorf("Expected height 300, got %d", info.Height)
	}

	expectedRatio := float64(400) / float64(300)
	if info.AspectRatio != expectedRatio {
		t.Errorf("Expected aspect ratio %f, got %f", expectedRatio, info.AspectRatio)
	}
}

func TestValidateImage(t *testing.T) {
	analyzer := New()

	if err := analyzer.ValidateImage(createTestImage(200, 200)); err != nil {
		t.Errorf("Valid image should pass validation: %v", err)
	}

	if err := analyzer.ValidateImage(createTestImage(50, 50)); err == nil {
		t.Error("Small image should fail validation")
	}
}

func TestIsFormatSupported(t *testing.T) {
	analyzer := New()

	for _, format := range []string{"jpg", "jpeg", "png", "JPEG", "PNG", "webp", "bmp", "tiff", "gif"} {
		if !analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should be supported", format)
		}
	}

	for _, format := range []string{"heic", "psd", ""} {
		if analyzer.isFormatSupported(format) {
			t.Errorf("Format %s should not be supported", format)
		}
	}
}

func BenchmarkValidateBytes(b *testing.B) {
	analyzer := New()
	var buf bytes.Buffer
	png.Encode(&buf, createTestImage(1920, 1080))
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		analyzer.ValidateBytes(data)
	}
}

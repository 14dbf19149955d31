package segment

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 1, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func TestHTTPSegmenter(t *testing.T) {
	input := jpegBytes(t)
	output := pngBytes(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/remove", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		assert.Equal(t, "image.jpg", header.Filename)
		got, _ := io.ReadAll(file)
		assert.Equal(t, input, got)

		w.Header().Set("Content-Type", "image/png")
		w.Write(output)
	}))
	defer server.Close()

	s := NewHTTPSegmenter(server.URL+"/", time.Second)
	got, err := s.Segment(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, output, got)
}

func TestHTTPSegmenterErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{"server error", http.StatusInternalServerError, []byte("model crashed")},
		{"empty body", http.StatusOK, nil},
		{"not an image", http.StatusOK, []byte(`{"detail":"nope"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer server.Close()

			_, err := NewHTTPSegmenter(server.URL, time.Second).Segment(context.Background(), pngBytes(t))
			assert.Error(t, err)
		})
	}
}

func TestHTTPSegmenterCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPSegmenter(server.URL, time.Second).Segment(ctx, pngBytes(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommandSegmenter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses cp")
	}
	if _, err := os.Stat("/bin/cp"); err != nil {
		t.Skip("cp not available")
	}

	// cp <in> <out> stands in for rembg i <in> <out>
	tmp := t.TempDir()
	s := NewCommandSegmenter("/bin/cp", nil, tmp)
	input := pngBytes(t)

	got, err := s.Segment(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, input, got)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "work dir should be removed")
}

func TestCommandSegmenterFailure(t *testing.T) {
	s := NewCommandSegmenter(filepath.Join(t.TempDir(), "no-such-rembg"), nil, t.TempDir())
	_, err := s.Segment(context.Background(), pngBytes(t))
	assert.Error(t, err)
}

func TestNewCommandSegmenterDefault(t *testing.T) {
	s := NewCommandSegmenter("", nil, "")
	assert.Equal(t, "rembg", s.command)
	assert.Equal(t, []string{"i"}, s.args)
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Segment(context.Background(), jpegBytes(t))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = Passthrough{}.Segment(context.Background(), []byte("garbage"))
	assert.Error(t, err)
}

// Package segment implements client.Segmenter backends that cut the person
// out of a photo and return a PNG with a transparent background.
package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when a backend produces no image data
var ErrEmptyImage = errors.New("segmenter returned an empty image")

// HTTPSegmenter posts the photo to a rembg compatible server
type HTTPSegmenter struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSegmenter creates a segmenter for the rembg server at serverURL
func NewHTTPSegmenter(serverURL string, timeout time.Duration) *HTTPSegmenter {
	if serverURL == "" {
		serverURL = "http://localhost:7000"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPSegmenter{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Segment implements client.Segmenter
func (s *HTTPSegmenter) Segment(ctx context.Context, img []byte) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "image"+mimetype.Detect(img).Extension())
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/remove", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rembg server returned status %d: %s", resp.StatusCode, truncate(out, 200))
	}

	return checkImage(out)
}

// CommandSegmenter runs the rembg command line tool
type CommandSegmenter struct {
	command string
	args    []string
	tempDir string
}

// NewCommandSegmenter creates a segmenter running command with args followed
// by the input and output paths. An empty command runs "rembg i".
func NewCommandSegmenter(command string, args []string, tempDir string) *CommandSegmenter {
	if command == "" {
		command = "rembg"
		args = []string{"i"}
	}
	return &CommandSegmenter{command: command, args: args, tempDir: tempDir}
}

// Segment implements client.Segmenter
func (s *CommandSegmenter) Segment(ctx context.Context, img []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(s.tempDir, "segment-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+mimetype.Detect(img).Extension())
	out := filepath.Join(dir, "output.png")
	if err := os.WriteFile(in, img, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write input: %w", err)
	}

	args := append(append([]string{}, s.args...), in, out)
	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", s.command, err, truncate(stderr.Bytes(), 200))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s output: %w", s.command, err)
	}
	return checkImage(data)
}

// Passthrough keeps the photo as is and re-encodes it as PNG. It suits
// inputs that already have a transparent or plain background.
type Passthrough struct{}

// Segment implements client.Segmenter
func (Passthrough) Segment(ctx context.Context, img []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func checkImage(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("segmenter returned %s instead of an image", mtype.String())
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

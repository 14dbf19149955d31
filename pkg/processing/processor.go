package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/passport-photo/pkg/resize"
	"github.com/menta2k/passport-photo/pkg/types"
)

// ErrUnsupportedFormat is returned for images no registered codec can handle
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Config holds encoder and resampling settings
type Config struct {
	JPEGQuality  int
	WebPQuality  int
	WebPLossless bool
	Resizer      resize.Resizer
	// MaxDownloadBytes caps images fetched over HTTP, 0 means no limit
	MaxDownloadBytes int64
}

// DefaultConfig returns the default processor settings
func DefaultConfig() Config {
	return Config{
		JPEGQuality:      95,
		WebPQuality:      95,
		WebPLossless:     false,
		Resizer:          &resize.Imaging{},
		MaxDownloadBytes: 50 << 20,
	}
}

// Processor handles image processing operations
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return NewProcessorWithConfig(DefaultConfig())
}

// NewProcessorWithConfig creates a new image processor with custom settings
func NewProcessorWithConfig(config Config) *Processor {
	if config.Resizer == nil {
		config.Resizer = &resize.Imaging{}
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 95
	}
	if config.WebPQuality <= 0 {
		config.WebPQuality = 95
	}
	return &Processor{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// ReadSource reads the raw bytes of an image from a file path or an http(s) URL
func (p *Processor) ReadSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.download(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// download fetches an image over HTTP
func (p *Processor) download(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Passport-Photo/1.0 (+https://github.com/menta2k/passport-photo)")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	var body io.Reader = resp.Body
	if p.config.MaxDownloadBytes > 0 {
		body = io.LimitReader(resp.Body, p.config.MaxDownloadBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if p.config.MaxDownloadBytes > 0 && int64(len(data)) > p.config.MaxDownloadBytes {
		return nil, fmt.Errorf("image larger than %d bytes", p.config.MaxDownloadBytes)
	}

	return data, nil
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, ErrUnsupportedFormat
}

// Composite places img over an opaque canvas of the same size filled with bg.
// Pixels are blended with the "over" operator: fg*alpha + bg*(1-alpha).
func (p *Processor) Composite(img image.Image, bg color.Color) *image.NRGBA {
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// Crop cuts rect out of img. rect is relative to the image origin.
func (p *Processor) Crop(img image.Image, rect types.CropRectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if !rect.Within(bounds.Dx(), bounds.Dy()) || rect.Width == 0 || rect.Height == 0 {
		return nil, fmt.Errorf("crop rectangle %+v outside %dx%d image", rect, bounds.Dx(), bounds.Dy())
	}
	r := rect.Rect().Add(bounds.Min)
	return imaging.Crop(img, r), nil
}

// Resize scales img to exactly width x height
func (p *Processor) Resize(img image.Image, width, height int) (image.Image, error) {
	return p.config.Resizer.Resize(img, width, height)
}

// SaveImage writes img to path in the format implied by its extension.
// The data is written to a temporary sibling first and renamed into place,
// so an interrupted write never leaves a truncated file at path.
func (p *Processor) SaveImage(img image.Image, path string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return fmt.Errorf("%w: output path %q has no extension", ErrUnsupportedFormat, path)
	}

	encode, err := p.encoderFor(ext)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", ext, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	tmpPath = ""

	return nil
}

// outputFormats are the extensions SaveImage writes besides webp. TIFF is
// decoded but never written: x/image/tiff stores NRGBA with an alpha sample.
var outputFormats = map[string]imaging.Format{
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
	"bmp":  imaging.BMP,
}

func (p *Processor) encoderFor(ext string) (func(io.Writer, image.Image) error, error) {
	if ext == "webp" {
		return func(w io.Writer, img image.Image) error {
			var data []byte
			var err error
			if p.config.WebPLossless {
				data, err = webp.EncodeLosslessRGB(img)
			} else {
				data, err = webp.EncodeRGB(img, float32(p.config.WebPQuality))
			}
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}, nil
	}

	format, ok := outputFormats[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return func(w io.Writer, img image.Image) error {
		return imaging.Encode(w, img, format, imaging.JPEGQuality(p.config.JPEGQuality))
	}, nil
}

// SupportsOutput reports whether SaveImage can write a file with this path's extension
func (p *Processor) SupportsOutput(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	_, err := p.encoderFor(ext)
	return err == nil
}

// CreateDebugOverlay draws the detected face and the planned crop on a copy of img
func (p *Processor) CreateDebugOverlay(img image.Image, faces []types.BoundingBox, face types.BoundingBox, crop types.CropRectangle) *image.NRGBA {
	nrgba := p.Composite(img, color.NRGBA{128, 128, 128, 255})
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	// Colors: gray for other detections, green for the selected face,
	// gold for the crop box and red for the face center
	gray := color.NRGBA{160, 160, 160, 255}
	green := color.NRGBA{0, 255, 0, 255}
	gold := color.NRGBA{255, 204, 0, 255}
	red := color.NRGBA{255, 0, 0, 255}

	// ~0.4% and ~1% of min side
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))
	cross := int(math.Max(4, 0.01*float64(min(w, h))))

	for _, f := range faces {
		if f != face {
			drawBox(nrgba, f.Rect(), gray, stroke)
		}
	}
	drawBox(nrgba, face.Rect(), green, stroke)
	if crop.Width > 0 && crop.Height > 0 {
		drawBox(nrgba, crop.Rect(), gold, stroke)
	}

	cx, cy := face.X+face.Width/2, face.Y+face.Height/2
	drawHLine(nrgba, cy, cx-cross, cx+cross, red)
	drawVLine(nrgba, cx, cy-cross, cy+cross, red)

	return nrgba
}

func drawBox(img *image.NRGBA, r image.Rectangle, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

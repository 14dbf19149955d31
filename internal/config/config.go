package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Environment variables read by ApplyEnv
const (
	EnvConfigPath = "PASSPORT_PHOTO_CONFIG"
	EnvListenAddr = "LISTEN_ADDR"
	EnvPort       = "PORT"
)

// Segmenter backends
const (
	SegmenterRembgHTTP = "rembg-http"
	SegmenterRembgCLI  = "rembg-cli"
	SegmenterNone      = "none"
)

// Detector backends
const (
	DetectorPigo     = "pigo"
	DetectorHaar     = "haar"
	DetectorOllama   = "ollama"
	DetectorLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Photo     PhotoConfig     `json:"photo"`
	Enhance   EnhanceConfig   `json:"enhance"`
	Segmenter SegmenterConfig `json:"segmenter"`
	Detector  DetectorConfig  `json:"detector"`
	Output    OutputConfig    `json:"output"`
	Server    ServerConfig    `json:"server"`
	Log       LogConfig       `json:"log"`
}

// PhotoConfig holds the geometry of the produced photo
type PhotoConfig struct {
	TargetWidth  int     `json:"target_width"`
	TargetHeight int     `json:"target_height"`
	MarginRatio  float64 `json:"margin_ratio"`
	// Background is a hex color such as "#ffffff"
	Background   string `json:"background"`
	Resizer      string `json:"resizer"`
	MinImageSize int    `json:"min_image_size"`
}

// EnhanceConfig holds the enhancement factors
type EnhanceConfig struct {
	Brightness         float64 `json:"brightness"`
	Contrast           float64 `json:"contrast"`
	SharpnessThreshold float64 `json:"sharpness_threshold"`
	SharpnessBoost     float64 `json:"sharpness_boost"`
	BlurSigma          float64 `json:"blur_sigma"`
}

// SegmenterConfig selects and configures the background remover
type SegmenterConfig struct {
	Backend string   `json:"backend"`
	URL     string   `json:"url"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Timeout Duration `json:"timeout"`
}

// DetectorConfig selects and configures the face locator
type DetectorConfig struct {
	Backend     string  `json:"backend"`
	// CascadePath is required for haar. Pigo falls back to the embedded
	// facefinder cascade when it is empty.
	CascadePath string  `json:"cascade_path"`
	ScaleFactor float64 `json:"scale_factor"`
	// MinNeighbors is used by the haar backend only
	MinNeighbors int     `json:"min_neighbors"`
	MinSize      int     `json:"min_size"`
	MaxSize      int     `json:"max_size"`
	ShiftFactor  float64 `json:"shift_factor"`
	Quality      float64 `json:"quality_threshold"`
	IoU          float64 `json:"iou_threshold"`
	// Model and URL are used by the vision model backends
	Model         string   `json:"model"`
	URL           string   `json:"url"`
	APIKey        string   `json:"api_key,omitempty"`
	Timeout       Duration `json:"timeout"`
	MinConfidence float64  `json:"min_confidence"`
}

// OutputConfig holds encoder settings
type OutputConfig struct {
	JPEGQuality  int    `json:"jpeg_quality"`
	WebPQuality  int    `json:"webp_quality"`
	WebPLossless bool   `json:"webp_lossless"`
	TempDir      string `json:"temp_dir"`
	Debug        bool   `json:"debug"`
}

// ServerConfig holds upload server settings
type ServerConfig struct {
	ListenAddr     string   `json:"listen_addr"`
	UploadDir      string   `json:"upload_dir"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	AllowOrigins   []string `json:"allow_origins"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Duration is a time.Duration that reads and writes as a string like "90s"
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Photo: PhotoConfig{
			TargetWidth:  3000,
			TargetHeight: 3000,
			MarginRatio:  0.6,
			Background:   "#ffffff",
			Resizer:      "imaging",
			MinImageSize: 64,
		},
		Enhance: EnhanceConfig{
			Brightness:         1.2,
			Contrast:           1.3,
			SharpnessThreshold: 30,
			SharpnessBoost:     1.5,
			BlurSigma:          1,
		},
		Segmenter: SegmenterConfig{
			Backend: SegmenterRembgHTTP,
			URL:     "http://localhost:7000",
			Command: "rembg",
			Args:    []string{"i"},
			Timeout: Duration(2 * time.Minute),
		},
		Detector: DetectorConfig{
			Backend:       DetectorPigo,
			ScaleFactor:   1.2,
			MinNeighbors:  5,
			MinSize:       30,
			MaxSize:       0,
			ShiftFactor:   0.1,
			Quality:       5.0,
			IoU:           0.2,
			Model:         "llava",
			URL:           "http://localhost:11434",
			Timeout:       Duration(5 * time.Minute),
			MinConfidence: 0.3,
		},
		Output: OutputConfig{
			JPEGQuality: 95,
			WebPQuality: 95,
		},
		Server: ServerConfig{
			ListenAddr:     ":4000",
			UploadDir:      "uploads",
			MaxUploadBytes: 25 << 20,
			AllowOrigins:   []string{"*"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads path, or the file named by PASSPORT_PHOTO_CONFIG when path is
// empty, then applies environment overrides. Without any file the defaults
// are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	config := Default()
	if path != "" {
		var err error
		if config, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if port := os.Getenv(EnvPort); port != "" {
		c.Server.ListenAddr = ":" + port
	}
	if addr := os.Getenv(EnvListenAddr); addr != "" {
		c.Server.ListenAddr = addr
	}
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BackgroundColor parses photo.background
func (c *Config) BackgroundColor() (color.Color, error) {
	bg, err := colorful.Hex(c.Photo.Background)
	if err != nil {
		return nil, fmt.Errorf("photo.background: %w", err)
	}
	r, g, b := bg.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Photo.TargetWidth < 1 || c.Photo.TargetHeight < 1 {
		return fmt.Errorf("photo.target_width and photo.target_height must be positive")
	}

	if c.Photo.MarginRatio < 0 {
		return fmt.Errorf("photo.margin_ratio must not be negative")
	}

	if _, err := c.BackgroundColor(); err != nil {
		return err
	}

	if c.Photo.MinImageSize < 1 {
		return fmt.Errorf("photo.min_image_size must be positive")
	}

	if c.Enhance.Brightness < 0 || c.Enhance.Contrast < 0 || c.Enhance.SharpnessBoost < 0 {
		return fmt.Errorf("enhance factors must not be negative")
	}

	if c.Enhance.BlurSigma < 0 {
		return fmt.Errorf("enhance.blur_sigma must not be negative")
	}

	switch c.Segmenter.Backend {
	case SegmenterRembgHTTP, SegmenterRembgCLI, SegmenterNone:
	default:
		return fmt.Errorf("segmenter.backend must be one of %s, %s, %s", SegmenterRembgHTTP, SegmenterRembgCLI, SegmenterNone)
	}

	switch c.Detector.Backend {
	case DetectorPigo, DetectorHaar:
		if c.Detector.Backend == DetectorHaar && c.Detector.CascadePath == "" {
			return fmt.Errorf("detector.cascade_path is required for the %s backend", c.Detector.Backend)
		}
		if c.Detector.ScaleFactor <= 1 {
			return fmt.Errorf("detector.scale_factor must be greater than 1")
		}
	case DetectorOllama, DetectorLlamaCpp:
		if c.Detector.Model == "" && c.Detector.Backend == DetectorOllama {
			return fmt.Errorf("detector.model is required for the ollama backend")
		}
	default:
		return fmt.Errorf("detector.backend must be one of %s, %s, %s, %s", DetectorPigo, DetectorHaar, DetectorOllama, DetectorLlamaCpp)
	}

	if c.Detector.MinSize < 0 || c.Detector.MaxSize < 0 {
		return fmt.Errorf("detector size limits must not be negative")
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}

	if c.Output.WebPQuality < 1 || c.Output.WebPQuality > 100 {
		return fmt.Errorf("output.webp_quality must be between 1 and 100")
	}

	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must not be negative")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "passport-photo", "config.json")
}

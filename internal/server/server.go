// Package server exposes the passport photo pipeline over HTTP.
//
// Clients upload a photo as the multipart field "image" to POST /upload.
// The upload is stored in the upload directory and the result is written
// next to it as <name>_processed.png.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/internal/log"
	"github.com/menta2k/passport-photo/internal/utils"
)

// ShutdownTimeout bounds the graceful shutdown
const ShutdownTimeout = 10 * time.Second

// FormField is the multipart field carrying the photo
const FormField = "image"

// Processor runs the pipeline for one stored upload
type Processor interface {
	Process(ctx context.Context, input, output string) passportphoto.Result
}

// Response is the JSON body of POST /upload
type Response struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Server is the upload server
type Server struct {
	echo      *echo.Echo
	processor Processor
	config    config.ServerConfig
	now       func() time.Time
}

// New creates the server and its upload directory
func New(processor Processor, cfg config.ServerConfig) (*Server, error) {
	if processor == nil {
		return nil, errors.New("server needs a processor")
	}
	if err := utils.EnsureDir(cfg.UploadDir); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	s := &Server{
		echo:      echo.New(),
		processor: processor,
		config:    cfg,
		now:       time.Now,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(gommonlog.INFO)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				log.Warn("request failed", append(args, "err", v.Error)...)
				return nil
			}
			log.Info("request", args...)
			return nil
		},
	}))
	e.Use(middleware.Secure())
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: origins}))
	if cfg.MaxUploadBytes > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dB", cfg.MaxUploadBytes)))
	}

	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "OK") })
	e.POST("/upload", s.handleUpload)

	return s, nil
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the listening address once the server has started
func (s *Server) Addr() net.Addr {
	return s.echo.ListenerAddr()
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("upload server listening", "addr", s.config.ListenAddr, "upload_dir", s.config.UploadDir)
		if err := s.echo.Start(s.config.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down upload server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile(FormField)
	if err != nil {
		return c.JSON(http.StatusBadRequest, Response{Message: "No image uploaded."})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, Response{Message: "Uploaded image could not be read."})
	}
	defer src.Close()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, Response{Message: "Uploaded image could not be read."})
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		return c.JSON(http.StatusBadRequest, Response{Message: "Invalid input: expected an image, got " + mime.String()})
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}

	name := utils.UploadFilename(fh.Filename, s.now())
	if !utils.IsImageFile(name) {
		name += mime.Extension()
	}
	stored := filepath.Join(s.config.UploadDir, name)
	if err := store(src, stored); err != nil {
		log.Error("failed to store upload", "path", stored, "err", err)
		return c.JSON(http.StatusInternalServerError, Response{Message: "Image processing failed."})
	}

	output := utils.ProcessedName(stored)
	result := s.processor.Process(c.Request().Context(), stored, output)

	switch result.Status {
	case passportphoto.StatusSuccess:
		return c.JSON(http.StatusOK, Response{Success: true, OutputPath: output})
	case passportphoto.StatusNoFaceDetected:
		return c.JSON(http.StatusUnprocessableEntity, Response{Message: result.Message()})
	case passportphoto.StatusInputError:
		return c.JSON(http.StatusBadRequest, Response{Message: result.Message()})
	default:
		return c.JSON(http.StatusInternalServerError, Response{Message: "Image processing failed."})
	}
}

func store(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

package detection

import (
	"errors"
	"fmt"
)

// ErrHaarUnavailable is returned when the haar backend is requested from a
// binary built without the gocv tag
var ErrHaarUnavailable = errors.New("haar detector requires a build with -tags gocv")

// HaarConfig mirrors the detectMultiScale parameters
type HaarConfig struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	// MaxSize of 0 means unbounded
	MaxSize int
}

// DefaultHaarConfig returns scale 1.2, 5 neighbours and a 30x30 minimum face
func DefaultHaarConfig() HaarConfig {
	return HaarConfig{
		ScaleFactor:  1.2,
		MinNeighbors: 5,
		MinSize:      30,
	}
}

// Validate checks the cascade parameters
func (c HaarConfig) Validate() error {
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("scale factor must be greater than 1, got %f", c.ScaleFactor)
	}
	if c.MinNeighbors < 0 {
		return fmt.Errorf("min neighbors must not be negative, got %d", c.MinNeighbors)
	}
	if c.MinSize < 0 || c.MaxSize < 0 {
		return fmt.Errorf("face size limits must not be negative")
	}
	if c.MaxSize > 0 && c.MaxSize < c.MinSize {
		return fmt.Errorf("max size %d is below min size %d", c.MaxSize, c.MinSize)
	}
	return nil
}

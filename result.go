package passportphoto

import (
	"time"

	"github.com/menta2k/passport-photo/pkg/enhance"
	"github.com/menta2k/passport-photo/pkg/types"
)

// Status classifies the outcome of a Process call
type Status int

const (
	// StatusSuccess means the output file was written
	StatusSuccess Status = iota
	// StatusNoFaceDetected means the photo has no face; nothing was written
	StatusNoFaceDetected
	// StatusInputError means the input could not be read or is not a usable photo
	StatusInputError
	// StatusProcessingError means a collaborator, codec or the filesystem failed
	StatusProcessingError
)

// String returns a stable snake_case name
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoFaceDetected:
		return "no_face_detected"
	case StatusInputError:
		return "input_error"
	case StatusProcessingError:
		return "processing_error"
	default:
		return "unknown"
	}
}

// ExitCode maps the status to a process exit code
func (s Status) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusNoFaceDetected:
		return 3
	case StatusInputError:
		return 2
	default:
		return 1
	}
}

// Result reports what a Process call did
type Result struct {
	Status Status
	// Err is set for StatusInputError and StatusProcessingError
	Err error

	Output      string
	DebugOutput string

	Input       types.ImageInfo
	Faces       []types.BoundingBox
	Face        types.BoundingBox
	Crop        types.CropRectangle
	Enhancement enhance.Report
	Duration    time.Duration
}

// OK reports whether the output file was written
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Message returns the line printed for the user
func (r Result) Message() string {
	switch r.Status {
	case StatusSuccess:
		return "Passport photo generated successfully."
	case StatusNoFaceDetected:
		return "No faces detected."
	case StatusInputError:
		return "Invalid input: " + errString(r.Err)
	default:
		return "Error occurred during processing: " + errString(r.Err)
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

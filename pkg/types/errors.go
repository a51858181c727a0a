package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNothingToUndo is returned by Undo when the undo stack is empty
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNoImage is returned when an operation needs a loaded source image
	ErrNoImage = errors.New("no image loaded")
	// ErrNoResult is returned when exporting before a result exists
	ErrNoResult = errors.New("no processed image")
	// ErrBusy is returned when a job is requested while another is in flight
	ErrBusy = errors.New("processing already in progress")
)

// LoadError reports an unreadable or corrupt input file
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load image: %v", e.Err)
	}
	return fmt.Sprintf("load image %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ProcessingError reports a failed segmentation model invocation
type ProcessingError struct {
	Backend string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("remove background: %v", e.Err)
	}
	return fmt.Sprintf("remove background (%s): %v", e.Backend, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// SaveError reports an encoding or write failure
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("save image: %v", e.Err)
	}
	return fmt.Sprintf("save image %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// ConfigError reports an unreadable preferences file. It is always recovered
// by substituting defaults.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("preferences %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BatchFailure is a single failed batch item
type BatchFailure struct {
	Path string
	Err  error
}

// BatchError aggregates the per-item failures of a batch run
type BatchError struct {
	Total    int
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d files failed", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Path, f.Err)
	}
	return b.String()
}

// Unwrap exposes the individual failures to errors.Is / errors.As
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

package aura

import (
	"errors"
	"fmt"
)

var (
	// ErrNoModelLoaded is returned by session operations that need a model.
	ErrNoModelLoaded = errors.New("no model loaded")

	// ErrSchedulerClosed is returned when submitting to a closed scheduler.
	ErrSchedulerClosed = errors.New("scheduler closed")
)

// ModelLoadError reports that the backend could not open a model artifact.
type ModelLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load model %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load model %s: %s", e.Path, e.Reason)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError reports a failed backend run over a sequence of SeqLen tokens.
type InferenceError struct {
	SeqLen int
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference over %d tokens: %v", e.SeqLen, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid generation or engine parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

package aura

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"aura-go/internal/logger"
)

// OptimizationLevel is the graph optimization hint passed to the backend.
type OptimizationLevel int

const (
	OptimizationAll OptimizationLevel = iota
	OptimizationExtended
	OptimizationBasic
	OptimizationNone
)

func (l OptimizationLevel) String() string {
	switch l {
	case OptimizationAll:
		return "all"
	case OptimizationExtended:
		return "extended"
	case OptimizationBasic:
		return "basic"
	case OptimizationNone:
		return "none"
	default:
		return fmt.Sprintf("OptimizationLevel(%d)", int(l))
	}
}

// BackendOptions are the hints a backend receives when opening a model.
type BackendOptions struct {
	Threads      int
	Optimization OptimizationLevel
	VocabSize    int
}

// Backend opens model artifacts in an external tensor-inference engine.
// This can be implemented using various engines; backend/onnx provides
// ONNX Runtime.
type Backend interface {
	Open(path string, opts BackendOptions) (Handle, error)
}

// Handle is an open model in the backend.
type Handle interface {
	// Run submits tokens as a [1, len(tokens)] tensor and returns the
	// flattened [len(tokens), vocabSize] output scores. The returned slice
	// must stay valid after Run returns; every native buffer used by the
	// call must already be released.
	Run(tokens []int64) ([]float32, error)

	// Close releases the native session.
	Close() error
}

// StateKind enumerates the lifecycle states of a Session.
type StateKind int

const (
	StateUnloaded StateKind = iota
	StateLoaded
	StateLoadFailed
)

// ModelState is the current lifecycle state of a Session. Model is set when
// Kind is StateLoaded and Reason when Kind is StateLoadFailed.
type ModelState struct {
	Kind   StateKind
	Model  string
	Reason string
}

func (s ModelState) String() string {
	switch s.Kind {
	case StateLoaded:
		return "loaded(" + s.Model + ")"
	case StateLoadFailed:
		return "load failed(" + s.Reason + ")"
	default:
		return "unloaded"
	}
}

// Session owns at most one loaded model in a Backend. Loading, unloading and
// running are mutually exclusive.
type Session struct {
	mu        sync.Mutex
	backend   Backend
	vocabSize int
	log       logger.Logger

	handle  Handle
	state   ModelState
	lastErr string
}

// SessionOption is a functional option for Session
type SessionOption func(*Session)

// WithSessionLogger sets the logger used for lifecycle events.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession creates an unloaded session over backend.
func NewSession(backend Backend, vocabSize int, opts ...SessionOption) *Session {
	s := &Session{
		backend:   backend,
		vocabSize: vocabSize,
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "session")
	return s
}

// LoadModel unloads any current model and opens the artifact at path.
// Failures return a *ModelLoadError and leave the session in StateLoadFailed.
func (s *Session) LoadModel(path string, threads int, level OptimizationLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()

	name := filepath.Base(path)
	if _, err := os.Stat(path); err != nil {
		return s.failLocked(&ModelLoadError{Path: path, Reason: "model file not accessible", Err: err})
	}

	handle, err := s.backend.Open(path, BackendOptions{
		Threads:      threads,
		Optimization: level,
		VocabSize:    s.vocabSize,
	})
	if err != nil {
		return s.failLocked(&ModelLoadError{Path: path, Reason: "backend could not create session", Err: err})
	}

	s.handle = handle
	s.state = ModelState{Kind: StateLoaded, Model: name}
	s.lastErr = ""
	s.log.Info("model loaded", "model", name, "path", path, "threads", threads, "optimization", level)
	return nil
}

func (s *Session) failLocked(err *ModelLoadError) error {
	s.state = ModelState{Kind: StateLoadFailed, Reason: err.Error()}
	s.lastErr = err.Error()
	s.log.Error("failed to load model", "path", err.Path, "error", err)
	return err
}

// RunStep runs the whole token sequence through the model and returns a copy
// of the scores for the last position.
func (s *Session) RunStep(tokens []int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return nil, ErrNoModelLoaded
	}
	if len(tokens) == 0 {
		return nil, &InferenceError{Err: errors.New("empty token sequence")}
	}

	input := make([]int64, len(tokens))
	for i, id := range tokens {
		input[i] = int64(id)
	}

	output, err := s.handle.Run(input)
	if err != nil {
		return nil, &InferenceError{SeqLen: len(tokens), Err: err}
	}

	want := len(tokens) * s.vocabSize
	if len(output) < want {
		return nil, &InferenceError{
			SeqLen: len(tokens),
			Err:    fmt.Errorf("output has %d values, want at least %d", len(output), want),
		}
	}

	offset := (len(tokens) - 1) * s.vocabSize
	last := make([]float32, s.vocabSize)
	copy(last, output[offset:offset+s.vocabSize])
	return last, nil
}

// UnloadModel releases the backend session. It is idempotent.
func (s *Session) UnloadModel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloadLocked()
}

func (s *Session) unloadLocked() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.log.Warn("error closing model session", "model", s.state.Model, "error", err)
		}
		s.log.Info("model unloaded", "model", s.state.Model)
	}
	s.handle = nil
	s.state = ModelState{Kind: StateUnloaded}
}

// Close unloads the model so a Session can be released with defer.
func (s *Session) Close() error {
	s.UnloadModel()
	return nil
}

// IsLoaded reports whether a model is ready for RunStep.
func (s *Session) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// CurrentModel returns the file name of the loaded model.
func (s *Session) CurrentModel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return "", false
	}
	return s.state.Model, true
}

// LastError returns the reason of the most recent failed load.
func (s *Session) LastError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr, s.lastErr != ""
}

// State returns the current lifecycle state.
func (s *Session) State() ModelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// VocabSize returns the number of scores per position the session expects.
func (s *Session) VocabSize() int {
	return s.vocabSize
}

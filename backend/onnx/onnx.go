// Package onnx runs aura models with ONNX Runtime through
// github.com/yalue/onnxruntime_go.
package onnx

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"aura-go/aura"
	"aura-go/internal/logger"
)

// Default tensor names of causal-LM exports.
const (
	DefaultInputName  = "input_ids"
	DefaultOutputName = "logits"
)

// Backend opens ONNX models. The ONNX Runtime environment is initialized on
// the first Open and torn down by Close.
type Backend struct {
	libraryPath string
	inputName   string
	outputName  string
	log         logger.Logger

	mu          sync.Mutex
	initialized bool
}

// Option is a functional option for Backend
type Option func(*Backend)

// WithSharedLibraryPath points at libonnxruntime when it is not on the default search path.
func WithSharedLibraryPath(path string) Option {
	return func(b *Backend) {
		b.libraryPath = path
	}
}

// WithTensorNames overrides the model's input and output tensor names.
// An empty name keeps the default.
func WithTensorNames(input, output string) Option {
	return func(b *Backend) {
		if input != "" {
			b.inputName = input
		}
		if output != "" {
			b.outputName = output
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// TensorNames returns the input and output tensor names sessions are opened with.
func (b *Backend) TensorNames() (input, output string) {
	return b.inputName, b.outputName
}

// New creates a backend. No native code runs until Open.
func New(opts ...Option) *Backend {
	b := &Backend{
		inputName:  DefaultInputName,
		outputName: DefaultOutputName,
		log:        logger.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("component", "onnx")
	return b
}

func (b *Backend) ensureEnvironment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if b.libraryPath != "" {
		ort.SetSharedLibraryPath(b.libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	b.initialized = true
	b.log.Debug("ONNX runtime initialized", "library", b.libraryPath)
	return nil
}

// Open creates an inference session for the model at path. Only
// aura.OptimizationAll is accepted; it is ONNX Runtime's default graph
// optimization level.
func (b *Backend) Open(path string, opts aura.BackendOptions) (aura.Handle, error) {
	if opts.Optimization != aura.OptimizationAll {
		return nil, fmt.Errorf("unsupported optimization level %s", opts.Optimization)
	}
	if opts.VocabSize <= 0 {
		return nil, errors.New("vocabulary size must be positive")
	}
	if err := b.ensureEnvironment(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("failed to set threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{b.inputName},
		[]string{b.outputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &handle{session: session, vocabSize: opts.VocabSize}, nil
}

// Close destroys the ONNX Runtime environment if this backend created it.
// Handles must be closed first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil
	}
	b.initialized = false
	return ort.DestroyEnvironment()
}

type handle struct {
	session   *ort.DynamicAdvancedSession
	vocabSize int
}

// Run feeds tokens as an int64 [1, n] tensor and returns the [1, n, vocab]
// logits flattened. Both tensors are destroyed before Run returns; the
// returned slice is Go memory.
func (h *handle) Run(tokens []int64) ([]float32, error) {
	if h.session == nil {
		return nil, errors.New("session closed")
	}

	seqLen := int64(len(tokens))
	input, err := ort.NewTensor(ort.NewShape(1, seqLen), tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	logits := make([]float32, len(tokens)*h.vocabSize)
	output, err := ort.NewTensor(ort.NewShape(1, seqLen, int64(h.vocabSize)), logits)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	if err := h.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return logits, nil
}

func (h *handle) Close() error {
	if h.session == nil {
		return nil
	}
	err := h.session.Destroy()
	h.session = nil
	return err
}

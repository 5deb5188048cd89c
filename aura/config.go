package aura

import (
	"fmt"
)

// Default values for Qwen3-class ONNX exports.
const (
	DefaultContextWindow = 32768
	DefaultVocabSize     = 151936
	DefaultEOS           = 151643
	DefaultNumThreads    = 4
	DefaultHistoryTurns  = 10

	DefaultSystemPrompt = "You are Aura AI, a helpful, friendly, and intelligent assistant powered by Qwen3. " +
		"You provide thoughtful, accurate, and concise responses."
)

// Config holds the engine-wide settings. Per-request knobs live in GenerationConfig.
type Config struct {
	ContextWindow int
	VocabSize     int
	EOS           int
	NumThreads    int
	HistoryTurns  int
	SystemPrompt  string
	// EchoPrompt decodes prompt and generated tokens together instead of
	// only the generated suffix.
	EchoPrompt bool
	// Seed for the sampler; zero picks a time-based seed.
	Seed int64
}

// ConfigOption is a functional option for Config
type ConfigOption func(*Config)

// NewConfig creates a Config with default values and applies opts.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := &Config{
		ContextWindow: DefaultContextWindow,
		VocabSize:     DefaultVocabSize,
		EOS:           DefaultEOS,
		NumThreads:    DefaultNumThreads,
		HistoryTurns:  DefaultHistoryTurns,
		SystemPrompt:  DefaultSystemPrompt,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ContextWindow <= 0 {
		return &ConfigurationError{Field: "context window", Reason: fmt.Sprintf("must be positive, got %d", c.ContextWindow)}
	}
	if c.VocabSize <= 0 {
		return &ConfigurationError{Field: "vocab size", Reason: fmt.Sprintf("must be positive, got %d", c.VocabSize)}
	}
	if c.EOS < 0 || c.EOS >= c.VocabSize {
		return &ConfigurationError{Field: "eos", Reason: fmt.Sprintf("%d outside vocabulary of %d", c.EOS, c.VocabSize)}
	}
	if c.NumThreads <= 0 {
		return &ConfigurationError{Field: "threads", Reason: fmt.Sprintf("must be positive, got %d", c.NumThreads)}
	}
	if c.HistoryTurns < 0 {
		return &ConfigurationError{Field: "history turns", Reason: "must not be negative"}
	}
	return nil
}

// WithContextWindow sets the maximum prompt plus generated length.
func WithContextWindow(n int) ConfigOption {
	return func(c *Config) {
		c.ContextWindow = n
	}
}

// WithVocabSize sets the number of logits the model emits per position.
func WithVocabSize(n int) ConfigOption {
	return func(c *Config) {
		c.VocabSize = n
	}
}

// WithEOS sets the EOS token ID
func WithEOS(id int) ConfigOption {
	return func(c *Config) {
		c.EOS = id
	}
}

// WithNumThreads sets the intra-op thread hint passed to the backend.
func WithNumThreads(n int) ConfigOption {
	return func(c *Config) {
		c.NumThreads = n
	}
}

// WithHistoryTurns sets how many prior turns go into the prompt.
func WithHistoryTurns(n int) ConfigOption {
	return func(c *Config) {
		c.HistoryTurns = n
	}
}

// WithSystemPrompt replaces the preamble placed before the conversation.
func WithSystemPrompt(s string) ConfigOption {
	return func(c *Config) {
		c.SystemPrompt = s
	}
}

// WithEchoPrompt makes responses decode the prompt together with the reply.
func WithEchoPrompt(b bool) ConfigOption {
	return func(c *Config) {
		c.EchoPrompt = b
	}
}

// WithSeed fixes the sampler seed.
func WithSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.Seed = seed
	}
}

package aura

import (
	"fmt"
	"math"
)

// Generation defaults.
const (
	DefaultMaxNewTokens = 512
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.9
)

// GenerationConfig holds the per-request decoding parameters.
// A Temperature of exactly zero disables logit scaling; it does not mean greedy.
type GenerationConfig struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
}

// GenerationOption is a functional option for GenerationConfig
type GenerationOption func(*GenerationConfig)

// NewGenerationConfig creates a GenerationConfig with default values.
// Call Validate before use; Generator.Generate does so itself.
func NewGenerationConfig(opts ...GenerationOption) GenerationConfig {
	gc := GenerationConfig{
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
	}
	for _, opt := range opts {
		opt(&gc)
	}
	return gc
}

// Validate checks if the generation parameters are valid
func (gc GenerationConfig) Validate() error {
	if gc.MaxNewTokens <= 0 {
		return &ConfigurationError{Field: "max new tokens", Reason: fmt.Sprintf("must be positive, got %d", gc.MaxNewTokens)}
	}
	if err := validateSampling(gc.Temperature, gc.TopP); err != nil {
		return err
	}
	return nil
}

func validateSampling(temperature, topP float64) error {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) || temperature < 0 {
		return &ConfigurationError{Field: "temperature", Reason: fmt.Sprintf("must be a finite non-negative number, got %v", temperature)}
	}
	if math.IsNaN(topP) || topP <= 0 || topP > 1 {
		return &ConfigurationError{Field: "top-p", Reason: fmt.Sprintf("must be in (0, 1], got %v", topP)}
	}
	return nil
}

// WithMaxNewTokens sets the maximum number of tokens to generate
func WithMaxNewTokens(n int) GenerationOption {
	return func(gc *GenerationConfig) {
		gc.MaxNewTokens = n
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) GenerationOption {
	return func(gc *GenerationConfig) {
		gc.Temperature = t
	}
}

// WithTopP sets the nucleus probability mass.
func WithTopP(p float64) GenerationOption {
	return func(gc *GenerationConfig) {
		gc.TopP = p
	}
}

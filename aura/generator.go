package aura

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"aura-go/internal/logger"
)

// StopReason says why a generation ended.
type StopReason int

const (
	StopEOS StopReason = iota
	StopMaxTokens
	StopAborted
)

func (r StopReason) String() string {
	switch r {
	case StopEOS:
		return "eos"
	case StopMaxTokens:
		return "max_tokens"
	case StopAborted:
		return "aborted"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// GenerationResult is the outcome of one Generate call.
type GenerationResult struct {
	// PromptTokens is the prompt after context-window truncation.
	PromptTokens []int
	// Tokens holds only the newly sampled tokens, EOS included when reached.
	Tokens     []int
	StopReason StopReason
	// Err is the cause of StopAborted: an inference failure or the context error.
	Err error
}

// AllTokens returns the prompt followed by the generated tokens.
func (r GenerationResult) AllTokens() []int {
	all := make([]int, 0, len(r.PromptTokens)+len(r.Tokens))
	all = append(all, r.PromptTokens...)
	return append(all, r.Tokens...)
}

// Generator runs the autoregressive decode loop for one request at a time.
// It does not serialize callers itself; the Scheduler does.
type Generator struct {
	runner        StepRunner
	sampler       *Sampler
	contextWindow int
	eos           int
	log           logger.Logger
	progress      io.Writer
}

// GeneratorOption is a functional option for Generator
type GeneratorOption func(*Generator)

// WithProgress renders a progress bar of decode steps to w.
func WithProgress(w io.Writer) GeneratorOption {
	return func(g *Generator) {
		g.progress = w
	}
}

// WithGeneratorLogger sets the logger used for per-request summaries.
func WithGeneratorLogger(l logger.Logger) GeneratorOption {
	return func(g *Generator) {
		g.log = l
	}
}

// NewGenerator creates a generator over runner using cfg's context window and EOS id.
func NewGenerator(runner StepRunner, sampler *Sampler, cfg *Config, opts ...GeneratorOption) *Generator {
	g := &Generator{
		runner:        runner,
		sampler:       sampler,
		contextWindow: cfg.ContextWindow,
		eos:           cfg.EOS,
		log:           logger.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "generator")
	return g
}

// MaxInputTokens is the prompt budget left after reserving room for gc.MaxNewTokens.
func (g *Generator) MaxInputTokens(gc GenerationConfig) int {
	return g.contextWindow - gc.MaxNewTokens
}

// Check validates gc and that its token budget fits the context window.
func (g *Generator) Check(gc GenerationConfig) error {
	if err := gc.Validate(); err != nil {
		return err
	}
	if g.MaxInputTokens(gc) <= 0 {
		return &ConfigurationError{
			Field:  "max new tokens",
			Reason: fmt.Sprintf("%d leaves no room for input in a %d token context window", gc.MaxNewTokens, g.contextWindow),
		}
	}
	return nil
}

// Generate truncates prompt to the context budget and samples up to
// gc.MaxNewTokens tokens, stopping early on EOS.
//
// The returned error is non-nil only for an invalid configuration, in which
// case no step has run. Inference failures and cancellation of ctx end the
// loop with StopAborted and whatever was generated so far. ctx is checked
// between steps, never during one.
func (g *Generator) Generate(ctx context.Context, prompt []int, gc GenerationConfig) (GenerationResult, error) {
	if err := g.Check(gc); err != nil {
		return GenerationResult{}, err
	}

	input := TruncateLeft(prompt, g.MaxInputTokens(gc))
	if len(input) < len(prompt) {
		g.log.Debug("prompt truncated", "from", len(prompt), "to", len(input))
	}

	seq := NewSequence(input)
	result := GenerationResult{
		PromptTokens: seq.PromptTokenIDs(),
		StopReason:   StopMaxTokens,
	}

	bar := g.newProgressBar(gc.MaxNewTokens)
	start := time.Now()

	for seq.NumCompletionTokens() < gc.MaxNewTokens {
		if err := ctx.Err(); err != nil {
			result.StopReason = StopAborted
			result.Err = err
			break
		}

		logits, err := g.runner.RunStep(seq.TokenIDs)
		if err != nil {
			result.StopReason = StopAborted
			result.Err = err
			break
		}

		next, err := g.sampler.Sample(logits, gc.Temperature, gc.TopP)
		if err != nil {
			result.StopReason = StopAborted
			result.Err = err
			break
		}
		seq.AppendToken(next)

		if bar != nil {
			_ = bar.Add(1)
			if secs := time.Since(start).Seconds(); secs > 0 {
				bar.Describe(fmt.Sprintf("Generating [%d tok/s]", int(float64(seq.NumCompletionTokens())/secs)))
			}
		}

		if seq.LastToken == g.eos {
			result.StopReason = StopEOS
			break
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	result.PromptTokens = seq.PromptTokenIDs()
	result.Tokens = seq.CompletionTokenIDs()

	args := []any{
		"prompt_tokens", seq.NumPromptTokens,
		"new_tokens", seq.NumCompletionTokens(),
		"seq_len", seq.Len(),
		"stop", result.StopReason,
		"elapsed", time.Since(start).Round(time.Millisecond),
	}
	switch {
	case result.Err == nil:
		g.log.Debug("generation finished", args...)
	case errors.Is(result.Err, context.Canceled), errors.Is(result.Err, context.DeadlineExceeded):
		g.log.Info("generation cancelled", append(args, "error", result.Err)...)
	default:
		g.log.Warn("generation aborted", append(args, "error", result.Err)...)
	}
	return result, nil
}

func (g *Generator) newProgressBar(total int) *progressbar.ProgressBar {
	if g.progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(g.progress),
		progressbar.OptionSetDescription("Generating"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

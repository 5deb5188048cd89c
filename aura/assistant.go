package aura

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"aura-go/internal/logger"
)

// Assistant is the user-facing API. It owns the inference session and runs
// every model operation on a single-worker scheduler so loads, unloads and
// generations never overlap.
type Assistant struct {
	cfg       *Config
	session   *Session
	tokenizer Tokenizer
	engine    *ChatEngine
	scheduler *Scheduler
	store     ConversationStore
	log       logger.Logger
}

type assistantOptions struct {
	store    ConversationStore
	log      logger.Logger
	progress io.Writer
}

// AssistantOption is a functional option for NewAssistant.
type AssistantOption func(*assistantOptions)

// WithStore enables Send by persisting conversations in store.
func WithStore(store ConversationStore) AssistantOption {
	return func(o *assistantOptions) {
		o.store = store
	}
}

// WithLogger sets the logger shared by all components.
func WithLogger(l logger.Logger) AssistantOption {
	return func(o *assistantOptions) {
		o.log = l
	}
}

// WithProgressOutput renders a decode progress bar to w.
func WithProgressOutput(w io.Writer) AssistantOption {
	return func(o *assistantOptions) {
		o.progress = w
	}
}

// NewAssistant creates an assistant with no model loaded.
func NewAssistant(cfg *Config, backend Backend, tokenizer Tokenizer, opts ...AssistantOption) *Assistant {
	o := assistantOptions{log: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	session := NewSession(backend, cfg.VocabSize, WithSessionLogger(o.log))

	genOpts := []GeneratorOption{WithGeneratorLogger(o.log)}
	if o.progress != nil {
		genOpts = append(genOpts, WithProgress(o.progress))
	}
	generator := NewGenerator(session, NewSampler(cfg.Seed), cfg, genOpts...)
	prompts := NewPromptAssembler(cfg.SystemPrompt, cfg.HistoryTurns)

	return &Assistant{
		cfg:       cfg,
		session:   session,
		tokenizer: tokenizer,
		engine:    NewChatEngine(session, tokenizer, generator, prompts, cfg.EchoPrompt, o.log),
		scheduler: NewScheduler(),
		store:     o.store,
		log:       o.log.With("component", "assistant"),
	}
}

// Session exposes the inference session for status queries.
func (a *Assistant) Session() *Session {
	return a.session
}

// Tokenizer returns the tokenizer the assistant encodes with.
func (a *Assistant) Tokenizer() Tokenizer {
	return a.tokenizer
}

// LoadModel replaces the current model with the artifact at path.
func (a *Assistant) LoadModel(ctx context.Context, path string) error {
	return a.scheduler.Submit(ctx, func(context.Context) error {
		return a.session.LoadModel(path, a.cfg.NumThreads, OptimizationAll)
	})
}

// UnloadModel releases the current model, if any.
func (a *Assistant) UnloadModel(ctx context.Context) error {
	return a.scheduler.Submit(ctx, func(context.Context) error {
		a.session.UnloadModel()
		return nil
	})
}

// Ask generates a reply to message given prior turns, without persisting anything.
func (a *Assistant) Ask(ctx context.Context, history []Turn, message string, gc GenerationConfig) (Response, error) {
	var resp Response
	err := a.scheduler.Submit(ctx, func(ctx context.Context) error {
		var err error
		resp, err = a.engine.Respond(ctx, history, message, gc)
		return err
	})
	return resp, err
}

// Send replies to message within a stored conversation. The user message and
// the reply are both persisted with their token counts.
func (a *Assistant) Send(ctx context.Context, sessionID, message string, gc GenerationConfig) (Response, error) {
	if a.store == nil {
		return Response{}, errors.New("no conversation store configured")
	}
	if err := a.engine.generator.Check(gc); err != nil {
		return Response{}, err
	}

	history, err := a.store.RecentTurns(ctx, sessionID, a.cfg.HistoryTurns)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read history: %w", err)
	}

	_, err = a.store.AppendMessage(ctx, Message{
		SessionID:  sessionID,
		Content:    message,
		FromUser:   true,
		CreatedAt:  time.Now(),
		TokenCount: a.tokenizer.CountTokens(message),
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to store message: %w", err)
	}

	// A cancelled caller still gets the partial reply stored and the
	// session metadata refreshed.
	storeCtx := context.WithoutCancel(ctx)

	resp, err := a.Ask(ctx, history, message, gc)
	if err != nil {
		a.touch(storeCtx, sessionID)
		return Response{}, err
	}

	_, err = a.store.AppendMessage(storeCtx, Message{
		SessionID:  sessionID,
		Content:    resp.Text,
		FromUser:   false,
		CreatedAt:  time.Now(),
		TokenCount: a.tokenizer.CountTokens(resp.Text),
	})
	if err != nil {
		return resp, fmt.Errorf("failed to store reply: %w", err)
	}

	a.touch(storeCtx, sessionID)
	return resp, nil
}

func (a *Assistant) touch(ctx context.Context, sessionID string) {
	if err := a.store.TouchSession(ctx, sessionID); err != nil {
		a.log.Warn("failed to update session metadata", "session", sessionID, "error", err)
	}
}

// Close stops the scheduler and unloads the model.
func (a *Assistant) Close() error {
	a.scheduler.Close()
	return a.session.Close()
}

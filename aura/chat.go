package aura

import (
	"context"
	"fmt"

	"aura-go/internal/logger"
)

// Response is the assistant's reply to one message.
type Response struct {
	Text   string
	Result GenerationResult
	// PromptTokenCount is the encoded prompt length before truncation.
	PromptTokenCount int
	// Placeholder is set when no model was loaded and Text is an explanation.
	Placeholder bool
}

// ChatEngine turns a conversation and a new message into a reply using the
// prompt assembler, tokenizer and generator. It is synchronous; the
// Assistant runs it on the scheduler.
type ChatEngine struct {
	session    *Session
	tokenizer  Tokenizer
	generator  *Generator
	prompts    *PromptAssembler
	echoPrompt bool
	log        logger.Logger
}

// NewChatEngine wires the pipeline components together.
func NewChatEngine(session *Session, tokenizer Tokenizer, generator *Generator, prompts *PromptAssembler, echoPrompt bool, log logger.Logger) *ChatEngine {
	return &ChatEngine{
		session:    session,
		tokenizer:  tokenizer,
		generator:  generator,
		prompts:    prompts,
		echoPrompt: echoPrompt,
		log:        log.With("component", "chat"),
	}
}

// Respond generates a reply. Without a loaded model it returns a placeholder
// response instead of an error. Only an invalid gc, or one whose budget does not fit
// the context window, is reported as an error.
func (e *ChatEngine) Respond(ctx context.Context, history []Turn, message string, gc GenerationConfig) (Response, error) {
	if err := e.generator.Check(gc); err != nil {
		return Response{}, err
	}
	if !e.session.IsLoaded() {
		return Response{Text: e.notLoadedText(), Placeholder: true}, nil
	}

	prompt := e.prompts.Build(history, message)
	ids := e.tokenizer.Encode(prompt, true)

	result, err := e.generator.Generate(ctx, ids, gc)
	if err != nil {
		return Response{}, err
	}

	decodeIDs := result.Tokens
	if e.echoPrompt {
		decodeIDs = result.AllTokens()
	}
	text := e.tokenizer.Decode(decodeIDs, true)
	if text == "" && result.StopReason == StopAborted && result.Err != nil {
		text = fmt.Sprintf("Sorry, I encountered an error: %v", result.Err)
	}

	e.log.Debug("response ready",
		"prompt_tokens", len(ids),
		"new_tokens", len(result.Tokens),
		"stop", result.StopReason,
	)
	return Response{Text: text, Result: result, PromptTokenCount: len(ids)}, nil
}

func (e *ChatEngine) notLoadedText() string {
	if reason, ok := e.session.LastError(); ok {
		return "Model not ready.\n\n" + reason
	}
	return "Model not loaded. Please select a model first."
}

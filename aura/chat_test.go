package aura

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func newTestEngine(t *testing.T, backend Backend, echo bool) (*ChatEngine, *Session) {
	t.Helper()
	cfg := testConfig(t, WithSystemPrompt("S"))
	session := newTestSession(backend)
	gen := NewGenerator(session, NewSampler(cfg.Seed), cfg, WithGeneratorLogger(quietLogger()))
	prompts := NewPromptAssembler(cfg.SystemPrompt, cfg.HistoryTurns)
	return NewChatEngine(session, wordTokenizer{}, gen, prompts, echo, quietLogger()), session
}

// spell favours 'b', 'c' and then EOS.
func spell(call int, _ []int64) (int, error) {
	if call > 2 {
		return testVocab - 1, nil
	}
	return call, nil
}

func TestRespondDecodesOnlyReply(t *testing.T) {
	backend := newFakeBackend(testVocab, spell)
	engine, session := newTestEngine(t, backend, false)
	if err := session.LoadModel(writeModel(t, "m.onnx"), 1, OptimizationAll); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Respond(context.Background(), nil, "abc", testGenConfig())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "bc" {
		t.Errorf("Text = %q, want %q", resp.Text, "bc")
	}
	if resp.Placeholder {
		t.Error("Unexpected placeholder")
	}
	if resp.Result.StopReason != StopEOS {
		t.Errorf("Expected StopEOS, got %v", resp.Result.StopReason)
	}
	if resp.PromptTokenCount == 0 || int(backend.lastLen) != resp.PromptTokenCount+2 {
		t.Errorf("Prompt of %d tokens, last step saw %d", resp.PromptTokenCount, backend.lastLen)
	}
}

func TestRespondEchoPrompt(t *testing.T) {
	backend := newFakeBackend(testVocab, spell)
	engine, session := newTestEngine(t, backend, true)
	if err := session.LoadModel(writeModel(t, "m.onnx"), 1, OptimizationAll); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Respond(context.Background(), nil, "abc", testGenConfig())
	if err != nil {
		t.Fatal(err)
	}
	// The prompt letters the test tokenizer knows, then the reply.
	if resp.Text != "eabca"+"bc" {
		t.Errorf("Echoed text = %q, want prompt and reply", resp.Text)
	}
}

func TestRespondPlaceholders(t *testing.T) {
	engine, session := newTestEngine(t, newFakeBackend(testVocab, spell), false)

	resp, err := engine.Respond(context.Background(), nil, "hi", testGenConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Placeholder || resp.Text != "Model not loaded. Please select a model first." {
		t.Errorf("Unexpected response %+v", resp)
	}

	_ = session.LoadModel(filepath.Join(t.TempDir(), "missing.onnx"), 1, OptimizationAll)
	resp, err = engine.Respond(context.Background(), nil, "hi", testGenConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Placeholder || !strings.HasPrefix(resp.Text, "Model not ready.\n\n") {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestRespondAbortWithoutText(t *testing.T) {
	backend := newFakeBackend(testVocab, func(int, []int64) (int, error) {
		return 0, errors.New("out of memory")
	})
	engine, session := newTestEngine(t, backend, false)
	if err := session.LoadModel(writeModel(t, "m.onnx"), 1, OptimizationAll); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Respond(context.Background(), nil, "abc", testGenConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Text, "Sorry, I encountered an error: ") || !strings.Contains(resp.Text, "out of memory") {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Result.StopReason != StopAborted {
		t.Errorf("Expected StopAborted, got %v", resp.Result.StopReason)
	}
}

func TestRespondRejectsInvalidConfig(t *testing.T) {
	engine, _ := newTestEngine(t, newFakeBackend(testVocab, spell), false)

	_, err := engine.Respond(context.Background(), nil, "hi", NewGenerationConfig(WithTopP(2)))
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigurationError, got %v", err)
	}
}

func TestRespondRejectsBudgetLargerThanWindow(t *testing.T) {
	backend := newFakeBackend(testVocab, spell)
	engine, session := newTestEngine(t, backend, false)
	if err := session.LoadModel(writeModel(t, "m.onnx"), 1, OptimizationAll); err != nil {
		t.Fatal(err)
	}

	// The default budget of 512 new tokens does not fit a 64 token window.
	_, err := engine.Respond(context.Background(), nil, "abc", NewGenerationConfig())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "max new tokens" {
		t.Fatalf("Expected max new tokens ConfigurationError, got %v", err)
	}
	if calls, _, _ := backend.snapshot(); calls != 0 {
		t.Errorf("Expected no inference steps, got %d", calls)
	}
}

package aura

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"aura-go/internal/logger"
)

const testVocab = 8

// peaked returns logits for one position where id dominates every other token.
func peaked(vocab, id int) []float32 {
	row := make([]float32, vocab)
	row[id] = 100
	return row
}

// stepFunc adapts a function to StepRunner.
type stepFunc func(tokens []int) ([]float32, error)

func (f stepFunc) RunStep(tokens []int) ([]float32, error) { return f(tokens) }

// fakeBackend scripts model output per Run call. next returns the token the
// last position should favour; a non-nil error fails the call.
type fakeBackend struct {
	mu      sync.Mutex
	vocab   int
	next    func(call int, tokens []int64) (int, error)
	openErr error

	calls   int
	opened  int
	closed  int
	lastLen int
	seen    [][]int64
}

func newFakeBackend(vocab int, next func(call int, tokens []int64) (int, error)) *fakeBackend {
	return &fakeBackend{vocab: vocab, next: next}
}

func (b *fakeBackend) Open(path string, opts BackendOptions) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened++
	return &fakeHandle{b: b}, nil
}

func (b *fakeBackend) snapshot() (calls, opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls, b.opened, b.closed
}

type fakeHandle struct {
	b      *fakeBackend
	closed bool
}

func (h *fakeHandle) Run(tokens []int64) ([]float32, error) {
	b := h.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if h.closed {
		return nil, errors.New("run on closed handle")
	}
	b.calls++
	b.lastLen = len(tokens)
	b.seen = append(b.seen, append([]int64(nil), tokens...))

	id, err := b.next(b.calls, tokens)
	if err != nil {
		return nil, err
	}

	out := make([]float32, len(tokens)*b.vocab)
	copy(out[(len(tokens)-1)*b.vocab:], peaked(b.vocab, id))
	return out, nil
}

func (h *fakeHandle) Close() error {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.b.closed++
	}
	return nil
}

// writeModel creates an empty model artifact so Session's existence check passes.
func writeModel(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, opts ...ConfigOption) *Config {
	t.Helper()
	base := []ConfigOption{
		WithVocabSize(testVocab),
		WithEOS(testVocab - 1),
		WithContextWindow(64),
		WithSeed(1),
	}
	cfg, err := NewConfig(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

// testGenConfig keeps the token budget inside testConfig's 64 token window.
func testGenConfig(opts ...GenerationOption) GenerationConfig {
	return NewGenerationConfig(append([]GenerationOption{WithMaxNewTokens(8)}, opts...)...)
}

func quietLogger() logger.Logger { return logger.Discard() }

// wordTokenizer is a tiny Tokenizer: each rune is a token id of (rune - 'a'),
// and ids decode back the same way.
type wordTokenizer struct{}

func (wordTokenizer) Encode(text string, addSpecialTokens bool) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		if r >= 'a' && r < 'a'+testVocab-1 {
			ids = append(ids, int(r-'a'))
		}
	}
	return ids
}

func (wordTokenizer) Decode(ids []int, skipSpecialTokens bool) string {
	out := make([]rune, 0, len(ids))
	for _, id := range ids {
		if skipSpecialTokens && id == testVocab-1 {
			continue
		}
		out = append(out, rune('a'+id))
	}
	return string(out)
}

func (w wordTokenizer) CountTokens(text string) int { return len(w.Encode(text, true)) }

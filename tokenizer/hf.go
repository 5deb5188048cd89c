//go:build hftokenizers
// +build hftokenizers

package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"

	"aura-go/aura"
)

var _ aura.Tokenizer = (*HF)(nil)

// HF wraps the HuggingFace tokenizers library (via CGo) for callers that want
// real BPE tokenization instead of the word-level vocabulary lookup.
// Build with -tags hftokenizers and link libtokenizers.a.
type HF struct {
	tk *tokenizers.Tokenizer
}

// LoadHF opens a tokenizer.json with the HuggingFace tokenizers library.
func LoadHF(path string) (*HF, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", path, err)
	}
	return &HF{tk: tk}, nil
}

// Encode converts text to token ids.
func (h *HF) Encode(text string, addSpecialTokens bool) []int {
	ids, _ := h.tk.Encode(text, addSpecialTokens)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Decode converts token ids back to text.
func (h *HF) Decode(tokenIDs []int, skipSpecialTokens bool) string {
	ids := make([]uint32, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id < 0 {
			continue
		}
		ids = append(ids, uint32(id))
	}
	return h.tk.Decode(ids, skipSpecialTokens)
}

// CountTokens returns len(Encode(text, true)).
func (h *HF) CountTokens(text string) int {
	return len(h.Encode(text, true))
}

// Close releases the native tokenizer.
func (h *HF) Close() error {
	return h.tk.Close()
}

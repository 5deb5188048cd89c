// Package tokenizer implements the word-level vocabulary tokenizer used by
// aura. It reads the "model.vocab" table of a HuggingFace tokenizer.json and
// looks up whole lower-cased words; it does not apply BPE merges. Without a
// usable vocabulary it degrades to a fallback mode that maps UTF-16 code
// units directly to ids.
package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"aura-go/aura"
	"aura-go/internal/logger"
)

// SpecialToken is used as beginning-of-sequence, end-of-sequence and unknown token.
const SpecialToken = "<|endoftext|>"

// Tokenizer converts text to token ids and back. It never returns errors:
// every load failure leaves it in fallback mode.
type Tokenizer struct {
	vocab       map[string]int
	invVocab    map[int]string
	fingerprint uint64
	log         logger.Logger
}

var _ aura.Tokenizer = (*Tokenizer)(nil)

// Option is a functional option for Tokenizer
type Option func(*Tokenizer)

// WithLogger sets the logger that receives load warnings.
func WithLogger(l logger.Logger) Option {
	return func(t *Tokenizer) {
		t.log = l
	}
}

func newTokenizer(opts []Option) *Tokenizer {
	t := &Tokenizer{
		vocab:    map[string]int{},
		invVocab: map[int]string{},
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With("component", "tokenizer")
	return t
}

// Load reads a tokenizer.json from path.
func Load(path string, opts ...Option) *Tokenizer {
	t := newTokenizer(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		t.useFallback(fmt.Errorf("failed to read %s: %w", path, err))
		return t
	}
	t.load(data)
	return t
}

// Read loads a tokenizer.json document from r.
func Read(r io.Reader, opts ...Option) *Tokenizer {
	t := newTokenizer(opts)
	data, err := io.ReadAll(r)
	if err != nil {
		t.useFallback(fmt.Errorf("failed to read tokenizer: %w", err))
		return t
	}
	t.load(data)
	return t
}

// LoadBytes loads a tokenizer.json document held in memory.
func LoadBytes(data []byte, opts ...Option) *Tokenizer {
	t := newTokenizer(opts)
	t.load(data)
	return t
}

// FromVocab builds a tokenizer from an in-memory vocabulary. An empty
// vocabulary yields fallback mode.
func FromVocab(vocab map[string]int, opts ...Option) *Tokenizer {
	t := newTokenizer(opts)
	t.setVocab(vocab)
	return t
}

func (t *Tokenizer) load(data []byte) {
	vocab, err := parseVocab(data)
	if err != nil {
		t.useFallback(err)
		return
	}
	t.setVocab(vocab)
	t.fingerprint = xxhash.Sum64(data)
	t.log.Debug("loaded vocabulary", "tokens", len(t.vocab), "fingerprint", fmt.Sprintf("%016x", t.fingerprint))
}

func (t *Tokenizer) useFallback(cause error) {
	t.vocab = map[string]int{}
	t.invVocab = map[int]string{}
	t.fingerprint = 0
	t.log.Warn("using fallback tokenizer", "error", cause)
}

// setVocab installs vocab. When two tokens share an id, the
// lexicographically smallest keeps the reverse mapping.
func (t *Tokenizer) setVocab(vocab map[string]int) {
	tokens := make([]string, 0, len(vocab))
	for token := range vocab {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	t.vocab = make(map[string]int, len(vocab))
	t.invVocab = make(map[int]string, len(vocab))
	for _, token := range tokens {
		id := vocab[token]
		t.vocab[token] = id
		if _, taken := t.invVocab[id]; !taken {
			t.invVocab[id] = token
		}
	}
}

// parseVocab extracts model.vocab, plus any added_tokens, from a tokenizer.json.
func parseVocab(data []byte) (map[string]int, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer json: %w", err)
	}

	model, ok := doc["model"].(map[string]any)
	if !ok {
		return nil, errors.New(`tokenizer json has no "model" object`)
	}
	rawVocab, ok := model["vocab"].(map[string]any)
	if !ok {
		return nil, errors.New(`tokenizer model has no "vocab" object`)
	}

	vocab := make(map[string]int, len(rawVocab))
	for token, raw := range rawVocab {
		id, err := tokenID(raw)
		if err != nil {
			return nil, fmt.Errorf("vocab entry %q: %w", token, err)
		}
		vocab[token] = id
	}

	if added, ok := doc["added_tokens"].([]any); ok {
		for _, item := range added {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, ok := entry["content"].(string)
			if !ok {
				continue
			}
			id, err := tokenID(entry["id"])
			if err != nil {
				continue
			}
			vocab[content] = id
		}
	}

	if len(vocab) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	return vocab, nil
}

// tokenID truncates a JSON number to a non-negative int id.
func tokenID(raw any) (int, error) {
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("id %v is not a number", raw)
	}
	if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("id %v out of range", f)
	}
	return int(f), nil
}

// Fallback reports whether the tokenizer runs without a vocabulary.
func (t *Tokenizer) Fallback() bool {
	return len(t.vocab) == 0
}

// VocabSize returns the number of entries in the vocabulary.
func (t *Tokenizer) VocabSize() int {
	return len(t.vocab)
}

// TokenID looks up a token string.
func (t *Tokenizer) TokenID(token string) (int, bool) {
	id, ok := t.vocab[token]
	return id, ok
}

// Fingerprint is the xxhash64 of the loaded tokenizer document, or 0 in fallback mode.
func (t *Tokenizer) Fingerprint() uint64 {
	return t.fingerprint
}

// Encode converts text to token ids.
//
// With a vocabulary, the special token is prepended when addSpecialTokens is
// set and the vocabulary defines it. The text is split only at whitespace
// runs that sit between two word characters; each piece is lower-cased and
// looked up whole. Pieces missing from the vocabulary become the special
// token, or are dropped when it is not defined.
//
// In fallback mode each UTF-16 code unit becomes one id.
func (t *Tokenizer) Encode(text string, addSpecialTokens bool) []int {
	if t.Fallback() {
		return encodeUnits(text)
	}

	tokens := make([]int, 0, 8)
	unkID, hasUnk := t.vocab[SpecialToken]

	if addSpecialTokens && hasUnk {
		tokens = append(tokens, unkID)
	}

	for _, word := range splitWords(text) {
		if id, ok := t.vocab[strings.ToLower(word)]; ok {
			tokens = append(tokens, id)
		} else if hasUnk {
			tokens = append(tokens, unkID)
		}
	}
	return tokens
}

// Decode converts token ids back to text.
//
// With a vocabulary, unknown ids are ignored and <|...|> tokens are skipped
// when skipSpecialTokens is set. A space follows every token except those
// starting with a continuation marker ("##" or "Ġ"). Surrounding whitespace
// is trimmed.
//
// In fallback mode each id is read back as a UTF-16 code unit.
func (t *Tokenizer) Decode(tokenIDs []int, skipSpecialTokens bool) string {
	if len(t.invVocab) == 0 {
		return decodeUnits(tokenIDs)
	}

	var b strings.Builder
	for _, id := range tokenIDs {
		token, ok := t.invVocab[id]
		if !ok {
			continue
		}
		if skipSpecialTokens && isSpecial(token) {
			continue
		}
		b.WriteString(token)
		if !strings.HasPrefix(token, "##") && !strings.HasPrefix(token, "Ġ") {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// CountTokens returns len(Encode(text, true)).
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text, true))
}

func isSpecial(token string) bool {
	return strings.HasPrefix(token, "<|") && strings.HasSuffix(token, "|>")
}

func encodeUnits(text string) []int {
	units := utf16.Encode([]rune(text))
	ids := make([]int, len(units))
	for i, u := range units {
		ids[i] = int(u)
	}
	return ids
}

func decodeUnits(ids []int) string {
	units := make([]uint16, len(ids))
	for i, id := range ids {
		units[i] = uint16(id)
	}
	return string(utf16.Decode(units))
}

package aura

// Sequence is the token sequence of one generation request: the (possibly
// truncated) prompt followed by every token sampled so far.
type Sequence struct {
	TokenIDs        []int
	LastToken       int
	NumPromptTokens int
}

// NewSequence creates a new sequence from prompt token IDs. The slice is copied.
func NewSequence(tokenIDs []int) *Sequence {
	tokens := make([]int, len(tokenIDs))
	copy(tokens, tokenIDs)

	seq := &Sequence{
		TokenIDs:        tokens,
		NumPromptTokens: len(tokens),
		LastToken:       -1,
	}
	if len(tokens) > 0 {
		seq.LastToken = tokens[len(tokens)-1]
	}
	return seq
}

// Len returns the number of tokens in the sequence
func (s *Sequence) Len() int {
	return len(s.TokenIDs)
}

// NumCompletionTokens returns the number of completion tokens
func (s *Sequence) NumCompletionTokens() int {
	return len(s.TokenIDs) - s.NumPromptTokens
}

// PromptTokenIDs returns the prompt token IDs
func (s *Sequence) PromptTokenIDs() []int {
	return s.TokenIDs[:s.NumPromptTokens]
}

// CompletionTokenIDs returns the completion token IDs
func (s *Sequence) CompletionTokenIDs() []int {
	return s.TokenIDs[s.NumPromptTokens:]
}

// AppendToken appends a token to the sequence
func (s *Sequence) AppendToken(tokenID int) {
	s.TokenIDs = append(s.TokenIDs, tokenID)
	s.LastToken = tokenID
}

// TruncateLeft keeps the most recent limit tokens of ids, preserving order.
// The result is a fresh slice when truncation happens, and ids otherwise.
func TruncateLeft(ids []int, limit int) []int {
	if limit < 0 {
		limit = 0
	}
	if len(ids) <= limit {
		return ids
	}
	out := make([]int, limit)
	copy(out, ids[len(ids)-limit:])
	return out
}

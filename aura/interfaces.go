package aura

import (
	"context"
	"time"
)

// Tokenizer converts between text and token ids.
// The tokenizer package provides the vocabulary implementation.
type Tokenizer interface {
	Encode(text string, addSpecialTokens bool) []int
	Decode(tokenIDs []int, skipSpecialTokens bool) string
	CountTokens(text string) int
}

// StepRunner runs one decode step: the whole sequence in, last-position
// scores out. *Session implements it.
type StepRunner interface {
	RunStep(tokens []int) ([]float32, error)
}

// Turn is one prior message of a conversation as the prompt assembler sees it.
type Turn struct {
	Text      string
	FromUser  bool
	CreatedAt time.Time
}

// Message is a conversation message as persisted by a ConversationStore.
type Message struct {
	ID         string
	SessionID  string
	Content    string
	FromUser   bool
	CreatedAt  time.Time
	TokenCount int
}

// ConversationStore persists conversations. The store package provides a
// SQLite implementation.
type ConversationStore interface {
	// RecentTurns returns at most limit turns of the session, oldest first.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	// TouchSession refreshes message count, title and update time.
	TouchSession(ctx context.Context, sessionID string) error
}

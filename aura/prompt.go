package aura

import "strings"

// PromptAssembler renders a conversation into a single plain-text prompt:
//
//	<system prompt>
//
//	User: ...
//	Assistant: ...
//	User: <new message>
//	Assistant:
//
// Only the last HistoryTurns turns are included. The window is counted in
// turns, not tokens; the generator's context-window truncation is the only
// token bound.
type PromptAssembler struct {
	SystemPrompt string
	HistoryTurns int
}

// NewPromptAssembler creates an assembler with the given preamble and window.
func NewPromptAssembler(systemPrompt string, historyTurns int) *PromptAssembler {
	return &PromptAssembler{SystemPrompt: systemPrompt, HistoryTurns: historyTurns}
}

// Build assembles the prompt for message given prior turns ordered oldest first.
func (p *PromptAssembler) Build(history []Turn, message string) string {
	var b strings.Builder

	b.WriteString(p.SystemPrompt)
	b.WriteString("\n\n")

	for _, turn := range recentTurns(history, p.HistoryTurns) {
		if turn.FromUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Text)
		b.WriteByte('\n')
	}

	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}

func recentTurns(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

package tokenizer

// splitWords splits text at every whitespace run that has a word character
// immediately before and after it. Whitespace next to punctuation or at
// either end stays inside the neighbouring piece, and an empty text yields a
// single empty piece.
func splitWords(text string) []string {
	runes := []rune(text)
	words := make([]string, 0, len(runes)/4+1)

	start := 0
	for i := 0; i < len(runes); {
		if !isSpace(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		if i > 0 && j < len(runes) && isWord(runes[i-1]) && isWord(runes[j]) {
			words = append(words, string(runes[start:i]))
			start = j
		}
		i = j
	}
	return append(words, string(runes[start:]))
}

func isWord(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Package chunk partitions file content into model-sized pieces.
package chunk

import "unicode/utf8"

// DefaultMaxChars is the per-chunk character budget for one model call.
const DefaultMaxChars = 4000

// Split partitions content into ordered chunks of at most maxChars
// characters each. Concatenating the returned chunks reproduces content
// exactly. Breaks prefer the last whitespace inside the window so words stay
// intact; a window with no whitespace is cut hard at the budget. Sizes are
// counted in runes, and cuts always land on rune boundaries.
func Split(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if content == "" {
		return nil
	}

	var chunks []string
	rest := content
	for rest != "" {
		end := 0       // byte offset one past the current window
		lastSpace := 0 // byte offset one past the last whitespace in the window
		count := 0
		for i, r := range rest {
			if count == maxChars {
				break
			}
			count++
			end = i + utf8.RuneLen(r)
			if isSpace(r) {
				lastSpace = end
			}
		}
		if end >= len(rest) {
			chunks = append(chunks, rest)
			break
		}
		cut := end
		if lastSpace > 0 {
			cut = lastSpace
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	return chunks
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

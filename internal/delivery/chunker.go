package delivery

import "strings"

// dividerRule is what a markdown "---" line becomes in the outgoing
// messages: a fixed-width horizontal rule.
var dividerRule = strings.Repeat("─", 30)

// splitParagraphs breaks recap text into paragraphs on blank lines. A line
// consisting solely of the divider marker is lifted out as its own paragraph
// and rendered as a fixed-width rule.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case trimmed == "---":
			flush()
			paragraphs = append(paragraphs, dividerRule)
		default:
			current = append(current, line)
		}
	}
	flush()

	return paragraphs
}

// chunkParagraph splits an oversized paragraph at exact character offsets.
// Deliberately not word-aware: a paragraph that long is already degenerate
// and the simple cut keeps chunk boundaries predictable.
func chunkParagraph(p string, limit int) []string {
	runes := []rune(p)
	if len(runes) <= limit {
		return []string{p}
	}

	var chunks []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// SplitMessage turns recap text into the ordered sequence of messages to
// send, each within the size limit.
func SplitMessage(text string, limit int) []string {
	var messages []string
	for _, p := range splitParagraphs(text) {
		messages = append(messages, chunkParagraph(p, limit)...)
	}
	return messages
}

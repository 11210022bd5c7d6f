package telegram

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// MaxMessageLength is the Bot API limit for one text message, counted in
// UTF-16 code units.
const MaxMessageLength = 4096

// SplitMessage cuts text into chunks of at most limit UTF-16 units,
// preferring to break after a newline so lines stay whole.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if text == "" {
		return nil
	}

	var chunks []string
	for {
		text = strings.TrimLeft(text, "\n")
		if text == "" {
			break
		}
		cut, lastNewline, units := len(text), -1, 0
		for i, r := range text {
			n := utf16.RuneLen(r)
			if n < 0 {
				n = 1
			}
			if units+n > limit {
				cut = i
				break
			}
			units += n
			if r == '\n' {
				lastNewline = i
			}
		}

		if cut < len(text) && lastNewline > 0 {
			cut = lastNewline + 1
		}
		if cut == 0 {
			_, size := utf8.DecodeRuneInString(text)
			cut = size
		}
		chunk := strings.TrimRight(text[:cut], "\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = text[cut:]
	}
	return chunks
}

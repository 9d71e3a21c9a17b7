package channel

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the Discord message size limit, in characters.
const DefaultMaxLength = 2000

// Split breaks text into fragments of at most maxLength characters at line
// boundaries. Lines are accumulated greedily; a fragment is closed when the
// next line plus its separating newline would overflow. A single line longer
// than maxLength becomes a fragment of its own and is never cut.
//
// Joining the fragments with "\n" yields text again. Blank lines are kept,
// so fragments may be empty or whitespace-only. Empty text yields no
// fragments; a non-positive maxLength yields text as a single fragment.
func Split(text string, maxLength int) []string {
	if text == "" {
		return nil
	}
	if maxLength <= 0 {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	fragments := make([]string, 0, 1+utf8.RuneCountInString(text)/maxLength)

	var current strings.Builder
	current.WriteString(lines[0])
	currentLen := utf8.RuneCountInString(lines[0])

	for _, line := range lines[1:] {
		n := utf8.RuneCountInString(line)
		if currentLen+1+n > maxLength {
			fragments = append(fragments, current.String())
			current.Reset()
			current.WriteString(line)
			currentLen = n
			continue
		}
		current.WriteByte('\n')
		current.WriteString(line)
		currentLen += 1 + n
	}

	return append(fragments, current.String())
}

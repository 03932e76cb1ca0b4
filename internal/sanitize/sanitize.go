// Package sanitize strips invisible and control characters from chat text
// before it is shown to a model or written to the audit log.
//
// Zero-width, bidi and Unicode tag characters render as nothing (or reorder
// what a human sees) while still reaching the model, so a member can hide
// instructions to the analyzer inside an innocent looking message.
package sanitize

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Finding is one character removed from the input.
type Finding struct {
	Category  string // "zero-width", "bidi-override", "tag-char", "control-char", "invalid-utf8"
	Position  int    // byte offset in the input
	Codepoint string // e.g. "U+200B"
}

// Result holds the output of a scan.
type Result struct {
	Clean    bool
	Findings []Finding
	// Text is the input with every finding removed.
	Text string
}

// Scan inspects s and returns it with hidden characters removed.
func Scan(s string) Result {
	result := Result{Clean: true}
	var out strings.Builder
	out.Grow(len(s))

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])

		if r == utf8.RuneError && size == 1 {
			result.Clean = false
			result.Findings = append(result.Findings, Finding{
				Category:  "invalid-utf8",
				Position:  i,
				Codepoint: fmt.Sprintf("0x%02X", s[i]),
			})
			i++
			continue
		}

		if cat := classify(r); cat != "" {
			result.Clean = false
			result.Findings = append(result.Findings, Finding{
				Category:  cat,
				Position:  i,
				Codepoint: fmt.Sprintf("U+%04X", r),
			})
			i += size
			continue
		}

		out.WriteRune(r)
		i += size
	}

	result.Text = out.String()
	return result
}

// Text returns s with hidden characters removed.
func Text(s string) string {
	return Scan(s).Text
}

// Line is like Text but also folds line breaks and tabs into spaces, so one
// chat message always occupies a single line of analyzer context.
func Line(s string) string {
	t := Text(s)
	return strings.Join(strings.Fields(t), " ")
}

func classify(r rune) string {
	switch {
	case isZeroWidth(r):
		return "zero-width"
	case isBidiOverride(r):
		return "bidi-override"
	case isTagCharacter(r):
		return "tag-char"
	case isUnsafeControl(r):
		return "control-char"
	}
	return ""
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F': // RIGHT-TO-LEFT MARK
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	switch r {
	case '\u202A', '\u202B', '\u202C', '\u202D', '\u202E',
		'\u2066', '\u2067', '\u2068', '\u2069':
		return true
	}
	return false
}

func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}

func isUnsafeControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

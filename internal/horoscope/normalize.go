package horoscope

import (
	"strings"
	"unicode/utf8"
)

// promoPhrase marks the funding/advertising footer channels append to posts.
const promoPhrase = "لطلب التمويل"

// supported reports whether r lies in the XML 1.0 character range.
func supported(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// StripUnsupported drops every character outside the XML interchange range
// (control characters other than tab and newlines, surrogates, U+FFFE,
// U+FFFF) along with invalid UTF-8 sequences.
func StripUnsupported(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if supported(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func noiseLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" ||
		strings.HasPrefix(trimmed, ":-") ||
		strings.Contains(line, "@") ||
		strings.Contains(line, "TELE") ||
		strings.Contains(line, "http") ||
		strings.Contains(line, promoPhrase)
}

// Normalize removes unsupported characters, then drops attribution lines,
// lines carrying handles, links or the promotional footer, and blank lines.
// The result is trimmed. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	lines := strings.Split(StripUnsupported(raw), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if noiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Package truncate bounds stored text by encoded byte length.
package truncate

import "unicode/utf8"

// Storage limits, in bytes of UTF-8.
const (
	MaxRenderedPromptBytes = 200 * 1024
	MaxResponseBytes       = 500 * 1024
)

// Enforce cuts text to at most maxBytes. A cut that would split a multi-byte rune
// backs off to the rune start so the result stays valid UTF-8.
func Enforce(text string, maxBytes int) (string, bool) {
	if maxBytes < 0 {
		maxBytes = 0
	}
	if len(text) <= maxBytes {
		return text, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}

// Exceeds reports whether text is over maxBytes without copying it.
func Exceeds(text string, maxBytes int) bool {
	return len(text) > maxBytes
}

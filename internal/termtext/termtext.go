// Package termtext turns raw terminal bytes into plain text.
package termtext

import (
	"regexp"
	"strings"
)

// Escape sequence families, longest forms first so that the single-byte
// fallback only sees what is left.
var escapePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`),  // CSI
	regexp.MustCompile(`\x1b\].*?(?:\x07|\x1b\\)`), // OSC
	regexp.MustCompile(`\x1b[P^_k].*?\x1b\\`),      // DCS, PM, APC, screen title
	regexp.MustCompile(`\x1b[()][0-9A-Za-z]`),      // charset
	regexp.MustCompile(`\x1b[=>]`),                 // keypad mode
	regexp.MustCompile(`\x1b.`),                    // anything else
}

// StripANSI removes escape sequences and control bytes, applying backspaces
// and dropping carriage returns. Newlines and tabs survive.
func StripANSI(s string) string {
	for _, re := range escapePatterns {
		s = re.ReplaceAllString(s, "")
	}

	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\r':
		case ch == '\b':
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		case (ch < 0x20 || ch == 0x7f) && ch != '\n' && ch != '\t':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

// TailLines returns the last n lines of s after stripping escapes. n <= 0
// returns every line. A trailing newline does not produce an empty line.
func TailLines(s string, n int) []string {
	clean := strings.TrimSuffix(StripANSI(s), "\n")
	if clean == "" {
		return []string{}
	}
	lines := strings.Split(clean, "\n")
	if n > 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return lines
}

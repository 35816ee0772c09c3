package decoder

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// scanState is the quote/escape state of the field scanner.
type scanState int

const (
	// stateNormal: inside the value, no pending escape or quote.
	stateNormal scanState = iota
	// stateEscaped: the previous character was an unescaped backslash.
	stateEscaped
	// statePossibleEnd: an unescaped quote was seen; waiting to learn whether
	// the next significant character closes the enclosing object or array.
	statePossibleEnd
)

// scanField looks for each marker in order and returns the first value whose
// unescaped length exceeds minLen runes. It does not need the payload to be
// valid JSON: a quote only terminates the value when the next non-whitespace
// character is '}' or ']', so stray unescaped quotes inside the text survive.
func scanField(raw string, markers []string, minLen int) (text, marker string, ok bool) {
	for _, m := range markers {
		value, found := scanMarker(raw, m)
		if !found {
			continue
		}
		value = unescape(value)
		if strings.TrimSpace(value) == "" || utf8.RuneCountInString(value) <= minLen {
			continue
		}
		return value, m, true
	}
	return "", "", false
}

// scanMarker returns the still-escaped value following the first `"marker":`.
func scanMarker(raw, marker string) (string, bool) {
	token := `"` + marker + `":`
	at := strings.Index(raw, token)
	if at < 0 {
		return "", false
	}
	rest := raw[at+len(token):]
	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return "", false
	}
	rest = rest[open+1:]

	var buf, pending strings.Builder
	state := stateNormal
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch state {
		case stateEscaped:
			buf.WriteByte(c)
			state = stateNormal
			continue
		case statePossibleEnd:
			switch c {
			case ' ', '\t', '\n', '\r':
				pending.WriteByte(c)
				continue
			case '}', ']':
				return buf.String(), true
			}
			// The quote belonged to the text.
			buf.WriteString(pending.String())
			pending.Reset()
			state = stateNormal
		}

		switch c {
		case '\\':
			buf.WriteByte(c)
			state = stateEscaped
		case '"':
			pending.WriteByte(c)
			state = statePossibleEnd
		default:
			buf.WriteByte(c)
		}
	}
	return "", false
}

// unescape resolves JSON string escapes in one pass, so an escaped backslash
// never pairs with the character after it. Unknown escapes are kept verbatim.
func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			r, n := decodeUnicodeEscape(s[i+1:])
			if n == 0 {
				b.WriteString(`\u`)
				continue
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodeUnicodeEscape reads the XXXX of a \uXXXX escape (plus a trailing
// low surrogate escape when present) and reports how many bytes it consumed.
func decodeUnicodeEscape(s string) (rune, int) {
	if len(s) < 4 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0
	}
	r := rune(v)
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if lo, err := strconv.ParseUint(s[6:10], 16, 16); err == nil {
			if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
				return pair, 10
			}
		}
	}
	if utf16.IsSurrogate(r) {
		return utf8.RuneError, 4
	}
	return r, 4
}

package decoder

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const bom = "\uFEFF"

// decodeStrict parses raw verbatim.
func decodeStrict(raw string) (gjson.Result, error) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, &Error{Kind: KindMalformedInput, Stage: StageStrict}
	}
	return gjson.Parse(raw), nil
}

// decodeSanitized parses raw after sanitize.
func decodeSanitized(raw string) (gjson.Result, error) {
	clean := sanitize(raw)
	if !gjson.Valid(clean) {
		return gjson.Result{}, &Error{Kind: KindMalformedInput, Stage: StageSanitized}
	}
	return gjson.Parse(clean), nil
}

// isControl reports the C0/C1 control range the webhook leaks into payloads,
// excluding tab, LF and CR.
func isControl(r rune) bool {
	switch {
	case r <= 0x08, r == 0x0B, r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r >= 0x7F && r <= 0x9F:
		return true
	}
	return false
}

// sanitize rewrites raw so that control bytes inside string literals become
// JSON escapes and everything else parses. Line endings are normalized to
// LF first, so a raw CR surfaces as an escaped newline. Outside string
// literals control characters are plain whitespace and become spaces.
// Runs of spaces collapse to one and at most one blank line survives.
func sanitize(raw string) string {
	s := strings.TrimPrefix(raw, bom)
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s) + len(s)/8)

	inString := false
	escaped := false
	lastSpace := false
	newlines := 0

	writeSpace := func() {
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		chunk := s[i : i+size]
		i += size

		if !inString {
			switch {
			case r == '\n' || r == '\t' || r == ' ' || isControl(r):
				writeSpace()
				continue
			case r == '"':
				inString = true
			}
			b.WriteString(chunk)
			lastSpace = false
			continue
		}

		if escaped {
			escaped = false
			switch {
			case r == '\n':
				b.WriteByte('n')
			case r == '\t':
				b.WriteByte('t')
			case isControl(r):
				// A backslash followed by a stray control byte: keep the
				// backslash literal and drop the byte.
				b.WriteString(`\ `)
			default:
				b.WriteString(chunk)
			}
			lastSpace = false
			newlines = 0
			continue
		}

		switch {
		case r == '\\':
			escaped = true
			b.WriteByte('\\')
			lastSpace = false
		case r == '"':
			inString = false
			b.WriteByte('"')
			lastSpace = false
			newlines = 0
		case r == '\n':
			if newlines < 2 {
				b.WriteString(`\n`)
				newlines++
			}
			lastSpace = false
		case r == '\t':
			b.WriteString(`\t`)
			lastSpace = false
		case r == ' ' || isControl(r):
			writeSpace()
		default:
			b.WriteString(chunk)
			lastSpace = false
			newlines = 0
		}
	}
	return b.String()
}

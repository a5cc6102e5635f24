// Package jsonutil provides the JSON helpers shared by the renderer,
// the tokenomics counter and the catalog.
//
// Payload fields in transcripts are kept as json.RawMessage so that
// key order survives a round trip; these helpers work on raw bytes
// for the same reason.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Indent formats a raw JSON value with two-space indentation, keeping
// the original key order. An empty value is treated as JSON null.
func Indent(raw json.RawMessage) (string, error) {
	if IsNull(raw) {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", fmt.Errorf("indenting JSON payload: %w", err)
	}
	return buf.String(), nil
}

// PrettyJSON is Indent for display paths that prefer the raw input
// over an error.
func PrettyJSON(raw json.RawMessage) string {
	s, err := Indent(raw)
	if err != nil {
		return string(raw)
	}
	return s
}

// Compact minifies a raw JSON value.
func Compact(raw json.RawMessage) (string, error) {
	if IsNull(raw) {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("compacting JSON payload: %w", err)
	}
	return buf.String(), nil
}

// Spaced renders a raw JSON value on a single line with a space after
// every ',' and ':' separator outside of strings. Non-ASCII characters
// inside strings are written as lowercase \uXXXX escapes, with UTF-16
// surrogate pairs above U+FFFF. Token counts in recorded metrics
// documents were computed against this layout.
func Spaced(raw json.RawMessage) (string, error) {
	compact, err := Compact(raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(compact) + len(compact)/4)
	inString, escaped := false, false
	for i := 0; i < len(compact); {
		c := compact[i]
		if inString && c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(compact[i:])
			writeEscapedRune(&b, r)
			escaped = false
			i += size
			continue
		}

		b.WriteByte(c)
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && (c == ',' || c == ':'):
			b.WriteByte(' ')
		}
		i++
	}
	return b.String(), nil
}

func writeEscapedRune(b *strings.Builder, r rune) {
	if r > 0xFFFF {
		hi, lo := utf16.EncodeRune(r)
		fmt.Fprintf(b, `\u%04x\u%04x`, hi, lo)
		return
	}
	fmt.Fprintf(b, `\u%04x`, r)
}

// IsNull reports whether raw is empty or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrUndecodable is returned when no decode strategy can make sense of
// a response body. The caller treats it as retryable.
var ErrUndecodable = errors.New("response body not decodable")

// decodeStrategy is a pure bytes-to-value decoder. Strategies form a
// closed chain tried in order; the first success wins.
type decodeStrategy func([]byte) (any, error)

var decodeChain = []decodeStrategy{
	decodeJSON,
	decodeLenient,
	decodeLiteral,
}

// Parse decodes a response body through the strategy chain. Payloads
// that arrive JSON-encoded twice are unwrapped.
func Parse(raw []byte) (any, error) {
	for _, decode := range decodeChain {
		if v, err := decode(raw); err == nil {
			return unwrapNested(v), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUndecodable, snippet(raw))
}

// decodeJSON is the strict default.
func decodeJSON(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeLenient trims a UTF-8 BOM, surrounding whitespace and the
// common XSSI guard prefix before decoding.
func decodeLenient(raw []byte) (any, error) {
	trimmed := bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	trimmed = bytes.TrimSpace(trimmed)
	trimmed = bytes.TrimPrefix(trimmed, []byte(")]}',"))
	trimmed = bytes.TrimSpace(trimmed)
	return decodeJSON(trimmed)
}

// decodeLiteral handles bodies written as single-quoted object
// literals, e.g. {'code': 0, 'ok': True, 'data': None}.
func decodeLiteral(raw []byte) (any, error) {
	if !utf8.Valid(raw) {
		return nil, ErrUndecodable
	}
	return decodeJSON([]byte(normalizeLiteral(string(raw))))
}

// unwrapNested re-decodes string payloads that themselves hold a JSON
// document. At most two levels, which covers the double-encoding seen
// from proxied APIs.
func unwrapNested(v any) any {
	for range 2 {
		s, ok := v.(string)
		if !ok {
			return v
		}
		t := strings.TrimSpace(s)
		if !strings.HasPrefix(t, "{") && !strings.HasPrefix(t, "[") && !strings.HasPrefix(t, `"`) {
			return v
		}
		var inner any
		if err := json.Unmarshal([]byte(t), &inner); err != nil {
			return v
		}
		v = inner
	}
	return v
}

// normalizeLiteral rewrites a Python-style object literal as JSON:
// single-quote delimiters become double quotes and the bare words
// True, False and None become their JSON spellings. Best effort only;
// anything it cannot fix fails the subsequent JSON decode.
func normalizeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case ch == '\\' && i+1 < len(s):
				next := s[i+1]
				if next == '\'' {
					// JSON has no \' escape.
					b.WriteByte('\'')
				} else {
					b.WriteByte(ch)
					b.WriteByte(next)
				}
				i++
			case ch == quote:
				inString = false
				b.WriteByte('"')
			case ch == '"':
				b.WriteString(`\"`)
			default:
				b.WriteByte(ch)
			}
			continue
		}

		switch {
		case ch == '\'' || ch == '"':
			inString = true
			quote = ch
			b.WriteByte('"')
		case matchBareWord(s, i, "True"):
			b.WriteString("true")
			i += len("True") - 1
		case matchBareWord(s, i, "False"):
			b.WriteString("false")
			i += len("False") - 1
		case matchBareWord(s, i, "None"):
			b.WriteString("null")
			i += len("None") - 1
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// matchBareWord reports whether word starts at i with word boundaries
// on both sides.
func matchBareWord(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	if i > 0 && isWordByte(s[i-1]) {
		return false
	}
	end := i + len(word)
	return end >= len(s) || !isWordByte(s[end])
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// snippet trims a body for error messages.
func snippet(raw []byte) string {
	const max = 120
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}

// Package keys builds result cache keys for geometry operations.
package keys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "gc:v1"

// Key identifies the result of op applied to body with the given options.
// Insignificant whitespace in a JSON body does not change the key.
func Key(op, opts string, body []byte) string {
	opSafe := sanitizeForKey(strings.ToLower(strings.TrimSpace(op)))
	optsText := collapseASCIIWhitespace(opts)
	optsSafe := sanitizeForKey(optsText)

	const maxOptsTextLen = 96
	if len(optsSafe) > maxOptsTextLen {
		optsSafe = optsSafe[:maxOptsTextLen]
	}

	canon := canonicalBody(body)

	d := xxhash.New()
	_, _ = d.WriteString(opSafe)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(optsText)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(canon)

	return fmt.Sprintf("%s:%s:opts=%s:n=%d:h=%016x", prefix, opSafe, optsSafe, len(canon), d.Sum64())
}

// compacts JSON bodies; anything else is hashed verbatim
func canonicalBody(body []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return body
	}
	return buf.Bytes()
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == ',':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}

package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"bleemsworker/pkg/errors"
)

// The site embeds one record per product page as a JavaScript object literal:
//
//	var trackJson = { 'content_id': '123', 'product': decodeHTMLString('Cake &#x1F382;'), };
//
// The literal is not valid JSON: single-quoted strings, helper-function calls
// the static HTML cannot invoke, numeric character references and trailing
// commas. NormalizeJSObject rewrites it into strict JSON.

var (
	trackJSONPattern  = regexp.MustCompile(`(?s)var\s+trackJson\s*=\s*(\{.*?\})\s*;`)
	decodeCallPattern = regexp.MustCompile(`decodeHTMLString\(['"]([^'"]*?)['"]\)`)
	trailingCommaRe   = regexp.MustCompile(`,\s*([}\]])`)
)

// htmlEntities lists the character references the site emits inside JS
// strings. Numeric references go first so "&amp;" never uncovers a second
// round of them.
var htmlEntities = []struct{ entity, literal string }{
	{"&#x1F382;", "🎂"}, {"&#x1F319;", "🌙"}, {"&#x1F381;", "🎁"},
	{"&#x1F338;", "🌸"}, {"&#x1F490;", "💐"}, {"&#x1F36C;", "🍬"},
	{"&amp;", "&"}, {"&lt;", "<"}, {"&gt;", ">"}, {"&quot;", `"`},
}

// NormalizeJSObject converts a JS object literal into valid JSON text.
// Each step is idempotent on input that is already conformant.
func NormalizeJSObject(raw string) string {
	// 1. Replace decodeHTMLString('...') with a proper JSON string literal
	raw = decodeCallPattern.ReplaceAllStringFunc(raw, func(call string) string {
		inner := decodeCallPattern.FindStringSubmatch(call)[1]
		quoted, _ := json.Marshal(inner)
		return string(quoted)
	})

	// 2. Replace HTML entities
	for _, e := range htmlEntities {
		raw = strings.ReplaceAll(raw, e.entity, e.literal)
	}

	// 3. Convert single-quoted strings to double-quoted strings
	raw = rewriteQuotes(raw)

	// 4. Remove trailing commas before } or ]
	raw = trailingCommaRe.ReplaceAllString(raw, "$1")

	return raw
}

// rewriteQuotes walks the input once, tracking whether the scan is inside a
// double-quoted string. Single quotes inside a double-quoted context are left
// alone; double quotes inside a single-quoted run are escaped. An unterminated
// single-quoted run is consumed to the end of the input rather than failing.
func rewriteQuotes(raw string) string {
	var result strings.Builder
	result.Grow(len(raw))

	inDouble := false
	i := 0
	for i < len(raw) {
		ch := raw[i]
		switch {
		case ch == '"':
			inDouble = !inDouble
			result.WriteByte(ch)
			i++
		case ch == '\'' && !inDouble:
			j := i + 1
			var buf strings.Builder
			for j < len(raw) {
				c := raw[j]
				if c == '\'' {
					break
				}
				if c == '"' {
					buf.WriteString(`\"`)
				} else {
					buf.WriteByte(c)
				}
				j++
			}
			result.WriteByte('"')
			result.WriteString(buf.String())
			result.WriteByte('"')
			i = j + 1
		default:
			result.WriteByte(ch)
			i++
		}
	}

	return result.String()
}

// FindTrackJSONBlocks returns every raw trackJson object literal embedded in
// an HTML document, in document order.
func FindTrackJSONBlocks(html string) []string {
	matches := trackJSONPattern.FindAllStringSubmatch(html, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// ParseTrackJSON normalizes one raw object literal and unmarshals it. A block
// that still fails JSON parsing after normalization is reported as an
// unparseable embedded object; the caller drops that one record.
func ParseTrackJSON(block string) (map[string]interface{}, error) {
	normalized := NormalizeJSObject(block)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(normalized), &data); err != nil {
		return nil, errors.NewParsing("", "unparseable embedded object", err)
	}
	return data, nil
}

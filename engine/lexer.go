package engine

import (
	"strings"
)

type spanType int

const (
	spanText spanType = iota
	spanOutput
	spanTag
)

// span is one slice of a template: literal text, a {{ ... }} output or a
// {% ... %} tag. Raw-body tags (raw, comment, schema, stylesheet,
// javascript) additionally carry their unparsed body.
type span struct {
	typ       spanType
	content   string
	rawBody   string
	trimLeft  bool
	trimRight bool
}

// rawBodyTags capture their body verbatim at tokenize time; the body may
// contain {{ }} and {% %} sequences that must not be interpreted.
var rawBodyTags = map[string]bool{
	"raw":        true,
	"comment":    true,
	"schema":     true,
	"stylesheet": true,
	"javascript": true,
}

// tokenize splits template source into spans. An unterminated marker is
// treated as literal text rather than an error so a broken template still
// renders its remainder.
func tokenize(source string) []span {
	var spans []span
	i := 0
	for i < len(source) {
		open := strings.Index(source[i:], "{{")
		tagOpen := strings.Index(source[i:], "{%")
		if open == -1 && tagOpen == -1 {
			spans = append(spans, span{typ: spanText, content: source[i:]})
			break
		}
		next, isTag := open, false
		if open == -1 || (tagOpen != -1 && tagOpen < open) {
			next, isTag = tagOpen, true
		}
		if next > 0 {
			spans = append(spans, span{typ: spanText, content: source[i : i+next]})
		}
		i += next
		if isTag {
			sp, consumed, ok := scanTag(source, i)
			if !ok {
				spans = append(spans, span{typ: spanText, content: source[i:]})
				break
			}
			spans = append(spans, sp)
			i = consumed
		} else {
			sp, consumed, ok := scanOutput(source, i)
			if !ok {
				spans = append(spans, span{typ: spanText, content: source[i:]})
				break
			}
			spans = append(spans, sp)
			i = consumed
		}
	}
	applyWhitespaceControl(spans)
	return spans
}

// scanOutput reads a {{ ... }} span starting at source[start].
func scanOutput(source string, start int) (span, int, bool) {
	inner := start + 2
	end := strings.Index(source[inner:], "}}")
	if end == -1 {
		return span{}, 0, false
	}
	content := source[inner : inner+end]
	sp := span{typ: spanOutput}
	sp.trimLeft, sp.trimRight, sp.content = stripTrimMarkers(content)
	return sp, inner + end + 2, true
}

// scanTag reads a {% ... %} span. For raw-body tags it continues scanning
// for the matching end tag, tracking same-name nesting depth so a nested
// occurrence of the tag never terminates the outer one early.
func scanTag(source string, start int) (span, int, bool) {
	inner := start + 2
	end := strings.Index(source[inner:], "%}")
	if end == -1 {
		return span{}, 0, false
	}
	content := source[inner : inner+end]
	sp := span{typ: spanTag}
	sp.trimLeft, sp.trimRight, sp.content = stripTrimMarkers(content)
	pos := inner + end + 2

	name := tagWord(sp.content)
	if !rawBodyTags[name] {
		return sp, pos, true
	}

	endName := "end" + name
	depth := 0
	bodyStart := pos
	for pos < len(source) {
		next := strings.Index(source[pos:], "{%")
		if next == -1 {
			break
		}
		pos += next
		close := strings.Index(source[pos:], "%}")
		if close == -1 {
			break
		}
		_, _, tagContent := stripTrimMarkers(source[pos+2 : pos+close])
		word := tagWord(tagContent)
		if word == name {
			depth++
		} else if word == endName {
			if depth == 0 {
				sp.rawBody = source[bodyStart:pos]
				return sp, pos + close + 2, true
			}
			depth--
		}
		pos += close + 2
	}
	// no matching end tag: swallow the rest as the body
	sp.rawBody = source[bodyStart:]
	return sp, len(source), true
}

// stripTrimMarkers handles the {%- ... -%} / {{- ... -}} whitespace-control
// dashes.
func stripTrimMarkers(content string) (trimLeft, trimRight bool, rest string) {
	rest = content
	if strings.HasPrefix(rest, "-") {
		trimLeft = true
		rest = rest[1:]
	}
	if strings.HasSuffix(rest, "-") {
		trimRight = true
		rest = rest[:len(rest)-1]
	}
	return trimLeft, trimRight, strings.TrimSpace(rest)
}

func applyWhitespaceControl(spans []span) {
	for i := range spans {
		if spans[i].typ == spanText {
			continue
		}
		if spans[i].trimLeft && i > 0 && spans[i-1].typ == spanText {
			spans[i-1].content = strings.TrimRight(spans[i-1].content, " \t\r\n")
		}
		if spans[i].trimRight && i+1 < len(spans) && spans[i+1].typ == spanText {
			spans[i+1].content = strings.TrimLeft(spans[i+1].content, " \t\r\n")
		}
	}
}

// tagWord returns the first word of a tag span: its name.
func tagWord(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.IndexAny(content, " \t\r\n"); idx != -1 {
		return content[:idx]
	}
	return content
}

// tagArgs returns everything after the tag name.
func tagArgs(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.IndexAny(content, " \t\r\n"); idx != -1 {
		return strings.TrimSpace(content[idx+1:])
	}
	return ""
}

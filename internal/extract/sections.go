package extract

import (
	"regexp"
	"strings"
)

var commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// line is one line of markup with its byte offsets in the source text.
type line struct {
	text  string
	start int
	end   int
}

func splitLines(text string) []line {
	var lines []line
	offset := 0
	for offset <= len(text) {
		idx := strings.IndexByte(text[offset:], '\n')
		if idx < 0 {
			lines = append(lines, line{text: text[offset:], start: offset, end: len(text)})
			break
		}
		lines = append(lines, line{text: text[offset : offset+idx], start: offset, end: offset + idx})
		offset += idx + 1
	}
	return lines
}

// heading parses a section header such as "== See also ==". The level is the
// number of equals signs on the shorter side; a lower level ranks higher.
// HTML comments on the line are ignored.
func heading(s string) (level int, name string, ok bool) {
	s = strings.TrimRight(commentPattern.ReplaceAllString(s, ""), " \t\r")
	left := len(s) - len(strings.TrimLeft(s, "="))
	right := len(s) - len(strings.TrimRight(s, "="))
	if left == 0 || right == 0 || left+right >= len(s) {
		return 0, "", false
	}
	level = min(left, right)
	return level, strings.TrimSpace(s[left : len(s)-right]), true
}

func leadingEquals(s string) int {
	s = commentPattern.ReplaceAllString(s, "")
	return len(s) - len(strings.TrimLeft(s, "="))
}

// section is a header together with the text that follows it.
type section struct {
	level int
	// leading is the count of '=' before the name; "== A ==" has 2.
	leading int
	name    string
	body    string
	// closed is false when no header of equal or higher rank follows.
	closed bool
}

// sections returns every header in text with its body, which runs until the
// next header of equal or higher rank.
func sections(text string) []section {
	lines := splitLines(text)
	var out []section
	for i, ln := range lines {
		level, name, ok := heading(ln.text)
		if !ok {
			continue
		}
		sec := section{
			level:   level,
			leading: leadingEquals(ln.text),
			name:    name,
		}
		bodyStart := ln.end
		bodyEnd := len(text)
		for _, next := range lines[i+1:] {
			if nl, _, ok := heading(next.text); ok && nl <= level {
				bodyEnd = next.start
				sec.closed = true
				break
			}
		}
		if bodyStart < bodyEnd {
			sec.body = text[bodyStart:bodyEnd]
		}
		out = append(out, sec)
	}
	return out
}

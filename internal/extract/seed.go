package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

var (
	// overviewPattern matches ": '''''[[Computing]]'''''" style overview headers.
	overviewPattern = regexp.MustCompile(`^(:+)\s*'''''\s*\[\[([^\]]+)\]\]'''''(.*)$`)

	listItemPattern = regexp.MustCompile(`(?im)^\s*(?:\*+|\|)\s*\[\[([^#|\]]+)[#|]?.*?\]\]`)

	glossaryPattern = regexp.MustCompile(`(?m)\{\{term\|.*?\[\[([^#|\]]+)[#|]?.*?\]\].*?\}\}`)
)

// SeedLinks extracts links from a curated contents page: overview regions,
// list items inside the target sections, glossary terms and every alphabetic
// index section. An empty targets list selects every overview region and every
// list item in the page.
//
// Overview regions and target sections end at the next header of equal or
// higher rank. A region that is not followed by such a header is skipped.
func (p *WikitextParser) SeedLinks(content string, targets []string) crawler.TitleSet {
	c := newCollector()
	match := targetMatcher(targets)

	for _, region := range overviewRegions(content, match) {
		c.addLinks(region)
	}

	if len(targets) > 0 {
		for _, sec := range sections(content) {
			if sec.closed && match(sec.name) {
				c.addMatches(listItemPattern, sec.body)
			}
		}
	} else {
		c.addMatches(listItemPattern, content)
	}

	c.addMatches(glossaryPattern, content)

	for _, region := range indexSections(content) {
		c.addLinks(region)
	}
	return c.set
}

func targetMatcher(targets []string) func(string) bool {
	if len(targets) == 0 {
		return func(string) bool { return true }
	}
	want := crawler.NewTitleSet()
	for _, t := range targets {
		want.Add(crawler.NormalizeTitle(t))
	}
	return func(name string) bool {
		return want.Has(crawler.NormalizeTitle(name))
	}
}

// colonDepth returns the number of leading colons of s.
func colonDepth(s string) int {
	return len(s) - len(strings.TrimLeft(s, ":"))
}

// overviewRegions returns the text following each matching overview header up
// to the next line indented at the same or a shallower depth, or the next
// section header.
func overviewRegions(content string, match func(string) bool) []string {
	lines := splitLines(content)
	var out []string
	for i, ln := range lines {
		m := overviewPattern.FindStringSubmatch(ln.text)
		if m == nil || !match(m[2]) {
			continue
		}
		depth := len(m[1])
		start := ln.start + len(ln.text) - len(m[3])
		for _, next := range lines[i+1:] {
			d := colonDepth(next.text)
			_, _, isHeader := heading(next.text)
			if (d > 0 && d <= depth) || isHeader {
				out = append(out, content[start:next.start])
				break
			}
		}
	}
	return out
}

// indexSections returns the bodies of "== A ==" through "== Z ==" sections.
// Each body ends at the next line starting with "==" or at the end of text.
func indexSections(content string) []string {
	lines := splitLines(content)
	var out []string
	for i, ln := range lines {
		if !isIndexHeader(ln.text) {
			continue
		}
		end := len(content)
		for _, next := range lines[i+1:] {
			if strings.HasPrefix(next.text, "==") {
				end = next.start
				break
			}
		}
		if ln.end < end {
			out = append(out, content[ln.end:end])
		}
	}
	return out
}

func isIndexHeader(s string) bool {
	level, name, ok := heading(s)
	if !ok || level != 2 || !strings.HasPrefix(s, "==") || strings.HasPrefix(s, "===") {
		return false
	}
	return len(name) == 1 && name[0] >= 'A' && name[0] <= 'Z'
}

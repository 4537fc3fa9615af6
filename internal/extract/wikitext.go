package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

const templateNamespace = "Template:"

var (
	seeAlsoName = regexp.MustCompile(`(?i)^see\s+also$`)

	// hatnotePattern matches {{Main|...}} and {{See also|...}} invocations.
	hatnotePattern = regexp.MustCompile(`(?is)\{\{\s*(?:Main|See\s+also)\s*(?:\|(.*?))?\}\}`)

	// transclusionPattern matches {{:Page}} and {{:Page|args}}.
	transclusionPattern = regexp.MustCompile(`(?s)\{\{:([^|#}]+).*?\}\}`)
)

// WikitextParser extracts titles from raw wiki markup.
type WikitextParser struct {
	// Restricted limits link extraction to the "See also" section and hatnotes.
	Restricted bool
}

// NewWikitextParser returns a parser in full or restricted mode.
func NewWikitextParser(restricted bool) *WikitextParser {
	return &WikitextParser{Restricted: restricted}
}

// Links returns the outgoing link targets of an article. Template pages are
// always read in full.
func (p *WikitextParser) Links(title crawler.Title, content string) crawler.TitleSet {
	c := newCollector()
	if p.Restricted && !strings.HasPrefix(string(title), templateNamespace) {
		if body, ok := seeAlsoSection(content); ok {
			c.addLinks(body)
		}
	} else {
		c.addLinks(content)
	}
	addHatnotes(c, content)
	return c.set
}

// Transclusions returns the pages embedded with {{:Page}} markup. Template
// transclusions are left to the rendered markup.
func (p *WikitextParser) Transclusions(content string) crawler.TitleSet {
	c := newCollector()
	for _, m := range transclusionPattern.FindAllStringSubmatch(content, -1) {
		c.add(m[1])
	}
	return c.set
}

// seeAlsoSection returns the body of the first "See also" section of any
// level. The section runs to the next header of equal or higher rank, or to
// the end of the text.
func seeAlsoSection(content string) (string, bool) {
	for _, sec := range sections(content) {
		if seeAlsoName.MatchString(sec.name) {
			return sec.body, true
		}
	}
	return "", false
}

// addHatnotes adds the positional arguments of hatnote templates. Named
// arguments such as l1=label or selfref=yes are skipped, and a section anchor
// ({{Main|Foo#History}}) is cut off.
func addHatnotes(c *collector, content string) {
	for _, m := range hatnotePattern.FindAllStringSubmatch(content, -1) {
		for _, arg := range strings.Split(m[1], "|") {
			if strings.Contains(arg, "=") {
				continue
			}
			arg, _, _ = strings.Cut(arg, "#")
			c.add(arg)
		}
	}
}

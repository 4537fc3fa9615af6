package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// Parser extracts titles from one representation of an article.
type Parser interface {
	Links(title crawler.Title, content string) crawler.TitleSet
	Transclusions(content string) crawler.TitleSet
}

var (
	// linkPattern captures the target of [[target]], [[target|label]] and [[target#anchor]].
	linkPattern = regexp.MustCompile(`\[\[([^#|\]]+)[#|]?.*?\]\]`)

	externalPattern = regexp.MustCompile(`(?i)^\s*(https?:)?//`)
	editPattern     = regexp.MustCompile(`(?i)^\s*/w/.*action=edit`)
)

// cleanTarget normalizes a raw link target. A leading colon (used to link to a
// category or file instead of embedding it) is dropped.
func cleanTarget(raw string) crawler.Title {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, ":")
	return crawler.NormalizeTitle(raw)
}

// admissibleTarget drops empty titles, external links and edit-action URLs.
func admissibleTarget(t crawler.Title) bool {
	if t == "" {
		return false
	}
	s := string(t)
	return !externalPattern.MatchString(s) && !editPattern.MatchString(s)
}

// collector accumulates cleaned, filtered titles.
type collector struct {
	set crawler.TitleSet
}

func newCollector() *collector {
	return &collector{set: crawler.NewTitleSet()}
}

func (c *collector) add(raw string) {
	t := cleanTarget(raw)
	if admissibleTarget(t) {
		c.set.Add(t)
	}
}

// addMatches adds the first capture group of every match of re in text.
func (c *collector) addMatches(re *regexp.Regexp, text string) {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) > 1 {
			c.add(m[1])
		}
	}
}

func (c *collector) addLinks(text string) {
	c.addMatches(linkPattern, text)
}

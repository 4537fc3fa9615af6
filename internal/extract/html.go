package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

const (
	navboxSelector = ".vertical-navbox, .navbox"
	authorityClass = "authority-control"
	wikiPathPrefix = "/wiki/"
)

// HTMLParser extracts titles from rendered article markup.
type HTMLParser struct {
	logger *zap.Logger
}

// NewHTMLParser builds an HTMLParser.
func NewHTMLParser(logger *zap.Logger) *HTMLParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTMLParser{logger: logger}
}

// Links is not supported for rendered markup and always returns an empty set.
func (p *HTMLParser) Links(title crawler.Title, _ string) crawler.TitleSet {
	p.logger.Debug("html link extraction not supported, skipping", zap.String("title", title.String()))
	return crawler.NewTitleSet()
}

// Transclusions returns the pages linked from navigation boxes, which is how
// template transclusions surface in rendered markup. Authority control boxes
// are ignored.
func (p *HTMLParser) Transclusions(content string) crawler.TitleSet {
	c := newCollector()
	if strings.TrimSpace(content) == "" {
		return c.set
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		p.logger.Warn("parse rendered markup", zap.Error(err))
		return c.set
	}
	doc.Find(navboxSelector).Not("." + authorityClass).Each(func(_ int, box *goquery.Selection) {
		box.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			c.add(hrefTitle(href))
		})
	})
	return c.set
}

// hrefTitle converts "/wiki/C%2B%2B_(language)#History" into "C++ (language)".
func hrefTitle(href string) string {
	href = strings.TrimPrefix(href, wikiPathPrefix)
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		href = href[:idx]
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	return strings.ReplaceAll(href, "_", " ")
}

package extract

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// Extractor combines the wikitext and rendered-markup parsers.
type Extractor struct {
	full       *WikitextParser
	restricted *WikitextParser
	html       Parser
	logger     *zap.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("extract")
	return &Extractor{
		full:       NewWikitextParser(false),
		restricted: NewWikitextParser(true),
		html:       NewHTMLParser(logger),
		logger:     logger,
	}
}

// SeedLinks extracts links from a seed page in seed-discovery mode.
func (e *Extractor) SeedLinks(text string, targets []string) crawler.TitleSet {
	return e.full.SeedLinks(text, targets)
}

// Links returns the outgoing links and transcluded pages of an article.
// Transclusions come from both the raw and the rendered markup.
func (e *Extractor) Links(article crawler.Article, restricted bool) (links, transclusions crawler.TitleSet) {
	wikitext := e.full
	if restricted {
		wikitext = e.restricted
	}
	links = wikitext.Links(article.Title, article.Text)
	transclusions = wikitext.Transclusions(article.Text)
	if article.HTML != "" {
		links.Union(e.html.Links(article.Title, article.HTML))
		transclusions.Union(e.html.Transclusions(article.HTML))
	}
	links.Remove(article.Title)
	transclusions.Remove(article.Title)
	e.logger.Debug("extracted",
		zap.String("title", article.Title.String()),
		zap.Int("links", links.Len()),
		zap.Int("transclusions", transclusions.Len()),
	)
	return links, transclusions
}

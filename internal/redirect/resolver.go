// Package redirect separates redirect pages from real content in a fetched batch.
package redirect

import (
	"regexp"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// redirectPattern matches "#REDIRECT [[Target]]" at the start of an article.
var redirectPattern = regexp.MustCompile(`(?i)^\s*#REDIRECT\s*\[\[([^#|\]]+)`)

// Resolution is the outcome of resolving one batch.
type Resolution struct {
	// Kept holds the articles with real content, in input order. An article the
	// server reached by following a redirect is kept under its target title.
	Kept []crawler.Article
	// Sources holds the titles that forward elsewhere: the page title of a
	// textual redirect, or the requested title of a server redirect.
	Sources crawler.TitleSet
	// Destinations holds the targets of textual redirects. The server already
	// followed its own redirects, so those add no destination.
	Destinations crawler.TitleSet
}

// Resolve classifies every article as kept or as a redirect source. A server
// redirect counts as both.
func Resolve(articles []crawler.Article) Resolution {
	res := Resolution{
		Kept:         make([]crawler.Article, 0, len(articles)),
		Sources:      crawler.NewTitleSet(),
		Destinations: crawler.NewTitleSet(),
	}
	for _, a := range articles {
		if a.IsServerRedirect() {
			res.Sources.Add(a.Redirect.From)
			res.Kept = append(res.Kept, a)
			continue
		}
		if target, ok := Target(a.Text); ok {
			res.Sources.Add(a.Title)
			if target != a.Title {
				res.Destinations.Add(target)
			}
			continue
		}
		res.Kept = append(res.Kept, a)
	}
	return res
}

// Target returns the normalized destination of a textual redirect.
func Target(text string) (crawler.Title, bool) {
	m := redirectPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	t := crawler.NormalizeTitle(m[1])
	return t, t != ""
}

package mediawiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// maxTitlesPerQuery is the API limit on titles per query for regular clients.
const maxTitlesPerQuery = 50

// Fetch returns the raw and rendered markup of one article, following
// redirects on the server.
func (c *Client) Fetch(ctx context.Context, title crawler.Title) (crawler.Article, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", string(title))
	params.Set("prop", "wikitext|text|revid|displaytitle")
	params.Set("redirects", "1")

	body, err := c.get(ctx, params)
	if err != nil {
		return crawler.Article{}, fmt.Errorf("parse %q: %w", title, err)
	}
	var resp parseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return crawler.Article{}, fmt.Errorf("decode parse %q: %w", title, err)
	}
	if resp.Parse.PageID == 0 && resp.Parse.Title == "" {
		return crawler.Article{}, fmt.Errorf("parse %q: %w", title, crawler.ErrNotFound)
	}

	article := crawler.Article{
		Title:      crawler.NormalizeTitle(resp.Parse.Title),
		Text:       resp.Parse.Wikitext,
		HTML:       resp.Parse.Text,
		PageID:     crawler.PageID(resp.Parse.PageID),
		RevisionID: resp.Parse.RevID,
	}
	if article.Title != title {
		article.Redirect = &crawler.RedirectInfo{From: title, To: article.Title}
	}
	return article, nil
}

// FetchMany returns the raw markup of many articles. Titles are queried in
// chunks; paginated responses are merged by page id before articles are
// built. The result holds one article per title that exists, in input order.
func (c *Client) FetchMany(ctx context.Context, titles []crawler.Title) ([]crawler.Article, error) {
	var out []crawler.Article
	for start := 0; start < len(titles); start += maxTitlesPerQuery {
		chunk := titles[start:min(start+maxTitlesPerQuery, len(titles))]
		articles, err := c.query(ctx, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, articles...)
	}
	return out, nil
}

// mergedPage accumulates the fragments of one page across continuations.
type mergedPage struct {
	page  queryPage
	text  string
	revID int64
}

func (c *Client) query(ctx context.Context, titles []crawler.Title) ([]crawler.Article, error) {
	names := make([]string, len(titles))
	for i, t := range titles {
		names[i] = string(t)
	}

	pages := make(map[int64]*mergedPage)
	byTitle := make(map[string]int64)
	aliases := make(map[string]string)
	continuation := map[string]any{}

	for calls := 1; ; calls++ {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("titles", strings.Join(names, "|"))
		params.Set("prop", "revisions|info")
		params.Set("rvprop", "content|ids")
		params.Set("rvslots", "main")
		params.Set("redirects", "1")
		for k, v := range continuation {
			params.Set(k, fmt.Sprint(v))
		}

		body, err := c.get(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("query %d titles: %w", len(titles), err)
		}
		var resp queryResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode query: %w", err)
		}

		for _, r := range resp.Query.Normalized {
			aliases[r.From] = r.To
		}
		for _, r := range resp.Query.Redirects {
			aliases[r.From] = r.To
		}
		for _, p := range resp.Query.Pages {
			if p.Missing || p.Invalid || p.PageID == 0 {
				continue
			}
			m, ok := pages[p.PageID]
			if !ok {
				m = &mergedPage{page: p}
				pages[p.PageID] = m
				byTitle[p.Title] = p.PageID
			}
			for _, rev := range p.Revisions {
				if rev.Slots.Main.Content != "" {
					m.text = rev.Slots.Main.Content
					m.revID = rev.RevID
				}
			}
			if p.LastRevID != 0 {
				m.page.LastRevID = p.LastRevID
			}
		}

		if len(resp.Continue) == 0 {
			c.logger.Debug("query complete", zap.Int("titles", len(titles)), zap.Int("calls", calls))
			break
		}
		continuation = resp.Continue
	}

	out := make([]crawler.Article, 0, len(titles))
	for _, requested := range titles {
		name := resolveAlias(aliases, string(requested))
		id, ok := byTitle[name]
		if !ok {
			continue
		}
		m := pages[id]
		revID := m.revID
		if revID == 0 {
			revID = m.page.LastRevID
		}
		article := crawler.Article{
			Title:      crawler.NormalizeTitle(m.page.Title),
			Text:       m.text,
			PageID:     crawler.PageID(id),
			RevisionID: revID,
		}
		if article.Title != requested {
			article.Redirect = &crawler.RedirectInfo{From: requested, To: article.Title}
		}
		out = append(out, article)
	}
	return out, nil
}

// resolveAlias follows normalization and redirect mappings, stopping on cycles.
func resolveAlias(aliases map[string]string, name string) string {
	seen := map[string]struct{}{name: {}}
	for {
		next, ok := aliases[name]
		if !ok {
			return name
		}
		if _, loop := seen[next]; loop {
			return next
		}
		seen[next] = struct{}{}
		name = next
	}
}

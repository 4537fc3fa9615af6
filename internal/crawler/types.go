package crawler

// PageID is the encyclopedia's canonical identity for a page. Two titles that
// resolve to the same page (for example through a redirect) share a PageID.
type PageID int64

// NoPageID marks a title that was fetched but does not exist.
const NoPageID PageID = 0

// RedirectInfo records a redirect the server already followed while fetching.
type RedirectInfo struct {
	From Title `json:"from"`
	To   Title `json:"to"`
}

// Article is one fetched page.
type Article struct {
	Title      Title         `json:"title"`
	Text       string        `json:"text"`
	HTML       string        `json:"html,omitempty"`
	PageID     PageID        `json:"pageid"`
	RevisionID int64         `json:"revid,omitempty"`
	Redirect   *RedirectInfo `json:"redirect,omitempty"`
}

// IsServerRedirect reports whether the fetch metadata marks the article as a
// redirect that was resolved by the server.
func (a Article) IsServerRedirect() bool {
	return a.Redirect != nil && a.Redirect.From != "" && a.Redirect.From != a.Redirect.To
}

// RequestedTitle returns the title the article was fetched under.
func (a Article) RequestedTitle() Title {
	if a.IsServerRedirect() {
		return a.Redirect.From
	}
	return a.Title
}

// TransclusionMerge selects where titles transcluded by a fetched article are
// admitted.
type TransclusionMerge string

// Supported transclusion merge strategies.
const (
	// MergeAggressive admits transcluded titles into the current level.
	MergeAggressive TransclusionMerge = "aggressive"
	// MergeConservative defers transcluded titles to the next level.
	MergeConservative TransclusionMerge = "conservative"
)

// Valid reports whether m is a known strategy.
func (m TransclusionMerge) Valid() bool {
	return m == MergeAggressive || m == MergeConservative
}

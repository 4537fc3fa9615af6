package frontier

import "github.com/JakeFAU/wikiharvest/internal/crawler"

// Snapshot is the persisted form of the frontier.
type Snapshot struct {
	Crawled     map[crawler.Title]crawler.PageID
	Pending     crawler.TitleSet
	NextPending crawler.TitleSet
	Discarded   crawler.TitleSet
	Redirected  crawler.TitleSet
	PageIDs     []crawler.PageID
	Level       int
}

// NewSnapshot returns an empty snapshot with every set allocated.
func NewSnapshot() Snapshot {
	return Snapshot{
		Crawled:     make(map[crawler.Title]crawler.PageID),
		Pending:     crawler.NewTitleSet(),
		NextPending: crawler.NewTitleSet(),
		Discarded:   crawler.NewTitleSet(),
		Redirected:  crawler.NewTitleSet(),
	}
}

// CapacityFor returns the run capacity: every title crawled so far plus the
// pages this run may fetch.
func CapacityFor(snap Snapshot, maxPages int) int {
	return len(snap.Crawled) + maxPages
}

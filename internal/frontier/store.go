// Package frontier owns the title lifecycle of a crawl: which titles are
// crawled, pending for the current level, deferred to the next one, discarded
// or known to redirect, and when the crawl moves to the next level or stops.
//
// A Store is loaded once per run, mutated only between batches and saved once
// at exit. It holds no locks.
package frontier

import (
	"fmt"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// Options configures a Store.
type Options struct {
	// Capacity bounds |Crawled| + |Pending|.
	Capacity int
	// MaxLevels is the deepest level a leveled run may reach.
	MaxLevels int
	Mode      Mode
}

// Store is the frontier state machine.
type Store struct {
	opts Options

	crawled     map[crawler.Title]crawler.PageID
	pending     crawler.TitleSet
	nextPending crawler.TitleSet
	discarded   crawler.TitleSet
	redirected  crawler.TitleSet
	held        crawler.TitleSet
	pageIDs     map[crawler.PageID]struct{}

	state State
}

// New returns an empty Store.
func New(opts Options) *Store {
	s := &Store{opts: opts}
	s.Load(NewSnapshot())
	return s
}

// Load replaces the state with snap. Pending and NextPending are pruned of
// titles that are already crawled, discarded or redirected.
func (s *Store) Load(snap Snapshot) {
	s.crawled = make(map[crawler.Title]crawler.PageID, len(snap.Crawled))
	for t, id := range snap.Crawled {
		s.crawled[t] = id
	}
	s.discarded = cloneSet(snap.Discarded)
	s.redirected = cloneSet(snap.Redirected)
	s.pending = crawler.NewTitleSet()
	s.nextPending = crawler.NewTitleSet()
	s.held = crawler.NewTitleSet()
	s.pageIDs = make(map[crawler.PageID]struct{}, len(snap.PageIDs)+len(snap.Crawled))
	for _, id := range snap.PageIDs {
		if id != crawler.NoPageID {
			s.pageIDs[id] = struct{}{}
		}
	}
	for _, id := range s.crawled {
		if id != crawler.NoPageID {
			s.pageIDs[id] = struct{}{}
		}
	}
	for t := range snap.Pending {
		if !s.settled(t) {
			s.pending.Add(t)
		}
	}
	for t := range snap.NextPending {
		if !s.settled(t) && !s.pending.Has(t) {
			s.nextPending.Add(t)
		}
	}

	level := snap.Level
	if s.opts.Mode == ModeSeeding {
		s.state = State{Phase: PhaseSeeding, Level: level}
		return
	}
	if level < 1 {
		level = 1
	}
	s.state = State{Phase: PhaseLeveled, Level: level}
}

// Snapshot returns the persistable state. Held titles are written back into
// Pending so a later run retries them.
func (s *Store) Snapshot() Snapshot {
	snap := NewSnapshot()
	for t, id := range s.crawled {
		snap.Crawled[t] = id
	}
	snap.Pending.Union(s.pending).Union(s.held)
	snap.NextPending.Union(s.nextPending)
	snap.Discarded.Union(s.discarded)
	snap.Redirected.Union(s.redirected)
	snap.PageIDs = make([]crawler.PageID, 0, len(s.pageIDs))
	for id := range s.pageIDs {
		snap.PageIDs = append(snap.PageIDs, id)
	}
	snap.Level = s.state.Level
	return snap
}

// settled reports whether t has a final or forwarding classification.
func (s *Store) settled(t crawler.Title) bool {
	_, crawled := s.crawled[t]
	return crawled || s.discarded.Has(t) || s.redirected.Has(t)
}

// Known reports whether t is in any frontier set.
func (s *Store) Known(t crawler.Title) bool {
	return s.settled(t) || s.pending.Has(t) || s.nextPending.Has(t) || s.held.Has(t)
}

// Unknown returns the members of titles that are in no frontier set.
func (s *Store) Unknown(titles crawler.TitleSet) crawler.TitleSet {
	out := crawler.NewTitleSet()
	for t := range titles {
		if !s.Known(t) {
			out.Add(t)
		}
	}
	return out
}

// room is the number of titles Pending can still take.
func (s *Store) room() int {
	return max(0, s.opts.Capacity-len(s.crawled)-len(s.pending))
}

// fresh returns the unknown, distinct candidates in lexicographic order.
func (s *Store) fresh(candidates []crawler.Title) []crawler.Title {
	set := crawler.NewTitleSet()
	for _, t := range candidates {
		if !s.Known(t) {
			set.Add(t)
		}
	}
	return set.Sorted()
}

// Admit adds unknown candidates to Pending in lexicographic order until the
// capacity is reached. The remainder is returned as overflow and not stored.
func (s *Store) Admit(candidates []crawler.Title) (admitted, overflow []crawler.Title) {
	titles := s.fresh(candidates)
	n := min(s.room(), len(titles))
	admitted, overflow = titles[:n], titles[n:]
	s.pending.Add(admitted...)
	return admitted, overflow
}

// Defer adds unknown candidates to NextPending and returns the ones added.
// NextPending is not bounded by the capacity.
func (s *Store) Defer(candidates []crawler.Title) []crawler.Title {
	titles := s.fresh(candidates)
	s.nextPending.Add(titles...)
	return titles
}

// AdvanceLevel moves to the next level once Pending is drained: NextPending is
// admitted into Pending and whatever does not fit stays in NextPending. When
// there is nothing left, the level limit is reached or the capacity is used
// up, the store becomes terminal instead.
func (s *Store) AdvanceLevel() error {
	switch s.state.Phase {
	case PhaseTerminal:
		return nil
	case PhaseSeeding:
		return fmt.Errorf("advance level: seeding runs finish after one batch")
	}
	if len(s.pending) > 0 {
		return crawler.ErrPendingNotEmpty
	}
	switch {
	case len(s.nextPending) == 0:
		s.terminate(ReasonExhausted)
		return nil
	case s.state.Level >= s.opts.MaxLevels:
		s.terminate(ReasonMaxLevels)
		return nil
	case len(s.crawled) >= s.opts.Capacity:
		s.terminate(ReasonCapacity)
		return nil
	}

	next := s.nextPending.Sorted()
	s.nextPending = crawler.NewTitleSet()
	_, overflow := s.Admit(next)
	s.nextPending.Add(overflow...)
	s.state.Level++
	return nil
}

// FinishSeeding ends a seeding run. Discoveries stay in Pending for the next
// leveled run, which starts at level 1.
func (s *Store) FinishSeeding() {
	s.state.Level = 1
	s.terminate(ReasonSeeded)
}

// CheckCapacity makes the store terminal when the crawled set fills the
// capacity. It reports whether that happened.
func (s *Store) CheckCapacity() bool {
	if s.state.Phase == PhaseLeveled && len(s.crawled) >= s.opts.Capacity {
		s.terminate(ReasonCapacity)
		return true
	}
	return false
}

func (s *Store) terminate(reason Reason) {
	s.state.Phase = PhaseTerminal
	s.state.Reason = reason
}

// Rebalance moves the lexicographically last Pending titles that exceed the
// capacity into the held set and returns them.
func (s *Store) Rebalance() []crawler.Title {
	excess := len(s.crawled) + len(s.pending) - s.opts.Capacity
	if excess <= 0 {
		return nil
	}
	titles := s.pending.Sorted()
	overflow := titles[len(titles)-excess:]
	s.Hold(overflow...)
	return overflow
}

// RegisterIfNewPageID records id and reports whether it was unseen. Missing
// pages (NoPageID) are never registered.
func (s *Store) RegisterIfNewPageID(id crawler.PageID) bool {
	if id == crawler.NoPageID {
		return false
	}
	if _, ok := s.pageIDs[id]; ok {
		return false
	}
	s.pageIDs[id] = struct{}{}
	return true
}

// MarkCrawled records t as fetched with the given page id. Discarded titles
// stay discarded.
func (s *Store) MarkCrawled(t crawler.Title, id crawler.PageID) {
	if t == "" || s.discarded.Has(t) {
		return
	}
	s.crawled[t] = id
	s.unqueue(t)
}

// MarkRedirected records titles that forward to another page.
func (s *Store) MarkRedirected(titles ...crawler.Title) {
	for _, t := range titles {
		if t == "" {
			continue
		}
		s.redirected.Add(t)
		s.unqueue(t)
	}
}

// Discard excludes titles for good. Crawled titles are left alone.
func (s *Store) Discard(titles ...crawler.Title) {
	for _, t := range titles {
		if _, crawled := s.crawled[t]; crawled || t == "" {
			continue
		}
		s.discarded.Add(t)
		s.unqueue(t)
	}
}

// Hold takes pending titles out of this run without forgetting them.
func (s *Store) Hold(titles ...crawler.Title) {
	for _, t := range titles {
		if s.settled(t) || t == "" {
			continue
		}
		s.pending.Remove(t)
		s.nextPending.Remove(t)
		s.held.Add(t)
	}
}

func (s *Store) unqueue(t crawler.Title) {
	s.pending.Remove(t)
	s.nextPending.Remove(t)
	s.held.Remove(t)
}

// State returns the current state.
func (s *Store) State() State {
	return s.state
}

// Level returns the current level.
func (s *Store) Level() int {
	return s.state.Level
}

// Capacity returns the configured capacity.
func (s *Store) Capacity() int {
	return s.opts.Capacity
}

// Pending returns the current level's titles in lexicographic order.
func (s *Store) Pending() []crawler.Title {
	return s.pending.Sorted()
}

// NextPending returns the deferred titles in lexicographic order.
func (s *Store) NextPending() []crawler.Title {
	return s.nextPending.Sorted()
}

// Held returns the titles held back from this run.
func (s *Store) Held() []crawler.Title {
	return s.held.Sorted()
}

// Counts returns the set sizes.
func (s *Store) Counts() Counts {
	return Counts{
		Crawled:     len(s.crawled),
		Pending:     len(s.pending),
		NextPending: len(s.nextPending),
		Discarded:   len(s.discarded),
		Redirected:  len(s.redirected),
		Held:        len(s.held),
		PageIDs:     len(s.pageIDs),
	}
}

// CheckInvariants returns an error describing the first violated invariant.
func (s *Store) CheckInvariants() error {
	for t := range s.pending {
		if _, ok := s.crawled[t]; ok {
			return fmt.Errorf("title %q is both crawled and pending", t)
		}
		if s.discarded.Has(t) {
			return fmt.Errorf("title %q is both discarded and pending", t)
		}
	}
	for t := range s.nextPending {
		if s.discarded.Has(t) {
			return fmt.Errorf("title %q is both discarded and next pending", t)
		}
	}
	for t := range s.discarded {
		if _, ok := s.crawled[t]; ok {
			return fmt.Errorf("title %q is both crawled and discarded", t)
		}
	}
	if n := len(s.crawled) + len(s.pending); n > s.opts.Capacity {
		return fmt.Errorf("crawled+pending %d exceeds capacity %d", n, s.opts.Capacity)
	}
	return nil
}

func cloneSet(s crawler.TitleSet) crawler.TitleSet {
	if s == nil {
		return crawler.NewTitleSet()
	}
	return s.Clone()
}

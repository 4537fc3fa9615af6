package crawler

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Title is a normalized article identifier.
type Title string

// String implements fmt.Stringer.
func (t Title) String() string {
	return string(t)
}

// NormalizeTitle converts a raw link target into the canonical title form used
// by the encyclopedia's URLs: surrounding whitespace trimmed, underscores and
// whitespace runs collapsed into single spaces, and the first rune upper-cased
// (eBay -> EBay, iPhone -> IPhone).
func NormalizeTitle(raw string) Title {
	raw = strings.ReplaceAll(raw, "_", " ")
	raw = strings.Join(strings.Fields(raw), " ")
	if raw == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(raw)
	if r == utf8.RuneError {
		return Title(raw)
	}
	return Title(string(unicode.ToUpper(r)) + raw[size:])
}

// TitleSet is an unordered set of titles. The zero value is not usable; build
// one with NewTitleSet.
type TitleSet map[Title]struct{}

// NewTitleSet returns a set holding the given titles.
func NewTitleSet(titles ...Title) TitleSet {
	s := make(TitleSet, len(titles))
	for _, t := range titles {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts titles into the set. Empty titles are ignored.
func (s TitleSet) Add(titles ...Title) {
	for _, t := range titles {
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
}

// Has reports whether t is in the set.
func (s TitleSet) Has(t Title) bool {
	_, ok := s[t]
	return ok
}

// Remove deletes titles from the set.
func (s TitleSet) Remove(titles ...Title) {
	for _, t := range titles {
		delete(s, t)
	}
}

// Len returns the number of titles in the set.
func (s TitleSet) Len() int {
	return len(s)
}

// Union adds every member of other to s and returns s.
func (s TitleSet) Union(other TitleSet) TitleSet {
	for t := range other {
		s[t] = struct{}{}
	}
	return s
}

// Minus returns a new set with the members of s that are not in any of others.
func (s TitleSet) Minus(others ...TitleSet) TitleSet {
	out := make(TitleSet, len(s))
	for t := range s {
		excluded := false
		for _, o := range others {
			if o.Has(t) {
				excluded = true
				break
			}
		}
		if !excluded {
			out[t] = struct{}{}
		}
	}
	return out
}

// Clone returns a copy of the set.
func (s TitleSet) Clone() TitleSet {
	out := make(TitleSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the members in ascending lexicographic order. This is the
// order used wherever the crawl must be reproducible.
func (s TitleSet) Sorted() []Title {
	out := make([]Title, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	SortTitles(out)
	return out
}

// SortTitles sorts titles in place in ascending lexicographic order.
func SortTitles(titles []Title) {
	sort.Slice(titles, func(i, j int) bool { return titles[i] < titles[j] })
}

// Package filter decides whether a newly discovered title is worth keeping.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// TitleFilter is the admissibility predicate applied to discovered titles.
type TitleFilter interface {
	IsAdmissible(title crawler.Title) bool
	FilterMany(titles []crawler.Title) (admitted, rejected []crawler.Title)
}

// DefaultExcludedNamespaces lists namespaces that never hold article content.
var DefaultExcludedNamespaces = []string{
	"File", "Image", "Media", "Special", "Talk", "User", "User talk", "Help", "Help talk",
	"Wikipedia", "Wikipedia talk", "Project", "Draft", "Draft talk", "Portal", "Portal talk",
	"Module", "Module talk", "MediaWiki", "MediaWiki talk", "File talk", "Category talk",
	"Template talk", "TimedText", "Book",
}

// Config configures the default filter.
type Config struct {
	// IncludeNamespaces are always admitted, even when also excluded.
	IncludeNamespaces []string `mapstructure:"include_namespaces"`
	// ExcludeNamespaces replaces DefaultExcludedNamespaces when set.
	ExcludeNamespaces []string `mapstructure:"exclude_namespaces"`
	// DenyPatterns are regular expressions matched against the whole title.
	DenyPatterns []string `mapstructure:"deny_patterns"`
	// SkipLists rejects "List of ..." and "Index of ..." pages.
	SkipLists bool `mapstructure:"skip_lists"`
}

// Namespace filter with deny patterns.
type Namespace struct {
	include  map[string]struct{}
	exclude  map[string]struct{}
	patterns []*regexp.Regexp
	lists    bool
}

// New compiles cfg into a filter.
func New(cfg Config) (*Namespace, error) {
	f := &Namespace{
		include: namespaceSet(cfg.IncludeNamespaces),
		lists:   cfg.SkipLists,
	}
	exclude := cfg.ExcludeNamespaces
	if len(exclude) == 0 {
		exclude = DefaultExcludedNamespaces
	}
	f.exclude = namespaceSet(exclude)
	for _, raw := range cfg.DenyPatterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile deny pattern %q: %w", raw, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

func namespaceSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// namespaceOf returns the lower-cased prefix before the first colon.
func namespaceOf(t crawler.Title) (string, bool) {
	ns, _, ok := strings.Cut(string(t), ":")
	if !ok {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(ns)), true
}

// IsAdmissible implements TitleFilter.
func (f *Namespace) IsAdmissible(t crawler.Title) bool {
	if strings.TrimSpace(string(t)) == "" {
		return false
	}
	if ns, ok := namespaceOf(t); ok {
		if _, included := f.include[ns]; included {
			return !f.denied(t)
		}
		if _, excluded := f.exclude[ns]; excluded {
			return false
		}
	}
	if f.lists && (strings.HasPrefix(string(t), "List of ") || strings.HasPrefix(string(t), "Index of ")) {
		return false
	}
	return !f.denied(t)
}

func (f *Namespace) denied(t crawler.Title) bool {
	for _, re := range f.patterns {
		if re.MatchString(string(t)) {
			return true
		}
	}
	return false
}

// FilterMany implements TitleFilter.
func (f *Namespace) FilterMany(titles []crawler.Title) (admitted, rejected []crawler.Title) {
	return partition(f.IsAdmissible, titles)
}

// Func adapts a predicate to TitleFilter.
type Func func(crawler.Title) bool

// IsAdmissible implements TitleFilter.
func (fn Func) IsAdmissible(t crawler.Title) bool {
	return fn(t)
}

// FilterMany implements TitleFilter.
func (fn Func) FilterMany(titles []crawler.Title) (admitted, rejected []crawler.Title) {
	return partition(fn, titles)
}

// AdmitAll admits every title.
var AdmitAll = Func(func(crawler.Title) bool { return true })

func partition(pred func(crawler.Title) bool, titles []crawler.Title) (admitted, rejected []crawler.Title) {
	for _, t := range titles {
		if pred(t) {
			admitted = append(admitted, t)
		} else {
			rejected = append(rejected, t)
		}
	}
	return admitted, rejected
}

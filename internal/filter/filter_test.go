package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func TestNamespaceFilter(t *testing.T) {
	f, err := New(Config{
		IncludeNamespaces: []string{"Category", "Template"},
		DenyPatterns:      []string{`\(disambiguation\)$`},
		SkipLists:         true,
	})
	require.NoError(t, err)

	cases := []struct {
		title crawler.Title
		want  bool
	}{
		{"Computer science", true},
		{"Category:Computing", true},
		{"Template:Computer science", true},
		{"File:Logo.svg", false},
		{"Talk:Computer science", false},
		{"User talk:Someone", false},
		{"wikipedia:About", false},
		{"Mercury (disambiguation)", false},
		{"List of programming languages", false},
		{"Star Wars: Episode IV", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := f.IsAdmissible(tc.title); got != tc.want {
			t.Fatalf("IsAdmissible(%q)=%v, want %v", tc.title, got, tc.want)
		}
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(Config{DenyPatterns: []string{"("}})
	assert.Error(t, err)
}

func TestFilterManyPreservesOrder(t *testing.T) {
	f := Func(func(t crawler.Title) bool { return t != "b" && t != "d" })
	admitted, rejected := f.FilterMany([]crawler.Title{"c", "b", "a", "d"})
	assert.Equal(t, []crawler.Title{"c", "a"}, admitted)
	assert.Equal(t, []crawler.Title{"b", "d"}, rejected)
}

func TestAdmitAll(t *testing.T) {
	admitted, rejected := AdmitAll.FilterMany([]crawler.Title{"x"})
	assert.Equal(t, []crawler.Title{"x"}, admitted)
	assert.Empty(t, rejected)
}

package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func TestResolveTextualRedirect(t *testing.T) {
	t.Parallel()

	res := Resolve([]crawler.Article{
		{Title: "Old Name", Text: "#REDIRECT [[Target Page]]", PageID: 7},
		{Title: "Cat", Text: "The cat is a [[Mammal]].", PageID: 8},
	})

	require.Len(t, res.Kept, 1)
	assert.Equal(t, crawler.Title("Cat"), res.Kept[0].Title)
	assert.Equal(t, []crawler.Title{"Old Name"}, res.Sources.Sorted())
	assert.Equal(t, []crawler.Title{"Target Page"}, res.Destinations.Sorted())
}

func TestResolveServerRedirect(t *testing.T) {
	t.Parallel()

	res := Resolve([]crawler.Article{{
		Title:    "Machine learning",
		Text:     "Machine learning is ...",
		PageID:   233488,
		Redirect: &crawler.RedirectInfo{From: "ML", To: "Machine learning"},
	}})

	require.Len(t, res.Kept, 1)
	assert.Equal(t, crawler.Title("Machine learning"), res.Kept[0].Title)
	assert.Equal(t, []crawler.Title{"ML"}, res.Sources.Sorted())
	assert.Zero(t, res.Destinations.Len())
}

func TestResolveSelfRedirectAddsNoDestination(t *testing.T) {
	t.Parallel()

	res := Resolve([]crawler.Article{{Title: "Loop", Text: "#redirect [[loop]]"}})
	assert.Empty(t, res.Kept)
	assert.True(t, res.Sources.Has("Loop"))
	assert.Zero(t, res.Destinations.Len())
}

func TestResolvePartitionsInput(t *testing.T) {
	t.Parallel()

	in := []crawler.Article{
		{Title: "A", Text: "#REDIRECT [[B]]"},
		{Title: "B", Text: "plain"},
		{Title: "C", Text: "  #Redirect[[D#Section|label]]"},
		{Title: "E", Text: "mentions #REDIRECT [[F]] later"},
	}
	res := Resolve(in)

	kept := crawler.NewTitleSet()
	for _, a := range res.Kept {
		kept.Add(a.Title)
	}
	for _, a := range in {
		inKept, inSources := kept.Has(a.Title), res.Sources.Has(a.Title)
		assert.True(t, inKept != inSources, "%s must land in exactly one bucket", a.Title)
	}
	assert.Equal(t, []crawler.Title{"B", "D"}, res.Destinations.Sorted())
	assert.Equal(t, []crawler.Title{"B", "E"}, kept.Sorted())
}

func TestTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want crawler.Title
		ok   bool
	}{
		{"#REDIRECT [[foo_bar]]", "Foo bar", true},
		{"#REDIRECT[[Foo|Bar]]", "Foo", true},
		{"No redirect here", "", false},
		{"#REDIRECT [[ ]]", "", false},
	}
	for _, tt := range tests {
		got, ok := Target(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

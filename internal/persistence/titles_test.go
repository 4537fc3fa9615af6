// Package persistence_test tests the frontier files and content blobs.
package persistence_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/persistence"
)

func TestReadTitlesSkipsBlankLines(t *testing.T) {
	t.Parallel()

	set, err := persistence.ReadTitles(strings.NewReader("  Cat \n\n\ndog_house\n   \nCat\n"))
	require.NoError(t, err)
	assert.Equal(t, []crawler.Title{"Cat", "Dog house"}, set.Sorted())
}

func TestTitlesRoundTripIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a, err := persistence.ReadTitles(strings.NewReader("Zebra\nApple\nMachine learning\n"))
	require.NoError(t, err)
	b, err := persistence.ReadTitles(strings.NewReader("Machine learning\nZebra\nApple"))
	require.NoError(t, err)

	var bufA, bufB bytes.Buffer
	require.NoError(t, persistence.WriteTitles(&bufA, a))
	require.NoError(t, persistence.WriteTitles(&bufB, b))
	assert.Equal(t, bufA.String(), bufB.String())
	assert.Equal(t, "Apple\nMachine learning\nZebra\n", bufA.String())

	again, err := persistence.ReadTitles(&bufA)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestTitlesKeepUnicode(t *testing.T) {
	t.Parallel()

	set := crawler.NewTitleSet("Äpfel", "東京", "Zürich")
	var buf bytes.Buffer
	require.NoError(t, persistence.WriteTitles(&buf, set))
	got, err := persistence.ReadTitles(&buf)
	require.NoError(t, err)
	assert.Equal(t, set, got)
}

func TestCrawledCodec(t *testing.T) {
	t.Parallel()

	crawled := map[crawler.Title]crawler.PageID{"Cat": 6678, "Missing page": crawler.NoPageID}
	var buf bytes.Buffer
	require.NoError(t, persistence.WriteCrawled(&buf, crawled))
	assert.Equal(t, "Cat\t6678\nMissing page\t0\n", buf.String())

	got, err := persistence.ReadCrawled(&buf)
	require.NoError(t, err)
	assert.Equal(t, crawled, got)
}

func TestReadCrawledPlainTitles(t *testing.T) {
	t.Parallel()

	got, err := persistence.ReadCrawled(strings.NewReader("Cat\nDog\t12\n"))
	require.NoError(t, err)
	assert.Equal(t, map[crawler.Title]crawler.PageID{"Cat": crawler.NoPageID, "Dog": 12}, got)

	_, err = persistence.ReadCrawled(strings.NewReader("Cat\tnot-a-number\n"))
	assert.Error(t, err)
}

func TestPageIDsCodec(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, persistence.WritePageIDs(&buf, []crawler.PageID{30, 4, 100}))
	assert.Equal(t, "4\n30\n100\n", buf.String())

	got, err := persistence.ReadPageIDs(&buf)
	require.NoError(t, err)
	assert.Equal(t, []crawler.PageID{4, 30, 100}, got)
}

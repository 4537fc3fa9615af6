package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
	"github.com/JakeFAU/wikiharvest/internal/extract"
)

const navboxHTML = `<div class="mw-parser-output">
<p>Body <a href="/wiki/Body_link">body</a></p>
<div class="navbox" role="navigation">
  <a href="/wiki/Software_engineering">SE</a>
  <a href="/wiki/C%2B%2B#History">C++</a>
  <a href="/w/index.php?title=Red_link&amp;action=edit&amp;redlink=1">red</a>
  <a href="//en.wikipedia.org/wiki/External">ext</a>
  <a class="mw-selflink selflink">self</a>
</div>
<table class="vertical-navbox"><tr><td><a href="/wiki/Outline_of_computing">Outline</a></td></tr></table>
<div class="navbox authority-control"><a href="/wiki/Library_of_Congress">LCCN</a></div>
</div>`

func TestHTMLTransclusions(t *testing.T) {
	t.Parallel()

	p := extract.NewHTMLParser(zap.NewNop())
	got := p.Transclusions(navboxHTML)
	assert.Equal(t, []crawler.Title{"C++", "Outline of computing", "Software engineering"}, got.Sorted())
}

func TestHTMLTransclusionsEmpty(t *testing.T) {
	t.Parallel()

	p := extract.NewHTMLParser(nil)
	assert.Empty(t, p.Transclusions(""))
	assert.Empty(t, p.Transclusions("<p>no boxes</p>"))
}

func TestHTMLLinksUnsupported(t *testing.T) {
	t.Parallel()

	p := extract.NewHTMLParser(zap.NewNop())
	assert.Empty(t, p.Links("Cat", navboxHTML))
}

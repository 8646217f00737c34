package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\t b\n\nc  "))
	assert.Equal(t, "", CollapseWhitespace(" \t\n "))
}

func TestStripPhrasesCaseAndSpacing(t *testing.T) {
	n := NewNormalizer([]string{"Authorized licensed use limited to:", "Restrictions apply."})

	in := "AUTHORIZED  licensed\tuse LIMITED to: Acme Corp\nvalve body text\nrestrictions apply."
	out := n.StripPhrases(in)

	assert.NotContains(t, CollapseWhitespace(out), "licensed use")
	assert.NotContains(t, CollapseWhitespace(out), "Restrictions")
	assert.Contains(t, out, "Acme Corp")
	assert.Contains(t, out, "valve body text")
}

func TestStripPhrasesKeepsLineStructure(t *testing.T) {
	n := NewNormalizer([]string{"Downloaded on"})

	out := n.StripPhrases("first line\nDownloaded on May 5\nthird line")
	assert.Contains(t, out, "first line\n")
	assert.Contains(t, out, "\nthird line")
}

func TestCleanEmptyAfterStripping(t *testing.T) {
	n := NewNormalizer([]string{"Downloaded on"})
	assert.Equal(t, "", n.Clean("  Downloaded on  "))
	assert.Equal(t, "pump housing", n.Clean("  pump   housing "))
}

func TestFilterStruck(t *testing.T) {
	glyphs := []Glyph{
		{S: "k", FontSize: 10, Rect: NewRect(10, 100, 16, 110)},
		{S: "e", FontSize: 10, Rect: NewRect(16, 100, 22, 110)},
		{S: "x", FontSize: 10, Rect: NewRect(200, 100, 206, 110)},
	}
	struck := []Rect{NewRect(9, 99, 23, 111)}

	kept := FilterStruck(glyphs, struck)
	if assert.Len(t, kept, 1) {
		assert.Equal(t, "x", kept[0].S)
	}

	assert.Equal(t, glyphs, FilterStruck(glyphs, nil))
}

func TestFilterStruckPadding(t *testing.T) {
	// Annotation box ends at x=20; the glyph starting at 21 only grazes it
	// but falls inside the padded region the reader produces.
	glyphs := []Glyph{{S: "a", FontSize: 10, Rect: NewRect(21, 100, 27, 110)}}
	struck := []Rect{NewRect(10, 100, 20, 110).Pad(strikeoutPad)}

	assert.Empty(t, FilterStruck(glyphs, struck))
}

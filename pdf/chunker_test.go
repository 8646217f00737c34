package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkerClampsParams(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkMaxChars, c.MaxChars)
	assert.Equal(t, 0, c.Overlap)

	c = NewChunker(100, 500)
	assert.Equal(t, 25, c.Overlap)
}

func TestBuildChunksSingleParagraph(t *testing.T) {
	c := NewChunker(1800, 200)
	chunks, err := c.BuildChunks([]PageText{
		{Number: 1, Lines: []string{"The relief valve opens", "at 8 bar and reseats at 7."}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "The relief valve opens at 8 bar and reseats at 7.", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 1, chunks[0].PageEnd)
	assert.False(t, chunks[0].Table)
}

func TestBuildChunksOverlapSeedsNextChunk(t *testing.T) {
	c := NewChunker(1800, 200)
	text := strings.Repeat("abcdefghij", 200) // 2000 chars, one paragraph

	chunks, err := c.BuildChunks([]PageText{{Number: 1, Lines: []string{text}}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Len(t, chunks[0].Content, 1800)
	tail := chunks[0].Content[len(chunks[0].Content)-200:]
	assert.True(t, strings.HasPrefix(chunks[1].Content, tail))
	assert.Len(t, chunks[1].Content, 400)
}

func TestBuildChunksEmitsTrailingSeed(t *testing.T) {
	// Text that lands exactly on the size limit still yields a second chunk
	// carrying the overlap, so the document tail is never lost.
	c := NewChunker(1800, 200)
	text := strings.Repeat("0123456789", 180) // exactly 1800 chars

	chunks, err := c.BuildChunks([]PageText{{Number: 1, Lines: []string{text}}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Len(t, chunks[0].Content, 1800)
	assert.Equal(t, chunks[0].Content[1600:], chunks[1].Content)
}

func TestBuildChunksHeadingStartsNewChunk(t *testing.T) {
	c := NewChunker(1800, 200)
	chunks, err := c.BuildChunks([]PageText{
		{Number: 1, Lines: []string{
			"OVERVIEW",
			"The unit ships fully assembled.",
			"",
			"1. Installation",
			"Mount the bracket to the rail.",
		}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "OVERVIEW\n\nThe unit ships fully assembled.", chunks[0].Content)
	assert.Equal(t, "OVERVIEW", chunks[0].Heading)
	assert.Equal(t, "OVERVIEW", chunks[0].Metadata["heading"])

	assert.Equal(t, "1. Installation\n\nMount the bracket to the rail.", chunks[1].Content)
	assert.Equal(t, "1. Installation", chunks[1].Heading)
}

func TestBuildChunksSectionTagSurvivesSplit(t *testing.T) {
	c := NewChunker(1800, 200)
	body := strings.Repeat("abcdefghij", 200) // 2000 chars under one section

	chunks, err := c.BuildChunks([]PageText{
		{Number: 1, Lines: []string{"2.1 Overview", body}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// The continuation chunk produced by the size split keeps the section
	// tag of the text it was cut from.
	for _, ch := range chunks {
		assert.Equal(t, "2.1 Overview", ch.Heading)
		assert.Equal(t, "2.1 Overview", ch.Metadata["section"])
	}
	tail := chunks[0].Content[len(chunks[0].Content)-200:]
	assert.True(t, strings.HasPrefix(chunks[1].Content, tail))
}

func TestBuildChunksSkipsPageMarkers(t *testing.T) {
	c := NewChunker(1800, 200)
	chunks, err := c.BuildChunks([]PageText{
		{Number: 1, Lines: []string{"Page 3", "Check the oil level weekly."}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "Check the oil level weekly.", chunks[0].Content)
	assert.Equal(t, "3", chunks[0].Metadata["page_label"])
	assert.Equal(t, []int{3}, chunks[0].Metadata["page_span"])
}

func TestBuildChunksPageSpan(t *testing.T) {
	c := NewChunker(1800, 200)
	chunks, err := c.BuildChunks([]PageText{
		{Number: 1, Lines: []string{"Drain the tank before", "removing the filter housing."}},
		{Number: 2, Lines: []string{"", "Refill with grade 46 oil."}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, 1, chunks[0].PageStart)
	assert.Equal(t, 2, chunks[0].PageEnd)
}

func TestBuildChunksNoText(t *testing.T) {
	c := NewChunker(1800, 200)

	_, err := c.BuildChunks(nil)
	assert.ErrorIs(t, err, ErrNoText)

	_, err = c.BuildChunks([]PageText{{Number: 1, Lines: []string{"", "   "}}})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestBuildChunksTablePass(t *testing.T) {
	c := NewChunker(1800, 200)
	chunks, err := c.BuildChunks([]PageText{
		{Number: 4, Lines: []string{
			"TABLE 2—Torque values",
			"Bolt   Torque",
			"M6   9 Nm",
			"M8   22 Nm",
		}},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	body := chunks[0]
	assert.False(t, body.Table)
	assert.Contains(t, body.Content, "Bolt Torque")

	tbl := chunks[1]
	assert.True(t, tbl.Table)
	assert.Equal(t, 1, tbl.Index)
	assert.Equal(t, "Bolt | Torque\n-------------\nM6 | 9 Nm\nM8 | 22 Nm", tbl.Content)
	assert.Equal(t, 4, tbl.PageStart)
	assert.Equal(t, 4, tbl.PageEnd)
}

func TestDetectTablesIgnoresIsolatedLines(t *testing.T) {
	tables := DetectTables([]PageText{
		{Number: 1, Lines: []string{"intro text", "name   value", "closing text"}},
	})
	assert.Empty(t, tables)
}

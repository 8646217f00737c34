package retrieval

import (
	"context"
	"testing"

	"docrag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCrossStore struct {
	figures []types.Figure
	rends   map[int64][]types.PageRendition

	gotDocIDs []int64
	gotLabels []string
	pageCalls map[int64][]int
}

func (f *fakeCrossStore) FiguresByLabels(_ context.Context, docIDs []int64, labels []string) ([]types.Figure, error) {
	f.gotDocIDs = docIDs
	f.gotLabels = labels
	return f.figures, nil
}

func (f *fakeCrossStore) PageRenditionsFor(_ context.Context, docID int64, pages []int) ([]types.PageRendition, error) {
	if f.pageCalls == nil {
		f.pageCalls = map[int64][]int{}
	}
	f.pageCalls[docID] = pages

	want := map[int]bool{}
	for _, p := range pages {
		want[p] = true
	}
	var out []types.PageRendition
	for _, r := range f.rends[docID] {
		if want[r.PageNumber] {
			out = append(out, r)
		}
	}
	return out, nil
}

func docMatch(id, docID int64, content string) types.ChunkMatch {
	return types.ChunkMatch{Chunk: types.Chunk{ID: id, DocumentID: docID, Content: content}}
}

func TestFiguresFirstAppearanceOrder(t *testing.T) {
	store := &fakeCrossStore{figures: []types.Figure{
		{ID: 51, DocumentID: 10, Label: "FIG. 3", ImageURI: "/files/fig3.pdf"},
		{ID: 52, DocumentID: 10, Label: "FIG. 7", ImageURI: "/files/fig7.pdf"},
	}}
	c := NewCrossReferencer(store)

	matches := []types.ChunkMatch{
		docMatch(1, 10, "Route the hose as shown in Figure 7, then see FIG. 3."),
		docMatch(2, 10, "Torque per FIG. 3 and Figure 9."),
	}
	figures, err := c.Figures(context.Background(), matches)
	require.NoError(t, err)

	// FIG. 7 appears first in the top-ranked chunk; FIG. 9 has no stored
	// figure and drops out.
	require.Len(t, figures, 2)
	assert.Equal(t, "FIG. 7", figures[0].Label)
	assert.Equal(t, "FIG. 3", figures[1].Label)

	assert.Equal(t, []int64{10}, store.gotDocIDs)
	assert.Equal(t, []string{"FIG. 7", "FIG. 3", "FIG. 9"}, store.gotLabels)
}

func TestFiguresStayWithinDocument(t *testing.T) {
	store := &fakeCrossStore{figures: []types.Figure{
		{ID: 51, DocumentID: 10, Label: "FIG. 3"},
	}}
	c := NewCrossReferencer(store)

	matches := []types.ChunkMatch{
		docMatch(1, 10, "see FIG. 3"),
		docMatch(2, 20, "see FIG. 3"),
	}
	figures, err := c.Figures(context.Background(), matches)
	require.NoError(t, err)

	// Document 20 has no FIG. 3 of its own; document 10's figure must not
	// stand in for it.
	require.Len(t, figures, 1)
	assert.Equal(t, int64(10), figures[0].DocumentID)
}

func TestFiguresNoReferences(t *testing.T) {
	store := &fakeCrossStore{}
	c := NewCrossReferencer(store)

	figures, err := c.Figures(context.Background(), []types.ChunkMatch{
		docMatch(1, 10, "no references in this text"),
	})
	require.NoError(t, err)
	assert.Empty(t, figures)
	assert.Nil(t, store.gotLabels, "no store call without references")
}

func intp(v int) *int { return &v }

func spanMatch(id, docID int64, start, end int) types.ChunkMatch {
	m := docMatch(id, docID, "")
	m.PageStart = intp(start)
	m.PageEnd = intp(end)
	return m
}

func TestPagesRankAndCoverage(t *testing.T) {
	store := &fakeCrossStore{rends: map[int64][]types.PageRendition{
		10: {
			{ID: 1, DocumentID: 10, PageNumber: 2, ImageURI: "/files/p2.pdf"},
			{ID: 2, DocumentID: 10, PageNumber: 3, ImageURI: "/files/p3.pdf"},
			{ID: 3, DocumentID: 10, PageNumber: 8, ImageURI: "/files/p8.pdf"},
		},
	}}
	c := NewCrossReferencer(store)

	matches := []types.ChunkMatch{
		spanMatch(101, 10, 2, 3), // rank 0 covers pages 2 and 3
		spanMatch(102, 10, 3, 3), // rank 1 also touches page 3
		spanMatch(103, 10, 8, 8), // rank 2
	}
	pages, err := c.Pages(context.Background(), matches)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, 2, pages[0].PageNumber)
	assert.Equal(t, []int64{101}, pages[0].ChunkIDs)

	assert.Equal(t, 3, pages[1].PageNumber)
	assert.Equal(t, []int64{101, 102}, pages[1].ChunkIDs)

	assert.Equal(t, 8, pages[2].PageNumber)
	assert.Equal(t, []int64{103}, pages[2].ChunkIDs)
}

func TestPagesOrderAcrossDocuments(t *testing.T) {
	store := &fakeCrossStore{rends: map[int64][]types.PageRendition{
		10: {{ID: 1, DocumentID: 10, PageNumber: 5}},
		20: {{ID: 2, DocumentID: 20, PageNumber: 1}},
	}}
	c := NewCrossReferencer(store)

	matches := []types.ChunkMatch{
		spanMatch(201, 20, 1, 1), // rank 0
		spanMatch(101, 10, 5, 5), // rank 1
	}
	pages, err := c.Pages(context.Background(), matches)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	// Best-ranked chunk wins regardless of document or page number.
	assert.Equal(t, int64(20), pages[0].DocumentID)
	assert.Equal(t, int64(10), pages[1].DocumentID)
}

func TestPagesSkipsUnknownSpans(t *testing.T) {
	store := &fakeCrossStore{rends: map[int64][]types.PageRendition{
		10: {{ID: 1, DocumentID: 10, PageNumber: 4}},
	}}
	c := NewCrossReferencer(store)

	unknown := docMatch(1, 10, "")
	partial := docMatch(2, 10, "")
	partial.PageStart = intp(4) // end unknown, treated as a single page

	pages, err := c.Pages(context.Background(), []types.ChunkMatch{unknown, partial})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 4, pages[0].PageNumber)
	assert.Equal(t, []int64{2}, pages[0].ChunkIDs)
	assert.Equal(t, []int{4}, store.pageCalls[10])
}

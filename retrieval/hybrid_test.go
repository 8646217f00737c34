package retrieval

import (
	"context"
	"errors"
	"testing"

	"docrag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func match(id int64, content string) types.ChunkMatch {
	return types.ChunkMatch{Chunk: types.Chunk{ID: id, DocumentID: 1, Content: content}}
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dim)
	vec[0] = 1
	return vec, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type fakeSearcher struct {
	vec    []types.ChunkMatch
	lex    []types.ChunkMatch
	vecErr error
	lexErr error

	gotVectorK  int
	gotLexicalK int
}

func (f *fakeSearcher) VectorSearch(_ context.Context, _ []float32, limit int) ([]types.ChunkMatch, error) {
	f.gotVectorK = limit
	return f.vec, f.vecErr
}

func (f *fakeSearcher) LexicalSearch(_ context.Context, _ string, limit int) ([]types.ChunkMatch, error) {
	f.gotLexicalK = limit
	return f.lex, f.lexErr
}

func TestHybridSearchMergesByChunkID(t *testing.T) {
	a := match(1, "vector only")
	a.VectorScore = fp(0.9)
	b := match(2, "both arms")
	b.VectorScore = fp(0.8)
	bLex := match(2, "both arms")
	bLex.LexicalScore = fp(0.5)
	c := match(3, "lexical only")
	c.LexicalScore = fp(0.3)

	searcher := &fakeSearcher{vec: []types.ChunkMatch{a, b}, lex: []types.ChunkMatch{bLex, c}}
	r := NewHybridRetriever(searcher, &fakeEmbedder{dim: 8})

	out, err := r.Search(context.Background(), "how to adjust the governor", 20, 15)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, 20, searcher.gotVectorK)
	assert.Equal(t, 15, searcher.gotLexicalK)

	assert.Equal(t, int64(1), out[0].ID)
	require.NotNil(t, out[0].VectorScore)
	assert.Equal(t, 0.9, *out[0].VectorScore)
	assert.Nil(t, out[0].LexicalScore, "vector-only match keeps a nil lexical score")

	assert.Equal(t, int64(2), out[1].ID)
	require.NotNil(t, out[1].VectorScore)
	require.NotNil(t, out[1].LexicalScore)
	assert.Equal(t, 0.8, *out[1].VectorScore)
	assert.Equal(t, 0.5, *out[1].LexicalScore)

	assert.Equal(t, int64(3), out[2].ID)
	assert.Nil(t, out[2].VectorScore, "lexical-only match keeps a nil vector score")
	require.NotNil(t, out[2].LexicalScore)
	assert.Equal(t, 0.3, *out[2].LexicalScore)
}

func TestHybridSearchErrors(t *testing.T) {
	searcher := &fakeSearcher{lexErr: errors.New("tsquery syntax")}
	r := NewHybridRetriever(searcher, &fakeEmbedder{dim: 8})
	_, err := r.Search(context.Background(), "q", 5, 5)
	assert.ErrorContains(t, err, "lexical search")

	searcher = &fakeSearcher{}
	r = NewHybridRetriever(searcher, &fakeEmbedder{dim: 8, err: errors.New("endpoint down")})
	_, err = r.Search(context.Background(), "q", 5, 5)
	assert.ErrorContains(t, err, "embed question")
}

func TestHybridSearchEmptyResults(t *testing.T) {
	r := NewHybridRetriever(&fakeSearcher{}, &fakeEmbedder{dim: 8})
	out, err := r.Search(context.Background(), "nothing indexed yet", 5, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

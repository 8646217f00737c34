package retrieval

import (
	"context"
	"fmt"
	"sync"

	"docrag/model"
	"docrag/types"
)

// Searcher is the slice of the store the retriever needs.
type Searcher interface {
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]types.ChunkMatch, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]types.ChunkMatch, error)
}

// HybridRetriever runs semantic and full-text retrieval side by side and
// merges the result sets by chunk id. A chunk found by both arms keeps both
// scores; a chunk found by one keeps the other score nil, which downstream
// weighting treats differently from zero.
type HybridRetriever struct {
	store    Searcher
	embedder model.EmbedderInterface
}

func NewHybridRetriever(store Searcher, embedder model.EmbedderInterface) *HybridRetriever {
	return &HybridRetriever{store: store, embedder: embedder}
}

func (r *HybridRetriever) Search(ctx context.Context, question string, vectorK, lexicalK int) ([]types.ChunkMatch, error) {
	var (
		wg         sync.WaitGroup
		vecMatches []types.ChunkMatch
		lexMatches []types.ChunkMatch
		vecErr     error
		lexErr     error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		embedding, err := r.embedder.Embed(ctx, question)
		if err != nil {
			vecErr = fmt.Errorf("embed question: %w", err)
			return
		}
		vecMatches, vecErr = r.store.VectorSearch(ctx, embedding, vectorK)
	}()
	go func() {
		defer wg.Done()
		lexMatches, lexErr = r.store.LexicalSearch(ctx, question, lexicalK)
	}()
	wg.Wait()

	if vecErr != nil {
		return nil, fmt.Errorf("vector search: %w", vecErr)
	}
	if lexErr != nil {
		return nil, fmt.Errorf("lexical search: %w", lexErr)
	}

	merged := make(map[int64]*types.ChunkMatch, len(vecMatches)+len(lexMatches))
	order := make([]int64, 0, len(vecMatches)+len(lexMatches))

	for _, m := range vecMatches {
		m := m
		merged[m.ID] = &m
		order = append(order, m.ID)
	}
	for _, m := range lexMatches {
		if existing, ok := merged[m.ID]; ok {
			existing.LexicalScore = m.LexicalScore
			continue
		}
		m := m
		merged[m.ID] = &m
		order = append(order, m.ID)
	}

	out := make([]types.ChunkMatch, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out, nil
}

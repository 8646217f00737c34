package api

import (
	"context"
	"log/slog"
	"time"

	"docrag/app/agent"
	"docrag/config"
	"docrag/types"

	"github.com/gofiber/fiber/v2"
)

type searcher interface {
	Search(ctx context.Context, question string, vectorK, lexicalK int) ([]types.ChunkMatch, error)
}

type chunkReranker interface {
	Rerank(ctx context.Context, question string, matches []types.ChunkMatch) []types.ChunkMatch
}

type crossReferencer interface {
	Figures(ctx context.Context, matches []types.ChunkMatch) ([]types.Figure, error)
	Pages(ctx context.Context, matches []types.ChunkMatch) ([]types.PageMatch, error)
}

type answerer interface {
	Answer(ctx context.Context, question string, matches []types.ChunkMatch) (string, error)
}

// QueryHandler runs the full query path: hybrid retrieval, rerank, top-K
// truncation, cross-referencing, answer generation.
type QueryHandler struct {
	retriever searcher
	reranker  chunkReranker
	crossref  crossReferencer
	agent     answerer
	vectorK   int
	lexicalK  int
	topK      int
}

func NewQueryHandler(retriever searcher, reranker chunkReranker, crossref crossReferencer, ag answerer, cfg *config.Config) *QueryHandler {
	return &QueryHandler{
		retriever: retriever,
		reranker:  reranker,
		crossref:  crossref,
		agent:     ag,
		vectorK:   cfg.VectorK,
		lexicalK:  cfg.LexicalK,
		topK:      cfg.TopK,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	vectorK := orDefault(params.VectorK, h.vectorK)
	lexicalK := orDefault(params.LexicalK, h.lexicalK)
	topK := orDefault(params.TopK, h.topK)

	ctx := c.UserContext()
	matches, err := h.retriever.Search(ctx, params.Question, vectorK, lexicalK)
	if err != nil {
		return err
	}

	ranked := h.reranker.Rerank(ctx, params.Question, matches)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	pages, err := h.crossref.Pages(ctx, ranked)
	if err != nil {
		return err
	}
	figures, err := h.crossref.Figures(ctx, ranked)
	if err != nil {
		return err
	}

	// Model failure degrades to the no-context answer; the retrieved
	// chunks, pages and figures are still worth returning.
	answer, err := h.agent.Answer(ctx, params.Question, ranked)
	if err != nil {
		slog.Error("query: answer generation failed", "err", err)
		answer = agent.NoContextAnswer
	}

	return c.JSON(&types.QueryResponse{
		Answer:    answer,
		Chunks:    chunkResults(ranked),
		Pages:     pageResults(pages),
		Figures:   figureResults(figures),
		Timestamp: time.Now(),
	})
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func chunkResults(matches []types.ChunkMatch) []types.ChunkResult {
	out := make([]types.ChunkResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, types.ChunkResult{
			ID:           m.ID,
			DocumentID:   m.DocumentID,
			Index:        m.Index,
			Content:      m.Content,
			Heading:      m.Heading,
			Kind:         string(m.Kind),
			PageStart:    m.PageStart,
			PageEnd:      m.PageEnd,
			VectorScore:  m.VectorScore,
			LexicalScore: m.LexicalScore,
			RerankScore:  m.RerankScore,
		})
	}
	return out
}

func pageResults(pages []types.PageMatch) []types.PageResult {
	out := make([]types.PageResult, 0, len(pages))
	for _, p := range pages {
		out = append(out, types.PageResult{
			DocumentID: p.DocumentID,
			PageNumber: p.PageNumber,
			ImageURI:   p.ImageURI,
			ChunkIDs:   p.ChunkIDs,
		})
	}
	return out
}

func figureResults(figures []types.Figure) []types.FigureResult {
	out := make([]types.FigureResult, 0, len(figures))
	for _, f := range figures {
		out = append(out, types.FigureResult{
			DocumentID: f.DocumentID,
			Label:      f.Label,
			PageNumber: f.PageNumber,
			Caption:    f.Caption,
			ImageURI:   f.ImageURI,
		})
	}
	return out
}

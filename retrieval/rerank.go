package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"docrag/model"
	"docrag/types"
)

// Weights for the score blend used when the ranking model gives us nothing.
// Vector similarity is the stronger signal for paraphrased questions, so it
// carries more weight than exact-term rank.
const (
	vectorWeight  = 0.6
	lexicalWeight = 0.4
)

// Reranker orders merged matches best-first. The ranking model decides when
// it cooperates; when it fails, times out, or skips chunks, ordering degrades
// to the retrieval scores instead of surfacing an error, so a query never
// fails because of the reranker.
type Reranker struct {
	ranker  model.Ranker
	timeout time.Duration
}

func NewReranker(ranker model.Ranker, timeout time.Duration) *Reranker {
	return &Reranker{ranker: ranker, timeout: timeout}
}

// Rerank returns the matches in ranked order. Chunks scored by the model
// carry a RerankScore and sort by it; chunks the model skipped keep a nil
// RerankScore and trail the scored ones, ordered by their combined retrieval
// scores. With no model scores at all, a normalized blend of the retrieval
// scores decides the whole order.
func (r *Reranker) Rerank(ctx context.Context, question string, matches []types.ChunkMatch) []types.ChunkMatch {
	if len(matches) <= 1 {
		return matches
	}

	out := append([]types.ChunkMatch(nil), matches...)
	scores := r.rankScores(ctx, question, matches)

	if len(scores) == 0 {
		blend := blendScores(matches)
		sort.SliceStable(out, func(i, j int) bool {
			return blend[out[i].ID] > blend[out[j].ID]
		})
		return out
	}

	// Two tiers, two stable sub-sorts: scored chunks always precede unscored
	// ones, whatever the score magnitudes.
	var scored, unscored []types.ChunkMatch
	for i := range out {
		if s, ok := scores[out[i].ID]; ok {
			s := s
			out[i].RerankScore = &s
			scored = append(scored, out[i])
		} else {
			unscored = append(unscored, out[i])
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].RerankScore > *scored[j].RerankScore
	})
	sort.SliceStable(unscored, func(i, j int) bool {
		return rawSum(unscored[i]) > rawSum(unscored[j])
	})
	return append(scored, unscored...)
}

func (r *Reranker) rankScores(ctx context.Context, question string, matches []types.ChunkMatch) map[int64]float64 {
	if r.ranker == nil {
		return nil
	}
	rctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	candidates := make([]model.RankCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = model.RankCandidate{ID: m.ID, Content: m.Content}
	}
	scores, err := r.ranker.Rank(rctx, question, candidates)
	if err != nil {
		slog.Warn("reranker: model ranking failed, using retrieval scores", "err", err)
		return nil
	}
	return scores
}

// blendScores normalizes each retrieval signal by its batch maximum and
// combines them. A signal whose maximum is not positive contributes nothing,
// and a nil score contributes nothing, so vector-only and lexical-only
// matches stay comparable.
func blendScores(matches []types.ChunkMatch) map[int64]float64 {
	var maxVec, maxLex float64
	for _, m := range matches {
		if m.VectorScore != nil && *m.VectorScore > maxVec {
			maxVec = *m.VectorScore
		}
		if m.LexicalScore != nil && *m.LexicalScore > maxLex {
			maxLex = *m.LexicalScore
		}
	}

	blend := make(map[int64]float64, len(matches))
	for _, m := range matches {
		var s float64
		if m.VectorScore != nil && maxVec > 0 {
			s += vectorWeight * (*m.VectorScore / maxVec)
		}
		if m.LexicalScore != nil && maxLex > 0 {
			s += lexicalWeight * (*m.LexicalScore / maxLex)
		}
		blend[m.ID] = s
	}
	return blend
}

func rawSum(m types.ChunkMatch) float64 {
	var s float64
	if m.VectorScore != nil {
		s += *m.VectorScore
	}
	if m.LexicalScore != nil {
		s += *m.LexicalScore
	}
	return s
}

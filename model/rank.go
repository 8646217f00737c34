package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	rankAttempts     = 2
	rankSnippetChars = 600
)

const rankSystemPrompt = `You are a relevance ranking model.
Score how well each passage answers the question, from 0.0 (irrelevant) to 1.0 (directly answers it).
Respond with ONLY a JSON object of the form {"rankings": [{"id": <passage id>, "score": <0.0-1.0>}, ...]}.
Include every passage exactly once. No explanations, no markdown.`

// RankCandidate is one passage offered to the ranking model.
type RankCandidate struct {
	ID      int64
	Content string
}

// Ranker scores candidate passages against a question. Implementations
// return scores keyed by candidate ID; missing IDs mean the model skipped
// that passage.
type Ranker interface {
	Rank(ctx context.Context, question string, candidates []RankCandidate) (map[int64]float64, error)
}

type jsonGenerator interface {
	GenerateJSON(ctx context.Context, system, prompt string, maxAttempts int) (string, error)
}

// LLMRanker scores passages with a generative model prompted for a JSON
// ranking payload.
type LLMRanker struct {
	gen      jsonGenerator
	attempts int
}

func NewLLMRanker(gen *Generator) *LLMRanker {
	return &LLMRanker{gen: gen, attempts: rankAttempts}
}

func (r *LLMRanker) Rank(ctx context.Context, question string, candidates []RankCandidate) (map[int64]float64, error) {
	if len(candidates) == 0 {
		return map[int64]float64{}, nil
	}

	payload, err := r.gen.GenerateJSON(ctx, rankSystemPrompt, buildRankPrompt(question, candidates), r.attempts)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	scores, err := ParseRankScores(payload)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	// Keep only IDs that were actually offered; models occasionally invent
	// passage numbers.
	valid := make(map[int64]float64, len(scores))
	for _, c := range candidates {
		if s, ok := scores[c.ID]; ok {
			valid[c.ID] = clamp01(s)
		}
	}
	if len(valid) == 0 {
		return nil, errors.New("rank payload matched no candidates")
	}
	return valid, nil
}

func buildRankPrompt(question string, candidates []RankCandidate) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPassages:\n")
	for _, c := range candidates {
		snippet := c.Content
		if len(snippet) > rankSnippetChars {
			snippet = snippet[:rankSnippetChars]
		}
		fmt.Fprintf(&sb, "[id %d] %s\n\n", c.ID, snippet)
	}
	return sb.String()
}

// ParseRankScores reads ranking scores out of a model payload. Models drift
// between shapes, so all of these are accepted:
//
//	{"rankings": [{"id": 1, "score": 0.9}, ...]}   (also "ranking", "scores")
//	[{"id": 1, "score": 0.9}, ...]
//	{"id": 1, "score": 0.9}
//	{"1": 0.9, "2": 0.4}
func ParseRankScores(raw string) (map[int64]float64, error) {
	snippet, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if err := json.Unmarshal([]byte(snippet), &payload); err != nil {
		return nil, fmt.Errorf("parse rank payload: %w", err)
	}

	scores := make(map[int64]float64)
	switch v := payload.(type) {
	case map[string]interface{}:
		for _, key := range []string{"rankings", "ranking", "scores"} {
			if list, ok := v[key].([]interface{}); ok {
				collectRankItems(list, scores)
			}
		}
		if len(scores) > 0 {
			break
		}
		if id, score, ok := rankItem(v); ok {
			scores[id] = score
			break
		}
		for k, val := range v {
			id, idErr := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
			if idErr != nil {
				continue
			}
			if s, ok := toFloat(val); ok {
				scores[id] = s
			}
		}
	case []interface{}:
		collectRankItems(v, scores)
	}

	if len(scores) == 0 {
		return nil, errors.New("rank payload had no usable scores")
	}
	return scores, nil
}

func collectRankItems(list []interface{}, scores map[int64]float64) {
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if id, score, ok := rankItem(m); ok {
			scores[id] = score
		}
	}
}

func rankItem(m map[string]interface{}) (int64, float64, bool) {
	idVal, ok := m["id"]
	if !ok {
		idVal, ok = m["chunk_id"]
	}
	if !ok {
		return 0, 0, false
	}
	id, ok := toInt(idVal)
	if !ok {
		return 0, 0, false
	}
	score, ok := toFloat(m["score"])
	if !ok {
		return 0, 0, false
	}
	return id, score, true
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRankScoresWrappedList(t *testing.T) {
	for _, raw := range []string{
		`{"rankings": [{"id": 1, "score": 0.9}, {"id": 2, "score": 0.4}]}`,
		`{"ranking": [{"id": 1, "score": 0.9}, {"id": 2, "score": 0.4}]}`,
		`{"scores": [{"id": 1, "score": 0.9}, {"id": 2, "score": 0.4}]}`,
	} {
		scores, err := ParseRankScores(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, map[int64]float64{1: 0.9, 2: 0.4}, scores, raw)
	}
}

func TestParseRankScoresBareList(t *testing.T) {
	scores, err := ParseRankScores(`[{"id": 7, "score": 0.55}, {"chunk_id": 9, "score": 0.2}]`)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{7: 0.55, 9: 0.2}, scores)
}

func TestParseRankScoresSingleObject(t *testing.T) {
	scores, err := ParseRankScores(`{"id": 3, "score": 0.75}`)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{3: 0.75}, scores)
}

func TestParseRankScoresFlatMap(t *testing.T) {
	scores, err := ParseRankScores(`{"1": 0.9, "2": "0.4", "note": "high confidence"}`)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 0.9, 2: 0.4}, scores)
}

func TestParseRankScoresStringValues(t *testing.T) {
	scores, err := ParseRankScores(`{"rankings": [{"id": "12", "score": "0.8"}]}`)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{12: 0.8}, scores)
}

func TestParseRankScoresSurroundingProse(t *testing.T) {
	raw := "Sure! Here are the rankings:\n```json\n{\"rankings\": [{\"id\": 1, \"score\": 1.0}]}\n```"
	scores, err := ParseRankScores(raw)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 1.0}, scores)
}

func TestParseRankScoresGarbage(t *testing.T) {
	_, err := ParseRankScores("I cannot rank these passages.")
	assert.Error(t, err)

	_, err = ParseRankScores(`{"verdict": "all passages look fine"}`)
	assert.Error(t, err)
}

type fakeJSONGenerator struct {
	payload string
	err     error
	prompts []string
}

func (f *fakeJSONGenerator) GenerateJSON(_ context.Context, _, prompt string, _ int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.payload, f.err
}

func TestLLMRankerFiltersUnknownIDs(t *testing.T) {
	gen := &fakeJSONGenerator{payload: `{"rankings": [{"id": 1, "score": 1.4}, {"id": 99, "score": 0.9}]}`}
	ranker := &LLMRanker{gen: gen, attempts: 1}

	scores, err := ranker.Rank(context.Background(), "how do I bleed the brakes?", []RankCandidate{
		{ID: 1, Content: "Bleeding procedure for the brake circuit."},
		{ID: 2, Content: "Paint codes by model year."},
	})
	require.NoError(t, err)

	// ID 99 was never offered and score 1.4 is clamped into range.
	assert.Equal(t, map[int64]float64{1: 1.0}, scores)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "[id 1]")
	assert.Contains(t, gen.prompts[0], "[id 2]")
}

func TestLLMRankerNoMatches(t *testing.T) {
	gen := &fakeJSONGenerator{payload: `{"rankings": [{"id": 99, "score": 0.9}]}`}
	ranker := &LLMRanker{gen: gen, attempts: 1}

	_, err := ranker.Rank(context.Background(), "q", []RankCandidate{{ID: 1, Content: "c"}})
	assert.Error(t, err)
}

func TestLLMRankerGeneratorError(t *testing.T) {
	gen := &fakeJSONGenerator{err: errors.New("model offline")}
	ranker := &LLMRanker{gen: gen, attempts: 1}

	_, err := ranker.Rank(context.Background(), "q", []RankCandidate{{ID: 1, Content: "c"}})
	assert.Error(t, err)

	scores, err := ranker.Rank(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

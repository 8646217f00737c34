package model

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

const DefaultEmbeddingDim = 1536

// OfflineEmbedder derives a pseudo-embedding from a hash of the text. The
// vectors carry no semantics, but they are unit length, deterministic across
// processes, and dimension-compatible with the vector column, which keeps
// ingestion and nearest-neighbor queries functioning without an embedding
// service.
type OfflineEmbedder struct {
	dim int
}

func NewOfflineEmbedder(dim int) *OfflineEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &OfflineEmbedder{dim: dim}
}

func (e *OfflineEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float64, e.dim)
	for i := range vec {
		vec[i] = rng.NormFloat64()
	}
	norm := normalize64(vec)

	out := make([]float32, e.dim)
	for i, v := range norm {
		out[i] = float32(v)
	}
	return out, nil
}

func (e *OfflineEmbedder) Dimension() int {
	return e.dim
}

package model

import (
	"context"
	"log/slog"
)

// EmbedderInterface produces fixed-dimension embedding vectors for text.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Embedder is the production embedder: an Ollama endpoint when one is
// configured, with a deterministic offline generator behind it so a dead or
// missing endpoint degrades retrieval quality instead of failing ingestion.
type Embedder struct {
	primary EmbedderInterface
	offline *OfflineEmbedder
}

func NewEmbedder(apiURL, model string, dim int) *Embedder {
	e := &Embedder{offline: NewOfflineEmbedder(dim)}
	if apiURL != "" && model != "" {
		e.primary = NewOllamaEmbedder(apiURL, model, dim)
		slog.Info("embedder: using ollama", "model", model)
	} else {
		slog.Info("embedder: no ollama endpoint configured, using offline vectors")
	}
	return e
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.primary != nil {
		embedding, err := e.primary.Embed(ctx, text)
		if err == nil {
			return embedding, nil
		}
		slog.Warn("embedder: ollama embed failed, falling back to offline", "err", err)
	}
	return e.offline.Embed(ctx, text)
}

func (e *Embedder) Dimension() int {
	return e.offline.Dimension()
}

package types

import (
	"time"

	"github.com/google/uuid"
)

type ChunkKind string

const (
	ChunkBody  ChunkKind = "body"
	ChunkTable ChunkKind = "table"
)

// Document is one ingested PDF. ExternalID is the caller-supplied identity
// (usually the original filename); Checksum identifies the content, so
// re-ingesting identical bytes is a no-op while a changed checksum under the
// same ExternalID replaces all derived rows.
type Document struct {
	ID          int64
	ExternalID  string
	Title       string
	Description string
	SourceURI   string
	Checksum    string
	TotalPages  int
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is one retrievable unit of document text. Index defines reading
// order and is unique within a document. PageStart/PageEnd are the inclusive
// page span the content came from; either may be unknown. Embedding is
// populated by a separate backfill step and may lag chunk creation.
type Chunk struct {
	ID         int64
	DocumentID int64
	Index      int
	PageStart  *int
	PageEnd    *int
	Content    string
	Heading    string
	Kind       ChunkKind
	Metadata   map[string]any
	Embedding  []float32
}

// Figure is a rendered figure crop keyed by its normalized label, e.g.
// "FIG. 9-22C". (DocumentID, Label) is unique; re-extraction overwrites.
type Figure struct {
	ID         int64
	DocumentID int64
	Label      string
	PageNumber int
	Caption    string
	ImageURI   string
	Metadata   map[string]any
}

// PageRendition is a rendered full page. (DocumentID, PageNumber) is unique
// and the set is replaced wholesale on re-ingestion.
type PageRendition struct {
	ID         int64
	DocumentID int64
	PageNumber int
	ImageURI   string
	Metadata   map[string]any
}

const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// IngestionRun records one ingestion attempt. Status transitions exactly
// once from processing to completed or failed.
type IngestionRun struct {
	ID           uuid.UUID
	DocumentID   *int64
	Status       string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// ChunkMatch is a chunk with its query-time scores. Each score is nil when
// the corresponding signal did not produce the chunk; nil and zero are
// distinct states and downstream weighting relies on the difference.
type ChunkMatch struct {
	Chunk
	VectorScore  *float64
	LexicalScore *float64
	RerankScore  *float64
}

// PageMatch is a persisted page rendition resolved for a ranked chunk set,
// carrying the ids of the chunks whose spans cover the page.
type PageMatch struct {
	PageRendition
	ChunkIDs []int64
}

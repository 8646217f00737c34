package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// QueryParams is the body of a query request. The K parameters are optional
// and fall back to configured defaults when zero.
type QueryParams struct {
	Question string `json:"question" validate:"required,min=3"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
	VectorK  int    `json:"vector_k" validate:"omitempty,min=1,max=200"`
	LexicalK int    `json:"lexical_k" validate:"omitempty,min=1,max=200"`
}

func (params *QueryParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// QueryResponse is the full query payload: the generated answer, the ranked
// chunks with their scores, and the cross-referenced pages and figures.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Chunks    []ChunkResult  `json:"chunks"`
	Pages     []PageResult   `json:"pages"`
	Figures   []FigureResult `json:"figures"`
	Timestamp time.Time      `json:"timestamp"`
}

// ChunkResult carries the three independently-nullable scores: a null score
// means the signal never produced this chunk, which is different from zero.
type ChunkResult struct {
	ID           int64    `json:"id"`
	DocumentID   int64    `json:"document_id"`
	Index        int      `json:"index"`
	Content      string   `json:"content"`
	Heading      string   `json:"heading,omitempty"`
	Kind         string   `json:"kind"`
	PageStart    *int     `json:"page_start,omitempty"`
	PageEnd      *int     `json:"page_end,omitempty"`
	VectorScore  *float64 `json:"vector_score"`
	LexicalScore *float64 `json:"lexical_score"`
	RerankScore  *float64 `json:"rerank_score"`
}

type PageResult struct {
	DocumentID int64   `json:"document_id"`
	PageNumber int     `json:"page_number"`
	ImageURI   string  `json:"image_uri"`
	ChunkIDs   []int64 `json:"chunk_ids"`
}

type FigureResult struct {
	DocumentID int64  `json:"document_id"`
	Label      string `json:"label"`
	PageNumber int    `json:"page_number"`
	Caption    string `json:"caption,omitempty"`
	ImageURI   string `json:"image_uri"`
}

// IngestResponse acknowledges an accepted upload; ingestion continues in the
// background under the returned run id.
type IngestResponse struct {
	IngestionRunID string `json:"ingestion_run_id"`
	Status         string `json:"status"`
	File           string `json:"file"`
}

type RunResponse struct {
	ID           uuid.UUID  `json:"id"`
	DocumentID   *int64     `json:"document_id,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

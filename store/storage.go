package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"docrag/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type DBStorer interface {
	Init(ctx context.Context) error
	Close() error

	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocumentByID(ctx context.Context, id int64) (*types.Document, error)
	GetDocumentByExternalID(ctx context.Context, externalID string) (*types.Document, error)

	ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error
	ChunksWithoutEmbedding(ctx context.Context, limit int) ([]types.Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID int64, embedding []float32) error
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]types.ChunkMatch, error)
	LexicalSearch(ctx context.Context, query string, limit int) ([]types.ChunkMatch, error)

	UpsertFigure(ctx context.Context, fig *types.Figure) error
	FiguresByLabels(ctx context.Context, docIDs []int64, labels []string) ([]types.Figure, error)

	ReplacePageRenditions(ctx context.Context, docID int64, pages []types.PageRendition) error
	PageRenditionsFor(ctx context.Context, docID int64, pageNumbers []int) ([]types.PageRendition, error)

	CreateRun(ctx context.Context, run *types.IngestionRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*types.IngestionRun, error)
	CompleteRun(ctx context.Context, id uuid.UUID, docID int64) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPostgresStore(ctx context.Context, connStr string, embeddingDim int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		dim:  embeddingDim,
	}, nil
}

// schemaDDL builds the schema for the configured embedding dimension. The
// dimension is baked into the vector column, so changing it requires a fresh
// schema, not just a config edit.
func schemaDDL(dim int) string {
	return fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS rag_document (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source_uri TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		total_pages INTEGER NOT NULL DEFAULT 0,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS rag_chunk (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES rag_document(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		page_start INTEGER,
		page_end INTEGER,
		heading TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'body' CHECK (kind IN ('body','table')),
		content TEXT NOT NULL,
		content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector(%d),
		UNIQUE (document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_rag_chunk_document ON rag_chunk(document_id);
	CREATE INDEX IF NOT EXISTS idx_rag_chunk_tsv ON rag_chunk USING gin (content_tsv);
	CREATE INDEX IF NOT EXISTS idx_rag_chunk_embedding ON rag_chunk
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

	CREATE TABLE IF NOT EXISTS rag_figure (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES rag_document(id) ON DELETE CASCADE,
		figure_label TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		page_number INTEGER NOT NULL,
		image_uri TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		UNIQUE (document_id, figure_label)
	);

	CREATE TABLE IF NOT EXISTS rag_document_page (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES rag_document(id) ON DELETE CASCADE,
		page_number INTEGER NOT NULL,
		image_uri TEXT NOT NULL DEFAULT '',
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		UNIQUE (document_id, page_number)
	);

	CREATE TABLE IF NOT EXISTS rag_ingestion_run (
		id UUID PRIMARY KEY,
		document_id BIGINT REFERENCES rag_document(id) ON DELETE SET NULL,
		status TEXT NOT NULL CHECK (status IN ('processing','completed','failed')),
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	);
	`, dim)
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.withRetry(ctx, "init schema", func() error {
		_, err := p.pool.Exec(ctx, schemaDDL(p.dim))
		return err
	})
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		slog.Info("postgres connection pool is closed")
	}
	return nil
}

func (p *PostgresStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	meta, err := metaParam(doc.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO rag_document (external_id, title, description, source_uri, checksum, total_pages, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			source_uri = EXCLUDED.source_uri,
			checksum = EXCLUDED.checksum,
			total_pages = EXCLUDED.total_pages,
			metadata = EXCLUDED.metadata,
			updated_at = now()
		RETURNING id, created_at, updated_at`
	return p.withRetry(ctx, "upsert document", func() error {
		return p.pool.QueryRow(ctx, query,
			doc.ExternalID, doc.Title, doc.Description, doc.SourceURI, doc.Checksum, doc.TotalPages, meta,
		).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	})
}

const documentColumns = `id, external_id, title, description, source_uri, checksum, total_pages, metadata, created_at, updated_at`

func (p *PostgresStore) GetDocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	return p.getDocument(ctx, `SELECT `+documentColumns+` FROM rag_document WHERE id = $1`, id)
}

func (p *PostgresStore) GetDocumentByExternalID(ctx context.Context, externalID string) (*types.Document, error) {
	return p.getDocument(ctx, `SELECT `+documentColumns+` FROM rag_document WHERE external_id = $1`, externalID)
}

func (p *PostgresStore) getDocument(ctx context.Context, query string, arg any) (*types.Document, error) {
	doc := &types.Document{}
	var meta []byte
	err := p.withRetry(ctx, "get document", func() error {
		return p.pool.QueryRow(ctx, query, arg).Scan(
			&doc.ID,
			&doc.ExternalID,
			&doc.Title,
			&doc.Description,
			&doc.SourceURI,
			&doc.Checksum,
			&doc.TotalPages,
			&meta,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	if doc.Metadata, err = metaValue(meta); err != nil {
		return nil, err
	}
	return doc, nil
}

// ReplaceChunks swaps a document's chunk set atomically. Chunk ids are
// assigned fresh; embeddings arrive later through the backfill.
func (p *PostgresStore) ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error {
	return p.withRetry(ctx, "replace chunks", func() error {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM rag_chunk WHERE document_id = $1`, docID); err != nil {
			return err
		}

		query := `INSERT INTO rag_chunk (document_id, chunk_index, page_start, page_end, heading, kind, content, metadata, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		for i := range chunks {
			c := &chunks[i]
			meta, err := metaParam(c.Metadata)
			if err != nil {
				return err
			}
			var embedding any
			if len(c.Embedding) > 0 {
				embedding = toPgVector(c.Embedding)
			}
			if _, err := tx.Exec(ctx, query,
				docID, c.Index, c.PageStart, c.PageEnd, c.Heading, string(c.Kind), c.Content, meta, embedding,
			); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

func (p *PostgresStore) ChunksWithoutEmbedding(ctx context.Context, limit int) ([]types.Chunk, error) {
	query := `SELECT id, document_id, chunk_index, content
		FROM rag_chunk
		WHERE embedding IS NULL
		ORDER BY id
		LIMIT $1`
	var chunks []types.Chunk
	err := p.withRetry(ctx, "chunks without embedding", func() error {
		rows, err := p.pool.Query(ctx, query, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		chunks = chunks[:0]
		for rows.Next() {
			var c types.Chunk
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content); err != nil {
				return err
			}
			chunks = append(chunks, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

func (p *PostgresStore) UpdateChunkEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	return p.withRetry(ctx, "update chunk embedding", func() error {
		_, err := p.pool.Exec(ctx,
			`UPDATE rag_chunk SET embedding = $2 WHERE id = $1`,
			chunkID, toPgVector(embedding),
		)
		return err
	})
}

const chunkMatchColumns = `c.id, c.document_id, c.chunk_index, c.page_start, c.page_end, c.heading, c.kind, c.content, c.metadata`

// VectorSearch returns the nearest chunks by cosine distance, best first.
// Similarity is 1 - distance; the id tiebreak keeps equal-distance results in
// a stable order.
func (p *PostgresStore) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]types.ChunkMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	query := `SELECT ` + chunkMatchColumns + `,
			1 - (c.embedding <=> $1) AS similarity
		FROM rag_chunk c
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $2`

	vector := pgvector.NewVector(embedding)
	var matches []types.ChunkMatch
	err := p.withRetry(ctx, "vector search", func() error {
		rows, err := p.pool.Query(ctx, query, vector, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		matches = matches[:0]
		for rows.Next() {
			var m types.ChunkMatch
			var meta []byte
			var similarity float64
			if err := rows.Scan(
				&m.ID, &m.DocumentID, &m.Index, &m.PageStart, &m.PageEnd,
				&m.Heading, &m.Kind, &m.Content, &meta, &similarity,
			); err != nil {
				return err
			}
			if m.Metadata, err = metaValue(meta); err != nil {
				return err
			}
			m.VectorScore = &similarity
			matches = append(matches, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// LexicalSearch returns chunks matching the query through full-text search,
// ranked by ts_rank_cd, best first.
func (p *PostgresStore) LexicalSearch(ctx context.Context, queryText string, limit int) ([]types.ChunkMatch, error) {
	query := `SELECT ` + chunkMatchColumns + `,
			ts_rank_cd(c.content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM rag_chunk c
		WHERE c.content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, c.id
		LIMIT $2`

	var matches []types.ChunkMatch
	err := p.withRetry(ctx, "lexical search", func() error {
		rows, err := p.pool.Query(ctx, query, queryText, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		matches = matches[:0]
		for rows.Next() {
			var m types.ChunkMatch
			var meta []byte
			var rank float64
			if err := rows.Scan(
				&m.ID, &m.DocumentID, &m.Index, &m.PageStart, &m.PageEnd,
				&m.Heading, &m.Kind, &m.Content, &meta, &rank,
			); err != nil {
				return err
			}
			if m.Metadata, err = metaValue(meta); err != nil {
				return err
			}
			m.LexicalScore = &rank
			matches = append(matches, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (p *PostgresStore) UpsertFigure(ctx context.Context, fig *types.Figure) error {
	meta, err := metaParam(fig.Metadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO rag_figure (document_id, figure_label, caption, page_number, image_uri, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, figure_label) DO UPDATE SET
			caption = EXCLUDED.caption,
			page_number = EXCLUDED.page_number,
			image_uri = EXCLUDED.image_uri,
			metadata = EXCLUDED.metadata
		RETURNING id`
	return p.withRetry(ctx, "upsert figure", func() error {
		return p.pool.QueryRow(ctx, query,
			fig.DocumentID, fig.Label, fig.Caption, fig.PageNumber, fig.ImageURI, meta,
		).Scan(&fig.ID)
	})
}

func (p *PostgresStore) FiguresByLabels(ctx context.Context, docIDs []int64, labels []string) ([]types.Figure, error) {
	if len(docIDs) == 0 || len(labels) == 0 {
		return nil, nil
	}
	query := `SELECT id, document_id, figure_label, caption, page_number, image_uri, metadata
		FROM rag_figure
		WHERE document_id = ANY($1) AND figure_label = ANY($2)
		ORDER BY document_id, figure_label`

	var figures []types.Figure
	err := p.withRetry(ctx, "figures by labels", func() error {
		rows, err := p.pool.Query(ctx, query, docIDs, labels)
		if err != nil {
			return err
		}
		defer rows.Close()

		figures = figures[:0]
		for rows.Next() {
			var f types.Figure
			var meta []byte
			if err := rows.Scan(&f.ID, &f.DocumentID, &f.Label, &f.Caption, &f.PageNumber, &f.ImageURI, &meta); err != nil {
				return err
			}
			if f.Metadata, err = metaValue(meta); err != nil {
				return err
			}
			figures = append(figures, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return figures, nil
}

func (p *PostgresStore) ReplacePageRenditions(ctx context.Context, docID int64, pages []types.PageRendition) error {
	return p.withRetry(ctx, "replace page renditions", func() error {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `DELETE FROM rag_document_page WHERE document_id = $1`, docID); err != nil {
			return err
		}
		query := `INSERT INTO rag_document_page (document_id, page_number, image_uri, metadata)
			VALUES ($1, $2, $3, $4)`
		for i := range pages {
			pg := &pages[i]
			meta, err := metaParam(pg.Metadata)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, docID, pg.PageNumber, pg.ImageURI, meta); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

func (p *PostgresStore) PageRenditionsFor(ctx context.Context, docID int64, pageNumbers []int) ([]types.PageRendition, error) {
	if len(pageNumbers) == 0 {
		return nil, nil
	}
	query := `SELECT id, document_id, page_number, image_uri, metadata
		FROM rag_document_page
		WHERE document_id = $1 AND page_number = ANY($2)
		ORDER BY page_number`

	var pages []types.PageRendition
	err := p.withRetry(ctx, "page renditions", func() error {
		rows, err := p.pool.Query(ctx, query, docID, pageNumbers)
		if err != nil {
			return err
		}
		defer rows.Close()

		pages = pages[:0]
		for rows.Next() {
			var pg types.PageRendition
			var meta []byte
			if err := rows.Scan(&pg.ID, &pg.DocumentID, &pg.PageNumber, &pg.ImageURI, &meta); err != nil {
				return err
			}
			if pg.Metadata, err = metaValue(meta); err != nil {
				return err
			}
			pages = append(pages, pg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (p *PostgresStore) CreateRun(ctx context.Context, run *types.IngestionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunProcessing
	}
	return p.withRetry(ctx, "create run", func() error {
		return p.pool.QueryRow(ctx,
			`INSERT INTO rag_ingestion_run (id, document_id, status) VALUES ($1, $2, $3) RETURNING started_at`,
			run.ID, run.DocumentID, run.Status,
		).Scan(&run.StartedAt)
	})
}

func (p *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*types.IngestionRun, error) {
	run := &types.IngestionRun{}
	err := p.withRetry(ctx, "get run", func() error {
		return p.pool.QueryRow(ctx,
			`SELECT id, document_id, status, error_message, started_at, finished_at
			FROM rag_ingestion_run WHERE id = $1`,
			id,
		).Scan(&run.ID, &run.DocumentID, &run.Status, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteRun marks the run completed and binds it to the ingested document.
// Only runs still processing transition; a finished run never changes again.
func (p *PostgresStore) CompleteRun(ctx context.Context, id uuid.UUID, docID int64) error {
	return p.finishRun(ctx, id,
		`UPDATE rag_ingestion_run SET status = $2, document_id = $3, finished_at = now()
		WHERE id = $1 AND status = $4`,
		types.RunCompleted, docID, types.RunProcessing)
}

func (p *PostgresStore) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	return p.finishRun(ctx, id,
		`UPDATE rag_ingestion_run SET status = $2, error_message = $3, finished_at = now()
		WHERE id = $1 AND status = $4`,
		types.RunFailed, message, types.RunProcessing)
}

func (p *PostgresStore) finishRun(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	return p.withRetry(ctx, "finish run", func() error {
		tag, err := p.pool.Exec(ctx, query, append([]any{id}, args...)...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("run %s: %w", id, pgx.ErrNoRows)
		}
		return nil
	})
}

// toPgVector renders a vector as a pgvector literal. Ten decimal places keep
// the round trip lossless for float32 components.
func toPgVector(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.10f", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func metaParam(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

func metaValue(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

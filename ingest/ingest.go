package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"docrag/blob"
	"docrag/config"
	"docrag/model"
	"docrag/pdf"
	"docrag/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store is the slice of the database layer ingestion writes through.
type Store interface {
	GetDocumentByExternalID(ctx context.Context, externalID string) (*types.Document, error)
	UpsertDocument(ctx context.Context, doc *types.Document) error
	ReplaceChunks(ctx context.Context, docID int64, chunks []types.Chunk) error
	ChunksWithoutEmbedding(ctx context.Context, limit int) ([]types.Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID int64, embedding []float32) error
	UpsertFigure(ctx context.Context, fig *types.Figure) error
	ReplacePageRenditions(ctx context.Context, docID int64, pages []types.PageRendition) error
	CreateRun(ctx context.Context, run *types.IngestionRun) error
	CompleteRun(ctx context.Context, id uuid.UUID, docID int64) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error
}

// Ingestor turns a PDF file into the stored document, chunks, figures and
// page renditions the query side works from.
type Ingestor struct {
	store    Store
	uploader blob.Uploader
	embedder model.EmbedderInterface
	norm     *pdf.Normalizer
	chunker  *pdf.Chunker
	batch    int
	workers  int

	open        func(path string) (*pdf.Document, error)
	newRenderer func(path string) pdf.Renderer
}

func New(store Store, uploader blob.Uploader, embedder model.EmbedderInterface, cfg *config.Config) *Ingestor {
	batch := cfg.EmbedBatch
	if batch <= 0 {
		batch = 32
	}
	workers := cfg.EmbedWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Ingestor{
		store:    store,
		uploader: uploader,
		embedder: embedder,
		norm:     pdf.NewNormalizer(cfg.StripPhrases()),
		chunker:  pdf.NewChunker(cfg.ChunkMaxChars, cfg.ChunkOverlap),
		batch:    batch,
		workers:  workers,
		open:     pdf.Open,
		newRenderer: func(path string) pdf.Renderer {
			return pdf.NewCropRenderer(path)
		},
	}
}

// StartRun registers a new ingestion run in the processing state. The run id
// is handed to the caller immediately; the pipeline reports into it later.
func (i *Ingestor) StartRun(ctx context.Context) (*types.IngestionRun, error) {
	run := &types.IngestionRun{Status: types.RunProcessing}
	if err := i.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create ingestion run: %w", err)
	}
	return run, nil
}

// Run executes the full pipeline for one file and settles the run record:
// completed with the document id on success, failed with the error text
// otherwise.
func (i *Ingestor) Run(ctx context.Context, runID uuid.UUID, path, externalID string) error {
	doc, err := i.ingest(ctx, path, externalID)
	if err != nil {
		slog.Error("ingest failed", "run", runID, "file", externalID, "err", err)
		if failErr := i.store.FailRun(ctx, runID, err.Error()); failErr != nil {
			slog.Error("ingest: marking run failed", "run", runID, "err", failErr)
		}
		return err
	}
	if err := i.store.CompleteRun(ctx, runID, doc.ID); err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	slog.Info("ingest completed", "run", runID, "file", externalID, "document", doc.ID)
	return nil
}

func (i *Ingestor) ingest(ctx context.Context, path, externalID string) (*types.Document, error) {
	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, err
	}

	// Identical bytes under the same identity: everything derived from this
	// file is already stored. A missing document means first ingest; any
	// other store error is surfaced rather than risking a duplicate pipeline
	// run against a database we cannot read.
	existing, err := i.store.GetDocumentByExternalID(ctx, externalID)
	switch {
	case err == nil:
		if existing.Checksum == checksum {
			slog.Info("ingest: unchanged document, skipping", "file", externalID)
			return existing, nil
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("look up document %s: %w", externalID, err)
	}

	parsed, err := i.open(path)
	if err != nil {
		return nil, err
	}

	pages := make([]pdf.PageText, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		stripped := i.norm.StripPhrases(strings.Join(p.TextLines(), "\n"))
		pages = append(pages, pdf.PageText{Number: p.Number, Lines: strings.Split(stripped, "\n")})
	}

	textChunks, err := i.chunker.BuildChunks(pages)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", externalID, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	doc := &types.Document{
		ExternalID: externalID,
		Title:      strings.TrimSuffix(filepath.Base(externalID), filepath.Ext(externalID)),
		SourceURI:  "file://" + abs,
		Checksum:   checksum,
		TotalPages: len(parsed.Pages),
	}
	if err := i.store.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}

	chunks := make([]types.Chunk, 0, len(textChunks))
	for _, tc := range textChunks {
		c := types.Chunk{
			DocumentID: doc.ID,
			Index:      tc.Index,
			Content:    tc.Content,
			Heading:    tc.Heading,
			Kind:       types.ChunkBody,
			Metadata:   tc.Metadata,
		}
		if tc.Table {
			c.Kind = types.ChunkTable
		}
		if tc.PageStart > 0 {
			start, end := tc.PageStart, tc.PageEnd
			c.PageStart = &start
			c.PageEnd = &end
		}
		chunks = append(chunks, c)
	}
	if err := i.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("replace chunks: %w", err)
	}

	renderer := i.newRenderer(path)
	defer renderer.Close()

	if err := i.extractFigures(ctx, doc.ID, parsed, renderer); err != nil {
		return nil, err
	}
	if err := i.renderPages(ctx, doc.ID, parsed, renderer); err != nil {
		return nil, err
	}
	if err := i.backfillEmbeddings(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// extractFigures walks the document page by page. Captioned vector drawings
// are cropped by region; pages without locatable drawings fall back to their
// embedded raster images, labeled from the page's first caption or figure
// reference. The first page to claim a label owns it.
func (i *Ingestor) extractFigures(ctx context.Context, docID int64, parsed *pdf.Document, renderer pdf.Renderer) error {
	seen := map[string]bool{}
	for _, page := range parsed.Pages {
		regions := pdf.FiguresOnPage(page)
		for _, region := range regions {
			if seen[region.Label] {
				continue
			}
			box := pdf.RenderBox(region.Rect, page.Bounds)
			data, ext, err := renderer.RenderRegion(page.Number, box)
			if err != nil {
				slog.Warn("ingest: render figure region failed", "label", region.Label, "page", page.Number, "err", err)
				continue
			}
			uri, err := i.uploader.Upload(data, region.Label+ext, blob.DefaultFolder)
			if err != nil {
				return fmt.Errorf("upload figure %s: %w", region.Label, err)
			}
			seen[region.Label] = true
			fig := &types.Figure{
				DocumentID: docID,
				Label:      region.Label,
				PageNumber: page.Number,
				Caption:    region.Caption,
				ImageURI:   uri,
				Metadata: map[string]any{
					"x0": region.Rect.X0, "y0": region.Rect.Y0,
					"x1": region.Rect.X1, "y1": region.Rect.Y1,
				},
			}
			if err := i.store.UpsertFigure(ctx, fig); err != nil {
				return fmt.Errorf("upsert figure %s: %w", region.Label, err)
			}
		}
		if len(regions) > 0 {
			continue
		}

		label, ok := pdf.FallbackLabel(page)
		if !ok || seen[label] {
			continue
		}
		images, err := renderer.PageImages(page.Number)
		if err != nil {
			slog.Warn("ingest: extract page images failed", "page", page.Number, "err", err)
			continue
		}
		if len(images) == 0 {
			continue
		}
		img := images[0]
		uri, err := i.uploader.Upload(img.Data, label+filepath.Ext(img.Name), blob.DefaultFolder)
		if err != nil {
			return fmt.Errorf("upload figure %s: %w", label, err)
		}
		seen[label] = true
		fig := &types.Figure{
			DocumentID: docID,
			Label:      label,
			PageNumber: page.Number,
			ImageURI:   uri,
			Metadata:   map[string]any{"source": "page_image"},
		}
		if err := i.store.UpsertFigure(ctx, fig); err != nil {
			return fmt.Errorf("upsert figure %s: %w", label, err)
		}
	}
	return nil
}

// renderPages stores a rendition of every page. A page that fails to render
// is logged and skipped; retrieval then simply has no artifact to offer for
// it.
func (i *Ingestor) renderPages(ctx context.Context, docID int64, parsed *pdf.Document, renderer pdf.Renderer) error {
	renditions := make([]types.PageRendition, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		data, ext, err := renderer.RenderPage(page.Number)
		if err != nil {
			slog.Warn("ingest: render page failed", "page", page.Number, "err", err)
			continue
		}
		uri, err := i.uploader.Upload(data, fmt.Sprintf("page_%d%s", page.Number, ext), "pages")
		if err != nil {
			return fmt.Errorf("upload page %d: %w", page.Number, err)
		}
		renditions = append(renditions, types.PageRendition{
			DocumentID: docID,
			PageNumber: page.Number,
			ImageURI:   uri,
		})
	}
	if err := i.store.ReplacePageRenditions(ctx, docID, renditions); err != nil {
		return fmt.Errorf("replace page renditions: %w", err)
	}
	return nil
}

// backfillEmbeddings embeds every chunk still missing a vector, in batches,
// with a bounded number of concurrent embedding calls.
func (i *Ingestor) backfillEmbeddings(ctx context.Context) error {
	for {
		chunks, err := i.store.ChunksWithoutEmbedding(ctx, i.batch)
		if err != nil {
			return fmt.Errorf("load chunks for embedding: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		sem := make(chan struct{}, i.workers)
		for _, c := range chunks {
			wg.Add(1)
			sem <- struct{}{}
			go func(c types.Chunk) {
				defer wg.Done()
				defer func() { <-sem }()

				embedding, err := i.embedder.Embed(ctx, c.Content)
				if err == nil {
					err = i.store.UpdateChunkEmbedding(ctx, c.ID, embedding)
				}
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("embed chunk %d: %w", c.ID, err)
					}
					mu.Unlock()
				}
			}(c)
		}
		wg.Wait()
		if firstErr != nil {
			return firstErr
		}
	}
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

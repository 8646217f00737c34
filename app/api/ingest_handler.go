package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"docrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ingestRunner interface {
	StartRun(ctx context.Context) (*types.IngestionRun, error)
	Run(ctx context.Context, runID uuid.UUID, path, externalID string) error
}

type runGetter interface {
	GetRun(ctx context.Context, id uuid.UUID) (*types.IngestionRun, error)
}

// IngestHandler accepts PDF uploads and exposes run status. The upload is
// acknowledged with 202 immediately; the pipeline reports into the run row.
type IngestHandler struct {
	ingestor  ingestRunner
	runs      runGetter
	uploadDir string
}

func NewIngestHandler(ingestor ingestRunner, runs runGetter, uploadDir string) (*IngestHandler, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &IngestHandler{ingestor: ingestor, runs: runs, uploadDir: uploadDir}, nil
}

func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return NewError(fiber.StatusBadRequest, "only .pdf files are accepted")
	}

	path := h.savePath(fileHeader.Filename)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}

	run, err := h.ingestor.StartRun(c.UserContext())
	if err != nil {
		return err
	}

	// The request context dies with the response; ingestion carries on.
	externalID := filepath.Base(fileHeader.Filename)
	go func() {
		if err := h.ingestor.Run(context.Background(), run.ID, path, externalID); err != nil {
			slog.Error("background ingest failed", "run", run.ID, "file", externalID, "err", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(types.IngestResponse{
		IngestionRunID: run.ID.String(),
		Status:         run.Status,
		File:           externalID,
	})
}

// savePath returns a free path under the upload dir, suffixing a counter
// when the name is taken.
func (h *IngestHandler) savePath(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	path := filepath.Join(h.uploadDir, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(h.uploadDir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func (h *IngestHandler) HandleRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	run, err := h.runs.GetRun(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound(id, "ingestion run")
		}
		return err
	}

	return c.JSON(types.RunResponse{
		ID:           run.ID,
		DocumentID:   run.DocumentID,
		Status:       run.Status,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	})
}

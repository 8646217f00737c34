package server

import (
	"context"
	"fmt"
	"log/slog"

	"docrag/app/agent"
	"docrag/app/api"
	"docrag/app/middleware"
	"docrag/blob"
	"docrag/config"
	"docrag/ingest"
	"docrag/model"
	"docrag/retrieval"
	"docrag/store"

	"github.com/gofiber/fiber/v2"
)

// Uploads are whole PDFs; the fiber default of 4MB is far too small.
const uploadBodyLimit = 64 << 20

type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *fiber.App
	store  store.DBStorer
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Run connects the backing services, wires the pipeline and serves until
// Stop or a listener error.
func (s *Server) Run() error {
	ctx := context.Background()

	st, err := store.NewPostgresStore(ctx, s.cfg.PostgresDSN(), s.cfg.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	s.store = st
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	blobStore, err := blob.NewLocalStore(s.cfg.BlobDir, "/files")
	if err != nil {
		return err
	}

	embedder := model.NewEmbedder(s.cfg.EmbedURL, s.cfg.EmbedModel, s.cfg.EmbeddingDim)
	ranker := model.NewLLMRanker(model.NewGenerator(s.cfg.RerankModel))
	answerGen := model.NewGenerator(s.cfg.LLMModel)

	retriever := retrieval.NewHybridRetriever(st, embedder)
	reranker := retrieval.NewReranker(ranker, s.cfg.RerankTimeout)
	crossref := retrieval.NewCrossReferencer(st)
	ag := agent.New(answerGen, s.cfg)
	ingestor := ingest.New(st, blobStore, embedder, s.cfg)

	queryHandler := api.NewQueryHandler(retriever, reranker, crossref, ag, s.cfg)
	ingestHandler, err := api.NewIngestHandler(ingestor, st, s.cfg.UploadDir)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    uploadBodyLimit,
	})
	s.app = app

	app.Use(middleware.PlugStatic("/files"))
	app.Static("/files", blobStore.Dir())

	check := app.Group("/check")
	check.Get("/healthy", api.NewCheckHandler().HandleHealthy)

	apiv1 := app.Group("/api/v1")
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Post("/ingest", ingestHandler.HandleIngest)
	apiv1.Get("/runs/:id", ingestHandler.HandleRun)

	s.logger.Info("server listening", "addr", s.cfg.ServerAddr)
	return app.Listen(s.cfg.ServerAddr)
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("server shutdown", "err", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", "err", err)
		}
	}
	s.logger.Info("server stopped")
}

package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"docrag/blob"
	"docrag/config"
	"docrag/ingest"
	"docrag/loader/internal"
	"docrag/loader/service"
	"docrag/model"
	"docrag/store"

	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := config.Load()
	if err := internal.CreateDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		log.Fatal("error creating loader directories: ", err)
	}

	ctx := context.Background()
	st, err := store.NewPostgresStore(ctx, cfg.PostgresDSN(), cfg.EmbeddingDim)
	if err != nil {
		log.Fatal("error connecting to Postgres database: ", err)
	}
	if err := st.Init(ctx); err != nil {
		log.Fatal("error creating tables: ", err)
	}

	blobStore, err := blob.NewLocalStore(cfg.BlobDir, "/files")
	if err != nil {
		log.Fatal("error creating blob store: ", err)
	}

	embedder := model.NewEmbedder(cfg.EmbedURL, cfg.EmbedModel, cfg.EmbeddingDim)
	ingestor := ingest.New(st, blobStore, embedder, &cfg)

	service.New(ingestor, &cfg).Run()

	slog.Info("closing database connection pool")
	if err := st.Close(); err != nil {
		slog.Error("closing pool", "err", err)
	}
}

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"docrag/config"
	"docrag/ingest"
	"docrag/loader/internal"
	"docrag/types"

	"github.com/google/uuid"
)

const shutdownWait = 5 * time.Second

type ingestRunner interface {
	StartRun(ctx context.Context) (*types.IngestionRun, error)
	Run(ctx context.Context, runID uuid.UUID, path, externalID string) error
}

// Service drives the folder-watching pipeline: one goroutine watches the
// source directory, another ingests each stable file and files it away into
// the archive or bad directory.
type Service struct {
	logger   *slog.Logger
	ingestor ingestRunner
	watcher  *internal.Watcher
	cfg      *config.Config
}

func New(ingestor *ingest.Ingestor, cfg *config.Config) *Service {
	return &Service{
		logger:   slog.Default(),
		ingestor: ingestor,
		watcher:  internal.NewWatcher(cfg.SourceDir, cfg.MonitoringTime),
		cfg:      cfg,
	}
}

// Run blocks until an interrupt or termination signal, then shuts the
// pipeline down, waiting up to shutdownWait for in-flight work.
func (s *Service) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	<-sigch
	s.logger.Info("received shutdown signal, shutting down gracefully")

	cancel()
	signal.Stop(sigch)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownWait)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all goroutines stopped")
	case <-shutdownCtx.Done():
		s.logger.Warn("timeout waiting for goroutines, forcing shutdown")
	}
	s.logger.Info("loader service stopped")
}

func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-fileChan:
			if !ok {
				return
			}
			s.processOne(ctx, path)
		}
	}
}

// processOne ingests a single file and moves it to the archive directory on
// success or the bad directory on failure. The watcher state is cleared
// either way so a path reappearing in the source dir is treated as new.
func (s *Service) processOne(ctx context.Context, path string) {
	defer s.watcher.Forget(path)

	run, err := s.ingestor.StartRun(ctx)
	if err != nil {
		s.logger.Error("loader: starting run", "file", path, "err", err)
		return
	}

	ingestErr := s.ingestor.Run(ctx, run.ID, path, filepath.Base(path))
	dest := s.cfg.ArchiveDir
	if ingestErr != nil {
		s.logger.Error("loader: ingest failed", "file", path, "run", run.ID, "err", ingestErr)
		dest = s.cfg.BadDir
	}

	moved, err := internal.MoveTo(dest, path)
	if err != nil {
		s.logger.Error("loader: moving file", "file", path, "err", err)
		return
	}
	s.logger.Info("loader: file processed", "file", path, "run", run.ID, "moved_to", moved, "ok", ingestErr == nil)
}

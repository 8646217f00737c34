package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docrag/app/server"
	"docrag/config"

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
	s := server.New(&cfg)

	go func() {
		if err := s.Run(); err != nil {
			slog.Error("server exited", "err", err)
			os.Exit(1)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	slog.Info("received shutdown signal, shutting down server")
	s.Stop()
}

// Standalone GramVault server: in-memory sessions, in-process pipeline
// workers, archives on local disk.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gramvault/gramvault/internal/archive"
	"github.com/gramvault/gramvault/internal/auth"
	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/instagram"
	"github.com/gramvault/gramvault/internal/pipeline"
	"github.com/gramvault/gramvault/internal/server"
	"github.com/gramvault/gramvault/internal/signing"
	"github.com/gramvault/gramvault/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	builder, err := archive.NewBuilder(cfg.WorkDir)
	if err != nil {
		log.Fatalf("init archive builder: %v", err)
	}
	sessions := store.NewMemoryStore(cfg.SessionTTL)
	runner := &pipeline.Runner{
		Store:    sessions,
		Provider: instagram.NewClient(),
		Archiver: builder,
	}
	processor := pipeline.NewProcessor(runner, cfg.Workers)
	gate := auth.NewGate(cfg.Password)
	signer := signing.NewSigner(cfg.SigningSecret)
	srv := server.New(cfg, sessions, processor, gate, signer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Printf("GramVault listening on %s", cfg.Address)
	if err := srv.Serve(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

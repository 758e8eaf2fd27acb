package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gramvault/gramvault/internal/archive"
	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/database"
	"github.com/gramvault/gramvault/internal/instagram"
	"github.com/gramvault/gramvault/internal/pipeline"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/s3storage"
	"github.com/gramvault/gramvault/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	repo := repository.NewSessionRepository(pool, cfg.SessionTTL)

	objects, err := s3storage.New(cfg)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	builder, err := archive.NewBuilder(cfg.WorkDir)
	if err != nil {
		log.Fatalf("init archive builder: %v", err)
	}
	runner := &pipeline.Runner{
		Store:    repo,
		Provider: instagram.NewClient(),
		Archiver: builder,
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(repo, runner, objects)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

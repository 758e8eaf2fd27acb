// Package api exposes the HTTP surface for the queue-driven deployment:
// sessions live in Postgres, pipeline work is dispatched over asynq, and
// finished archives are served through one-shot presigned object URLs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gramvault/gramvault/internal/auth"
	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/s3storage"
	"github.com/gramvault/gramvault/internal/store"
)

// Server exposes the distributed HTTP endpoints.
type Server struct {
	cfg     *config.Config
	repo    *repository.SessionRepository
	objects *s3storage.Storage
	queue   *asynq.Client
	gate    *auth.Gate
	server  *http.Server
	once    sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, repo *repository.SessionRepository, objects *s3storage.Storage, queueClient *asynq.Client, gate *auth.Gate) *Server {
	return &Server{
		cfg:     cfg,
		repo:    repo,
		objects: objects,
		queue:   queueClient,
		gate:    gate,
	}
}

// Run starts the HTTP server and the expiry sweeper, blocking until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		go store.RunSweeper(ctx, s.repo, s.cfg.SweepInterval)
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Routes(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes returns the handler tree. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/auth/validate", s.handleAuthValidate)
	mux.HandleFunc("/download/create", s.gate.Middleware(s.handleCreate))
	mux.HandleFunc("/download/status/", s.gate.Middleware(s.handleStatus))
	mux.HandleFunc("/download/file/", s.gate.Middleware(s.handleFile))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		http.Error(w, "password is required", http.StatusBadRequest)
		return
	}
	if !s.gate.ValidatePassword(body.Password) {
		http.Error(w, "invalid access code", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "token": s.gate.Token()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req model.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.Normalize(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session, err := s.repo.Create(r.Context(), req)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	payload := queue.ArchivePayload{SessionID: session.ID}
	if err := queue.EnqueueArchive(r.Context(), s.queue, payload); err != nil {
		log.Printf("api: enqueue session %s: %v", session.ID, err)
		http.Error(w, "failed to queue job", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/status/")
	if id == "" {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	session, ok := s.repo.Get(r.Context(), id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// handleFile hands out a presigned URL for the archive object exactly once:
// the stored key is cleared immediately and the object itself is purged once
// the URL's lifetime has passed.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/file/")
	if id == "" {
		http.Error(w, "download not ready or not found", http.StatusNotFound)
		return
	}
	session, ok := s.repo.Get(r.Context(), id)
	if !ok || session.Status != model.StatusCompleted || session.ArchivePath == "" {
		http.Error(w, "download not ready or not found", http.StatusNotFound)
		return
	}
	objectKey := session.ArchivePath
	url, err := s.objects.PresignArchiveURL(r.Context(), objectKey, s.cfg.SignedURLTTL)
	if err != nil {
		log.Printf("api: presign archive for %s: %v", id, err)
		http.Error(w, "failed to generate url", http.StatusInternalServerError)
		return
	}
	empty := ""
	s.repo.Update(r.Context(), id, store.Patch{ArchivePath: &empty})
	if err := queue.EnqueuePurge(r.Context(), s.queue, queue.PurgePayload{ObjectKey: objectKey}, s.cfg.SignedURLTTL); err != nil {
		log.Printf("api: schedule purge for %s: %v", id, err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

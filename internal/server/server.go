// Package server hosts the standalone HTTP surface: password gate, session
// creation, status polling, and one-shot archive retrieval against the
// in-memory store and in-process pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gramvault/gramvault/internal/auth"
	"github.com/gramvault/gramvault/internal/config"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/pipeline"
	"github.com/gramvault/gramvault/internal/signing"
	"github.com/gramvault/gramvault/internal/store"
)

// Server stitches together configuration, the session store, the background
// pipeline, and the auth helpers.
type Server struct {
	cfg       *config.Config
	store     store.Store
	processor *pipeline.Processor
	gate      *auth.Gate
	signer    *signing.Signer
	once      sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, st store.Store, processor *pipeline.Processor, gate *auth.Gate, signer *signing.Signer) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		processor: processor,
		gate:      gate,
		signer:    signer,
	}
}

// Serve launches the HTTP server, the pipeline workers, and the expiry
// sweeper, blocking until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		s.processor.Start(ctx)
		go store.RunSweeper(ctx, s.store, s.cfg.SweepInterval)
	})
	httpServer := &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	mux.HandleFunc("/download/signed-url/", s.gate.Middleware(s.handleSignedURL))
	mux.HandleFunc("/download/file/", s.handleFile)
	return corsMiddleware(loggingMiddleware(mux))
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
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   s.gate.Token(),
	})
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
	session, err := s.store.Create(r.Context(), req)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	// Fire and forget: the creation response never waits on the pipeline.
	s.processor.Submit(r.Context(), pipeline.Job{SessionID: session.ID})
	respondJSON(w, http.StatusOK, map[string]string{"sessionId": session.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/status/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	session, ok := s.store.Get(r.Context(), id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/signed-url/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.store.Get(r.Context(), id); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	q, expiry := s.signer.SignedQuery(id, s.cfg.SignedURLTTL)
	respondJSON(w, http.StatusOK, map[string]any{
		"url":     "/download/file/" + id + "?" + q.Encode(),
		"expires": expiry,
	})
}

// handleFile streams the archive exactly once. The file is removed only
// after a fully consumed stream so an interrupted transfer does not destroy
// the sole copy; the expiry sweep reaps anything left behind.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/download/file/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if !s.authorizedForFile(r, id) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	session, ok := s.store.Get(r.Context(), id)
	if !ok || session.Status != model.StatusCompleted || session.ArchivePath == "" {
		http.Error(w, "download not ready or not found", http.StatusNotFound)
		return
	}
	f, err := os.Open(session.ArchivePath)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "file unavailable", http.StatusInternalServerError)
		return
	}
	username := "profile"
	if session.ProfileData != nil && session.ProfileData.Username != "" {
		username = session.ProfileData.Username
	}
	filename := fmt.Sprintf("instagram_%s_%d.zip", username, time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := io.Copy(w, f); err != nil {
		// Client went away mid-transfer; keep the file so a fresh request
		// can still fetch it.
		log.Printf("server: stream archive for %s: %v", id, err)
		return
	}
	if err := os.Remove(session.ArchivePath); err != nil {
		log.Printf("server: cleanup archive for %s: %v", id, err)
	}
	empty := ""
	s.store.Update(r.Context(), id, store.Patch{ArchivePath: &empty})
}

func (s *Server) authorizedForFile(r *http.Request, id string) bool {
	if s.gate.Authorized(r) {
		return true
	}
	q := r.URL.Query()
	expires, signature := q.Get("expires"), q.Get("signature")
	if expires == "" || signature == "" {
		return false
	}
	return s.signer.Validate(id, expires, signature)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

package store

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gramvault/gramvault/internal/model"
)

// MemoryStore keeps sessions in a mutex-guarded map. It is the standalone
// deployment's only state; nothing survives a process restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs a MemoryStore whose sessions expire ttl after
// creation.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create allocates a fresh pending session. The request must already be
// normalized; only id generation can fail here.
func (m *MemoryStore) Create(_ context.Context, req model.CreateRequest) (*model.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	session := &model.Session{
		ID:          id.String(),
		SourceURL:   req.SourceURL,
		Quality:     req.Quality,
		ContentType: req.ContentType,
		Status:      model.StatusPending,
		Progress:    0,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	out := *session
	return &out, nil
}

// Get returns a copy of the session, or false if the id is unknown.
func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	out := *session
	return &out, true
}

// Update merges patch into the session. An unknown id is a silent no-op so a
// pipeline run racing the expiry sweep cannot resurrect a swept session.
func (m *MemoryStore) Update(_ context.Context, id string, patch Patch) (*model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if patch.Status != nil {
		session.Status = *patch.Status
	}
	if patch.Progress != nil {
		session.Progress = *patch.Progress
	}
	if patch.ProfileData != nil {
		session.ProfileData = patch.ProfileData
	}
	if patch.MediaStats != nil {
		session.MediaStats = patch.MediaStats
	}
	if patch.ArchivePath != nil {
		session.ArchivePath = *patch.ArchivePath
	}
	out := *session
	return &out, true
}

// SweepExpired removes every session past its deadline and reaps any archive
// file it still owns. Returns the number of sessions removed.
func (m *MemoryStore) SweepExpired(_ context.Context) int {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, session := range m.sessions {
		if !session.Expired(now) {
			continue
		}
		if session.ArchivePath != "" {
			if err := os.Remove(session.ArchivePath); err != nil && !os.IsNotExist(err) {
				log.Printf("sweep: remove archive for %s: %v", id, err)
			}
		}
		delete(m.sessions, id)
		removed++
	}
	return removed
}

// RunSweeper invokes SweepExpired on every tick until the context is
// cancelled. Meant to run in its own goroutine for the process lifetime.
func RunSweeper(ctx context.Context, s Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepExpired(ctx); n > 0 {
				log.Printf("sweep: removed %d expired sessions", n)
			}
		}
	}
}

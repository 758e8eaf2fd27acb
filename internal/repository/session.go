// Package repository is the Postgres-backed session store used by the
// queue-driven deployment. It satisfies the same store contract as the
// in-memory implementation so the pipeline cannot tell them apart.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/store"
)

// SessionRepository wraps all SQL touching the download_sessions table.
type SessionRepository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewSessionRepository constructs a repository whose sessions expire ttl
// after creation.
func NewSessionRepository(pool *pgxpool.Pool, ttl time.Duration) *SessionRepository {
	return &SessionRepository{pool: pool, ttl: ttl}
}

var _ store.Store = (*SessionRepository)(nil)

// Create inserts a pending session row.
func (r *SessionRepository) Create(ctx context.Context, req model.CreateRequest) (*model.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session := &model.Session{
		ID:          id.String(),
		SourceURL:   req.SourceURL,
		Quality:     req.Quality,
		ContentType: req.ContentType,
		Status:      model.StatusPending,
		Progress:    0,
		CreatedAt:   now,
		ExpiresAt:   now.Add(r.ttl),
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO download_sessions
			(id, source_url, quality, content_type, status, progress, profile_data, media_stats, archive_path, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,NULL,'',$7,$8)
	`, session.ID, session.SourceURL, session.Quality, session.ContentType, session.Status, session.Progress, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// Get returns the session, or false when the id is unknown. Query failures
// are logged and reported as absence; callers treat both the same way.
func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, bool) {
	var (
		session     model.Session
		profileData []byte
		mediaStats  []byte
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, source_url, quality, content_type, status, progress, profile_data, media_stats, archive_path, created_at, expires_at
		FROM download_sessions WHERE id=$1
	`, id)
	err := row.Scan(&session.ID, &session.SourceURL, &session.Quality, &session.ContentType,
		&session.Status, &session.Progress, &profileData, &mediaStats,
		&session.ArchivePath, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("repository: select session %s: %v", id, err)
		}
		return nil, false
	}
	if len(profileData) > 0 {
		session.ProfileData = &model.ProfileData{}
		if err := json.Unmarshal(profileData, session.ProfileData); err != nil {
			log.Printf("repository: decode profile data for %s: %v", id, err)
			session.ProfileData = nil
		}
	}
	if len(mediaStats) > 0 {
		session.MediaStats = &model.MediaStats{}
		if err := json.Unmarshal(mediaStats, session.MediaStats); err != nil {
			log.Printf("repository: decode media stats for %s: %v", id, err)
			session.MediaStats = nil
		}
	}
	return &session, true
}

// Update merges the patch into the row. Absent rows are a silent no-op.
func (r *SessionRepository) Update(ctx context.Context, id string, patch store.Patch) (*model.Session, bool) {
	profileData, err := marshalIfSet(patch.ProfileData != nil, patch.ProfileData)
	if err != nil {
		log.Printf("repository: encode profile data for %s: %v", id, err)
		return nil, false
	}
	mediaStats, err := marshalIfSet(patch.MediaStats != nil, patch.MediaStats)
	if err != nil {
		log.Printf("repository: encode media stats for %s: %v", id, err)
		return nil, false
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE download_sessions
		SET status = COALESCE($1, status),
			progress = COALESCE($2, progress),
			profile_data = COALESCE($3, profile_data),
			media_stats = COALESCE($4, media_stats),
			archive_path = COALESCE($5, archive_path)
		WHERE id=$6
	`, patch.Status, patch.Progress, profileData, mediaStats, patch.ArchivePath, id)
	if err != nil {
		log.Printf("repository: update session %s: %v", id, err)
		return nil, false
	}
	if tag.RowsAffected() == 0 {
		return nil, false
	}
	return r.Get(ctx, id)
}

// SweepExpired deletes every session past its deadline.
func (r *SessionRepository) SweepExpired(ctx context.Context) int {
	tag, err := r.pool.Exec(ctx, `DELETE FROM download_sessions WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		log.Printf("repository: sweep expired: %v", err)
		return 0
	}
	return int(tag.RowsAffected())
}

func marshalIfSet(set bool, v any) ([]byte, error) {
	if !set {
		return nil, nil
	}
	return json.Marshal(v)
}

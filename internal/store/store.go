// Package store defines the session store contract and its in-memory
// implementation. The pipeline only ever talks to the Store interface so a
// persistent backend can be swapped in without touching processing code.
package store

import (
	"context"

	"github.com/gramvault/gramvault/internal/model"
)

// Patch is a partial session update. Nil fields are left untouched; the merge
// is all-or-nothing per call.
type Patch struct {
	Status      *model.SessionStatus
	Progress    *int
	ProfileData *model.ProfileData
	MediaStats  *model.MediaStats
	ArchivePath *string
}

// Store persists download sessions. Update and Get report absence via the
// bool return rather than an error: a swept session is an expected outcome,
// not a failure.
type Store interface {
	Create(ctx context.Context, req model.CreateRequest) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, bool)
	Update(ctx context.Context, id string, patch Patch) (*model.Session, bool)
	SweepExpired(ctx context.Context) int
}

// StatusPatch builds a Patch that moves a session to status with progress.
func StatusPatch(status model.SessionStatus, progress int) Patch {
	return Patch{Status: &status, Progress: &progress}
}

// ProgressPatch builds a Patch that only advances progress.
func ProgressPatch(progress int) Patch {
	return Patch{Progress: &progress}
}

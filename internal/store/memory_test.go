package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gramvault/gramvault/internal/model"
)

func newRequest() model.CreateRequest {
	req := model.CreateRequest{SourceURL: "https://instagram.com/alice"}
	if err := req.Normalize(); err != nil {
		panic(err)
	}
	return req
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(24 * time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := m.Create(ctx, newRequest())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if session.Status != model.StatusPending {
			t.Fatalf("status = %q, want pending", session.Status)
		}
		if session.Progress != 0 {
			t.Fatalf("progress = %d, want 0", session.Progress)
		}
		if seen[session.ID] {
			t.Fatalf("duplicate id %s", session.ID)
		}
		seen[session.ID] = true
		if got := session.ExpiresAt.Sub(session.CreatedAt); got != 24*time.Hour {
			t.Fatalf("expiry window = %s, want 24h", got)
		}
	}
}

func TestGetAbsent(t *testing.T) {
	m := NewMemoryStore(time.Hour)
	if _, ok := m.Get(context.Background(), "nope"); ok {
		t.Fatalf("expected absent session")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Hour)
	session, err := m.Create(ctx, newRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok := m.Get(ctx, session.ID)
	if !ok {
		t.Fatalf("session missing")
	}
	got.Status = model.StatusFailed
	got.Progress = 99

	reread, _ := m.Get(ctx, session.ID)
	if reread.Status != model.StatusPending || reread.Progress != 0 {
		t.Fatalf("mutating a returned session leaked into the store: %q/%d", reread.Status, reread.Progress)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Hour)
	session, err := m.Create(ctx, newRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, ok := m.Update(ctx, session.ID, StatusPatch(model.StatusProcessing, 10))
	if !ok {
		t.Fatalf("update reported absent session")
	}
	if updated.Status != model.StatusProcessing || updated.Progress != 10 {
		t.Fatalf("got %q/%d, want processing/10", updated.Status, updated.Progress)
	}

	profile := &model.ProfileData{Username: "alice"}
	updated, _ = m.Update(ctx, session.ID, Patch{ProfileData: profile})
	if updated.ProfileData == nil || updated.ProfileData.Username != "alice" {
		t.Fatalf("profile data not merged")
	}
	// Untouched fields survive the partial update.
	if updated.Status != model.StatusProcessing || updated.Progress != 10 {
		t.Fatalf("partial update clobbered other fields: %q/%d", updated.Status, updated.Progress)
	}
}

func TestUpdateAbsentIsNoOp(t *testing.T) {
	m := NewMemoryStore(time.Hour)
	if _, ok := m.Update(context.Background(), "swept", StatusPatch(model.StatusCompleted, 100)); ok {
		t.Fatalf("expected no-op for unknown id")
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	expired, err := m.Create(ctx, newRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	alsoExpired, err := m.Create(ctx, newRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Leave a completed archive behind for the expired session; the sweep
	// must reap the file too.
	archivePath := filepath.Join(t.TempDir(), "expired.zip")
	if err := os.WriteFile(archivePath, []byte("zip"), 0o600); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	m.Update(ctx, expired.ID, Patch{ArchivePath: &archivePath})

	m.now = func() time.Time { return now.Add(2 * time.Hour) }
	stillFresh, err := m.Create(ctx, newRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if removed := m.SweepExpired(ctx); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if _, ok := m.Get(ctx, expired.ID); ok {
		t.Fatalf("expired session still visible")
	}
	if _, ok := m.Get(ctx, alsoExpired.ID); ok {
		t.Fatalf("second expired session still visible")
	}
	if _, ok := m.Get(ctx, stillFresh.ID); !ok {
		t.Fatalf("unexpired session was swept")
	}
	if _, err := os.Stat(archivePath); !os.IsNotExist(err) {
		t.Fatalf("expired archive file not removed")
	}
}

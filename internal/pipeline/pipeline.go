// Package pipeline turns a pending session into a finished archive through a
// fixed sequence of stages, updating the session record at each boundary.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gramvault/gramvault/internal/instagram"
	"github.com/gramvault/gramvault/internal/model"
	"github.com/gramvault/gramvault/internal/store"
)

// Progress checkpoints, one per stage boundary. Strictly increasing within a
// run; a failure resets progress to zero.
const (
	progressStarted    = 10
	progressProfile    = 25
	progressListed     = 50
	progressDownloaded = 80
	progressDone       = 100
)

// Archiver is the slice of the archive builder the pipeline needs. Tests
// substitute a fake.
type Archiver interface {
	WorkDir() string
	TempDir() (string, error)
	Build(sourceDir, outputPath string) error
	Cleanup(dir string)
}

// Runner executes one session's stages against the injected collaborators.
// It is shared by the in-process worker pool and the queue-driven worker.
type Runner struct {
	Store    store.Store
	Provider instagram.Provider
	Archiver Archiver
}

// Run drives the session through every stage. The returned error reports why
// the session failed; the session record itself is already marked failed by
// the time Run returns it. Runs are never retried.
func (r *Runner) Run(ctx context.Context, sessionID string) error {
	session, ok := r.Store.Get(ctx, sessionID)
	if !ok {
		// Swept before the run started; nothing to do.
		return nil
	}
	if _, ok := r.Store.Update(ctx, sessionID, store.StatusPatch(model.StatusProcessing, progressStarted)); !ok {
		return nil
	}

	err := r.run(ctx, session)
	if err != nil {
		log.Printf("pipeline: session %s failed: %v", sessionID, err)
		r.Store.Update(ctx, sessionID, store.StatusPatch(model.StatusFailed, 0))
	}
	return err
}

func (r *Runner) run(ctx context.Context, session *model.Session) error {
	profile, err := r.Provider.FetchProfile(ctx, session.SourceURL)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	r.Store.Update(ctx, session.ID, store.Patch{
		ProfileData: profile,
		Progress:    intPtr(progressProfile),
	})

	items, err := r.Provider.ListMedia(ctx, session.SourceURL, session.ContentType)
	if err != nil {
		return fmt.Errorf("list media: %w", err)
	}
	stats := countStats(items)
	r.Store.Update(ctx, session.ID, store.Patch{
		MediaStats: &stats,
		Progress:   intPtr(progressListed),
	})

	tempDir, err := r.Archiver.TempDir()
	if err != nil {
		return fmt.Errorf("allocate temp dir: %w", err)
	}
	defer r.Archiver.Cleanup(tempDir)

	if _, err := r.Provider.DownloadMedia(ctx, items, session.Quality, tempDir); err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	r.Store.Update(ctx, session.ID, store.ProgressPatch(progressDownloaded))

	archivePath := filepath.Join(r.Archiver.WorkDir(), session.ID+".zip")
	if err := r.Archiver.Build(tempDir, archivePath); err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	completed := model.StatusCompleted
	if _, ok := r.Store.Update(ctx, session.ID, store.Patch{
		Status:      &completed,
		Progress:    intPtr(progressDone),
		ArchivePath: &archivePath,
	}); !ok {
		// Session was swept mid-run; the archive has no owner left.
		r.Archiver.Cleanup(archivePath)
	}
	return nil
}

// countStats tallies items by kind after flattening. Total counts every item
// regardless of whether its later download succeeds.
func countStats(items []instagram.MediaItem) model.MediaStats {
	stats := model.MediaStats{Total: len(items)}
	for _, item := range items {
		switch item.Kind {
		case instagram.KindImage:
			stats.Images++
		case instagram.KindVideo:
			stats.Videos++
		case instagram.KindStory:
			stats.Stories++
		}
	}
	return stats
}

func intPtr(v int) *int { return &v }

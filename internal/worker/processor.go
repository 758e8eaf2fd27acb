package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"github.com/gramvault/gramvault/internal/pipeline"
	"github.com/gramvault/gramvault/internal/queue"
	"github.com/gramvault/gramvault/internal/repository"
	"github.com/gramvault/gramvault/internal/s3storage"
	"github.com/gramvault/gramvault/internal/store"
)

// Processor is plugged into the asynq worker loop. It runs the same pipeline
// as the standalone server, then moves the finished archive into object
// storage so any API instance can serve it.
type Processor struct {
	repo    *repository.SessionRepository
	runner  *pipeline.Runner
	objects *s3storage.Storage
}

// NewProcessor constructs a worker processor.
func NewProcessor(repo *repository.SessionRepository, runner *pipeline.Runner, objects *s3storage.Storage) *Processor {
	return &Processor{repo: repo, runner: runner, objects: objects}
}

// Handler registers the archive and purge job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ArchiveSessionTask, p.handleArchive)
	mux.HandleFunc(queue.PurgeArchiveTask, p.handlePurge)
	return mux
}

func (p *Processor) handleArchive(ctx context.Context, task *asynq.Task) error {
	var payload queue.ArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := p.runner.Run(ctx, payload.SessionID); err != nil {
		// The session is already marked failed; the task is not retried.
		return err
	}
	session, ok := p.repo.Get(ctx, payload.SessionID)
	if !ok || session.ArchivePath == "" {
		return nil
	}
	objectKey := fmt.Sprintf("archives/%s.zip", session.ID)
	if err := p.objects.UploadArchive(ctx, objectKey, session.ArchivePath); err != nil {
		log.Printf("worker: upload archive for %s: %v", session.ID, err)
		return err
	}
	if err := os.Remove(session.ArchivePath); err != nil {
		log.Printf("worker: remove local archive for %s: %v", session.ID, err)
	}
	p.repo.Update(ctx, session.ID, store.Patch{ArchivePath: &objectKey})
	log.Printf("worker: session %s archived as %s", session.ID, objectKey)
	return nil
}

func (p *Processor) handlePurge(ctx context.Context, task *asynq.Task) error {
	var payload queue.PurgePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := p.objects.RemoveArchive(ctx, payload.ObjectKey); err != nil {
		log.Printf("worker: purge %s: %v", payload.ObjectKey, err)
		return err
	}
	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ArchiveSessionTask is scheduled each time a download session is created.
	ArchiveSessionTask = "session:archive"
	// PurgeArchiveTask removes a served archive object once its signed URL
	// has expired.
	PurgeArchiveTask = "archive:purge"
)

// ArchivePayload tells the worker which session to process.
type ArchivePayload struct {
	SessionID string `json:"session_id"`
}

// PurgePayload names the object to delete from archive storage.
type PurgePayload struct {
	ObjectKey string `json:"object_key"`
}

// EnqueueArchive enqueues a session archiving job. Failed runs are terminal
// for the session, so the task itself is never retried.
func EnqueueArchive(ctx context.Context, client *asynq.Client, payload ArchivePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ArchiveSessionTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		return fmt.Errorf("enqueue archive task: %w", err)
	}
	return nil
}

// EnqueuePurge schedules removal of an archive object after delay.
func EnqueuePurge(ctx context.Context, client *asynq.Client, payload PurgePayload, delay time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(PurgeArchiveTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.ProcessIn(delay)); err != nil {
		return fmt.Errorf("enqueue purge task: %w", err)
	}
	return nil
}

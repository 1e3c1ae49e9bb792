package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessDenied is the task type for persisting a rejected write to the audit log.
	TaskAccessDenied = "audit:access_denied"
)

// AccessDeniedPayload describes one rejected write.
type AccessDeniedPayload struct {
	IdentityID int64     `json:"identity_id"`
	Entity     string    `json:"entity"`
	Operation  string    `json:"operation"`
	Required   string    `json:"required"`
	At         time.Time `json:"at"`
}

// NewAccessDeniedTask constructs an Asynq task.
func NewAccessDeniedTask(payload AccessDeniedPayload) (*asynq.Task, error) {
	if payload.Entity == "" {
		return nil, fmt.Errorf("jobs: access denied payload without entity")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessDenied, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// ParseAccessDeniedPayload decodes the payload of a TaskAccessDenied task.
func ParseAccessDeniedPayload(t *asynq.Task) (AccessDeniedPayload, error) {
	var payload AccessDeniedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("jobs: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

// enqueuer is the part of *asynq.Client the Client uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

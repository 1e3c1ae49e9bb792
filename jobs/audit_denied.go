package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/rowguard/internal/jobs"
	"github.com/odyssey-erp/rowguard/internal/shared"
)

const accessDeniedJobName = "audit_access_denied"

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AccessDeniedJob writes TaskAccessDenied tasks into the audit log.
type AccessDeniedJob struct {
	audit   AuditRecorder
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAccessDeniedJob constructs the job handler. metrics may be nil.
func NewAccessDeniedJob(audit AuditRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *AccessDeniedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessDeniedJob{audit: audit, logger: logger, metrics: metrics}
}

// Handle processes a TaskAccessDenied task.
func (j *AccessDeniedJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(accessDeniedJobName)
	payload, err := ParseAccessDeniedPayload(t)
	if err != nil {
		j.logger.Warn("jobs: drop malformed access denied task", slog.Any("error", err))
		return tracker.End(err)
	}
	err = j.audit.Record(ctx, shared.AuditLog{
		ActorID: payload.IdentityID,
		Action:  shared.AuditActionAccessDenied,
		Entity:  payload.Entity,
		Meta: map[string]any{
			"operation": payload.Operation,
			"required":  payload.Required,
		},
		At: payload.At,
	})
	if err != nil {
		j.logger.Error("jobs: record access denied", slog.String("entity", payload.Entity), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAudited(payload.Entity)
	return tracker.End(nil)
}

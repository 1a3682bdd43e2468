package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerlens/ledgerlens/internal/identity"
	jobmetrics "github.com/ledgerlens/ledgerlens/internal/jobs"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeIdentityCleanup removes an identity whose inline compensation
	// failed during member creation.
	TaskTypeIdentityCleanup = "identity:cleanup"
	// TaskTypeAuditSweep prunes audit entries past the retention window.
	TaskTypeAuditSweep = "audit:sweep"
)

// IdentityCleanupPayload names the identity left behind by a failed rollback.
type IdentityCleanupPayload struct {
	Principal string `json:"principal"`
}

// NewIdentityCleanupTask constructs an Asynq task.
func NewIdentityCleanupTask(payload IdentityCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdentityCleanup, data, asynq.MaxRetry(10)), nil
}

// NewIdentityCleanupHandler processes TaskTypeIdentityCleanup tasks.
func NewIdentityCleanupHandler(provider identity.Provider, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeIdentityCleanup)
		var payload IdentityCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.Principal == "" {
			return tracker.End(asynq.SkipRetry)
		}
		err := provider.DeleteIdentity(ctx, tenant.Principal(payload.Principal))
		if errors.Is(err, identity.ErrNotFound) {
			// already removed, nothing to compensate
			return tracker.End(nil)
		}
		if err != nil {
			logger.Warn("identity cleanup",
				slog.String("principal", payload.Principal),
				slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("identity cleanup done", slog.String("principal", payload.Principal))
		return tracker.End(nil)
	}
}

// AuditSweepPayload configures one retention sweep.
type AuditSweepPayload struct {
	RetainDays int `json:"retain_days"`
}

// NewAuditSweepTask constructs the periodic retention sweep task.
func NewAuditSweepTask(retainDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditSweepPayload{RetainDays: retainDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditSweep, data), nil
}

// AuditPruner deletes audit entries older than the cutoff.
type AuditPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// NewAuditSweepHandler processes TaskTypeAuditSweep tasks.
func NewAuditSweepHandler(pruner AuditPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeAuditSweep)
		var payload AuditSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetainDays <= 0 {
			payload.RetainDays = 365
		}
		cutoff := time.Now().AddDate(0, 0, -payload.RetainDays)
		removed, err := pruner.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Warn("audit sweep", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("audit sweep done",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
		return tracker.End(nil)
	}
}

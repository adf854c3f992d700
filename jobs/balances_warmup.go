package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/contalibre/contalibre/internal/balances"
	jobmetrics "github.com/contalibre/contalibre/internal/jobs"
)

// BalancesWarmupJob rebuilds the active-account balance cache so the first
// request after the TTL expires does not pay the aggregation cost.
type BalancesWarmupJob struct {
	Balances *balances.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewBalancesWarmupJob wires dependencies for the warmup handler.
func NewBalancesWarmupJob(svc *balances.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalancesWarmupJob {
	return &BalancesWarmupJob{Balances: svc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskBalancesWarmup tasks.
func (j *BalancesWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Balances == nil {
		return errors.New("balances warmup: handler not configured")
	}
	var payload BalancesWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBalancesWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", payload.RunID))
	logger.Info("starting balance cache warmup")
	start := time.Now()

	count, err := j.Balances.Warmup(ctx)
	if err != nil {
		resultErr = err
		logger.Error("warm balance cache", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed balance cache warmup",
		slog.Int("accounts", count),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *BalancesWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBalancesWarmup))
	}
	return slog.Default().With(slog.String("job", TaskBalancesWarmup))
}

func (j *BalancesWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/contalibre/contalibre/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerIntegrityJob scans the ledger for transactions whose line items do
// not balance and for line items referencing accounts that no longer exist.
// Findings are logged and exported as gauges; the scan itself never mutates
// data.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob wires dependencies for the integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type unbalancedFinding struct {
	TransactionID int64
	Debits        string
	Credits       string
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("run_id", payload.RunID))
	logger.Info("starting ledger integrity scan")
	start := time.Now()

	unbalanced, err := j.scanUnbalanced(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan unbalanced transactions", slog.Any("error", err))
		return resultErr
	}
	for _, finding := range unbalanced {
		logger.Warn("unbalanced transaction",
			slog.Int64("transaction_id", finding.TransactionID),
			slog.String("debits", finding.Debits),
			slog.String("credits", finding.Credits))
	}

	orphans, err := j.scanOrphanLines(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan orphan line items", slog.Any("error", err))
		return resultErr
	}
	if orphans > 0 {
		logger.Warn("line items reference missing accounts", slog.Int("count", orphans))
	}

	j.metrics().SetFindings("unbalanced", len(unbalanced))
	j.metrics().SetFindings("orphan_lines", orphans)

	logger.Info("completed ledger integrity scan",
		slog.Int("unbalanced", len(unbalanced)),
		slog.Int("orphan_lines", orphans),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LedgerIntegrityJob) scanUnbalanced(ctx context.Context) ([]unbalancedFinding, error) {
	if j.Pool == nil {
		return nil, errors.New("ledger integrity: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT t.id,
  COALESCE(SUM(CASE WHEN p.tipo = 'DEBE' THEN p.valor ELSE 0 END), 0)::text,
  COALESCE(SUM(CASE WHEN p.tipo = 'HABER' THEN p.valor ELSE 0 END), 0)::text
FROM transacciones t
LEFT JOIN partidas_contables p ON p.transaccion_id = t.id
GROUP BY t.id
HAVING COALESCE(SUM(CASE WHEN p.tipo = 'DEBE' THEN p.valor ELSE 0 END), 0)
    <> COALESCE(SUM(CASE WHEN p.tipo = 'HABER' THEN p.valor ELSE 0 END), 0)
ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []unbalancedFinding
	for rows.Next() {
		var f unbalancedFinding
		if err := rows.Scan(&f.TransactionID, &f.Debits, &f.Credits); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (j *LedgerIntegrityJob) scanOrphanLines(ctx context.Context) (int, error) {
	var count int
	err := j.Pool.QueryRow(ctx, `SELECT COUNT(*)
FROM partidas_contables p
LEFT JOIN cuentas_contables c ON c.id = p.cuenta_id
WHERE c.id IS NULL`).Scan(&count)
	return count, err
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

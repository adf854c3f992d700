// Package jobs holds the background task definitions and the asynq worker
// that runs them.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans the ledger for broken invariants.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskBalancesWarmup precomputes the active-account balance cache.
	TaskBalancesWarmup = "balances:warmup"
)

// LedgerIntegrityPayload parameterises an integrity scan run.
type LedgerIntegrityPayload struct {
	RunID string `json:"runId"`
}

// NewLedgerIntegrityTask constructs an integrity scan task with a fresh
// run identifier.
func NewLedgerIntegrityTask() (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// BalancesWarmupPayload parameterises a cache warmup run.
type BalancesWarmupPayload struct {
	RunID string `json:"runId"`
}

// NewBalancesWarmupTask constructs a warmup task with a fresh run identifier.
func NewBalancesWarmupTask() (*asynq.Task, error) {
	data, err := json.Marshal(BalancesWarmupPayload{RunID: uuid.NewString()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalancesWarmup, data), nil
}

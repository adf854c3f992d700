package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/contalibre/contalibre/internal/balances"
	"github.com/contalibre/contalibre/internal/ledger"
)

func TestIntegrityTaskCarriesRunID(t *testing.T) {
	task, err := NewLedgerIntegrityTask()
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskLedgerIntegrity {
		t.Fatalf("unexpected task type %s", task.Type())
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if _, err := uuid.Parse(payload.RunID); err != nil {
		t.Fatalf("run id is not a uuid: %q", payload.RunID)
	}

	other, err := NewLedgerIntegrityTask()
	if err != nil {
		t.Fatalf("second task: %v", err)
	}
	var otherPayload LedgerIntegrityPayload
	if err := json.Unmarshal(other.Payload(), &otherPayload); err != nil {
		t.Fatalf("decode second payload: %v", err)
	}
	if payload.RunID == otherPayload.RunID {
		t.Fatal("run ids must differ between tasks")
	}
}

type warmupLedgerStub struct{}

func (warmupLedgerStub) ListWithBalances(context.Context, bool) ([]ledger.AccountBalance, error) {
	return []ledger.AccountBalance{
		{Account: ledger.Account{ID: 1, Code: "1105", Name: "Caja", Type: ledger.AccountTypeAsset, Active: true}},
	}, nil
}

func (warmupLedgerStub) GetWithBalance(context.Context, int64) (ledger.AccountBalance, error) {
	return ledger.AccountBalance{}, ledger.ErrAccountNotFound
}

func (warmupLedgerStub) ComputeBalance(context.Context, int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (warmupLedgerStub) ComputeBalanceAsOf(context.Context, int64, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (warmupLedgerStub) AllowsNegative(context.Context, int64) (bool, error) { return false, nil }
func (warmupLedgerStub) IsActive(context.Context, int64) (bool, error)       { return true, nil }

func TestBalancesWarmupHandle(t *testing.T) {
	svc := balances.NewService(slog.Default(), warmupLedgerStub{}, nil, time.Minute)
	job := NewBalancesWarmupJob(svc, slog.Default(), nil)

	task, err := NewBalancesWarmupTask()
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

func TestBalancesWarmupSkipsRetryOnCorruptPayload(t *testing.T) {
	svc := balances.NewService(slog.Default(), warmupLedgerStub{}, nil, time.Minute)
	job := NewBalancesWarmupJob(svc, slog.Default(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskBalancesWarmup, []byte("{broken")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

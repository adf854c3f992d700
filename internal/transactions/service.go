package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contalibre/contalibre/internal/ledger"
)

// AccountPort is the slice of the ledger service the engine depends on. The
// engine never computes balances itself.
type AccountPort interface {
	AssertActive(ctx context.Context, id int64) (ledger.Account, error)
	AllowsNegative(ctx context.Context, id int64) (bool, error)
	ComputeBalance(ctx context.Context, id int64) (decimal.Decimal, error)
}

// PartyPort resolves third-party existence.
type PartyPort interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service is the transaction engine.
type Service struct {
	repo     Repository
	accounts AccountPort
	parties  PartyPort
}

// NewService constructs the engine with its collaborator ports.
func NewService(repo Repository, accounts AccountPort, parties PartyPort) *Service {
	return &Service{repo: repo, accounts: accounts, parties: parties}
}

// CreateTransaction validates and records a balanced entry. Checks run in a
// fixed order so callers always see the first violated rule: party existence,
// line count, per-line value and kind, the balance equation, then per-line
// account state and balance projection. Only then are the header and lines
// inserted atomically.
func (s *Service) CreateTransaction(ctx context.Context, in CreateInput) (Transaction, error) {
	// Header shape (date, description, party id) is checked up front; the
	// ordered rule sequence below starts at the party lookup.
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}

	exists, err := s.parties.Exists(ctx, in.PartyID)
	if err != nil {
		return Transaction{}, err
	}
	if !exists {
		return Transaction{}, fmt.Errorf("%w: id %d", ErrPartyNotFound, in.PartyID)
	}

	if len(in.Lines) < 2 {
		return Transaction{}, ErrTooFewLines
	}

	for i, line := range in.Lines {
		if !line.Value.IsPositive() {
			return Transaction{}, fmt.Errorf("%w: line %d has value %s",
				ErrInvalidLineValue, i+1, line.Value.StringFixed(2))
		}
		kind, err := ParseLineKind(string(line.Kind))
		if err != nil {
			return Transaction{}, err
		}
		// Totals and projections compare against the canonical constants,
		// so the normalized kind must be written back.
		in.Lines[i].Kind = kind
	}

	debits, credits := totals(in.Lines)
	if !debits.Equal(credits) {
		return Transaction{}, &UnbalancedError{Debits: debits, Credits: credits}
	}

	// Each line item is projected against the balance as it stands before
	// this transaction; lines within the entry do not net against each other.
	for _, line := range in.Lines {
		if err := s.checkLine(ctx, line); err != nil {
			return Transaction{}, err
		}
	}

	var created Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertTransaction(ctx, in)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		created = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

func (s *Service) checkLine(ctx context.Context, line LineInput) error {
	account, err := s.accounts.AssertActive(ctx, line.AccountID)
	if err != nil {
		return err
	}
	allowsNegative, err := s.accounts.AllowsNegative(ctx, line.AccountID)
	if err != nil {
		return err
	}
	if allowsNegative {
		return nil
	}
	balance, err := s.accounts.ComputeBalance(ctx, line.AccountID)
	if err != nil {
		return err
	}
	projected := balance
	if line.Kind == KindDebit {
		projected = projected.Add(line.Value)
	} else {
		projected = projected.Sub(line.Value)
	}
	if projected.IsNegative() {
		return &NegativeBalanceError{
			AccountID:   line.AccountID,
			AccountCode: account.Code,
			Projected:   projected,
		}
	}
	return nil
}

func totals(lines []LineInput) (debits, credits decimal.Decimal) {
	for _, line := range lines {
		if line.Kind == KindDebit {
			debits = debits.Add(line.Value)
		} else {
			credits = credits.Add(line.Value)
		}
	}
	return debits, credits
}

// SetStatus parses and applies a new lifecycle status. Status changes never
// touch line items and never re-run balance checks.
func (s *Service) SetStatus(ctx context.Context, id int64, raw string) (Transaction, error) {
	status, err := ParseStatus(raw)
	if err != nil {
		return Transaction{}, err
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// Void marks the transaction ANULADA.
func (s *Service) Void(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.UpdateStatus(ctx, id, StatusVoided)
}

// Reactivate marks the transaction ACTIVA.
func (s *Service) Reactivate(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.UpdateStatus(ctx, id, StatusActive)
}

// MarkPending marks the transaction PENDIENTE.
func (s *Service) MarkPending(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.UpdateStatus(ctx, id, StatusPending)
}

// Get returns the header only.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// GetWithLines returns the header with its line items.
func (s *Service) GetWithLines(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetWithLines(ctx, id)
}

// ListAll returns every transaction, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListAll(ctx)
}

// ListByParty returns the transactions owned by a party.
func (s *Service) ListByParty(ctx context.Context, partyID int64) ([]Transaction, error) {
	return s.repo.ListByParty(ctx, partyID)
}

// ListByDate returns the transactions dated exactly on the given day.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Transaction, error) {
	return s.repo.ListByDate(ctx, date)
}

// ListByDateRange returns transactions dated within [start, end].
func (s *Service) ListByDateRange(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	return s.repo.ListByDateRange(ctx, start, end)
}

// ListByPartyAndDateRange combines the party and range filters.
func (s *Service) ListByPartyAndDateRange(ctx context.Context, partyID int64, start, end time.Time) ([]Transaction, error) {
	return s.repo.ListByPartyAndDateRange(ctx, partyID, start, end)
}

// SearchByDescription runs a case-insensitive substring match.
func (s *Service) SearchByDescription(ctx context.Context, fragment string) ([]Transaction, error) {
	return s.repo.SearchByDescription(ctx, fragment)
}

// ListByStatus returns transactions in the given lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, raw string) ([]Transaction, error) {
	status, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, status)
}

// ListWithFilters AND-combines the optional party, range and description
// filters.
func (s *Service) ListWithFilters(ctx context.Context, f Filters) ([]Transaction, error) {
	return s.repo.ListWithFilters(ctx, f)
}

// CountByParty returns the number of transactions owned by a party.
func (s *Service) CountByParty(ctx context.Context, partyID int64) (int64, error) {
	return s.repo.CountByParty(ctx, partyID)
}

// CountByDateRange returns the number of transactions dated within [start, end].
func (s *Service) CountByDateRange(ctx context.Context, start, end time.Time) (int64, error) {
	return s.repo.CountByDateRange(ctx, start, end)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service coordinates chart of accounts maintenance and balance queries.
type Service struct {
	repo Repository
}

// NewService constructs the ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new account. The code must not collide with any
// existing account, active or not; the comparison is case-sensitive.
func (s *Service) Create(ctx context.Context, in AccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	exists, err := s.repo.ExistsByCode(ctx, in.Code)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, fmt.Errorf("%w: %s", ErrDuplicateCode, in.Code)
	}
	return s.repo.Create(ctx, in)
}

// Update replaces the mutable fields of an account. A code collision with a
// different account is rejected.
func (s *Service) Update(ctx context.Context, id int64, in AccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Account{}, err
	}
	other, err := s.repo.GetByCode(ctx, in.Code)
	switch {
	case err == nil:
		if other.ID != id {
			return Account{}, fmt.Errorf("%w: %s", ErrDuplicateCode, in.Code)
		}
	case !errors.Is(err, ErrAccountNotFound):
		return Account{}, err
	}
	return s.repo.Update(ctx, id, in)
}

// Activate flips the active flag on. No effect on existing line items.
func (s *Service) Activate(ctx context.Context, id int64) (Account, error) {
	return s.repo.SetActive(ctx, id, true)
}

// Deactivate flips the active flag off. Historical line items stay valid.
func (s *Service) Deactivate(ctx context.Context, id int64) (Account, error) {
	return s.repo.SetActive(ctx, id, false)
}

// Delete removes an account. The storage foreign key rejects accounts that
// are referenced by line items; that surfaces as ErrAccountInUse.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Get returns one account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts ordered by code.
func (s *Service) List(ctx context.Context, onlyActive bool) ([]Account, error) {
	return s.repo.List(ctx, onlyActive)
}

// SearchByName returns accounts whose name contains the fragment.
func (s *Service) SearchByName(ctx context.Context, name string, onlyActive bool) ([]Account, error) {
	return s.repo.SearchByName(ctx, name, onlyActive)
}

// ListByType returns active accounts of the given type.
func (s *Service) ListByType(ctx context.Context, t AccountType) ([]Account, error) {
	return s.repo.ListByType(ctx, t)
}

// ComputeBalance returns debits minus credits across every line item that
// references the account. An account with no line items yields exactly zero.
func (s *Service) ComputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, accountID)
}

// ComputeBalanceAsOf restricts the balance to line items whose owning
// transaction is dated on or before the given date.
func (s *Service) ComputeBalanceAsOf(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, error) {
	return s.repo.BalanceAsOf(ctx, accountID, date)
}

// ListWithBalances computes the balance for every qualifying account in one
// batch, ordered by code.
func (s *Service) ListWithBalances(ctx context.Context, onlyActive bool) ([]AccountBalance, error) {
	return s.repo.ListWithBalances(ctx, onlyActive)
}

// GetWithBalance returns one account together with its balance.
func (s *Service) GetWithBalance(ctx context.Context, accountID int64) (AccountBalance, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return AccountBalance{}, err
	}
	balance, err := s.repo.Balance(ctx, accountID)
	if err != nil {
		return AccountBalance{}, err
	}
	return AccountBalance{Account: account, Balance: balance}, nil
}

// IsActive reports whether the account exists and is active. A missing
// account answers false rather than an error.
func (s *Service) IsActive(ctx context.Context, accountID int64) (bool, error) {
	account, err := s.repo.Get(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return account.Active, nil
}

// AllowsNegative reports whether the account tolerates a negative balance.
// A missing account answers false rather than an error.
func (s *Service) AllowsNegative(ctx context.Context, accountID int64) (bool, error) {
	account, err := s.repo.Get(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return account.AllowsNegative, nil
}

// AssertActive is the gate the transaction engine calls before accepting a
// line item: the account must exist and be active.
func (s *Service) AssertActive(ctx context.Context, accountID int64) (Account, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, fmt.Errorf("%w: id %d", ErrAccountNotFound, accountID)
		}
		return Account{}, err
	}
	if !account.Active {
		return Account{}, fmt.Errorf("%w: %s - %s", ErrAccountInactive, account.Code, account.Name)
	}
	return account, nil
}

// Package ledger owns the chart of accounts and is the sole authority for
// balance arithmetic. Other modules never add up line items themselves; they
// ask this package.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories. Wire values follow
// the accounting vocabulary of the API (Spanish).
type AccountType string

const (
	AccountTypeAsset     AccountType = "ACTIVO"
	AccountTypeLiability AccountType = "PASIVO"
	AccountTypeEquity    AccountType = "PATRIMONIO"
	AccountTypeIncome    AccountType = "INGRESO"
	AccountTypeExpense   AccountType = "GASTO"
)

// ParseAccountType normalises raw input to an AccountType.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (valid: ACTIVO, PASIVO, PATRIMONIO, INGRESO, GASTO)", ErrInvalidAccountType, raw)
}

// Account models one ledger account.
type Account struct {
	ID             int64
	Code           string
	Name           string
	Type           AccountType
	AllowsNegative bool
	Active         bool
}

// AccountBalance pairs an account with its computed balance.
type AccountBalance struct {
	Account
	Balance decimal.Decimal
}

var (
	// ErrAccountNotFound indicates the account id does not resolve.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrDuplicateCode indicates a code collision on create or update.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrAccountInactive indicates a deactivated account was referenced.
	ErrAccountInactive = errors.New("ledger: account is inactive")
	// ErrAccountInUse indicates deletion of an account with line items.
	ErrAccountInUse = errors.New("ledger: account has line items")
	// ErrInvalidAccountType indicates an unknown account type value.
	ErrInvalidAccountType = errors.New("ledger: invalid account type")
	// ErrInvalidInput indicates a field constraint violation.
	ErrInvalidInput = errors.New("ledger: invalid input")
)

// AccountInput groups the fields accepted on create and update.
type AccountInput struct {
	Code           string
	Name           string
	Type           AccountType
	AllowsNegative bool
	Active         bool
}

// Validate ensures the input meets the field constraints.
func (in AccountInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: code required", ErrInvalidInput)
	}
	if len(in.Code) > 10 {
		return fmt.Errorf("%w: code exceeds 10 characters", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if len(in.Name) > 100 {
		return fmt.Errorf("%w: name exceeds 100 characters", ErrInvalidInput)
	}
	if _, err := ParseAccountType(string(in.Type)); err != nil {
		return err
	}
	return nil
}

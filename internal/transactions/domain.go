// Package transactions owns the double-entry transaction engine. Every
// transaction carries at least two line items and its debits must equal its
// credits exactly.
package transactions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus enumerates transaction lifecycle states.
type TransactionStatus string

const (
	StatusActive  TransactionStatus = "ACTIVA"
	StatusVoided  TransactionStatus = "ANULADA"
	StatusPending TransactionStatus = "PENDIENTE"
)

// ParseStatus normalises raw input to a TransactionStatus.
func ParseStatus(raw string) (TransactionStatus, error) {
	s := TransactionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusActive, StatusVoided, StatusPending:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q (valid: ACTIVA, ANULADA, PENDIENTE)", ErrInvalidStatus, raw)
}

// LineKind distinguishes debit from credit line items.
type LineKind string

const (
	KindDebit  LineKind = "DEBE"
	KindCredit LineKind = "HABER"
)

// ParseLineKind normalises raw input to a LineKind.
func ParseLineKind(raw string) (LineKind, error) {
	k := LineKind(strings.ToUpper(strings.TrimSpace(raw)))
	switch k {
	case KindDebit, KindCredit:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q (valid: DEBE, HABER)", ErrInvalidLineKind, raw)
}

// Transaction is the header row. Line items are loaded on demand.
type Transaction struct {
	ID          int64
	Date        time.Time
	Description string
	PartyID     int64
	Status      TransactionStatus
	Lines       []LineItem
}

// LineItem is a single debit or credit against an account.
type LineItem struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Kind          LineKind
	Value         decimal.Decimal
}

// Sentinel errors of the engine.
var (
	ErrTransactionNotFound = errors.New("transactions: transaction not found")
	ErrInvalidStatus       = errors.New("transactions: invalid status")
	ErrInvalidLineKind     = errors.New("transactions: invalid line kind")
	ErrPartyNotFound       = errors.New("transactions: party not found")
	ErrTooFewLines         = errors.New("transactions: at least two line items required")
	ErrInvalidLineValue    = errors.New("transactions: line item value must be positive")
	ErrInvalidInput        = errors.New("transactions: invalid input")
)

// UnbalancedError reports a debit/credit mismatch with both totals.
type UnbalancedError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("transactions: unbalanced entry: debits %s, credits %s",
		e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

// NegativeBalanceError reports a line item that would drive an account below
// zero when the account does not allow negative balances.
type NegativeBalanceError struct {
	AccountID   int64
	AccountCode string
	Projected   decimal.Decimal
}

func (e *NegativeBalanceError) Error() string {
	return fmt.Sprintf("transactions: account %s (id %d) would reach balance %s",
		e.AccountCode, e.AccountID, e.Projected.StringFixed(2))
}

// LineInput is a line item as submitted for creation.
type LineInput struct {
	AccountID int64
	Kind      LineKind
	Value     decimal.Decimal
}

// CreateInput groups the fields accepted on transaction creation.
type CreateInput struct {
	Date        time.Time
	Description string
	PartyID     int64
	Lines       []LineInput
}

// Validate checks the header fields. Line item rules and the balance equation
// are enforced by the service so their errors stay distinguishable.
func (in CreateInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description required", ErrInvalidInput)
	}
	if len(in.Description) > 200 {
		return fmt.Errorf("%w: description exceeds 200 characters", ErrInvalidInput)
	}
	if in.PartyID <= 0 {
		return fmt.Errorf("%w: party id required", ErrInvalidInput)
	}
	return nil
}

// Filters narrows ListWithFilters. Nil/zero fields are ignored; set fields
// are AND-combined.
type Filters struct {
	PartyID     *int64
	Start       *time.Time
	End         *time.Time
	Description string
}

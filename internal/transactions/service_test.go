package transactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contalibre/contalibre/internal/ledger"
)

type stubAccount struct {
	account        ledger.Account
	balance        decimal.Decimal
	allowsNegative bool
	active         bool
}

type stubAccounts struct {
	accounts map[int64]*stubAccount
}

func (s *stubAccounts) AssertActive(_ context.Context, id int64) (ledger.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	if !a.active {
		return ledger.Account{}, ledger.ErrAccountInactive
	}
	return a.account, nil
}

func (s *stubAccounts) AllowsNegative(_ context.Context, id int64) (bool, error) {
	a, ok := s.accounts[id]
	if !ok {
		return false, nil
	}
	return a.allowsNegative, nil
}

func (s *stubAccounts) ComputeBalance(_ context.Context, id int64) (decimal.Decimal, error) {
	a, ok := s.accounts[id]
	if !ok {
		return decimal.Zero, nil
	}
	return a.balance, nil
}

type stubParties struct {
	known map[int64]bool
}

func (s *stubParties) Exists(_ context.Context, id int64) (bool, error) {
	return s.known[id], nil
}

type stubTxRepo struct {
	nextID       int64
	transactions map[int64]Transaction
	commits      int
}

func newStubTxRepo() *stubTxRepo {
	return &stubTxRepo{nextID: 1, transactions: make(map[int64]Transaction)}
}

func (r *stubTxRepo) Get(_ context.Context, id int64) (Transaction, error) {
	t, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	header := t
	header.Lines = nil
	return header, nil
}

func (r *stubTxRepo) GetWithLines(_ context.Context, id int64) (Transaction, error) {
	t, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (r *stubTxRepo) ListAll(context.Context) ([]Transaction, error) { return nil, nil }
func (r *stubTxRepo) ListByParty(context.Context, int64) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) ListByDate(context.Context, time.Time) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) ListByDateRange(context.Context, time.Time, time.Time) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) ListByPartyAndDateRange(context.Context, int64, time.Time, time.Time) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) SearchByDescription(context.Context, string) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) ListByStatus(context.Context, TransactionStatus) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) ListWithFilters(context.Context, Filters) ([]Transaction, error) {
	return nil, nil
}
func (r *stubTxRepo) CountByParty(context.Context, int64) (int64, error)               { return 0, nil }
func (r *stubTxRepo) CountByDateRange(context.Context, time.Time, time.Time) (int64, error) {
	return 0, nil
}

func (r *stubTxRepo) UpdateStatus(_ context.Context, id int64, status TransactionStatus) (Transaction, error) {
	t, ok := r.transactions[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	t.Status = status
	r.transactions[id] = t
	header := t
	header.Lines = nil
	return header, nil
}

func (r *stubTxRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if err := fn(ctx, r); err != nil {
		return err
	}
	r.commits++
	return nil
}

func (r *stubTxRepo) InsertTransaction(_ context.Context, in CreateInput) (Transaction, error) {
	t := Transaction{
		ID:          r.nextID,
		Date:        in.Date,
		Description: in.Description,
		PartyID:     in.PartyID,
		Status:      StatusActive,
	}
	r.nextID++
	r.transactions[t.ID] = t
	return t, nil
}

func (r *stubTxRepo) InsertLines(_ context.Context, transactionID int64, lines []LineInput) ([]LineItem, error) {
	t := r.transactions[transactionID]
	out := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		item := LineItem{
			ID:            r.nextID,
			TransactionID: transactionID,
			AccountID:     line.AccountID,
			Kind:          line.Kind,
			Value:         line.Value,
		}
		r.nextID++
		out = append(out, item)
	}
	t.Lines = out
	r.transactions[transactionID] = t
	return out, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func engineFixture() (*Service, *stubTxRepo, *stubAccounts) {
	accounts := &stubAccounts{accounts: map[int64]*stubAccount{
		1: {account: ledger.Account{ID: 1, Code: "1105", Name: "Caja"}, balance: dec("100.00"), active: true},
		2: {account: ledger.Account{ID: 2, Code: "4135", Name: "Ventas"}, balance: dec("0.00"), allowsNegative: true, active: true},
		3: {account: ledger.Account{ID: 3, Code: "2205", Name: "Proveedores"}, balance: dec("0.00"), active: false},
	}}
	parties := &stubParties{known: map[int64]bool{10: true}}
	repo := newStubTxRepo()
	return NewService(repo, accounts, parties), repo, accounts
}

func validCreateInput() CreateInput {
	return CreateInput{
		Date:        time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Venta de contado",
		PartyID:     10,
		Lines: []LineInput{
			{AccountID: 1, Kind: KindDebit, Value: dec("150.00")},
			{AccountID: 2, Kind: KindCredit, Value: dec("150.00")},
		},
	}
}

func TestCreateTransactionPersistsBalancedEntry(t *testing.T) {
	svc, repo, _ := engineFixture()
	created, err := svc.CreateTransaction(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusActive {
		t.Fatalf("expected ACTIVA, got %s", created.Status)
	}
	if len(created.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(created.Lines))
	}
	if repo.commits != 1 {
		t.Fatalf("expected one committed unit, got %d", repo.commits)
	}
}

func TestCreateTransactionRejectsUnknownParty(t *testing.T) {
	svc, repo, _ := engineFixture()
	in := validCreateInput()
	in.PartyID = 99
	_, err := svc.CreateTransaction(context.Background(), in)
	if !errors.Is(err, ErrPartyNotFound) {
		t.Fatalf("expected ErrPartyNotFound, got %v", err)
	}
	if repo.commits != 0 {
		t.Fatal("nothing may be committed on rejection")
	}
}

func TestCreateTransactionRejectsSingleLine(t *testing.T) {
	svc, _, _ := engineFixture()
	in := validCreateInput()
	in.Lines = in.Lines[:1]
	_, err := svc.CreateTransaction(context.Background(), in)
	if !errors.Is(err, ErrTooFewLines) {
		t.Fatalf("expected ErrTooFewLines, got %v", err)
	}
}

func TestCreateTransactionRejectsNonPositiveValues(t *testing.T) {
	svc, _, _ := engineFixture()
	in := validCreateInput()
	in.Lines[0].Value = dec("0.00")
	if _, err := svc.CreateTransaction(context.Background(), in); !errors.Is(err, ErrInvalidLineValue) {
		t.Fatalf("expected ErrInvalidLineValue for zero, got %v", err)
	}
	in = validCreateInput()
	in.Lines[1].Value = dec("-5.00")
	if _, err := svc.CreateTransaction(context.Background(), in); !errors.Is(err, ErrInvalidLineValue) {
		t.Fatalf("expected ErrInvalidLineValue for negative, got %v", err)
	}
}

func TestCreateTransactionReportsBothTotalsWhenUnbalanced(t *testing.T) {
	svc, _, _ := engineFixture()
	in := validCreateInput()
	in.Lines[0].Value = dec("300.00")
	in.Lines[1].Value = dec("250.00")
	_, err := svc.CreateTransaction(context.Background(), in)
	var unbalanced *UnbalancedError
	if !errors.As(err, &unbalanced) {
		t.Fatalf("expected UnbalancedError, got %v", err)
	}
	if !unbalanced.Debits.Equal(dec("300.00")) || !unbalanced.Credits.Equal(dec("250.00")) {
		t.Fatalf("totals mismatch: debits %s credits %s", unbalanced.Debits, unbalanced.Credits)
	}
}

func TestCreateTransactionNormalizesLineKindCase(t *testing.T) {
	// A lowercase "debe" must land in the debit bucket of the totals, not
	// fall through to the credit side.
	svc, repo, _ := engineFixture()
	in := validCreateInput()
	in.Lines[0].Kind = LineKind("debe")
	created, err := svc.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create with lowercase kind: %v", err)
	}
	if created.Lines[0].Kind != KindDebit {
		t.Fatalf("expected persisted kind DEBE, got %s", created.Lines[0].Kind)
	}
	if repo.commits != 1 {
		t.Fatalf("expected one committed unit, got %d", repo.commits)
	}
}

func TestCreateTransactionRejectsTwoDebitsRegardlessOfCase(t *testing.T) {
	// Two debits written in different cases are still two debits: the entry
	// has no credits and must fail the balance equation, not commit.
	svc, repo, _ := engineFixture()
	in := validCreateInput()
	in.Lines[0].Kind = LineKind("debe")
	in.Lines[1].Kind = KindDebit
	_, err := svc.CreateTransaction(context.Background(), in)
	var unbalanced *UnbalancedError
	if !errors.As(err, &unbalanced) {
		t.Fatalf("expected UnbalancedError, got %v", err)
	}
	if !unbalanced.Debits.Equal(dec("300.00")) || !unbalanced.Credits.Equal(dec("0.00")) {
		t.Fatalf("totals mismatch: debits %s credits %s", unbalanced.Debits, unbalanced.Credits)
	}
	if repo.commits != 0 {
		t.Fatal("nothing may be committed on rejection")
	}
}

func TestCreateTransactionRejectsInactiveAccount(t *testing.T) {
	svc, _, _ := engineFixture()
	in := validCreateInput()
	in.Lines[1].AccountID = 3
	_, err := svc.CreateTransaction(context.Background(), in)
	if !errors.Is(err, ledger.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestCreateTransactionProjectsNegativeBalance(t *testing.T) {
	// Account 1 holds 100.00 and forbids negatives. A 150.00 credit projects
	// -50.00 and must be rejected with that value.
	svc, repo, _ := engineFixture()
	in := validCreateInput()
	in.Lines[0].Kind = KindCredit
	in.Lines[1].Kind = KindDebit
	_, err := svc.CreateTransaction(context.Background(), in)
	var negative *NegativeBalanceError
	if !errors.As(err, &negative) {
		t.Fatalf("expected NegativeBalanceError, got %v", err)
	}
	if !negative.Projected.Equal(dec("-50.00")) {
		t.Fatalf("expected projected -50.00, got %s", negative.Projected)
	}
	if negative.AccountCode != "1105" {
		t.Fatalf("expected account code 1105, got %s", negative.AccountCode)
	}
	if repo.commits != 0 {
		t.Fatal("nothing may be committed on rejection")
	}
}

func TestCreateTransactionAllowsNegativeWhenAccountPermits(t *testing.T) {
	// Account 2 allows negatives, so a debit pushing it below zero passes.
	svc, _, accounts := engineFixture()
	accounts.accounts[2].balance = dec("20.00")
	in := validCreateInput()
	in.Lines = []LineInput{
		{AccountID: 2, Kind: KindCredit, Value: dec("80.00")},
		{AccountID: 1, Kind: KindDebit, Value: dec("80.00")},
	}
	if _, err := svc.CreateTransaction(context.Background(), in); err != nil {
		t.Fatalf("expected success for allows-negative account, got %v", err)
	}
}

func TestProjectionUsesPreTransactionBalancePerLine(t *testing.T) {
	// Two lines hit account 1: a 60.00 debit and a 120.00 credit. Each line
	// projects against the original 100.00 balance, so the credit projects
	// -20.00 and fails even though the debit would have covered it.
	svc, _, _ := engineFixture()
	in := validCreateInput()
	in.Lines = []LineInput{
		{AccountID: 1, Kind: KindDebit, Value: dec("60.00")},
		{AccountID: 1, Kind: KindCredit, Value: dec("120.00")},
		{AccountID: 2, Kind: KindCredit, Value: dec("60.00")},
		{AccountID: 2, Kind: KindDebit, Value: dec("120.00")},
	}
	_, err := svc.CreateTransaction(context.Background(), in)
	var negative *NegativeBalanceError
	if !errors.As(err, &negative) {
		t.Fatalf("expected NegativeBalanceError, got %v", err)
	}
	if !negative.Projected.Equal(dec("-20.00")) {
		t.Fatalf("expected projected -20.00, got %s", negative.Projected)
	}
}

func TestSetStatusParsesCaseInsensitively(t *testing.T) {
	svc, repo, _ := engineFixture()
	created, err := svc.CreateTransaction(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.SetStatus(context.Background(), created.ID, "anulada")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if updated.Status != StatusVoided {
		t.Fatalf("expected ANULADA, got %s", updated.Status)
	}

	if _, err := svc.SetStatus(context.Background(), created.ID, "cerrada"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	stored := repo.transactions[created.ID]
	if stored.Status != StatusVoided {
		t.Fatalf("invalid status must not change state, got %s", stored.Status)
	}
}

func TestStatusTransitionsKeepLinesIntact(t *testing.T) {
	svc, _, _ := engineFixture()
	created, err := svc.CreateTransaction(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Void(context.Background(), created.ID); err != nil {
		t.Fatalf("void: %v", err)
	}
	if _, err := svc.MarkPending(context.Background(), created.ID); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	reactivated, err := svc.Reactivate(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if reactivated.Status != StatusActive {
		t.Fatalf("expected ACTIVA, got %s", reactivated.Status)
	}

	detail, err := svc.GetWithLines(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get with lines: %v", err)
	}
	if len(detail.Lines) != 2 {
		t.Fatalf("lines must survive status changes, got %d", len(detail.Lines))
	}
}

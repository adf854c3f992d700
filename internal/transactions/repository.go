package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists transactions. Multi-step writes run inside WithTx so a
// header without its line items can never be observed.
type Repository interface {
	Get(ctx context.Context, id int64) (Transaction, error)
	GetWithLines(ctx context.Context, id int64) (Transaction, error)
	ListAll(ctx context.Context) ([]Transaction, error)
	ListByParty(ctx context.Context, partyID int64) ([]Transaction, error)
	ListByDate(ctx context.Context, date time.Time) ([]Transaction, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]Transaction, error)
	ListByPartyAndDateRange(ctx context.Context, partyID int64, start, end time.Time) ([]Transaction, error)
	SearchByDescription(ctx context.Context, fragment string) ([]Transaction, error)
	ListByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error)
	ListWithFilters(ctx context.Context, f Filters) ([]Transaction, error)
	CountByParty(ctx context.Context, partyID int64) (int64, error)
	CountByDateRange(ctx context.Context, start, end time.Time) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status TransactionStatus) (Transaction, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the write operations available inside a transaction.
type TxRepository interface {
	InsertTransaction(ctx context.Context, in CreateInput) (Transaction, error)
	InsertLines(ctx context.Context, transactionID int64, lines []LineInput) ([]LineItem, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const txColumns = `id, fecha, descripcion, tercero_id, estado`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Date, &t.Description, &t.PartyID, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return t, nil
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Date, &t.Description, &t.PartyID, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transacciones WHERE id = $1`, id))
}

func (r *repository) GetWithLines(ctx context.Context, id int64) (Transaction, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transaccion_id, cuenta_id, tipo, valor::text
FROM partidas_contables WHERE transaccion_id = $1 ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line LineItem
			raw  string
		)
		if err := rows.Scan(&line.ID, &line.TransactionID, &line.AccountID, &line.Kind, &raw); err != nil {
			return Transaction{}, err
		}
		line.Value, err = decimal.NewFromString(raw)
		if err != nil {
			return Transaction{}, err
		}
		t.Lines = append(t.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *repository) ListAll(ctx context.Context) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones ORDER BY fecha DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListByParty(ctx context.Context, partyID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE tercero_id = $1 ORDER BY fecha DESC, id DESC`, partyID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListByDate(ctx context.Context, date time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE fecha = $1 ORDER BY id DESC`, date)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListByDateRange(ctx context.Context, start, end time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE fecha BETWEEN $1 AND $2 ORDER BY fecha DESC, id DESC`, start, end)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListByPartyAndDateRange(ctx context.Context, partyID int64, start, end time.Time) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE tercero_id = $1 AND fecha BETWEEN $2 AND $3 ORDER BY fecha DESC, id DESC`, partyID, start, end)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) SearchByDescription(ctx context.Context, fragment string) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE descripcion ILIKE $1 ORDER BY fecha DESC, id DESC`, "%"+fragment+"%")
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM transacciones
WHERE estado = $1 ORDER BY fecha DESC, id DESC`, status)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) ListWithFilters(ctx context.Context, f Filters) ([]Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transacciones
WHERE ($1::bigint IS NULL OR tercero_id = $1)
  AND ($2::date IS NULL OR fecha >= $2)
  AND ($3::date IS NULL OR fecha <= $3)
  AND ($4::text IS NULL OR descripcion ILIKE '%' || $4 || '%')
ORDER BY fecha DESC, id DESC`
	var description any
	if f.Description != "" {
		description = f.Description
	}
	rows, err := r.pool.Query(ctx, query, f.PartyID, f.Start, f.End, description)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *repository) CountByParty(ctx context.Context, partyID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transacciones WHERE tercero_id = $1`, partyID).Scan(&count)
	return count, err
}

func (r *repository) CountByDateRange(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transacciones WHERE fecha BETWEEN $1 AND $2`, start, end).Scan(&count)
	return count, err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status TransactionStatus) (Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`UPDATE transacciones SET estado = $2 WHERE id = $1 RETURNING `+txColumns, id, status))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertTransaction(ctx context.Context, in CreateInput) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO transacciones (fecha, descripcion, tercero_id, estado)
VALUES ($1, $2, $3, $4) RETURNING `+txColumns,
		in.Date, in.Description, in.PartyID, StatusActive)
	return scanTransaction(row)
}

func (r *txRepository) InsertLines(ctx context.Context, transactionID int64, lines []LineInput) ([]LineItem, error) {
	out := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		var id int64
		err := r.tx.QueryRow(ctx, `INSERT INTO partidas_contables (transaccion_id, cuenta_id, tipo, valor)
VALUES ($1, $2, $3, $4) RETURNING id`,
			transactionID, line.AccountID, line.Kind, line.Value.StringFixed(2)).Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, LineItem{
			ID:            id,
			TransactionID: transactionID,
			AccountID:     line.AccountID,
			Kind:          line.Kind,
			Value:         line.Value,
		})
	}
	return out, nil
}

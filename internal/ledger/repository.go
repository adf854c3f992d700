package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists accounts and answers balance queries.
type Repository interface {
	List(ctx context.Context, onlyActive bool) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, in AccountInput) (Account, error)
	Update(ctx context.Context, id int64, in AccountInput) (Account, error)
	SetActive(ctx context.Context, id int64, active bool) (Account, error)
	Delete(ctx context.Context, id int64) error
	SearchByName(ctx context.Context, name string, onlyActive bool) ([]Account, error)
	ListByType(ctx context.Context, t AccountType) ([]Account, error)
	Balance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	BalanceAsOf(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, error)
	ListWithBalances(ctx context.Context, onlyActive bool) ([]AccountBalance, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, codigo, nombre, tipo, permite_saldo_negativo, activo`

// Debits minus credits over every line item referencing the account,
// regardless of the owning transaction's status. Both sums are COALESCE'd so
// an account without line items aggregates to zero instead of NULL.
const balanceExpr = `COALESCE(SUM(CASE WHEN p.tipo = 'DEBE' THEN p.valor ELSE 0 END), 0) -
COALESCE(SUM(CASE WHEN p.tipo = 'HABER' THEN p.valor ELSE 0 END), 0)`

// balanceQuery builds the single-account balance aggregate. The cutoff
// variant differs only by joining the transaction header and bounding its
// date, so a cutoff past the newest transaction yields the plain balance.
func balanceQuery(withCutoff bool) string {
	query := `SELECT (` + balanceExpr + `)::text FROM partidas_contables p`
	if withCutoff {
		query += ` JOIN transacciones t ON t.id = p.transaccion_id`
	}
	query += ` WHERE p.cuenta_id = $1`
	if withCutoff {
		query += ` AND t.fecha <= $2`
	}
	return query
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.AllowsNegative, &a.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.AllowsNegative, &a.Active); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) List(ctx context.Context, onlyActive bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM cuentas_contables`
	if onlyActive {
		query += ` WHERE activo`
	}
	query += ` ORDER BY codigo`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM cuentas_contables WHERE id = $1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM cuentas_contables WHERE codigo = $1`, code))
}

func (r *repository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cuentas_contables WHERE codigo = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, in AccountInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO cuentas_contables (codigo, nombre, tipo, permite_saldo_negativo, activo)
VALUES ($1, $2, $3, $4, $5) RETURNING `+accountColumns,
		in.Code, in.Name, in.Type, in.AllowsNegative, in.Active)
	a, err := scanAccount(row)
	if err != nil {
		return Account{}, mapUniqueViolation(err)
	}
	return a, nil
}

func (r *repository) Update(ctx context.Context, id int64, in AccountInput) (Account, error) {
	row := r.pool.QueryRow(ctx, `UPDATE cuentas_contables
SET codigo = $2, nombre = $3, tipo = $4, permite_saldo_negativo = $5, activo = $6
WHERE id = $1 RETURNING `+accountColumns,
		id, in.Code, in.Name, in.Type, in.AllowsNegative, in.Active)
	a, err := scanAccount(row)
	if err != nil {
		return Account{}, mapUniqueViolation(err)
	}
	return a, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) (Account, error) {
	row := r.pool.QueryRow(ctx, `UPDATE cuentas_contables SET activo = $2 WHERE id = $1 RETURNING `+accountColumns, id, active)
	return scanAccount(row)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cuentas_contables WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrAccountInUse
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) SearchByName(ctx context.Context, name string, onlyActive bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM cuentas_contables WHERE nombre ILIKE $1`
	if onlyActive {
		query += ` AND activo`
	}
	query += ` ORDER BY codigo`
	rows, err := r.pool.Query(ctx, query, "%"+name+"%")
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) ListByType(ctx context.Context, t AccountType) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM cuentas_contables WHERE tipo = $1 AND activo ORDER BY codigo`, t)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) Balance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var raw string
	err := r.pool.QueryRow(ctx, balanceQuery(false), accountID).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *repository) BalanceAsOf(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, error) {
	var raw string
	err := r.pool.QueryRow(ctx, balanceQuery(true), accountID, date).Scan(&raw)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (r *repository) ListWithBalances(ctx context.Context, onlyActive bool) ([]AccountBalance, error) {
	query := `SELECT c.id, c.codigo, c.nombre, c.tipo, c.permite_saldo_negativo, c.activo, (` + balanceExpr + `)::text
FROM cuentas_contables c
LEFT JOIN partidas_contables p ON p.cuenta_id = c.id`
	if onlyActive {
		query += ` WHERE c.activo`
	}
	query += ` GROUP BY c.id, c.codigo, c.nombre, c.tipo, c.permite_saldo_negativo, c.activo ORDER BY c.codigo`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountBalance
	for rows.Next() {
		var ab AccountBalance
		var raw string
		if err := rows.Scan(&ab.ID, &ab.Code, &ab.Name, &ab.Type, &ab.AllowsNegative, &ab.Active, &raw); err != nil {
			return nil, err
		}
		if ab.Balance, err = decimal.NewFromString(raw); err != nil {
			return nil, err
		}
		out = append(out, ab)
	}
	return out, rows.Err()
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

package terceros

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists parties.
type Repository interface {
	List(ctx context.Context) ([]Party, error)
	ListByActive(ctx context.Context, active bool) ([]Party, error)
	Get(ctx context.Context, id int64) (Party, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ExistsByDocumentNumber(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, in PartyInput) (Party, error)
	Update(ctx context.Context, id int64, in PartyInput) (Party, error)
	SetActive(ctx context.Context, id int64, active bool) (Party, error)
	Delete(ctx context.Context, id int64) error
	CountTransactions(ctx context.Context, id int64) (int64, error)
	Search(ctx context.Context, patterns []string) ([]Party, error)
	ListByDocumentType(ctx context.Context, t DocumentType) ([]Party, error)
	ListWithTransactionsBetween(ctx context.Context, start, end time.Time) ([]Party, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const partyColumns = `id, nombre, tipo_documento, numero_documento, email, telefono, direccion, activo`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.Name, &p.DocumentType, &p.DocumentNumber, &p.Email, &p.Phone, &p.Address, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, err
	}
	return p, nil
}

func collectParties(rows pgx.Rows) ([]Party, error) {
	defer rows.Close()
	var parties []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.Name, &p.DocumentType, &p.DocumentNumber, &p.Email, &p.Phone, &p.Address, &p.Active); err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func (r *repository) List(ctx context.Context) ([]Party, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM terceros ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	return collectParties(rows)
}

func (r *repository) ListByActive(ctx context.Context, active bool) ([]Party, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM terceros WHERE activo = $1 ORDER BY nombre`, active)
	if err != nil {
		return nil, err
	}
	return collectParties(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Party, error) {
	return scanParty(r.pool.QueryRow(ctx, `SELECT `+partyColumns+` FROM terceros WHERE id = $1`, id))
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM terceros WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) ExistsByDocumentNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM terceros WHERE numero_documento = $1)`, number).Scan(&exists)
	return exists, err
}

func (r *repository) Create(ctx context.Context, in PartyInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO terceros (nombre, tipo_documento, numero_documento, email, telefono, direccion, activo)
VALUES ($1, $2, $3, $4, $5, $6, TRUE) RETURNING `+partyColumns,
		in.Name, in.DocumentType, in.DocumentNumber, in.Email, in.Phone, in.Address)
	p, err := scanParty(row)
	if err != nil {
		return Party{}, mapPartyConstraint(err)
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, in PartyInput) (Party, error) {
	row := r.pool.QueryRow(ctx, `UPDATE terceros
SET nombre = $2, tipo_documento = $3, numero_documento = $4, email = $5, telefono = $6, direccion = $7
WHERE id = $1 RETURNING `+partyColumns,
		id, in.Name, in.DocumentType, in.DocumentNumber, in.Email, in.Phone, in.Address)
	p, err := scanParty(row)
	if err != nil {
		return Party{}, mapPartyConstraint(err)
	}
	return p, nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) (Party, error) {
	return scanParty(r.pool.QueryRow(ctx, `UPDATE terceros SET activo = $2 WHERE id = $1 RETURNING `+partyColumns, id, active))
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM terceros WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrHasTransactions
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPartyNotFound
	}
	return nil
}

func (r *repository) CountTransactions(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transacciones WHERE tercero_id = $1`, id).Scan(&count)
	return count, err
}

func (r *repository) Search(ctx context.Context, patterns []string) ([]Party, error) {
	// Columns are matched both raw and accent-folded, so "Perez" finds a
	// stored "Pérez" and an accented query still finds unaccented rows.
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM terceros
WHERE nombre ILIKE ANY($1) OR `+foldedColumn("nombre")+` ILIKE ANY($1)
   OR email ILIKE ANY($1) OR `+foldedColumn("email")+` ILIKE ANY($1)
   OR numero_documento ILIKE ANY($1)
ORDER BY nombre`, patterns)
	if err != nil {
		return nil, err
	}
	return collectParties(rows)
}

func (r *repository) ListByDocumentType(ctx context.Context, t DocumentType) ([]Party, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+partyColumns+` FROM terceros WHERE tipo_documento = $1 ORDER BY nombre`, t)
	if err != nil {
		return nil, err
	}
	return collectParties(rows)
}

func (r *repository) ListWithTransactionsBetween(ctx context.Context, start, end time.Time) ([]Party, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT t.id, t.nombre, t.tipo_documento, t.numero_documento, t.email, t.telefono, t.direccion, t.activo
FROM terceros t
JOIN transacciones tr ON tr.tercero_id = t.id
WHERE tr.fecha BETWEEN $1 AND $2
ORDER BY t.nombre`, start, end)
	if err != nil {
		return nil, err
	}
	return collectParties(rows)
}

func mapPartyConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateDocument
	}
	return err
}

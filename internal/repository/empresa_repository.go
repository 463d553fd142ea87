package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/serveis-extraordinaris/backend/internal/model"
)

// EmpresaRepo persists employer records in the `empreses` table.  Every
// query is scoped to the owning user and skips soft-deleted rows.
type EmpresaRepo struct{ DB *sql.DB }

func NewEmpresaRepo(db *sql.DB) *EmpresaRepo { return &EmpresaRepo{DB: db} }

const empresaColumns = "id, user_id, name, cif, address, phone, email, start_date, end_date, notes, active, created_at, updated_at"

func scanEmpresa(scan func(dest ...any) error) (model.Empresa, error) {
	var e model.Empresa
	var endDate sql.NullTime
	err := scan(&e.ID, &e.UserID, &e.Name, &e.CIF, &e.Address, &e.Phone, &e.Email,
		&e.StartDate, &endDate, &e.Notes, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Empresa{}, err
	}
	if endDate.Valid {
		d := endDate.Time
		e.EndDate = &d
	}
	return e, nil
}

// ListByUser returns the user's employers ordered by start date, newest
// first.  With onlyOngoing set, rows with an end date are filtered out.
func (r *EmpresaRepo) ListByUser(ctx context.Context, userID uint64, onlyOngoing bool) ([]model.Empresa, error) {
	query := "SELECT " + empresaColumns + " FROM empreses WHERE user_id=? AND active=1"
	if onlyOngoing {
		query += " AND end_date IS NULL"
	}
	query += " ORDER BY start_date DESC"

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Empresa
	for rows.Next() {
		e, err := scanEmpresa(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByID fetches one employer, validating ownership.  Rows owned by other
// users and soft-deleted rows surface as sql.ErrNoRows.
func (r *EmpresaRepo) GetByID(ctx context.Context, id, userID uint64) (model.Empresa, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+empresaColumns+" FROM empreses WHERE id=? AND user_id=? AND active=1 LIMIT 1",
		id, userID)
	return scanEmpresa(row.Scan)
}

// Create inserts an employer row and fills in the generated id.
func (r *EmpresaRepo) Create(ctx context.Context, e *model.Empresa) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO empreses (user_id, name, cif, address, phone, email, start_date, end_date, notes, active)
		 VALUES (?,?,?,?,?,?,?,?,?,1)`,
		e.UserID, e.Name, e.CIF, e.Address, e.Phone, e.Email, e.StartDate, e.EndDate, e.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	e.Active = true
	return nil
}

// Update rewrites the mutable columns of an employer the user owns.  It
// reports whether a row changed: the driver counts changed rows, not
// matched rows, so resubmitting identical values can report false for an
// existing row.  Callers must not take false as proof of absence.
func (r *EmpresaRepo) Update(ctx context.Context, e *model.Empresa) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE empreses
		 SET name=?, cif=?, address=?, phone=?, email=?, start_date=?, end_date=?, notes=?, updated_at=UTC_TIMESTAMP()
		 WHERE id=? AND user_id=? AND active=1`,
		e.Name, e.CIF, e.Address, e.Phone, e.Email, e.StartDate, e.EndDate, e.Notes,
		e.ID, e.UserID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SoftDelete flips the active flag of an employer the user owns.
func (r *EmpresaRepo) SoftDelete(ctx context.Context, id, userID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE empreses SET active=0, updated_at=UTC_TIMESTAMP() WHERE id=? AND user_id=? AND active=1",
		id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetEndDate closes the working relation by stamping an end date.
func (r *EmpresaRepo) SetEndDate(ctx context.Context, id, userID uint64, endDate time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE empreses SET end_date=?, updated_at=UTC_TIMESTAMP() WHERE id=? AND user_id=? AND active=1",
		endDate, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

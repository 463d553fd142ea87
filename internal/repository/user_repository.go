package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/serveis-extraordinaris/backend/internal/model"
)

// UserRepo persists user records in the `users` table.  It returns raw
// driver errors (and sql.ErrNoRows); translation into the error taxonomy
// happens in the service layer.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, password_hash, role, active, name, first_surname, second_surname, department, created_at, updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Active,
		&u.Name, &u.FirstSurname, &u.SecondSurname, &u.Department,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a user with active=true and fills in the generated id.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, active, name, first_surname, second_surname, department)
		 VALUES (?,?,?,1,?,?,?,?)`,
		u.Email, u.PasswordHash, u.Role, u.Name, u.FirstSurname, u.SecondSurname, u.Department)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.Active = true
	return nil
}

// GetByEmail fetches a user by normalized email, active or not.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id, active or not.  Callers decide how to treat
// deactivated accounts.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// EmailExists reports whether the normalized email is already registered.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE email=? LIMIT 1", email).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

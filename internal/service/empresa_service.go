package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/model"
)

// EmpresaStore persists employer records, always scoped to the owning user.
type EmpresaStore interface {
	ListByUser(ctx context.Context, userID uint64, onlyOngoing bool) ([]model.Empresa, error)
	GetByID(ctx context.Context, id, userID uint64) (model.Empresa, error)
	Create(ctx context.Context, e *model.Empresa) error
	Update(ctx context.Context, e *model.Empresa) (bool, error)
	SoftDelete(ctx context.Context, id, userID uint64) (bool, error)
	SetEndDate(ctx context.Context, id, userID uint64, endDate time.Time) (bool, error)
}

// EmpresaInput carries the writable fields of an employer record.
type EmpresaInput struct {
	Name      string
	CIF       string
	Address   string
	Phone     string
	Email     string
	StartDate *time.Time
	EndDate   *time.Time
	Notes     string
}

// EmpresaService implements the employer CRUD rules: ownership scoping,
// soft delete and the start/end date constraints.
type EmpresaService struct {
	store EmpresaStore
}

func NewEmpresaService(store EmpresaStore) *EmpresaService {
	return &EmpresaService{store: store}
}

// validateDates rejects an end date earlier than the start date.
func validateDates(start time.Time, end *time.Time) error {
	if end != nil && end.Before(start) {
		return apperr.Validation("end date cannot be earlier than start date",
			apperr.FieldError{Field: "end_date", Message: "must not be earlier than start_date"})
	}
	return nil
}

// List returns the user's employers; with onlyOngoing set, only relations
// without an end date.
func (s *EmpresaService) List(ctx context.Context, userID uint64, onlyOngoing bool) ([]model.Empresa, error) {
	out, err := s.store.ListByUser(ctx, userID, onlyOngoing)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return out, nil
}

// Get returns one employer owned by the user.
func (s *EmpresaService) Get(ctx context.Context, id, userID uint64) (model.Empresa, error) {
	e, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Empresa{}, apperr.NotFound("empresa")
		}
		return model.Empresa{}, apperr.Internal(err)
	}
	return e, nil
}

// Create validates and persists a new employer for the user.  The name is
// required; a missing start date defaults to today.
func (s *EmpresaService) Create(ctx context.Context, userID uint64, in EmpresaInput) (model.Empresa, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Empresa{}, apperr.Validation("empresa name is required",
			apperr.FieldError{Field: "name", Message: "is required"})
	}
	start := time.Now().UTC()
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if err := validateDates(start, in.EndDate); err != nil {
		return model.Empresa{}, err
	}

	e := &model.Empresa{
		UserID:    userID,
		Name:      name,
		CIF:       strings.TrimSpace(in.CIF),
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		StartDate: start,
		EndDate:   in.EndDate,
		Notes:     in.Notes,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return model.Empresa{}, apperr.FromMySQL(err)
	}
	return *e, nil
}

// Update rewrites an employer the user owns, applying the same validation
// rules as Create.
func (s *EmpresaService) Update(ctx context.Context, id, userID uint64, in EmpresaInput) (model.Empresa, error) {
	existing, err := s.Get(ctx, id, userID)
	if err != nil {
		return model.Empresa{}, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Empresa{}, apperr.Validation("empresa name cannot be empty",
			apperr.FieldError{Field: "name", Message: "cannot be empty"})
	}
	start := existing.StartDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	end := existing.EndDate
	if in.EndDate != nil {
		end = in.EndDate
	}
	if err := validateDates(start, end); err != nil {
		return model.Empresa{}, err
	}

	updated := existing
	updated.Name = name
	updated.CIF = strings.TrimSpace(in.CIF)
	updated.Address = strings.TrimSpace(in.Address)
	updated.Phone = strings.TrimSpace(in.Phone)
	updated.Email = strings.ToLower(strings.TrimSpace(in.Email))
	updated.StartDate = start
	updated.EndDate = end
	updated.Notes = in.Notes

	// Existence was established by the Get above.  The store reports
	// changed rows, not matched rows, so a resubmission of identical
	// values comes back false for a row that is still there; that is a
	// successful no-op, not a missing record.
	if _, err := s.store.Update(ctx, &updated); err != nil {
		return model.Empresa{}, apperr.FromMySQL(err)
	}
	return updated, nil
}

// Delete soft-deletes an employer the user owns.
func (s *EmpresaService) Delete(ctx context.Context, id, userID uint64) error {
	deleted, err := s.store.SoftDelete(ctx, id, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !deleted {
		return apperr.NotFound("empresa")
	}
	return nil
}

// End closes the working relation with an employer.  It rejects records
// that already have an end date and end dates earlier than the start date.
func (s *EmpresaService) End(ctx context.Context, id, userID uint64, endDate time.Time) (model.Empresa, error) {
	e, err := s.Get(ctx, id, userID)
	if err != nil {
		return model.Empresa{}, err
	}
	if e.EndDate != nil {
		return model.Empresa{}, apperr.Validation("empresa already has an end date")
	}
	if endDate.Before(e.StartDate) {
		return model.Empresa{}, apperr.Validation("end date cannot be earlier than start date",
			apperr.FieldError{Field: "end_date", Message: "must not be earlier than start_date"})
	}

	changed, err := s.store.SetEndDate(ctx, id, userID, endDate)
	if err != nil {
		return model.Empresa{}, apperr.Internal(err)
	}
	if !changed {
		return model.Empresa{}, apperr.NotFound("empresa")
	}
	e.EndDate = &endDate
	return e, nil
}

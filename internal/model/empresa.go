package model

import "time"

// Empresa represents an employer a user works (or worked) for.  Each row
// belongs to exactly one user and is soft-deleted via the Active flag.
// EndDate marks when the working relation finished; while it is nil the
// relation is considered ongoing.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owning user.
//  Name      – employer name (required).
//  CIF       – optional tax identification code.
//  Address   – optional postal address.
//  Phone     – optional contact phone.
//  Email     – optional contact email.
//  StartDate – when the relation started.
//  EndDate   – when the relation ended (nil while ongoing).
//  Notes     – free-form remarks.
//  Active    – soft-delete flag.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Empresa struct {
	ID        uint64     `json:"id"`         // empreses.id
	UserID    uint64     `json:"user_id"`    // empreses.user_id
	Name      string     `json:"name"`       // empreses.name
	CIF       string     `json:"cif"`        // empreses.cif
	Address   string     `json:"address"`    // empreses.address
	Phone     string     `json:"phone"`      // empreses.phone
	Email     string     `json:"email"`      // empreses.email
	StartDate time.Time  `json:"start_date"` // empreses.start_date
	EndDate   *time.Time `json:"end_date"`   // empreses.end_date (nullable)
	Notes     string     `json:"notes"`      // empreses.notes
	Active    bool       `json:"active"`     // empreses.active
	CreatedAt time.Time  `json:"created_at"` // empreses.created_at
	UpdatedAt time.Time  `json:"updated_at"` // empreses.updated_at
}

package model

import "time"

// Role values stored in users.role.  Registration collapses unknown
// values to RoleUser.
const (
	RoleAdmin      = "admin"
	RoleTechnician = "technician"
	RoleUser       = "user"
)

// ValidRole reports whether role is one of the enumerated role names.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleTechnician || role == RoleUser
}

// User represents a row of the `users` table.  The PasswordHash field is
// only ever read by the credential store and the auth service; responses
// expose users through PublicUser instead.
//
// Fields:
//  ID            – primary key identifier.
//  Email         – unique, lower-cased email address.
//  PasswordHash  – bcrypt hash of the password.
//  Role          – one of the Role* constants.
//  Active        – soft-deactivation flag; inactive users cannot authenticate.
//  Name          – given name.
//  FirstSurname  – first surname.
//  SecondSurname – optional second surname.
//  Department    – optional department label.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	Role          string    // users.role
	Active        bool      // users.active
	Name          string    // users.name
	FirstSurname  string    // users.first_surname
	SecondSurname string    // users.second_surname
	Department    string    // users.department
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// PublicUser is the outward view of a user.  It is the only user shape
// handlers serialize; the password hash never crosses this boundary.
type PublicUser struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	Name          string    `json:"name"`
	FirstSurname  string    `json:"first_surname"`
	SecondSurname string    `json:"second_surname,omitempty"`
	Department    string    `json:"department,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public strips the password hash from a user record.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		Active:        u.Active,
		Name:          u.Name,
		FirstSurname:  u.FirstSurname,
		SecondSurname: u.SecondSurname,
		Department:    u.Department,
		CreatedAt:     u.CreatedAt,
	}
}

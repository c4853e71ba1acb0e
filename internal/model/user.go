// Package model holds the row types shared by repositories and handlers.
package model

import (
	"strings"
	"time"
)

// Roles carried in the users table and in the JWT "role" claim.
const (
	RoleUser      = "USER"
	RolePatient   = "PATIENT"
	RoleDoctor    = "DOCTOR"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

// NormalizeRole upper-cases r and reports whether it is a known role.
func NormalizeRole(r string) (string, bool) {
	r = strings.ToUpper(strings.TrimSpace(r))
	switch r {
	case RoleUser, RolePatient, RoleDoctor, RoleModerator, RoleAdmin:
		return r, true
	}
	return r, false
}

// User mirrors the users table.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken mirrors refresh_tokens. Only the SHA-256 of the token is
// stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

package api

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sentinel errors shared by every service/repository. Handlers translate them
// to HTTP status codes with HTTPStatus; repositories wrap store errors into
// these with fmt.Errorf("...: %w", ...).
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrValidation      = errors.New("validation failed")
	// ErrSelfAction marks business-rule violations on the caller's own account
	// (self delete, self deactivate). Distinct from ErrForbidden so handlers can
	// answer 400 with an explicit message instead of a generic denial.
	ErrSelfAction = errors.New("operation not allowed on own account")

	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Role is the closed set of identity roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// Status is the persisted lifecycle state of users, categories and products.
// Soft delete and toggle-status move records between active and inactive;
// users additionally support a terminal hard delete (row removal).
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Toggle returns the opposite lifecycle state.
func (s Status) Toggle() Status {
	if s == StatusActive {
		return StatusInactive
	}
	return StatusActive
}

// IsActive reports whether the record is in the active state.
func (s Status) IsActive() bool { return s == StatusActive }

// Response is the generic API envelope for message-only results.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Claims are the custom claims carried by the JWT access token.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"usr,omitempty"`
	Email    string `json:"eml"`
	Role     Role   `json:"rol"`
	IsAdmin  bool   `json:"adm"`
	FullName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserSummary is the reduced user representation embedded in other resources
// (category/product created_by) and in non-admin user listings.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
}

// User is the full identity record. The password hash never leaves the API.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	FullName     string     `json:"full_name"`
	Role         Role       `json:"role"`
	IsAdmin      bool       `json:"is_admin"`
	Status       Status     `json:"status"`
	IsActive     bool       `json:"is_active"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login,omitempty"`
}

// Summary projects the reduced representation of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName,
	}
}

// Derive fills the computed fields after a row scan.
func (u *User) Derive() {
	u.FullName = JoinName(u.FirstName, u.LastName)
	u.IsAdmin = u.Role == RoleAdmin
	u.IsActive = u.Status.IsActive()
}

// JoinName concatenates first and last name, handling either being empty.
func JoinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

package auth

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/commercekit/catalog-api/internal/api"
)

// StrengthChecker validates password strength beyond the basic length rule.
// Pluggable so deployments can swap in a stricter policy.
type StrengthChecker func(password string) error

// Short denylist of passwords that pass the length rule but are trivially
// guessable. A real blocklist would be much larger; the hook matters more
// than the list.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"letmein1":    {},
	"iloveyou1":   {},
}

// DefaultStrengthChecker rejects passwords from the common-password denylist.
func DefaultStrengthChecker(password string) error {
	if _, found := commonPasswords[strings.ToLower(password)]; found {
		return errors.New("password is too common")
	}
	return nil
}

// passwordStrength adapts the active StrengthChecker to an ozzo rule.
func passwordStrength(checker StrengthChecker) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		return checker(s)
	}
}

// stringEquals returns an ozzo rule asserting byte-exact equality, used for
// password confirmation fields.
func stringEquals(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return errors.New(message)
		}
		return nil
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RegisterRequest represents the self-service registration body. The role is
// always forced to "user" server-side regardless of input.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r RegisterRequest) Validate() error {
	return r.validateWith(DefaultStrengthChecker)
}

func (r RegisterRequest) validateWith(checker StrengthChecker) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 30)),
		validation.Field(&r.LastName, validation.Length(0, 30)),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(8, 72),
			validation.By(passwordStrength(checker)),
		),
		validation.Field(&r.PasswordConfirm,
			validation.Required,
			validation.By(stringEquals(r.Password, "passwords don't match")),
		),
	)
}

// RefreshTokenRequest carries the refresh token for the refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ChangePasswordRequest represents the change-password body. The caller must
// prove knowledge of the current password.
type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(8, 72),
			validation.By(passwordStrength(DefaultStrengthChecker)),
		),
		validation.Field(&r.NewPasswordConfirm,
			validation.Required,
			validation.By(stringEquals(r.NewPassword, "new passwords don't match")),
		),
	)
}

// TokenPairResponse is returned by register and login.
type TokenPairResponse struct {
	AccessToken  string    `json:"access"`
	RefreshToken string    `json:"refresh"`
	User         *api.User `json:"user"`
}

// AccessTokenResponse is returned by the refresh endpoint.
type AccessTokenResponse struct {
	AccessToken string `json:"access"`
}

// RefreshToken mirrors a refresh_tokens row. A non-nil RevokedAt means the
// token identifier is on the denylist.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// CreateUserParams is the persistence-level payload for inserting a user.
type CreateUserParams struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	Role         api.Role
	Status       api.Status
	PasswordHash string
}

package user

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/commercekit/catalog-api/internal/api"
)

// CreateUserRequest is the admin-only create payload. Unlike self-service
// registration it may assign any role and an initial lifecycle state.
type CreateUserRequest struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Role            api.Role `json:"role"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"password_confirm"`
	IsActive        *bool    `json:"is_active"`
}

func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 30)),
		validation.Field(&r.LastName, validation.Length(0, 30)),
		validation.Field(&r.Role, validation.Required,
			validation.In(api.RoleAdmin, api.RoleModerator, api.RoleUser)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.PasswordConfirm, validation.Required,
			validation.By(mustEqual(r.Password, "passwords don't match"))),
	)
}

// Status returns the initial lifecycle state, defaulting to active.
func (r CreateUserRequest) Status() api.Status {
	if r.IsActive != nil && !*r.IsActive {
		return api.StatusInactive
	}
	return api.StatusActive
}

func mustEqual(expected, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != expected {
			return validation.NewError("validation_equal", message)
		}
		return nil
	}
}

// UpdateUserRequest is the partial-update payload. Nil fields are untouched.
// Role and IsActive are only honored for admin callers; a non-admin sending
// either gets the whole update rejected.
type UpdateUserRequest struct {
	Username  *string   `json:"username"`
	Email     *string   `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Role      *api.Role `json:"role"`
	IsActive  *bool     `json:"is_active"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 30)),
		validation.Field(&r.LastName, validation.Length(0, 30)),
		validation.Field(&r.Role,
			validation.In(api.RoleAdmin, api.RoleModerator, api.RoleUser)),
	)
}

// Empty reports whether the request carries no changes at all.
func (r UpdateUserRequest) Empty() bool {
	return r.Username == nil && r.Email == nil && r.FirstName == nil &&
		r.LastName == nil && r.Role == nil && r.IsActive == nil
}

// UpdateProfileRequest is the self-service profile payload. Role and IsActive
// are decoded so that a self role change fails with Forbidden rather than an
// unknown-field decode error; they are never applied.
type UpdateProfileRequest struct {
	Username  *string   `json:"username"`
	Email     *string   `json:"email"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Role      *api.Role `json:"role"`
	IsActive  *bool     `json:"is_active"`
}

func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.FirstName, validation.Length(0, 30)),
		validation.Field(&r.LastName, validation.Length(0, 30)),
	)
}

// UpdateUserParams is the persistence-level partial update. Nil means keep.
type UpdateUserParams struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Role      *api.Role
	Status    *api.Status
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

// ListUsersFilter narrows the admin user listing.
type ListUsersFilter struct {
	Search   string
	Role     *api.Role
	IsActive *bool
}

// UserStats is the admin statistics payload.
type UserStats struct {
	TotalUsers          int64 `json:"total_users"`
	ActiveUsers         int64 `json:"active_users"`
	InactiveUsers       int64 `json:"inactive_users"`
	AdminCount          int64 `json:"admin_count"`
	ModeratorCount      int64 `json:"moderator_count"`
	UserCount           int64 `json:"user_count"`
	RecentRegistrations int64 `json:"recent_registrations"`
}

// ToggleStatusResponse reports the outcome of a status flip.
type ToggleStatusResponse struct {
	Message  string     `json:"message"`
	Status   api.Status `json:"status"`
	IsActive bool       `json:"is_active"`
}

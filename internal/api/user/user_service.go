package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/commercekit/catalog-api/internal/api"
	"github.com/commercekit/catalog-api/internal/api/access"
)

const statsCacheKey = "user-stats"

var _ UserService = (*UserServiceImpl)(nil)

// UserService is the identity-management contract. Every method takes the
// caller's identity so authorization happens here, not in handlers.
type UserService interface {
	List(ctx context.Context, filter ListUsersFilter) ([]*api.User, error)
	Create(ctx context.Context, callerRole api.Role, req CreateUserRequest) (*api.User, error)
	Get(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (*api.User, error)
	Update(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID, req UpdateUserRequest) (*api.User, error)
	// Delete hard-deletes the target and returns the deleted account's email
	// for the confirmation message.
	Delete(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (string, error)
	ToggleStatus(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (*api.User, error)
	Stats(ctx context.Context, callerRole api.Role) (*UserStats, error)
	UpdateProfile(ctx context.Context, callerID uuid.UUID, req UpdateProfileRequest) (*api.User, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	cache  *gocache.Cache
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  gocache.New(30*time.Second, time.Minute),
	}
}

func (s *UserServiceImpl) List(ctx context.Context, filter ListUsersFilter) ([]*api.User, error) {
	// Any authenticated caller may list; the handler reduces the payload for
	// non-admins.
	return s.repo.List(ctx, filter)
}

func (s *UserServiceImpl) Create(ctx context.Context, callerRole api.Role, req CreateUserRequest) (*api.User, error) {
	l := s.logger.With(slog.String("method", "Create"))

	if callerRole != api.RoleAdmin {
		return nil, fmt.Errorf("only admins may create users: %w", api.ErrForbidden)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		Status:       req.Status(),
		PasswordHash: string(hashed),
	})
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "User created",
		slog.String("userID", user.ID.String()),
		slog.String("role", string(user.Role)))
	return user, nil
}

func (s *UserServiceImpl) Get(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (*api.User, error) {
	if !access.Allow(callerRole, access.ActionRead, access.ResourceUsers, callerID == id) {
		return nil, fmt.Errorf("cannot view another user's account: %w", api.ErrForbidden)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserServiceImpl) Update(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID, req UpdateUserRequest) (*api.User, error) {
	l := s.logger.With(slog.String("method", "Update"), slog.String("targetID", id.String()))

	if !access.Allow(callerRole, access.ActionWrite, access.ResourceUsers, callerID == id) {
		return nil, fmt.Errorf("cannot modify another user's account: %w", api.ErrForbidden)
	}

	// Privileged fields reject the whole update for non-admins; no partial
	// application.
	if callerRole != api.RoleAdmin && (req.Role != nil || req.IsActive != nil) {
		return nil, fmt.Errorf("only admins may change role or active state: %w", api.ErrForbidden)
	}

	params := UpdateUserParams{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
	if req.IsActive != nil {
		status := api.StatusInactive
		if *req.IsActive {
			status = api.StatusActive
		}
		params.Status = &status
	}

	user, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "User updated")
	return user, nil
}

func (s *UserServiceImpl) Delete(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (string, error) {
	l := s.logger.With(slog.String("method", "Delete"), slog.String("targetID", id.String()))

	if !access.Allow(callerRole, access.ActionDelete, access.ResourceUsers, callerID == id) {
		return "", fmt.Errorf("only admins may delete users: %w", api.ErrForbidden)
	}
	if callerID == id {
		return "", fmt.Errorf("cannot delete own account: %w", api.ErrSelfAction)
	}

	email, err := s.repo.Delete(ctx, id)
	if err != nil {
		return "", err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "User deleted")
	return email, nil
}

func (s *UserServiceImpl) ToggleStatus(ctx context.Context, callerID uuid.UUID, callerRole api.Role, id uuid.UUID) (*api.User, error) {
	l := s.logger.With(slog.String("method", "ToggleStatus"), slog.String("targetID", id.String()))

	if !access.Allow(callerRole, access.ActionToggle, access.ResourceUsers, callerID == id) {
		return nil, fmt.Errorf("only admins may toggle user status: %w", api.ErrForbidden)
	}
	if callerID == id {
		return nil, fmt.Errorf("cannot change your own status: %w", api.ErrSelfAction)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.SetStatus(ctx, id, current.Status.Toggle())
	if err != nil {
		return nil, err
	}

	s.cache.Delete(statsCacheKey)
	l.InfoContext(ctx, "User status toggled", slog.String("status", string(user.Status)))
	return user, nil
}

func (s *UserServiceImpl) Stats(ctx context.Context, callerRole api.Role) (*UserStats, error) {
	if callerRole != api.RoleAdmin {
		return nil, fmt.Errorf("only admins may view user statistics: %w", api.ErrForbidden)
	}

	if cached, found := s.cache.Get(statsCacheKey); found {
		return cached.(*UserStats), nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(statsCacheKey, stats)
	return stats, nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, callerID uuid.UUID, req UpdateProfileRequest) (*api.User, error) {
	if req.Role != nil || req.IsActive != nil {
		return nil, fmt.Errorf("only admins may change role or active state: %w", api.ErrForbidden)
	}

	return s.repo.Update(ctx, callerID, UpdateUserParams{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
}

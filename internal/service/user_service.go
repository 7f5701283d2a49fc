package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	apperrors "scholarsite/internal/errors"
	"scholarsite/internal/logging"
	"scholarsite/internal/model"
	"scholarsite/internal/repository"
)

// MinPasswordLength is the shortest password accepted when provisioning or rotating.
const MinPasswordLength = 8

// ProvisionInput describes a user to create or update.
type ProvisionInput struct {
	Email    string
	Name     string
	Password string
	Role     model.Role
}

// UserService exposes administrative user operations.
type UserService interface {
	// Provision creates the user, or updates name, password and role if the email exists.
	Provision(ctx context.Context, in ProvisionInput) (user *model.User, created bool, err error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ChangeRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error)
	RotatePassword(ctx context.Context, id uuid.UUID, password string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo       repository.UserRepository
	bcryptCost int
	log        logging.Logger
}

// NewUserService builds a UserService. bcryptCost outside bcrypt's range falls back to the default.
func NewUserService(repo repository.UserRepository, bcryptCost int, log logging.Logger) UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &userService{repo: repo, bcryptCost: bcryptCost, log: log}
}

func (s *userService) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperrors.ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *userService) Provision(ctx context.Context, in ProvisionInput) (*model.User, bool, error) {
	email := strings.TrimSpace(in.Email)
	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, false, fmt.Errorf("%w: %q", model.ErrInvalidRole, role)
	}

	hashed, err := s.hash(in.Password)
	if err != nil {
		return nil, false, err
	}

	// Deleted users keep their email in the unique index, so they are revived instead of re-inserted.
	existing, err := s.repo.FindByEmailWithDeleted(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, userStoreErr("check user existence", err)
	}

	if existing != nil {
		existing.Name = in.Name
		existing.PasswordHash = hashed
		existing.Role = role
		if existing.DeletedAt.Valid {
			if err := s.repo.Restore(ctx, existing); err != nil {
				return nil, false, userStoreErr("restore user", err)
			}
			s.log.Info(ctx, "user restored", "user_id", existing.ID, "role", role)
			return existing, true, nil
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, false, userStoreErr("update user", err)
		}
		s.log.Info(ctx, "user updated", "user_id", existing.ID, "role", role)
		return existing, false, nil
	}

	user := &model.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, false, userStoreErr("create user", err)
	}
	s.log.Info(ctx, "user created", "user_id", user.ID, "role", role)
	return user, true, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, userStoreErr("get user", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, userStoreErr("list users", err)
	}
	return users, nil
}

// ChangeRole updates the stored role. Sessions already issued keep the role
// they were issued with until they expire or are signed out.
func (s *userService) ChangeRole(ctx context.Context, id uuid.UUID, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidRole, role)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, userStoreErr("get user", err)
	}
	user.Role = role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, userStoreErr("update role", err)
	}
	s.log.Info(ctx, "user role changed", "user_id", id, "role", role)
	return user, nil
}

func (s *userService) RotatePassword(ctx context.Context, id uuid.UUID, password string) error {
	hashed, err := s.hash(password)
	if err != nil {
		return err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return userStoreErr("get user", err)
	}
	user.PasswordHash = hashed
	if err := s.repo.Update(ctx, user); err != nil {
		return userStoreErr("update password", err)
	}
	s.log.Info(ctx, "user password rotated", "user_id", id)
	return nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return userStoreErr("delete user", err)
	}
	s.log.Info(ctx, "user deleted", "user_id", id)
	return nil
}

// userStoreErr maps repository errors onto the domain taxonomy.
func userStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.ErrUserNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.ErrEmailTaken
	case errors.Is(err, model.ErrInvalidRole), errors.Is(err, model.ErrPlaintextPassword):
		return err
	default:
		return fmt.Errorf("%w: %s: %v", apperrors.ErrStoreUnavailable, op, err)
	}
}

package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
)

// UserUpdateInput replaces a user's profile and role. An empty password
// keeps the current one.
type UserUpdateInput struct {
	Username  string `json:"username" validate:"required,min=2,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
	Role      string `json:"role" validate:"required,oneof=user admin"`
}

type UserService interface {
	GetAllUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
	UpdateUser(ctx context.Context, id uint, in UserUpdateInput) (*model.User, error)
	DeleteUser(ctx context.Context, id uint) error
	SkillLevels(ctx context.Context, id uint) ([]AbilityView, error)
}

type userService struct {
	userRepo  repository.UserRepository
	abilities repository.AbilityRepository
}

func NewUserService(userRepo repository.UserRepository, abilities repository.AbilityRepository) UserService {
	return &userService{userRepo: userRepo, abilities: abilities}
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, apperror.Persistence("load users", err)
	}
	return users, nil
}

func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("user %d not found", id)
	}
	if err != nil {
		return nil, apperror.Persistence("load user", err)
	}
	return user, nil
}

func (s *userService) UpdateUser(ctx context.Context, id uint, in UserUpdateInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Username = in.Username
	user.Email = in.Email
	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Role = in.Role
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperror.Validation("password cannot be hashed: %v", err)
		}
		user.Password = string(hash)
	}

	err = s.userRepo.UpdateUser(ctx, user)
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return nil, apperror.Conflict("email already in use")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperror.NotFound("user %d not found", id)
	case err != nil:
		return nil, apperror.Persistence("update user", err)
	}
	user.Password = ""
	return user, nil
}

// DeleteUser removes the account with its history and skill levels.
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	err := s.userRepo.DeleteUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("user %d not found", id)
	}
	if err != nil {
		return apperror.Persistence("delete user", err)
	}
	return nil
}

// SkillLevels lists the user's ability on every skill attempted so far.
func (s *userService) SkillLevels(ctx context.Context, id uint) ([]AbilityView, error) {
	states, err := s.abilities.FindAbilityStatesByLearner(ctx, id)
	if err != nil {
		return nil, apperror.Persistence("load skill levels", err)
	}
	views := make([]AbilityView, len(states))
	for i := range states {
		views[i] = NewAbilityView(&states[i])
	}
	return views, nil
}

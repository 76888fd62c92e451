package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/utilities"
)

type RegisterInput struct {
	Username  string `json:"username" validate:"required,min=2,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
}

// Tokens is an access/refresh token pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthService interface
type AuthService interface {
	Register(ctx context.Context, in RegisterInput, role string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, *Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

type authService struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewAuthService initializes authentication service
func NewAuthService(userRepo repository.UserRepository) AuthService {
	return &authService{userRepo: userRepo, now: time.Now}
}

// Register stores a new user with a bcrypt password hash. Role is user
// unless admin is asked for explicitly.
func (s *authService) Register(ctx context.Context, in RegisterInput, role string) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if role != model.RoleAdmin {
		role = model.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Validation("password cannot be hashed: %v", err)
	}

	user := &model.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      role,
	}
	err = s.userRepo.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperror.Conflict("email already in use")
	}
	if err != nil {
		return nil, apperror.Persistence("create user", err)
	}

	user.Password = ""
	return user, nil
}

// Login checks the password and issues a token pair. Unknown emails and
// wrong passwords get the same error.
func (s *authService) Login(ctx context.Context, email, password string) (*model.User, *Tokens, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperror.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, nil, apperror.Persistence("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, apperror.Unauthorized("invalid credentials")
	}

	tokens, err := issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		utilities.Warn("failed to record login for user %d: %v", user.ID, err)
	}

	user.Password = ""
	return user, tokens, nil
}

// Refresh exchanges a refresh token for a new pair. The user is reloaded
// so role changes and deletions take effect.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := utilities.ValidateToken(refreshToken, true)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, apperror.Persistence("load user", err)
	}
	return issueTokens(user)
}

func issueTokens(user *model.User) (*Tokens, error) {
	access, refresh, err := utilities.GenerateTokens(user)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/db/dbtest"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/utilities"
)

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	users := repository.NewUserRepository(dbtest.Open(t))
	auth := NewAuthService(users)

	user, err := auth.Register(ctx, RegisterInput{Username: "ann", Email: " Ann@Example.com ", Password: "correct horse"}, "")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Empty(t, user.Password)

	stored, err := users.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("correct horse")))

	_, err = auth.Register(ctx, RegisterInput{Username: "ann", Email: "ann@example.com", Password: "another one"}, "")
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	_, err = auth.Register(ctx, RegisterInput{Username: "bob", Email: "not-an-email", Password: "short"}, "")
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, _, err = auth.Login(ctx, "ann@example.com", "wrong password")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	_, _, err = auth.Login(ctx, "nobody@example.com", "correct horse")
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	loggedIn, tokens, err := auth.Login(ctx, "ANN@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := utilities.ValidateToken(tokens.AccessToken, false)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	stored, err = users.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)

	refreshed, err := auth.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = auth.Refresh(ctx, tokens.AccessToken)
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestAuthService_AdminRole(t *testing.T) {
	auth := NewAuthService(repository.NewUserRepository(dbtest.Open(t)))

	admin, err := auth.Register(context.Background(), RegisterInput{Username: "root", Email: "root@example.com", Password: "long enough"}, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	other, err := auth.Register(context.Background(), RegisterInput{Username: "eve", Email: "eve@example.com", Password: "long enough"}, "superuser")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, other.Role)
}

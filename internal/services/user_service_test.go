package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/patternloft/patternloft/pkg/errors"
)

func TestRegisterHashesPasswordAndRejectsDuplicates(t *testing.T) {
	f := newServiceFixture(t)

	svc, err := NewUserService(f.db)
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "Maker",
		Email:    "Maker@Example.com",
		Password: "sewing-machine",
	})
	require.NoError(t, err)
	require.Equal(t, "maker", user.Username)
	require.Equal(t, "maker@example.com", user.Email)
	require.NotEqual(t, "sewing-machine", user.Password)
	require.True(t, user.IsActive)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "maker",
		Email:    "other@example.com",
		Password: "sewing-machine",
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperrors.ErrConflict.Code, appErr.Code)
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newServiceFixture(t)

	svc, err := NewUserService(f.db)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "maker",
		Email:    "not-an-email",
		Password: "sewing-machine",
	})
	require.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "maker",
		Email:    "maker@example.com",
		Password: "short",
	})
	require.Error(t, err)
}

func TestAuthenticateVerifiesCredentials(t *testing.T) {
	f := newServiceFixture(t)

	svc, err := NewUserService(f.db)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Username: "maker",
		Email:    "maker@example.com",
		Password: "sewing-machine",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), "maker", "sewing-machine")
	require.NoError(t, err)
	require.NotNil(t, user.LastLoginAt)

	// Email works as the login identifier too.
	_, err = svc.Authenticate(context.Background(), "maker@example.com", "sewing-machine")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "maker", "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "sewing-machine")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactiveAccounts(t *testing.T) {
	f := newServiceFixture(t)

	svc, err := NewUserService(f.db)
	require.NoError(t, err)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username: "maker",
		Email:    "maker@example.com",
		Password: "sewing-machine",
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(user).Update("is_active", false).Error)

	_, err = svc.Authenticate(context.Background(), "maker", "sewing-machine")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestGetByIDReturnsNotFound(t *testing.T) {
	f := newServiceFixture(t)

	svc, err := NewUserService(f.db)
	require.NoError(t, err)

	_, err = svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

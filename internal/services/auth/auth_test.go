package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/jwt"
	"github.com/maksimkurganov/vpn-backoffice/internal/lib/password"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

type OperatorRepoMock struct{ mock.Mock }

func (m *OperatorRepoMock) GetOperatorByUsername(ctx context.Context, username string) (*models.Operator, error) {
	args := m.Called(ctx, username)
	op, _ := args.Get(0).(*models.Operator)
	return op, args.Error(1)
}

func newService(repo *OperatorRepoMock) *Service {
	return New(repo, jwt.NewJWTMaker("test-secret", time.Hour))
}

func TestLogin(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)

	repo := new(OperatorRepoMock)
	s := newService(repo)

	repo.On("GetOperatorByUsername", mock.Anything, "admin").
		Return(&models.Operator{ID: 1, Username: "admin", PasswordHash: hash, Role: "admin"}, nil)

	token, role, err := s.Login(context.Background(), "admin", "secret123")

	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	claims, err := s.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)

	repo := new(OperatorRepoMock)
	s := newService(repo)

	repo.On("GetOperatorByUsername", mock.Anything, "admin").
		Return(&models.Operator{ID: 1, Username: "admin", PasswordHash: hash, Role: "admin"}, nil)

	_, _, err = s.Login(context.Background(), "admin", "wrong")

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := new(OperatorRepoMock)
	s := newService(repo)

	repo.On("GetOperatorByUsername", mock.Anything, "ghost").
		Return(nil, errs.ErrNotFound)

	_, _, err := s.Login(context.Background(), "ghost", "secret123")

	// Неизвестное имя неотличимо от неверного пароля.
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestValidateToken_Garbage(t *testing.T) {
	s := newService(new(OperatorRepoMock))

	_, err := s.ValidateToken(context.Background(), "не токен")

	assert.Error(t, err)
}

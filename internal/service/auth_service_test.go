package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/al-maktaba/catalog-api/internal/models"
	appErrors "github.com/al-maktaba/catalog-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	if rt, ok := m.refreshTokens[token]; ok {
		now := time.Now().UTC()
		rt.Revoked = true
		rt.RevokedAt = &now
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

type mockProfileRepo struct {
	roles map[string]models.Role
	err   error
}

func (m *mockProfileRepo) GetRole(ctx context.Context, userID string) (models.Role, error) {
	if m.err != nil {
		return "", m.err
	}
	role, ok := m.roles[userID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return role, nil
}

func newAuthServiceForTest(repo *mockAuthRepo, profiles *mockProfileRepo) *AuthService {
	if profiles == nil {
		profiles = &mockProfileRepo{roles: map[string]models.Role{}}
	}
	return NewAuthService(repo, profiles, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "al-maktaba",
	})
}

func activeUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "user-1", Email: "admin@maktaba.dev", PasswordHash: string(hash), FullName: "Admin", Active: true}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	profiles := &mockProfileRepo{roles: map[string]models.Role{"user-1": models.RoleAdmin}}
	svc := newAuthServiceForTest(repo, profiles)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLoginMissingProfileDefaultsToViewer(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, &mockProfileRepo{roles: map[string]models.Role{}})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, claims.Role)
}

func TestAuthServiceLoginRoleLookupErrorDefaultsToViewer(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, &mockProfileRepo{err: errors.New("profiles unavailable")})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, res.User.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "wrong"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: sql.ErrNoRows}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@maktaba.dev", Password: "password"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.Active = false
	svc := newAuthServiceForTest(&mockAuthRepo{userByEmail: user}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, &mockProfileRepo{roles: map[string]models.Role{"user-1": models.RoleAdmin}})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	// The rotated-out token can no longer be exchanged.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, nil)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, "user-1"))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t)}
	svc := newAuthServiceForTest(repo, nil)

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@maktaba.dev", Password: "password"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
}

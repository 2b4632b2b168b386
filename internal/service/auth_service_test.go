package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agriquest/agriquest-api/internal/models"
	"github.com/agriquest/agriquest-api/internal/repository"
	appErrors "github.com/agriquest/agriquest-api/pkg/errors"
	"github.com/agriquest/agriquest-api/pkg/mail"
)

type mockAuthRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	nextID int
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (m *mockAuthRepo) addUser(username, email, password string, active bool) *models.User {
	m.nextID++
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &models.User{
		ID:           fmt.Sprintf("00000000-0000-4000-9000-%012d", m.nextID),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         models.RoleStudent,
		Active:       active,
	}
	m.users[user.ID] = user
	return user
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	if user, ok := m.users[id]; ok {
		user.LastLogin = &ts
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if user, ok := m.users[id]; ok {
		user.PasswordHash = passwordHash
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	m.nextID++
	token.ID = fmt.Sprintf("00000000-0000-4000-a000-%012d", m.nextID)
	m.tokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	now := time.Now().UTC()
	for _, t := range m.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &now
		}
	}
	return nil
}

type fakeOTPStore struct {
	values map[string]string
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{values: make(map[string]string)}
}

func (f *fakeOTPStore) SetString(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeOTPStore) GetString(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", repository.ErrCacheMiss
}

func (f *fakeOTPStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

type captureTransport struct {
	sent []mail.Message
}

func (c *captureTransport) Send(_ context.Context, msg mail.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *fakeOTPStore, *captureTransport) {
	repo := newMockAuthRepo()
	otp := newFakeOTPStore()
	transport := &captureTransport{}
	svc := NewAuthService(repo, otp, transport, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "agriquest-test",
	})
	return svc, repo, otp, transport
}

func TestLoginWithUsernameAndEmail(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "sam", resp.User.Username)

	resp, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "sam@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownUserSameErrorAsWrongPassword(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "ghost", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	user := repo.addUser("sam", "sam@example.com", "correct horse", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, user.ID, claims.Actor().ID)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)

	rotated, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: rotated.RefreshToken})
	require.NoError(t, err)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)
	other := repo.addUser("kim", "kim@example.com", "another pass", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), other.ID, login.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	user := repo.addUser("sam", "sam@example.com", "correct horse", true)

	login, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		CurrentPassword: "correct horse",
		NewPassword:     "battery staple",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "correct horse"})
	require.Error(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "battery staple"})
	require.NoError(t, err)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	user := repo.addUser("sam", "sam@example.com", "correct horse", true)

	err := svc.ChangePassword(context.Background(), user.ID, models.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "battery staple",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, otp, transport := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.PasswordResetRequest{Email: "sam@example.com"}))
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "sam@example.com", transport.sent[0].ToAddress)

	code := otp.values["otp:reset:sam@example.com"]
	require.NotEmpty(t, code)
	assert.Len(t, code, 6)
	assert.Contains(t, transport.sent[0].Body, code)

	err := svc.ResetPassword(context.Background(), models.PasswordResetConfirm{
		Email:       "sam@example.com",
		Code:        code,
		NewPassword: "battery staple",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "sam", Password: "battery staple"})
	require.NoError(t, err)

	// The code is consumed and cannot be replayed.
	err = svc.ResetPassword(context.Background(), models.PasswordResetConfirm{
		Email:       "sam@example.com",
		Code:        code,
		NewPassword: "yet another pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	svc, _, otp, transport := newAuthFixture()

	require.NoError(t, svc.ForgotPassword(context.Background(), models.PasswordResetRequest{Email: "ghost@example.com"}))
	assert.Empty(t, transport.sent)
	assert.Empty(t, otp.values)
}

func TestResetPasswordWrongCode(t *testing.T) {
	svc, repo, otp, _ := newAuthFixture()
	repo.addUser("sam", "sam@example.com", "correct horse", true)
	otp.values["otp:reset:sam@example.com"] = "123456"

	err := svc.ResetPassword(context.Background(), models.PasswordResetConfirm{
		Email:       "sam@example.com",
		Code:        "654321",
		NewPassword: "battery staple",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

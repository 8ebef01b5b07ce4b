package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Ashy-21/TWINK/internal/config"
	"github.com/Ashy-21/TWINK/internal/database"
	"github.com/Ashy-21/TWINK/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *database.SQLiteDB) {
	t.Helper()
	db, err := database.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{JWT: config.JWTConfig{Secret: []byte("test-secret"), ExpiresIn: time.Hour}}
	return NewService(db, cfg), db
}

func register(t *testing.T, s *Service, username string) *models.LoginResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	reg := register(t, s, "alice")
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice", reg.User.Username)
	assert.Empty(t, reg.User.PasswordHash)

	resp, err := s.Login(ctx, &models.LoginRequest{Username: "alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, resp.User.ID)
	assert.Empty(t, resp.User.PasswordHash)

	id, err := s.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: reg.User.ID, Username: "alice"}, id)
}

func TestRegisterRejectsInvalidAndDuplicate(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, &models.RegisterRequest{Username: "al", Email: "x@example.com", Password: "password1"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	register(t, s, "alice")
	_, err = s.Register(ctx, &models.RegisterRequest{Username: " alice ", Email: "other@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginFailures(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	register(t, s, "alice")

	_, err := s.Login(ctx, &models.LoginRequest{Username: "alice", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, &models.LoginRequest{Username: "nobody", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, &models.LoginRequest{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	s, _ := setupService(t)
	ctx := context.Background()
	reg := register(t, s, "alice")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": reg.User.ID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	forgedToken, err := forged.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noUserToken, err := noUser.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	ghost := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 9999,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	ghostToken, err := ghost.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": forgedToken,
		"no user id":   noUserToken,
		"unknown user": ghostToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Authenticate(ctx, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	s, _ := setupService(t)
	reg := register(t, s, "alice")

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := s.Authenticate(context.Background(), reg.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// racingUsers reports every username as free, as if another registration
// commits between the existence check and the insert.
type racingUsers struct {
	*database.SQLiteDB
}

func (racingUsers) UsernameExists(context.Context, string) (bool, error) { return false, nil }

func TestRegisterMapsInsertConflictToUsernameTaken(t *testing.T) {
	_, db := setupService(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: []byte("test-secret"), ExpiresIn: time.Hour}}
	s := NewService(racingUsers{db}, cfg)
	ctx := context.Background()

	register(t, s, "alice")
	_, err := s.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "again@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

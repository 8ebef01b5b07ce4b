package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ashy-21/TWINK/internal/config"
	"github.com/Ashy-21/TWINK/internal/database"
	"github.com/Ashy-21/TWINK/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUsernameTaken      = errors.New("username already taken")
)

// ValidationError wraps request field errors so handlers can answer 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type Service struct {
	users database.UserRepository
	cfg   *config.Config
	now   func() time.Time
}

func NewService(users database.UserRepository, cfg *config.Config) *Service {
	return &Service{
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	exists, err := s.users.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	// A concurrent registration can still win between the check and the insert.
	user, err := s.users.CreateUser(ctx, req)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	user.PasswordHash = ""
	return &models.LoginResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := req.Validate(); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	// Remove sensitive data
	user.PasswordHash = ""

	return &models.LoginResponse{
		Token: token,
		User:  *user,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a bearer token to the identity of a user that still
// exists. Any failure is reported as ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (models.Identity, error) {
	user, err := s.GetUserFromToken(ctx, tokenString)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, database.ErrNotFound) {
			return models.Identity{}, ErrInvalidToken
		}
		return models.Identity{}, err
	}
	return user.Identity(), nil
}

func (s *Service) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidToken)
	}

	return s.users.GetUserByID(ctx, int(userIDFloat))
}

func (s *Service) generateToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      now.Add(s.cfg.JWT.ExpiresIn).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWT.Secret)
}

package models

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const AnonymousName = "Anonymous"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is who is on the other end of a connection or request.
// The zero value is the anonymous identity.
type Identity struct {
	UserID   int
	Username string
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}

func (i Identity) Authenticated() bool {
	return i.Username != ""
}

func (i Identity) DisplayName() string {
	if !i.Authenticated() {
		return AnonymousName
	}
	return i.Username
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 150), validation.Match(usernamePattern)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UserSummary struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

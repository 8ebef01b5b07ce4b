package database

import (
	"context"
	"errors"

	"github.com/Ashy-21/TWINK/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert violates a unique constraint.
	ErrConflict = errors.New("already exists")
)

type UserRepository interface {
	// CreateUser returns ErrConflict when the username is taken.
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*models.UserSummary, error)
}

// MessageRepository is the append-only message log. AppendMessage assigns ID and
// Timestamp; QueryMessages returns the latest limit messages of a room, oldest
// first. Order is append order (ID), never the clock.
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	QueryMessages(ctx context.Context, room string, limit int) ([]*models.Message, error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, name string, memberIDs []int) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error)
	IsGroupMember(ctx context.Context, groupID, userID int) (bool, error)
}

type Database interface {
	UserRepository
	MessageRepository
	GroupRepository
	Migrate(ctx context.Context) error
	Close() error
}

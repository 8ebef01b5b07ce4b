package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ashy-21/TWINK/internal/database"
	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

const maxSearchResults = 30

// RoomStore is the storage RoomService needs.
type RoomStore interface {
	database.UserRepository
	database.GroupRepository
}

type RoomService struct {
	db RoomStore
}

func NewRoomService(db RoomStore) *RoomService {
	return &RoomService{db: db}
}

// PersonalRoom returns the canonical room shared by me and otherUsername.
func (s *RoomService) PersonalRoom(ctx context.Context, me models.Identity, otherUsername string) (*models.PersonalRoomResponse, error) {
	if !me.Authenticated() {
		return nil, ErrUnauthenticated
	}

	otherUsername = strings.TrimSpace(otherUsername)
	if otherUsername == "" {
		return nil, fmt.Errorf("%w: missing username", ErrValidation)
	}

	other, err := s.lookup(ctx, otherUsername)
	if err != nil {
		return nil, err
	}

	return &models.PersonalRoomResponse{
		Room:  models.PersonalRoom(me.UserID, other.ID),
		Other: other.Username,
	}, nil
}

// CreateGroup creates a group owned by owner. Every member username must exist;
// nothing is written otherwise. The owner is always a member.
func (s *RoomService) CreateGroup(ctx context.Context, owner models.Identity, req *models.CreateGroupRequest) (*models.Group, error) {
	if !owner.Authenticated() {
		return nil, ErrUnauthenticated
	}

	req.Name = strings.TrimSpace(req.Name)
	for i := range req.Members {
		req.Members[i] = strings.TrimSpace(req.Members[i])
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	memberIDs := []int{owner.UserID}
	for _, username := range req.Members {
		if username == owner.Username {
			continue
		}
		user, err := s.lookup(ctx, username)
		if err != nil {
			return nil, err
		}
		memberIDs = append(memberIDs, user.ID)
	}

	group, err := s.db.CreateGroup(ctx, req.Name, memberIDs)
	if err != nil {
		return nil, err
	}

	logger.Info("User %s created group %s (%s)", owner.Username, group.Name, group.Room)
	return group, nil
}

func (s *RoomService) ListGroups(ctx context.Context, user models.Identity) ([]*models.Group, error) {
	if !user.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return s.db.ListUserGroups(ctx, user.UserID)
}

// SearchUsers returns at most 30 users whose username contains query.
// An empty query lists users.
func (s *RoomService) SearchUsers(ctx context.Context, query string) ([]*models.UserSummary, error) {
	users, err := s.db.SearchUsers(ctx, strings.TrimSpace(query), maxSearchResults)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.UserSummary{}
	}
	return users, nil
}

// UsernameExists reports false for an empty username.
func (s *RoomService) UsernameExists(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	return s.db.UsernameExists(ctx, username)
}

func (s *RoomService) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
		}
		return nil, err
	}
	return user, nil
}

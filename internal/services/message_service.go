package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ashy-21/TWINK/internal/database"
	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// MessageStore is the storage MessageService needs: the message log plus group
// membership for read checks.
type MessageStore interface {
	database.MessageRepository
	IsGroupMember(ctx context.Context, groupID, userID int) (bool, error)
}

type MessageService struct {
	messages MessageStore
}

func NewMessageService(messages MessageStore) *MessageService {
	return &MessageService{messages: messages}
}

// Send stores a message posted over HTTP. It does not broadcast to the room;
// clients on this path reload history instead.
func (s *MessageService) Send(ctx context.Context, sender models.Identity, req *models.SendMessageRequest) (*models.Message, error) {
	if !sender.Authenticated() {
		return nil, ErrUnauthenticated
	}

	req.Room = strings.TrimSpace(req.Room)
	req.Message = strings.TrimSpace(req.Message)
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	saved, err := s.messages.AppendMessage(ctx, models.NewMessage(sender, req.Room, req.Message))
	if err != nil {
		return nil, err
	}

	logger.Debug("Stored message %d from %s in room %s", saved.ID, sender.Username, saved.RoomName)
	return saved, nil
}

// CanRead reports whether reader may see the stored messages of room. Stored
// history needs an authenticated reader; personal rooms are limited to their
// two participants and group rooms to the group's members.
func (s *MessageService) CanRead(ctx context.Context, reader models.Identity, room string) error {
	if !reader.Authenticated() {
		return ErrUnauthenticated
	}

	switch {
	case models.IsPersonalRoom(room):
		lo, hi, ok := models.ParsePersonalRoom(room)
		if !ok || (reader.UserID != lo && reader.UserID != hi) {
			return ErrForbidden
		}
	case models.IsGroupRoom(room):
		groupID, ok := models.ParseGroupRoom(room)
		if !ok {
			return ErrForbidden
		}
		member, err := s.messages.IsGroupMember(ctx, groupID, reader.UserID)
		if err != nil {
			return fmt.Errorf("failed to check group membership: %w", err)
		}
		if !member {
			return ErrForbidden
		}
	}
	return nil
}

// History returns the latest messages of room, oldest first, if reader may see
// them. limit is clamped to [1, MaxHistoryLimit]; zero or less means
// DefaultHistoryLimit.
func (s *MessageService) History(ctx context.Context, reader models.Identity, room string, limit int) ([]*models.Message, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, fmt.Errorf("%w: missing room", ErrValidation)
	}
	if err := s.CanRead(ctx, reader, room); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	messages, err := s.messages.QueryMessages(ctx, room, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

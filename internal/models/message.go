package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Message is a persisted chat message. It is never mutated after the store returns it.
type Message struct {
	ID        int64     `json:"id"`
	SenderID  *int      `json:"sender_id,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	RoomName  string    `json:"room"`
	IsGroup   bool      `json:"is_group"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds an unsaved message. IsGroup is always derived from the room
// and the timestamp is left for the store to assign.
func NewMessage(sender Identity, room, content string) *Message {
	msg := &Message{
		Sender:   sender.Username,
		Content:  content,
		RoomName: room,
		IsGroup:  IsGroupRoom(room),
	}
	if sender.Authenticated() {
		id := sender.UserID
		msg.SenderID = &id
	}
	return msg
}

type SendMessageRequest struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

func (r SendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Room, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Message, validation.Required),
	)
}

// SavedMessage is the fallback endpoint's view of a stored message.
type SavedMessage struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type SendMessageResponse struct {
	OK      bool         `json:"ok"`
	Message SavedMessage `json:"message"`
}

func (m *Message) Saved() SavedMessage {
	return SavedMessage{
		ID:        m.ID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

package models

import "time"

type MessageType string

const (
	MessageTypeChat     MessageType = "chat"
	MessageTypePresence MessageType = "presence"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// InboundFrame is what a client sends over the socket.
type InboundFrame struct {
	Message string `json:"message"`
}

// ChatFrame is the outbound form of a chat.message event.
type ChatFrame struct {
	Type      MessageType `json:"type"`
	Message   string      `json:"message"`
	Sender    string      `json:"sender"`
	Timestamp string      `json:"timestamp"`
}

// PresenceFrame is the outbound form of a presence update.
type PresenceFrame struct {
	Type     MessageType    `json:"type"`
	Username string         `json:"username"`
	Status   PresenceStatus `json:"status"`
}

func NewChatFrame(text, sender string, at time.Time) ChatFrame {
	return ChatFrame{
		Type:      MessageTypeChat,
		Message:   text,
		Sender:    sender,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
}

func NewPresenceFrame(username string, status PresenceStatus) PresenceFrame {
	return PresenceFrame{Type: MessageTypePresence, Username: username, Status: status}
}

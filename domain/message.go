// This file defines the Message record and related rules.
// Messages are immutable once stored.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry scoped to a room and sender.
// JSON names follow the wire format expected by existing clients.
type Message struct {
	ID         uuid.UUID `json:"id"`
	ChatroomID string    `json:"chatroomId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (m Message) RoomID() RoomID {
	return RoomID(m.ChatroomID)
}

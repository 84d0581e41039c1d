package domain

import (
	"time"

	"github.com/google/uuid"
)

// Media represents an immutable media attachment entry. MediaURL is the
// locator of the underlying blob, of the form "/file/{name}". The record is
// only ever created after the referenced blob is fully written.
type Media struct {
	ID         uuid.UUID `json:"id"`
	ChatroomID string    `json:"chatroomId"`
	SenderID   string    `json:"senderId"`
	MediaURL   string    `json:"mediaUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (m Media) RoomID() RoomID {
	return RoomID(m.ChatroomID)
}

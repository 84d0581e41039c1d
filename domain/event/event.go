package event

import (
	"chat-relay/domain"
)

// DomainEvent is anything that can be fanned out to the sinks of a room.
// Events are emitted strictly after the durable write of the record they
// carry has completed.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessageStored is published once a message record is durably persisted.
type MessageStored struct {
	Message domain.Message
}

func (e MessageStored) RoomID() domain.RoomID {
	return e.Message.RoomID()
}

// MediaStored is published once a media record is durably persisted.
type MediaStored struct {
	Media domain.Media
}

func (e MediaStored) RoomID() domain.RoomID {
	return e.Media.RoomID()
}

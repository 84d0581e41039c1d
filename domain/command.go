package domain

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand carries a raw send_message event. Content is validated
// and censored by the service layer, never by the transport.
type PostMessageCommand struct {
	ChatroomID string
	SenderID   string
	SenderName string
	Content    string
}

func (c PostMessageCommand) RoomID() RoomID {
	return RoomID(c.ChatroomID)
}

// PostMediaCommand carries a send_media event for a blob that already
// exists (uploaded over HTTP or out-of-band). No blob write is involved.
type PostMediaCommand struct {
	ChatroomID string
	SenderID   string
	MediaURL   string
}

func (c PostMediaCommand) RoomID() RoomID {
	return RoomID(c.ChatroomID)
}

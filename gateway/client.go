package gateway

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound event size. Binary payloads travel over HTTP, not here.
	maxMessageSize = 8192
)

// Envelope is the wire frame of the bidirectional channel, both directions:
// {"event": "send_message", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messageIn struct {
	ChatroomID string `json:"chatroomId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

type mediaIn struct {
	ChatroomID string `json:"chatroomId"`
	SenderID   string `json:"senderId"`
	MediaURL   string `json:"mediaUrl"`
}

// Client is one live connection. It is also the connection's EventSink:
// stored records are queued on the send channel and flushed by the write
// pump, so a slow reader never blocks the pipeline that produced the event.
type Client struct {
	id            string
	conn          *websocket.Conn
	send          chan Envelope
	chat          services.IChatService
	log           *slog.Logger
	ingestTimeout time.Duration
}

var _ contract.EventSink = (*Client)(nil)

// Consume queues a stored record for delivery. When the send buffer stays
// full past the context deadline the copy for this connection is dropped;
// the record itself is already durable.
func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	envelope, ok := toEnvelope(e)
	if !ok {
		return nil
	}
	select {
	case c.send <- envelope:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection %s not draining: %w", c.id, ctx.Err())
	}
}

func toEnvelope(e event.DomainEvent) (Envelope, bool) {
	switch evt := e.(type) {
	case event.MessageStored:
		data, err := json.Marshal(evt.Message)
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Event: "receive_message", Data: data}, true
	case event.MediaStored:
		data, err := json.Marshal(evt.Media)
		if err != nil {
			return Envelope{}, false
		}
		return Envelope{Event: "receive_media", Data: data}, true
	default:
		return Envelope{}, false
	}
}

// readPump processes inbound events one at a time, which is what preserves
// per-connection ordering. It returns when the peer goes away; membership
// cleanup happens in the caller's defer.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected close", "conn", c.id, "error", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.log.Debug("Dropping malformed frame", "conn", c.id, "error", err)
			continue
		}
		c.dispatch(envelope)
	}
}

// dispatch routes one inbound event. Failures are dropped after logging:
// the bidirectional channel never carries error replies.
func (c *Client) dispatch(envelope Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), c.ingestTimeout)
	defer cancel()

	switch envelope.Event {
	case "join_room":
		roomID, err := decodeRoomID(envelope.Data)
		if err != nil || roomID == "" {
			c.log.Debug("Dropping join_room without a room", "conn", c.id)
			return
		}
		c.chat.JoinRoom(c.id, roomID)
		c.log.Debug("Joined room", "conn", c.id, "room", roomID)

	case "send_message":
		var in messageIn
		if err := json.Unmarshal(envelope.Data, &in); err != nil {
			c.log.Debug("Dropping malformed send_message", "conn", c.id, "error", err)
			return
		}
		err := c.chat.PostMessage(ctx, domain.PostMessageCommand{
			ChatroomID: in.ChatroomID,
			SenderID:   in.SenderID,
			SenderName: in.SenderName,
			Content:    in.Content,
		})
		if err != nil {
			c.log.Error("Message ingest failed", "conn", c.id, "room", in.ChatroomID, "error", err)
		}

	case "send_media":
		var in mediaIn
		if err := json.Unmarshal(envelope.Data, &in); err != nil {
			c.log.Debug("Dropping malformed send_media", "conn", c.id, "error", err)
			return
		}
		_, err := c.chat.PostMedia(ctx, domain.PostMediaCommand{
			ChatroomID: in.ChatroomID,
			SenderID:   in.SenderID,
			MediaURL:   in.MediaURL,
		})
		if err != nil {
			c.log.Error("Media ingest failed", "conn", c.id, "room", in.ChatroomID, "error", err)
		}

	default:
		c.log.Debug("Unknown event", "conn", c.id, "event", envelope.Event)
	}
}

// decodeRoomID accepts both the historical bare-string form and the object
// form {"chatroomId": "..."}.
func decodeRoomID(data json.RawMessage) (domain.RoomID, error) {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		return domain.RoomID(plain), nil
	}
	var obj struct {
		ChatroomID string `json:"chatroomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return domain.RoomID(obj.ChatroomID), nil
}

// writePump flushes queued envelopes and keeps the connection alive with
// pings. It exits on the first write error; the read pump notices the dead
// connection through its own deadline.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case envelope := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(envelope); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

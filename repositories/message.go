package repositories

import (
	"chat-relay/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(roomID domain.RoomID) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type diskMessage struct {
	ID         string `cbor:"1,keyasint"`
	ChatroomID string `cbor:"2,keyasint"`
	SenderID   string `cbor:"3,keyasint"`
	SenderName string `cbor:"4,keyasint"`
	Content    string `cbor:"5,keyasint"`
	CreatedAt  int64  `cbor:"6,keyasint"` // unix nanoseconds
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_hex}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// Room ids are opaque strings, so they are hex encoded in the key. A raw id
// containing the ':' separator would otherwise bleed into another room's
// prefix scan.
//
// Once this call returns nil the record is durable and queryable; callers
// broadcast only after that point.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := messageKey(message)
	bytes, err := cbor.Marshal(toDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages retrieves every message of a room using a prefix scan.
// Thanks to the padded timestamp in the key, messages come out sorted by
// creation time ascending without any post-processing.
// When a limit is configured, collection stops once it is reached.
func (m MessageRepository) GetMessages(roomID domain.RoomID) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := []byte(fmt.Sprintf("msg:%x:", roomID))

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) >= *m.limitMessages {
				break
			}
			err := it.Item().Value(func(v []byte) error {
				var disk diskMessage
				if err := cbor.Unmarshal(v, &disk); err != nil {
					return fmt.Errorf("failed to unmarshal message: %w", err)
				}
				msg, err := fromDiskMessage(disk)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during message scan: %w", err)
	}

	m.log.Debug("Messages fetched", "room", roomID, "count", len(messages))
	return messages, nil
}

func messageKey(message domain.Message) string {
	return fmt.Sprintf("msg:%x:%019d:%s",
		message.ChatroomID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
}

func toDiskMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:         message.ID.String(),
		ChatroomID: message.ChatroomID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		Content:    message.Content,
		CreatedAt:  message.CreatedAt.UnixNano(),
	}
}

func fromDiskMessage(disk diskMessage) (domain.Message, error) {
	id, err := uuidFromString(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         id,
		ChatroomID: disk.ChatroomID,
		SenderID:   disk.SenderID,
		SenderName: disk.SenderName,
		Content:    disk.Content,
		CreatedAt:  timeFromUnixNano(disk.CreatedAt),
	}, nil
}

package repositories

import (
	"chat-relay/domain"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

type IMediaRepository interface {
	StoreMedia(media domain.Media) error
	GetMedia(roomID domain.RoomID) ([]domain.Media, error)
}

type MediaRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMediaRepository(db *badger.DB, log *slog.Logger) MediaRepository {
	return MediaRepository{db: db, log: log}
}

type diskMedia struct {
	ID         string `cbor:"1,keyasint"`
	ChatroomID string `cbor:"2,keyasint"`
	SenderID   string `cbor:"3,keyasint"`
	MediaURL   string `cbor:"4,keyasint"`
	CreatedAt  int64  `cbor:"5,keyasint"` // unix nanoseconds
}

// StoreMedia persists a media record. Same key discipline as messages:
// "media:{room_hex}:{timestamp_padded}:{uuid}" keeps the per-room scan in
// creation-time order, the hex-encoded room id keeps opaque ids out of the
// separator space, and the uuid avoids same-nanosecond collisions.
func (m MediaRepository) StoreMedia(media domain.Media) error {
	key := fmt.Sprintf("media:%x:%019d:%s",
		media.ChatroomID,
		media.CreatedAt.UnixNano(),
		media.ID,
	)
	bytes, err := cbor.Marshal(toDiskMedia(media))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMedia retrieves every media record of a room, creation time ascending.
func (m MediaRepository) GetMedia(roomID domain.RoomID) ([]domain.Media, error) {
	var records []domain.Media
	prefix := []byte(fmt.Sprintf("media:%x:", roomID))

	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var disk diskMedia
				if err := cbor.Unmarshal(v, &disk); err != nil {
					return fmt.Errorf("failed to unmarshal media: %w", err)
				}
				record, err := fromDiskMedia(disk)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during media scan: %w", err)
	}

	m.log.Debug("Media fetched", "room", roomID, "count", len(records))
	return records, nil
}

func toDiskMedia(media domain.Media) diskMedia {
	return diskMedia{
		ID:         media.ID.String(),
		ChatroomID: media.ChatroomID,
		SenderID:   media.SenderID,
		MediaURL:   media.MediaURL,
		CreatedAt:  media.CreatedAt.UnixNano(),
	}
}

func fromDiskMedia(disk diskMedia) (domain.Media, error) {
	id, err := uuidFromString(disk.ID)
	if err != nil {
		return domain.Media{}, err
	}
	return domain.Media{
		ID:         id,
		ChatroomID: disk.ChatroomID,
		SenderID:   disk.SenderID,
		MediaURL:   disk.MediaURL,
		CreatedAt:  timeFromUnixNano(disk.CreatedAt),
	}, nil
}

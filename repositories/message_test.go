package repositories

import (
	"chat-relay/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(room, sender, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		ChatroomID: room,
		SenderID:   sender,
		SenderName: sender,
		Content:    content,
		CreatedAt:  at,
	}
}

func TestMessageRepository_Store_Then_Get_Roundtrip(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)
	msg := newMessage("r1", "u1", "hello", time.Now().UTC())

	// When storing a message
	req.NoError(repo.StoreMessage(msg))

	// Then it is queryable with every field intact
	stored, err := repo.GetMessages("r1")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(msg.ID, stored[0].ID)
	req.Equal("hello", stored[0].Content)
	req.Equal("u1", stored[0].SenderID)
	req.WithinDuration(msg.CreatedAt, stored[0].CreatedAt, time.Millisecond)
}

func TestMessageRepository_GetMessages_Ascending_By_Creation_Time(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)
	base := time.Now().UTC()

	// Given messages stored out of chronological order
	req.NoError(repo.StoreMessage(newMessage("r1", "u1", "second", base.Add(2*time.Second))))
	req.NoError(repo.StoreMessage(newMessage("r1", "u2", "first", base.Add(1*time.Second))))
	req.NoError(repo.StoreMessage(newMessage("r1", "u1", "third", base.Add(3*time.Second))))

	// When reading the room history
	stored, err := repo.GetMessages("r1")
	req.NoError(err)

	// Then records come out creation time ascending
	contents := lo.Map(stored, func(m domain.Message, _ int) string { return m.Content })
	req.Equal([]string{"first", "second", "third"}, contents)
}

func TestMessageRepository_GetMessages_Scoped_To_Room(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)
	now := time.Now().UTC()

	// Given rooms with colliding name prefixes
	req.NoError(repo.StoreMessage(newMessage("r1", "u1", "mine", now)))
	req.NoError(repo.StoreMessage(newMessage("r10", "u2", "other", now)))

	stored, err := repo.GetMessages("r1")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("mine", stored[0].Content)
}

func TestMessageRepository_Room_Id_Containing_Separator_Is_Isolated(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)
	now := time.Now().UTC()

	// Given a room whose opaque id embeds the key separator
	req.NoError(repo.StoreMessage(newMessage("r1", "u1", "mine", now)))
	req.NoError(repo.StoreMessage(newMessage("r1:secret", "u2", "hidden", now)))

	// Then neither room's history leaks into the other
	stored, err := repo.GetMessages("r1")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("mine", stored[0].Content)

	stored, err = repo.GetMessages("r1:secret")
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("hidden", stored[0].Content)
}

func TestMessageRepository_Limit_Caps_History(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), lo.ToPtr(2))
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(repo.StoreMessage(newMessage("r1", "u1", "msg", base.Add(time.Duration(i)*time.Second))))
	}

	stored, err := repo.GetMessages("r1")
	req.NoError(err)
	req.Len(stored, 2)
}

func TestMessageRepository_Empty_Room_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(newTestDB(t), slog.Default(), nil)

	stored, err := repo.GetMessages("nobody-here")
	req.NoError(err)
	req.Empty(stored)
}

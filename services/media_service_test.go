package services

import (
	"bytes"
	"chat-relay/blobstore"
	"chat-relay/contract"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/runtime"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

const testMaxUpload = 1 << 20

type mediaFixture struct {
	svc      *MediaService
	chat     *ChatService
	media    *fakeMediaRepo
	blobs    *blobstore.Store
	registry *runtime.Registry
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	blobs := blobstore.New(db, log)
	media := &fakeMediaRepo{}
	registry := runtime.NewRegistry()
	chat := NewChatService(log, registry, &fakeMessageRepo{}, media, nil, testSinkTimeout)
	return &mediaFixture{
		svc:      NewMediaService(log, blobs, chat, testMaxUpload),
		chat:     chat,
		media:    media,
		blobs:    blobs,
		registry: registry,
	}
}

func (f *mediaFixture) join(t *testing.T, connID string, room domain.RoomID) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	f.chat.Connect(connID, sink)
	f.chat.JoinRoom(connID, room)
	return sink
}

func TestMediaService_Upload_Then_Download_Roundtrip(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)
	sink := f.join(t, "a", "r1")
	payload := []byte("ten bytes!")

	// When uploading a small file
	record, err := f.svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "note.txt",
		ContentType:  "text/plain",
		DeclaredSize: int64(len(payload)),
		Body:         bytes.NewReader(payload),
	})
	req.NoError(err)
	req.True(strings.HasPrefix(record.MediaURL, "/file/"))

	// Then the room members were notified
	req.Len(sink.Events(), 1)

	// And downloading the locator returns the exact bytes and content type
	name := strings.TrimPrefix(record.MediaURL, "/file/")
	reader, err := f.svc.Download(name)
	req.NoError(err)
	req.Equal("text/plain", reader.Meta().ContentType)
	got, err := io.ReadAll(reader)
	req.NoError(err)
	req.Equal(payload, got)
}

func TestMediaService_Upload_Sniffs_Missing_Content_Type(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)
	f.join(t, "a", "r1")

	// A PNG header with no declared content type
	payload := []byte("\x89PNG\r\n\x1a\n0000000000")
	record, err := f.svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "pic",
		DeclaredSize: int64(len(payload)),
		Body:         bytes.NewReader(payload),
	})
	req.NoError(err)

	reader, err := f.svc.Download(strings.TrimPrefix(record.MediaURL, "/file/"))
	req.NoError(err)
	req.Equal("image/png", reader.Meta().ContentType)
}

func TestMediaService_Upload_Missing_Fields_Rejected_Before_Write(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)

	// Body that explodes if anyone reads it: validation must come first
	_, err := f.svc.Upload(context.Background(), UploadCommand{
		SenderID:     "u1",
		Filename:     "cat.png",
		ContentType:  "image/png",
		DeclaredSize: 10,
		Body:         iotest.ErrReader(fmt.Errorf("body must not be read")),
	})

	req.ErrorIs(err, errs.ErrValidation)
	stored, _ := f.media.GetMedia("r1")
	req.Empty(stored)
}

func TestMediaService_Upload_Oversize_Declared_Rejected_Eagerly(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)

	_, err := f.svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "big.bin",
		ContentType:  "application/octet-stream",
		DeclaredSize: testMaxUpload + 1,
		Body:         iotest.ErrReader(fmt.Errorf("body must not be read")),
	})

	req.ErrorIs(err, errs.ErrPayloadTooLarge)
	stored, _ := f.media.GetMedia("r1")
	req.Empty(stored)
}

func TestMediaService_Upload_Oversize_Stream_Aborted(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)
	sink := f.join(t, "a", "r1")

	// An undeclared body bigger than the cap
	payload := bytes.Repeat([]byte("x"), testMaxUpload+100)
	_, err := f.svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "big.bin",
		ContentType:  "application/octet-stream",
		DeclaredSize: -1,
		Body:         bytes.NewReader(payload),
	})

	req.ErrorIs(err, errs.ErrPayloadTooLarge)

	// No record, no broadcast
	stored, _ := f.media.GetMedia("r1")
	req.Empty(stored)
	req.Empty(sink.Events())
}

func TestMediaService_Upload_Stream_Error_Leaves_No_Trace(t *testing.T) {
	req := require.New(t)
	f := newMediaFixture(t)
	sink := f.join(t, "a", "r1")

	// A body that fails midway, like a client disconnecting mid-upload
	body := io.MultiReader(
		bytes.NewReader(bytes.Repeat([]byte("x"), 10_000)),
		iotest.ErrReader(fmt.Errorf("connection reset")),
	)
	_, err := f.svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "cut.bin",
		ContentType:  "application/octet-stream",
		DeclaredSize: -1,
		Body:         body,
	})

	req.Error(err)
	req.NotErrorIs(err, errs.ErrValidation)
	stored, _ := f.media.GetMedia("r1")
	req.Empty(stored)
	req.Empty(sink.Events())
}

type failingChat struct {
	lastCmd domain.PostMediaCommand
}

var _ IChatService = (*failingChat)(nil)

func (f *failingChat) Connect(string, contract.EventSink)        {}
func (f *failingChat) Disconnect(string)                         {}
func (f *failingChat) JoinRoom(string, domain.RoomID)            {}
func (f *failingChat) LeaveRoom(string, domain.RoomID)           {}
func (f *failingChat) GetMessages(domain.RoomID) ([]domain.Message, error) {
	return nil, nil
}
func (f *failingChat) GetMedia(domain.RoomID) ([]domain.Media, error) {
	return nil, nil
}
func (f *failingChat) PostMessage(context.Context, domain.PostMessageCommand) error {
	return nil
}
func (f *failingChat) PostMedia(ctx context.Context, cmd domain.PostMediaCommand) (domain.Media, error) {
	f.lastCmd = cmd
	return domain.Media{}, fmt.Errorf("records table on fire")
}

func TestMediaService_Persist_Failure_Removes_Blob(t *testing.T) {
	req := require.New(t)
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	blobs := blobstore.New(db, log)
	chat := &failingChat{}
	svc := NewMediaService(log, blobs, chat, testMaxUpload)

	_, err = svc.Upload(context.Background(), UploadCommand{
		ChatroomID:   "r1",
		SenderID:     "u1",
		Filename:     "cat.png",
		ContentType:  "image/png",
		DeclaredSize: 5,
		Body:         bytes.NewReader([]byte("bytes")),
	})
	req.Error(err)

	// The blob that was committed before the persist failure is gone again
	name := strings.TrimPrefix(chat.lastCmd.MediaURL, "/file/")
	req.NotEmpty(name)
	_, err = blobs.OpenRead(name)
	req.ErrorIs(err, errs.ErrBlobNotFound)
}

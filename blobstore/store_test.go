package blobstore

import (
	"bytes"
	"chat-relay/errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, slog.Default())
}

func TestStore_Write_Then_Read_Roundtrip(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	payload := []byte("ten bytes!")

	// When writing a small blob to completion
	sink, err := store.OpenWrite("blob-a", "image/png")
	req.NoError(err)
	n, err := sink.Write(payload)
	req.NoError(err)
	req.Equal(len(payload), n)
	req.NoError(sink.Finish())

	// Then reading it back yields the exact bytes and content type
	reader, err := store.OpenRead("blob-a")
	req.NoError(err)
	req.Equal("image/png", reader.Meta().ContentType)
	req.Equal(int64(len(payload)), reader.Meta().Length)

	got, err := io.ReadAll(reader)
	req.NoError(err)
	req.Equal(payload, got)
}

func TestStore_Multi_Chunk_Roundtrip(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	store.chunkSize = 8 // force many chunks

	payload := bytes.Repeat([]byte("abcdefghij"), 10) // 100 bytes, not chunk aligned

	sink, err := store.OpenWrite("blob-b", "application/octet-stream")
	req.NoError(err)
	// Drive the sink through a plain io.Copy, like the upload pipeline does
	n, err := io.Copy(sink, bytes.NewReader(payload))
	req.NoError(err)
	req.Equal(int64(len(payload)), n)
	req.NoError(sink.Finish())

	reader, err := store.OpenRead("blob-b")
	req.NoError(err)
	req.Equal(13, reader.Meta().Chunks) // 12 full chunks + trailing partial

	got, err := io.ReadAll(reader)
	req.NoError(err)
	req.Equal(payload, got)
}

func TestStore_Unfinished_Blob_Is_Invisible(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	store.chunkSize = 4

	// Given chunks written but no Finish
	sink, err := store.OpenWrite("partial", "text/plain")
	req.NoError(err)
	_, err = sink.Write([]byte("partially written data"))
	req.NoError(err)

	// Then the blob cannot be read
	_, err = store.OpenRead("partial")
	req.ErrorIs(err, errors.ErrBlobNotFound)
}

func TestStore_Abort_Leaves_Nothing(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)
	store.chunkSize = 4

	sink, err := store.OpenWrite("doomed", "text/plain")
	req.NoError(err)
	_, err = sink.Write([]byte("some data spanning chunks"))
	req.NoError(err)

	// When the upload is aborted
	sink.Abort()

	// Then the blob is invisible and the sink rejects further writes
	_, err = store.OpenRead("doomed")
	req.ErrorIs(err, errors.ErrBlobNotFound)
	_, err = sink.Write([]byte("more"))
	req.ErrorIs(err, errors.ErrSinkClosed)
}

func TestStore_OpenRead_Unknown_Name(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	_, err := store.OpenRead("never-written")
	req.ErrorIs(err, errors.ErrBlobNotFound)
}

func TestStore_Remove_Hides_Blob(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t)

	sink, err := store.OpenWrite("transient", "text/plain")
	req.NoError(err)
	_, err = sink.Write([]byte("bytes"))
	req.NoError(err)
	req.NoError(sink.Finish())

	req.NoError(store.Remove("transient"))

	_, err = store.OpenRead("transient")
	req.ErrorIs(err, errors.ErrBlobNotFound)
}

func TestGenerateName_Unique_For_Identical_Originals(t *testing.T) {
	req := require.New(t)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		name := GenerateName("cat.png")
		_, dup := seen[name]
		req.False(dup, "generated names must never collide")
		seen[name] = struct{}{}
	}
}

func TestGenerateName_Sanitizes_Original(t *testing.T) {
	req := require.New(t)

	name := GenerateName("../we ird/na me?.png")
	req.NotContains(name, "/")
	req.NotContains(name, " ")
	req.NotContains(name, "?")

	req.Contains(GenerateName(""), "unnamed")
}

// Package blobstore implements chunked binary object storage on top of
// BadgerDB. A blob is written chunk by chunk under its own keys and only
// becomes visible to readers once its metadata entry is committed, so a
// partially written blob can never be observed.
package blobstore

import (
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// DefaultChunkSize bounds the size of a single badger value. Memory use of
// an in-flight upload is a small multiple of this, whatever the blob size.
const DefaultChunkSize = 64 << 10

const (
	metaPrefix  = "blob:meta:"
	chunkPrefix = "blob:chunk:"
)

// Meta describes a fully written blob. Its presence under the meta key is
// the visibility switch: no meta, no blob.
type Meta struct {
	Name        string `cbor:"1,keyasint"`
	ContentType string `cbor:"2,keyasint"`
	Length      int64  `cbor:"3,keyasint"`
	Chunks      int    `cbor:"4,keyasint"`
	CreatedAt   int64  `cbor:"5,keyasint"` // unix nanoseconds
}

type Store struct {
	db        *badger.DB
	log       *slog.Logger
	chunkSize int
}

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log, chunkSize: DefaultChunkSize}
}

// GenerateName builds a unique blob name from an original file name, in the
// form "{unixMilli}-{uuid8}-{sanitized}". The uuid fragment keeps two
// concurrent uploads of the same file name from ever colliding.
func GenerateName(original string) string {
	return fmt.Sprintf("%d-%s-%s",
		time.Now().UnixMilli(),
		uuid.NewString()[:8],
		sanitize(path.Base(original)),
	)
}

func sanitize(name string) string {
	if name == "" || name == "." || name == "/" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// OpenWrite starts a streamed write of a new blob. The returned sink must be
// driven to Finish for the blob to become visible, or to Abort to discard
// every chunk written so far.
func (s *Store) OpenWrite(name, contentType string) (*WriteSink, error) {
	exists, err := s.exists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", errors.ErrBlobExists, name)
	}
	return &WriteSink{
		store:       s,
		name:        name,
		contentType: contentType,
		buf:         make([]byte, 0, s.chunkSize),
	}, nil
}

// OpenRead opens a fully written blob for streamed reading. A name whose
// write has not finished (or was aborted) yields ErrBlobNotFound.
func (s *Store) OpenRead(name string) (*Reader, error) {
	meta, err := s.readMeta(name)
	if err != nil {
		return nil, err
	}
	return &Reader{store: s, meta: meta}, nil
}

// Remove deletes a blob. The meta entry goes first so the blob disappears
// for readers before its chunks do.
func (s *Store) Remove(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(metaPrefix + name))
	})
	if err != nil {
		return fmt.Errorf("failed to remove blob meta %s: %w", name, err)
	}
	return s.deleteChunks(name)
}

func (s *Store) exists(name string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(metaPrefix + name))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) readMeta(name string) (Meta, error) {
	var meta Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return cbor.Unmarshal(v, &meta)
		})
	})
	if err == badger.ErrKeyNotFound {
		return Meta{}, fmt.Errorf("%w: %s", errors.ErrBlobNotFound, name)
	}
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read blob meta %s: %w", name, err)
	}
	return meta, nil
}

func (s *Store) readChunk(name string, seq int) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(name, seq))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %d of blob %s: %w", seq, name, err)
	}
	return data, nil
}

func (s *Store) deleteChunks(name string) error {
	prefix := []byte(chunkPrefix + name + ":")

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func chunkKey(name string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", chunkPrefix, name, seq))
}

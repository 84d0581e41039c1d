package blobstore

import (
	"chat-relay/errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

// WriteSink is the write half of a blob. Each full chunk is committed in its
// own transaction as bytes arrive, so the sink never holds more than one
// chunk in memory. The blob stays invisible until Finish commits the meta
// entry.
type WriteSink struct {
	store       *Store
	name        string
	contentType string
	buf         []byte
	length      int64
	chunks      int
	closed      bool
}

// Name returns the generated blob name, the locator clients use later.
func (w *WriteSink) Name() string {
	return w.name
}

// Write implements io.Writer. Chunks are flushed to the store as soon as
// they fill up; the writer is throttled by how fast the store accepts them.
func (w *WriteSink) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.ErrSinkClosed
	}
	total := len(p)
	for len(p) > 0 {
		room := w.store.chunkSize - len(w.buf)
		if room > len(p) {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
		p = p[room:]

		if len(w.buf) == w.store.chunkSize {
			if err := w.flush(); err != nil {
				return total - len(p), err
			}
		}
	}
	w.length += int64(total)
	return total, nil
}

func (w *WriteSink) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	data := make([]byte, len(w.buf))
	copy(data, w.buf)
	err := w.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(w.name, w.chunks), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write chunk %d of blob %s: %w", w.chunks, w.name, err)
	}
	w.chunks++
	w.buf = w.buf[:0]
	return nil
}

// Finish flushes the trailing chunk and commits the meta entry, making the
// blob atomically visible to readers. The sink is unusable afterwards.
func (w *WriteSink) Finish() error {
	if w.closed {
		return errors.ErrSinkClosed
	}
	w.closed = true

	if err := w.flush(); err != nil {
		return err
	}

	meta := Meta{
		Name:        w.name,
		ContentType: w.contentType,
		Length:      w.length,
		Chunks:      w.chunks,
		CreatedAt:   time.Now().UnixNano(),
	}
	bytes, err := cbor.Marshal(meta)
	if err != nil {
		return err
	}
	err = w.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+w.name), bytes)
	})
	if err != nil {
		return fmt.Errorf("failed to commit blob %s: %w", w.name, err)
	}
	w.store.log.Debug("Blob committed", "name", w.name, "bytes", w.length, "chunks", w.chunks)
	return nil
}

// Abort discards every chunk written so far. The blob was never visible, so
// this is pure cleanup; failures only cost disk space until the GC worker
// rewrites the value log.
func (w *WriteSink) Abort() {
	w.closed = true
	w.buf = nil
	if err := w.store.deleteChunks(w.name); err != nil {
		w.store.log.Warn("Failed to clean up aborted upload", "name", w.name, "error", err)
	}
}

package blobstore

import "io"

// Reader streams a committed blob chunk by chunk. It never loads more than
// one chunk at a time.
type Reader struct {
	store *Store
	meta  Meta
	seq   int
	buf   []byte
}

var _ io.ReadCloser = (*Reader)(nil)

func (r *Reader) Meta() Meta {
	return r.meta
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		if r.seq >= r.meta.Chunks {
			return 0, io.EOF
		}
		chunk, err := r.store.readChunk(r.meta.Name, r.seq)
		if err != nil {
			return 0, err
		}
		r.seq++
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Close implements io.Closer; there is nothing to release.
func (r *Reader) Close() error {
	return nil
}

package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Ensure *GCWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*GCWorker)(nil)

// GCWorker periodically reclaims space in the badger value log. Blob chunks
// are large values, so abandoned uploads and removed blobs only free disk
// space once the value log is rewritten.
type GCWorker struct {
	db       *badger.DB
	interval time.Duration
	log      *slog.Logger
}

func NewGCWorker(db *badger.DB, interval time.Duration, log *slog.Logger) *GCWorker {
	return &GCWorker{db: db, interval: interval, log: log}
}

func (w *GCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call.
			// Loop until badger reports nothing left to rewrite.
			for {
				if err := w.db.RunValueLogGC(0.5); err != nil {
					if err != badger.ErrNoRewrite {
						w.log.Warn("Value log GC failed", "error", err)
					}
					break
				}
				w.log.Debug("Value log file reclaimed")
			}
		}
	}
}

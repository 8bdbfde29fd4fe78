// cleanup.go - Retention janitor.
//
// Soft-deleted records stay queryable through /history until the owner
// clears them, but they must not pile up forever: the janitor hard-deletes
// rows whose deletion predates the retention window and removes their
// payload objects.
package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type janitor struct {
	store    FileStore
	blobs    BlobStore
	log      *zap.Logger
	interval time.Duration
	maxAge   time.Duration
}

// run sweeps immediately, then on every tick until the context ends.
func (j *janitor) run(ctx context.Context) {
	j.log.Info("retention janitor starting",
		zap.Duration("interval", j.interval), zap.Duration("max_age", j.maxAge))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.maxAge)
	ids, err := j.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		j.log.Error("retention sweep failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := j.blobs.Remove(ctx, "uploads/"+id); err != nil {
			// Row is already gone; the orphaned object is logged, not fatal.
			j.log.Warn("expired payload removal failed",
				zap.String("file_id", id), zap.Error(err))
		}
	}
	if len(ids) > 0 {
		metricRetentionPurged.Add(float64(len(ids)))
		j.log.Info("retention sweep complete", zap.Int("purged", len(ids)))
	}
}

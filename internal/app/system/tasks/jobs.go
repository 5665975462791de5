// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/stockboard/stockboard/internal/app/store/actions"
	"github.com/stockboard/stockboard/internal/app/store/archive"
	"github.com/stockboard/stockboard/internal/app/store/dailysessions"
	"github.com/stockboard/stockboard/internal/app/store/rawsessions"
)

// InactiveSessionCleanupJob creates a job that closes raw sessions with
// no activity inside the threshold. Clients that crashed or lost power
// never send their session end, so this is how their rows get closed.
func InactiveSessionCleanupJob(raw *rawsessions.Store, logger *zap.Logger, threshold time.Duration) Job {
	return Job{
		Name:     "inactive-session-cleanup",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			closed, err := raw.CloseInactive(ctx, threshold, time.Now())
			if err != nil {
				return err
			}
			if closed > 0 {
				logger.Info("closed inactive sessions",
					zap.Int64("count", closed),
					zap.Duration("threshold", threshold))
			}
			return nil
		},
	}
}

// ActionPruneJob creates a job that prunes action events past the
// retention window. The daily records keep the consolidated totals, so
// old raw events only cost storage.
func ActionPruneJob(acts *actions.Store, logger *zap.Logger, retention time.Duration) Job {
	return Job{
		Name:     "action-prune",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			deleted, err := acts.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("pruned old action events",
					zap.Int64("deleted", deleted),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// ArchiveJob creates a job that moves daily records past the retention
// window into the archive collection.
func ArchiveJob(daily *dailysessions.Store, arch *archive.Store, logger *zap.Logger, retentionDays int) Job {
	return Job{
		Name:     "daily-session-archive",
		Interval: 12 * time.Hour,
		Run: func(ctx context.Context) error {
			archived, err := ArchiveDailyRecords(ctx, daily, arch, retentionDays, time.Now())
			if err != nil {
				return err
			}
			if archived > 0 {
				logger.Info("archived daily session records",
					zap.Int64("count", archived),
					zap.Int("retention_days", retentionDays))
			}
			return nil
		},
	}
}

// ArchiveDailyRecords summarizes and moves daily records older than the
// retention window, then deletes them from the live collection. Each
// summary is written before its source is deleted, so a crash
// mid-pass leaves records duplicated in the archive, never lost; the
// unique archive key makes the re-run converge.
func ArchiveDailyRecords(ctx context.Context, daily *dailysessions.Store, arch *archive.Store, retentionDays int, now time.Time) (int64, error) {
	cutoff := dailysessions.DateKey(now.AddDate(0, 0, -retentionDays))
	recs, err := daily.FindOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	var archived int64
	for _, rec := range recs {
		if err := arch.Insert(ctx, archive.Summarize(rec, now)); err != nil {
			return archived, err
		}
		if _, err := daily.DeleteByIDs(ctx, []primitive.ObjectID{rec.ID}); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/watchd/internal/app/notify"
	"github.com/dalemusser/watchd/internal/app/store/oauthstate"
	"go.uber.org/zap"
)

// OAuthStateCleanupJob removes expired OAuth state tokens. A backup for
// when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(stateStore *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// WeeklyDigestJob sends the weekly digest on an internal schedule. Used
// when no external scheduler is configured to hit the digest endpoint.
func WeeklyDigestJob(digest *notify.DigestBuilder, logger *zap.Logger) Job {
	return Job{
		Name:     "weekly-digest",
		Interval: 7 * 24 * time.Hour,
		Run: func(ctx context.Context) error {
			sent, err := digest.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("weekly digest run complete", zap.Int("sent", sent))
			return nil
		},
	}
}

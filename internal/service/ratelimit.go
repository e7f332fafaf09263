package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RateLimiter counts a principal's recent tracking rows against a fixed
// ceiling. The count lives in the metadata store, not in memory, so it
// holds across instances.
type RateLimiter struct {
	uploads UploadStore
	window  time.Duration
	ceiling int
	log     zerolog.Logger
	now     func() time.Time
}

func NewRateLimiter(uploads UploadStore, window time.Duration, ceiling int, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		uploads: uploads,
		window:  window,
		ceiling: ceiling,
		now:     time.Now,
		log:     log,
	}
}

// Allow returns a ThrottleError when the trailing-window count has reached
// the ceiling. A failing count query lets the upload through: the upload
// path stays available when the accounting query is degraded, enforcement
// only acts on a count it actually obtained.
func (l *RateLimiter) Allow(ctx context.Context, ownerID string) error {
	if l.ceiling <= 0 {
		return nil
	}
	since := l.now().Add(-l.window)
	count, err := l.uploads.CountRecentByOwner(ctx, ownerID, since)
	if err != nil {
		l.log.Warn().Err(err).Str("owner_id", ownerID).Msg("rate limit count failed, allowing upload")
		return nil
	}
	if count >= l.ceiling {
		return &ThrottleError{RetryAfter: l.window}
	}
	return nil
}

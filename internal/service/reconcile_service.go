package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ReconcileService settles an editing session: keys the client kept are
// promoted to attached, everything else the session uploaded is purged.
// Promotion strictly precedes purging, so a concurrent reader never sees a
// kept key already deleted.
type ReconcileService struct {
	uploads UploadStore
	store   BlobStore
	locks   SessionLocker
	log     zerolog.Logger
	now     func() time.Time
}

func NewReconcileService(uploads UploadStore, store BlobStore, locks SessionLocker, log zerolog.Logger) *ReconcileService {
	return &ReconcileService{
		uploads: uploads,
		store:   store,
		locks:   locks,
		log:     log,
		now:     time.Now,
	}
}

// Finalize promotes the used keys of (owner, session) to attached under
// listingID and deletes every other temp key of that session, blob first.
// Used keys without a temp row are ignored: they are either already attached
// from an earlier finalize or pre-existing keys carried over from initial
// data. Calling Finalize again with the same arguments is a no-op.
func (s *ReconcileService) Finalize(ctx context.Context, ownerID, sessionID, listingID string, usedKeys []string) error {
	release, err := s.locks.Acquire(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session lock: %w", err)
	}
	defer release()

	if err := s.uploads.PromoteToAttached(ctx, ownerID, sessionID, listingID, usedKeys); err != nil {
		return fmt.Errorf("promote keys: %w", err)
	}

	remaining, err := s.uploads.ListTempKeys(ctx, ownerID, sessionID)
	if err != nil {
		return fmt.Errorf("list leftover keys: %w", err)
	}

	used := make(map[string]struct{}, len(usedKeys))
	for _, key := range usedKeys {
		used[key] = struct{}{}
	}
	var leftover []string
	for _, key := range remaining {
		if _, ok := used[key]; !ok {
			leftover = append(leftover, key)
		}
	}

	s.purge(ctx, leftover)
	return nil
}

// CleanupSession drops every temp row and blob of one session. It never
// fails from the caller's point of view; an empty session is simply done.
func (s *ReconcileService) CleanupSession(ctx context.Context, ownerID, sessionID string) {
	release, err := s.locks.Acquire(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("cleanup skipped, session busy")
		return
	}
	defer release()

	keys, err := s.uploads.ListTempKeys(ctx, ownerID, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("cleanup list failed")
		return
	}
	s.purge(ctx, keys)
}

// SweepStale removes temp rows older than the retention threshold across all
// sessions. It returns how many rows were purged.
func (s *ReconcileService) SweepStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.uploads.ListStaleTemp(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale uploads: %w", err)
	}

	keys := make([]string, 0, len(stale))
	for _, rec := range stale {
		keys = append(keys, rec.StorageKey)
	}
	s.purge(ctx, keys)
	return len(keys), nil
}

// purge deletes blobs best-effort, then their rows. A blob that will not
// delete keeps its row so a later sweep can retry it.
func (s *ReconcileService) purge(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}

	deletable := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("storage_key", key).Msg("blob delete failed, leaving for sweep")
			continue
		}
		deletable = append(deletable, key)
	}

	if err := s.uploads.DeleteByKeys(ctx, deletable); err != nil {
		s.log.Error().Err(err).
			Strs("storage_keys", deletable).
			Msg("tracking row delete failed after blob removal")
	}
}

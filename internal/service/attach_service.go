package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/security"
)

type AttachMode string

const (
	AttachModeCreate AttachMode = "create"
	AttachModeUpdate AttachMode = "update"
)

type AttachInput struct {
	OwnerID     string
	SessionID   string
	ListingID   string
	OrderedKeys []string
	Mode        AttachMode
}

// AttachService replaces the ordered image set of one listing. The listing
// row and its image rows live in different tables without a shared
// transaction against the blob store, so each path carries its own
// compensation: create mode deletes the just-created listing, update mode
// restores the previous image set.
type AttachService struct {
	listings   ListingStore
	images     ListingImageStore
	uploads    UploadStore
	store      BlobStore
	reconciler Finalizer
	log        zerolog.Logger
}

func NewAttachService(listings ListingStore, images ListingImageStore, uploads UploadStore, store BlobStore, reconciler Finalizer, log zerolog.Logger) *AttachService {
	return &AttachService{
		listings:   listings,
		images:     images,
		uploads:    uploads,
		store:      store,
		reconciler: reconciler,
		log:        log,
	}
}

func (s *AttachService) AttachImages(ctx context.Context, input AttachInput) error {
	if err := security.ValidateSessionID(input.SessionID); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	switch input.Mode {
	case AttachModeCreate:
		return s.attachCreate(ctx, input)
	case AttachModeUpdate:
		return s.attachUpdate(ctx, input)
	default:
		return validationf("unknown attach mode %q", input.Mode)
	}
}

// attachCreate treats the listing row and its images as one unit: if the
// images cannot be attached, the listing row created in the same operation
// is deleted again.
func (s *AttachService) attachCreate(ctx context.Context, input AttachInput) error {
	if err := s.checkKeys(ctx, input); err != nil {
		s.compensateDeleteListing(ctx, input.ListingID, input.OrderedKeys)
		return err
	}

	rows := s.buildRows(input.ListingID, input.OrderedKeys)
	if err := s.images.InsertBatch(ctx, rows); err != nil {
		s.compensateDeleteListing(ctx, input.ListingID, input.OrderedKeys)
		return fmt.Errorf("attach images: %w", err)
	}

	return s.finalize(ctx, input)
}

// attachUpdate must never leave an existing listing worse off than before:
// the current image set is snapshotted and reinserted if the replace fails.
func (s *AttachService) attachUpdate(ctx context.Context, input AttachInput) error {
	snapshot, err := s.images.ListByListing(ctx, input.ListingID)
	if err != nil {
		return fmt.Errorf("read current images: %w", err)
	}

	if err := s.checkKeys(ctx, input); err != nil {
		return err
	}

	if err := s.images.DeleteByListing(ctx, input.ListingID); err != nil {
		return fmt.Errorf("clear current images: %w", err)
	}

	rows := s.buildRows(input.ListingID, input.OrderedKeys)
	if err := s.images.InsertBatch(ctx, rows); err != nil {
		if restoreErr := s.images.InsertBatch(ctx, snapshot); restoreErr != nil {
			s.log.Error().Err(restoreErr).
				Str("listing_id", input.ListingID).
				Msg("image snapshot restore failed, listing left without images")
		}
		return fmt.Errorf("attach images: %w", err)
	}

	if err := s.finalize(ctx, input); err != nil {
		return err
	}

	s.removeDroppedBlobs(ctx, snapshot, input.OrderedKeys)
	return nil
}

// checkKeys gates an attach on key shape, ownership and cross-store
// consistency. It performs no mutation.
func (s *AttachService) checkKeys(ctx context.Context, input AttachInput) error {
	if err := security.ValidateKeys(input.OrderedKeys); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := security.ValidateOwnedKeys(input.OwnerID, input.OrderedKeys); err != nil {
		return &OwnershipError{Reason: err.Error()}
	}

	seen := make(map[string]struct{}, len(input.OrderedKeys))
	for _, key := range input.OrderedKeys {
		if _, ok := seen[key]; ok {
			return validationf("duplicate key %s", key)
		}
		seen[key] = struct{}{}
	}

	var missing []string
	for _, key := range input.OrderedKeys {
		rec, err := s.uploads.GetByKey(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrUploadNotFound) {
				missing = append(missing, key)
				continue
			}
			return fmt.Errorf("lookup tracking row: %w", err)
		}
		if rec.OwnerID != input.OwnerID {
			return &OwnershipError{Reason: "key owned by another principal: " + key}
		}
		// A temp key from another session would never be promoted by this
		// session's finalize: its row would stay temp while the listing
		// references it, and the retention sweep would take the blob.
		if rec.Status == models.UploadStatusTemp && rec.SessionID != input.SessionID {
			return &OwnershipError{Reason: "key belongs to another session: " + key}
		}
		if rec.Status == models.UploadStatusAttached && (rec.ListingID == nil || *rec.ListingID != input.ListingID) {
			return &OwnershipError{Reason: "key attached to another listing: " + key}
		}

		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check blob %s: %w", key, err)
		}
		if !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &StorageInconsistencyError{MissingKeys: missing}
	}
	return nil
}

func (s *AttachService) buildRows(listingID string, keys []string) []models.ListingImage {
	rows := make([]models.ListingImage, 0, len(keys))
	for i, key := range keys {
		rows = append(rows, models.ListingImage{
			ListingID:  listingID,
			StorageKey: key,
			PublicURL:  s.store.PublicURL(key),
			IsCover:    i == 0,
			SortOrder:  i,
		})
	}
	return rows
}

func (s *AttachService) finalize(ctx context.Context, input AttachInput) error {
	if err := s.reconciler.Finalize(ctx, input.OwnerID, input.SessionID, input.ListingID, input.OrderedKeys); err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	return nil
}

func (s *AttachService) compensateDeleteListing(ctx context.Context, listingID string, keys []string) {
	if err := s.listings.Delete(ctx, listingID); err != nil {
		s.log.Error().Err(err).
			Str("listing_id", listingID).
			Strs("storage_keys", keys).
			Msg("compensating listing delete failed, partial listing left behind")
	}
}

// removeDroppedBlobs clears blobs the update removed from the listing. Their
// rows were attached to this listing, so the keys cannot be referenced
// anywhere else; failure costs storage, not correctness.
func (s *AttachService) removeDroppedBlobs(ctx context.Context, snapshot []models.ListingImage, newKeys []string) {
	kept := make(map[string]struct{}, len(newKeys))
	for _, key := range newKeys {
		kept[key] = struct{}{}
	}
	var removed []string
	for _, img := range snapshot {
		if _, ok := kept[img.StorageKey]; !ok {
			removed = append(removed, img.StorageKey)
		}
	}
	for _, key := range removed {
		if err := s.store.Remove(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("storage_key", key).Msg("dropped blob delete failed")
			continue
		}
		if err := s.uploads.DeleteByKeys(ctx, []string{key}); err != nil {
			s.log.Warn().Err(err).Str("storage_key", key).Msg("dropped key row delete failed")
		}
	}
}

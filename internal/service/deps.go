package service

import (
	"context"
	"io"
	"time"

	"estatehub/api/internal/models"
)

// UploadStore is the upload_records surface of the metadata store.
// *repository.UploadRepository implements it.
type UploadStore interface {
	InsertTemp(ctx context.Context, rec models.UploadRecord) error
	GetByKey(ctx context.Context, storageKey string) (models.UploadRecord, error)
	CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int, error)
	PromoteToAttached(ctx context.Context, ownerID, sessionID, listingID string, keys []string) error
	ListTempKeys(ctx context.Context, ownerID, sessionID string) ([]string, error)
	DeleteByKeys(ctx context.Context, keys []string) error
	ListStaleTemp(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadRecord, error)
}

type ListingStore interface {
	GetByID(ctx context.Context, id string) (models.Listing, error)
	Delete(ctx context.Context, id string) error
}

type ListingImageStore interface {
	InsertBatch(ctx context.Context, images []models.ListingImage) error
	ListByListing(ctx context.Context, listingID string) ([]models.ListingImage, error)
	DeleteByListing(ctx context.Context, listingID string) error
}

// BlobStore is the object store capability. *storage.ObjectStore implements it.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// Finalizer is the reconciler surface the attacher calls after its rows are
// in place. *ReconcileService implements it.
type Finalizer interface {
	Finalize(ctx context.Context, ownerID, sessionID, listingID string, usedKeys []string) error
}

// SessionLocker serializes finalize/cleanup per session id.
// *cache.SessionLock implements it.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID string) (func(), error)
}

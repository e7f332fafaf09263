package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
)

// -------- in-memory fakes --------

type fakeUploadStore struct {
	mu      sync.Mutex
	records map[string]models.UploadRecord // keyed by storage key

	insertErr  error
	countErr   error
	count      int
	promoteErr error
	listErr    error
	deleteErr  error
}

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{records: make(map[string]models.UploadRecord)}
}

func (f *fakeUploadStore) InsertTemp(ctx context.Context, rec models.UploadRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.Status = models.UploadStatusTemp
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	f.records[rec.StorageKey] = rec
	return nil
}

func (f *fakeUploadStore) GetByKey(ctx context.Context, storageKey string) (models.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[storageKey]
	if !ok {
		return models.UploadRecord{}, repository.ErrUploadNotFound
	}
	return rec, nil
}

func (f *fakeUploadStore) CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.count > 0 {
		return f.count, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeUploadStore) PromoteToAttached(ctx context.Context, ownerID, sessionID, listingID string, keys []string) error {
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		rec, ok := f.records[key]
		if !ok || rec.OwnerID != ownerID || rec.SessionID != sessionID || rec.Status != models.UploadStatusTemp {
			continue
		}
		id := listingID
		rec.Status = models.UploadStatusAttached
		rec.ListingID = &id
		f.records[key] = rec
	}
	return nil
}

func (f *fakeUploadStore) ListTempKeys(ctx context.Context, ownerID, sessionID string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.SessionID == sessionID && rec.Status == models.UploadStatusTemp {
			keys = append(keys, rec.StorageKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeUploadStore) DeleteByKeys(ctx context.Context, keys []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.records, key)
	}
	return nil
}

func (f *fakeUploadStore) ListStaleTemp(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []models.UploadRecord
	for _, rec := range f.records {
		if rec.Status == models.UploadStatusTemp && rec.CreatedAt.Before(cutoff) {
			stale = append(stale, rec)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	putErr    error
	removeErr map[string]error
	existsErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		blobs:     make(map[string][]byte),
		removeErr: make(map[string]error),
	}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = buf.Bytes()
	return nil
}

func (f *fakeBlobStore) Remove(ctx context.Context, key string) error {
	if err := f.removeErr[key]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

func (f *fakeBlobStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeBlobStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok
}

type fakeSessionLock struct {
	mu       sync.Mutex
	acquired int
	err      error
}

func (f *fakeSessionLock) Acquire(ctx context.Context, sessionID string) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.acquired++
	f.mu.Unlock()
	return func() {}, nil
}

type fakeListingStore struct {
	mu       sync.Mutex
	listings map[string]models.Listing
	deleted  []string

	deleteErr error
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{listings: make(map[string]models.Listing)}
}

func (f *fakeListingStore) GetByID(ctx context.Context, id string) (models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return models.Listing{}, repository.ErrListingNotFound
	}
	return listing, nil
}

func (f *fakeListingStore) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.listings, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeListingImageStore struct {
	mu   sync.Mutex
	rows map[string][]models.ListingImage // keyed by listing id

	insertErrs []error // popped per InsertBatch call
	listErr    error
	deleteErr  error
}

func newFakeListingImageStore() *fakeListingImageStore {
	return &fakeListingImageStore{rows: make(map[string][]models.ListingImage)}
}

func (f *fakeListingImageStore) InsertBatch(ctx context.Context, images []models.ListingImage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if len(images) == 0 {
		return nil
	}
	listingID := images[0].ListingID
	f.rows[listingID] = append(f.rows[listingID], images...)
	return nil
}

func (f *fakeListingImageStore) ListByListing(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ListingImage, len(f.rows[listingID]))
	copy(out, f.rows[listingID])
	return out, nil
}

func (f *fakeListingImageStore) DeleteByListing(ctx context.Context, listingID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, listingID)
	return nil
}

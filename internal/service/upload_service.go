package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"estatehub/api/internal/config"
	"estatehub/api/internal/ids"
	"estatehub/api/internal/media/sniffer"
	"estatehub/api/internal/models"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/security"
)

type RecordUploadInput struct {
	OwnerID   string
	SessionID string
	File      multipart.File
	Header    *multipart.FileHeader
}

type RecordUploadResult struct {
	Key       string
	PublicURL string
}

// UploadService is the upload recorder: it validates one file, writes the
// blob, then writes the temp tracking row. The blob write and the row insert
// cannot share a transaction, so a failed insert is compensated by deleting
// the blob again.
type UploadService struct {
	uploads UploadStore
	store   BlobStore
	limiter *RateLimiter
	cfg     config.UploadConfig
	log     zerolog.Logger
}

func NewUploadService(uploads UploadStore, store BlobStore, limiter *RateLimiter, cfg config.UploadConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		uploads: uploads,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
	}
}

func (s *UploadService) RecordUpload(ctx context.Context, input RecordUploadInput) (RecordUploadResult, error) {
	if input.File == nil || input.Header == nil {
		return RecordUploadResult{}, validationf("missing file payload")
	}
	if err := security.ValidateSessionID(input.SessionID); err != nil {
		return RecordUploadResult{}, &ValidationError{Reason: err.Error()}
	}
	if input.Header.Size > s.cfg.MaxBytes {
		return RecordUploadResult{}, validationf("file exceeds %d bytes", s.cfg.MaxBytes)
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header))
	ext, ok := sniffer.Extension(declared)
	if !ok {
		return RecordUploadResult{}, validationf("content type %q not allowed", declared)
	}

	data, err := io.ReadAll(input.File)
	if err != nil {
		return RecordUploadResult{}, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return RecordUploadResult{}, validationf("empty file")
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return RecordUploadResult{}, validationf("file exceeds %d bytes", s.cfg.MaxBytes)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected, err := sniffer.DetectHead(head)
	if err != nil {
		return RecordUploadResult{}, validationf("unrecognized or forbidden content")
	}
	if detected.MIME != declared {
		return RecordUploadResult{}, validationf("content type mismatch: declared %s, actual %s", declared, detected.MIME)
	}

	if err := s.limiter.Allow(ctx, input.OwnerID); err != nil {
		return RecordUploadResult{}, err
	}

	key := security.SessionKeyPrefix(input.OwnerID, input.SessionID) + ids.New() + "." + ext

	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIME); err != nil {
		return RecordUploadResult{}, fmt.Errorf("store blob: %w", err)
	}

	rec := models.UploadRecord{
		ID:          ids.New(),
		OwnerID:     input.OwnerID,
		SessionID:   input.SessionID,
		StorageKey:  key,
		Status:      models.UploadStatusTemp,
		SizeBytes:   int64(len(data)),
		ContentType: detected.MIME,
	}
	if err := s.uploads.InsertTemp(ctx, rec); err != nil {
		// The blob is already durable; without this delete it would be
		// untracked forever.
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.log.Error().Err(rmErr).
				Str("storage_key", key).
				Str("owner_id", input.OwnerID).
				Msg("compensating blob delete failed, orphan left behind")
		}
		return RecordUploadResult{}, fmt.Errorf("save tracking row: %w", err)
	}

	return RecordUploadResult{
		Key:       key,
		PublicURL: s.store.PublicURL(key),
	}, nil
}

// DeleteTrackedImage removes one still-temp key the caller owns, blob first.
// Attached keys only leave through their listing's image update.
func (s *UploadService) DeleteTrackedImage(ctx context.Context, ownerID, key string) error {
	if err := security.ValidateKeys([]string{key}); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	rec, err := s.uploads.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrUploadNotFound) {
			return validationf("unknown storage key")
		}
		return fmt.Errorf("lookup tracking row: %w", err)
	}
	if rec.OwnerID != ownerID {
		return &OwnershipError{Reason: "key owned by another principal"}
	}
	if rec.Status != models.UploadStatusTemp {
		return validationf("key is attached to a listing")
	}

	if err := s.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	if err := s.uploads.DeleteByKeys(ctx, []string{key}); err != nil {
		s.log.Error().Err(err).
			Str("storage_key", key).
			Msg("tracking row delete failed after blob removal")
		return fmt.Errorf("delete tracking row: %w", err)
	}
	return nil
}

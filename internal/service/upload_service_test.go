package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatehub/api/internal/config"
	"estatehub/api/internal/models"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0x0}, 64)...)

func uploadCfg() config.UploadConfig {
	return config.UploadConfig{
		MaxBytes:    8 << 20,
		RateWindow:  time.Minute,
		RateCeiling: 20,
	}
}

func newUploadService(uploads UploadStore, store BlobStore, cfg config.UploadConfig) *UploadService {
	limiter := NewRateLimiter(uploads, cfg.RateWindow, cfg.RateCeiling, zerolog.Nop())
	return NewUploadService(uploads, store, limiter, cfg, zerolog.Nop())
}

// multipartFile builds a real multipart.File/FileHeader pair the way gin
// hands them to the service.
func multipartFile(t *testing.T, contentType string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="upload.bin"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	return file, header
}

func TestRecordUploadStoresBlobAndTempRow(t *testing.T) {
	uploads := newFakeUploadStore()
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	file, header := multipartFile(t, "image/png", pngBytes)
	result, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Key, "properties/u1/session-0001/"))
	assert.True(t, strings.HasSuffix(result.Key, ".png"))
	assert.Contains(t, result.PublicURL, result.Key)
	assert.True(t, blobs.has(result.Key))

	rec, err := uploads.GetByKey(context.Background(), result.Key)
	require.NoError(t, err)
	assert.Equal(t, models.UploadStatusTemp, rec.Status)
	assert.Equal(t, "u1", rec.OwnerID)
	assert.Equal(t, "session-0001", rec.SessionID)
}

func TestRecordUploadAcceptsContentTypeWithParameters(t *testing.T) {
	uploads := newFakeUploadStore()
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	// The declared type arrives through the part's MIME header; parameters
	// after the media type must not defeat the allow-list lookup.
	file, header := multipartFile(t, "image/png; charset=binary", pngBytes)
	result, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Key, ".png"))
}

func TestRecordUploadNoOrphanOnInsertFailure(t *testing.T) {
	uploads := newFakeUploadStore()
	uploads.insertErr = errors.New("insert boom")
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	file, header := multipartFile(t, "image/png", pngBytes)
	_, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})
	require.Error(t, err)

	// The compensating delete must have removed the just-written blob.
	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	assert.Empty(t, blobs.blobs)
}

func TestRecordUploadRejectsOversizedFile(t *testing.T) {
	cfg := uploadCfg()
	cfg.MaxBytes = 16
	svc := newUploadService(newFakeUploadStore(), newFakeBlobStore(), cfg)

	file, header := multipartFile(t, "image/png", pngBytes)
	_, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRecordUploadRejectsDisallowedMime(t *testing.T) {
	svc := newUploadService(newFakeUploadStore(), newFakeBlobStore(), uploadCfg())

	file, header := multipartFile(t, "image/svg+xml", []byte(`<svg xmlns="x"></svg>`))
	_, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRecordUploadRejectsContentMismatch(t *testing.T) {
	blobs := newFakeBlobStore()
	svc := newUploadService(newFakeUploadStore(), blobs, uploadCfg())

	// Declared png, actually a gif.
	gif := append([]byte("GIF89a"), bytes.Repeat([]byte{0x0}, 32)...)
	file, header := multipartFile(t, "image/png", gif)
	_, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "session-0001",
		File:      file,
		Header:    header,
	})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, blobs.blobs)
}

func TestRecordUploadRejectsMalformedSessionID(t *testing.T) {
	svc := newUploadService(newFakeUploadStore(), newFakeBlobStore(), uploadCfg())

	file, header := multipartFile(t, "image/png", pngBytes)
	_, err := svc.RecordUpload(context.Background(), RecordUploadInput{
		OwnerID:   "u1",
		SessionID: "../etc",
		File:      file,
		Header:    header,
	})

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRateLimitBoundary(t *testing.T) {
	uploads := newFakeUploadStore()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Exactly the ceiling count inside the window.
	for i := 0; i < 20; i++ {
		require.NoError(t, uploads.InsertTemp(context.Background(), models.UploadRecord{
			ID:         string(rune('a' + i)),
			OwnerID:    "u1",
			SessionID:  "session-0001",
			StorageKey: "properties/u1/session-0001/" + string(rune('a'+i)) + ".png",
			CreatedAt:  base.Add(-time.Duration(i) * time.Second),
		}))
	}

	limiter := NewRateLimiter(uploads, time.Minute, 20, zerolog.Nop())
	limiter.now = func() time.Time { return base }

	var throttle *ThrottleError
	err := limiter.Allow(context.Background(), "u1")
	require.ErrorAs(t, err, &throttle)
	assert.Equal(t, time.Minute, throttle.RetryAfter)

	// One window later all prior uploads have aged out.
	limiter.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	require.NoError(t, limiter.Allow(context.Background(), "u1"))
}

func TestRateLimitFailsOpenOnCountError(t *testing.T) {
	uploads := newFakeUploadStore()
	uploads.countErr = errors.New("db down")

	limiter := NewRateLimiter(uploads, time.Minute, 20, zerolog.Nop())
	require.NoError(t, limiter.Allow(context.Background(), "u1"))
}

func TestDeleteTrackedImage(t *testing.T) {
	uploads := newFakeUploadStore()
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	key := "properties/u1/session-0001/a.png"
	require.NoError(t, blobs.Put(context.Background(), key, bytes.NewReader(pngBytes), int64(len(pngBytes)), "image/png"))
	require.NoError(t, uploads.InsertTemp(context.Background(), models.UploadRecord{
		ID: "rec1", OwnerID: "u1", SessionID: "session-0001", StorageKey: key,
	}))

	require.NoError(t, svc.DeleteTrackedImage(context.Background(), "u1", key))
	assert.False(t, blobs.has(key))
	_, err := uploads.GetByKey(context.Background(), key)
	require.Error(t, err)
}

func TestDeleteTrackedImageRefusesForeignKey(t *testing.T) {
	uploads := newFakeUploadStore()
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	key := "properties/u2/session-0002/a.png"
	require.NoError(t, uploads.InsertTemp(context.Background(), models.UploadRecord{
		ID: "rec1", OwnerID: "u2", SessionID: "session-0002", StorageKey: key,
	}))

	err := svc.DeleteTrackedImage(context.Background(), "u1", key)
	var ownership *OwnershipError
	require.ErrorAs(t, err, &ownership)
}

func TestDeleteTrackedImageRefusesAttachedKey(t *testing.T) {
	uploads := newFakeUploadStore()
	blobs := newFakeBlobStore()
	svc := newUploadService(uploads, blobs, uploadCfg())

	key := "properties/u1/session-0001/a.png"
	require.NoError(t, uploads.InsertTemp(context.Background(), models.UploadRecord{
		ID: "rec1", OwnerID: "u1", SessionID: "session-0001", StorageKey: key,
	}))
	require.NoError(t, uploads.PromoteToAttached(context.Background(), "u1", "session-0001", "lst1", []string{key}))

	err := svc.DeleteTrackedImage(context.Background(), "u1", key)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

package models

import "time"

type UploadStatus string

const (
	UploadStatusTemp     UploadStatus = "temp"
	UploadStatusAttached UploadStatus = "attached"
)

// UploadRecord tracks one blob from the moment it lands in the store. A
// record stays "temp" for the lifetime of its editing session and is either
// promoted to "attached" with a listing id, or deleted together with its
// blob.
type UploadRecord struct {
	ID          string
	OwnerID     string
	SessionID   string
	StorageKey  string
	Status      UploadStatus
	ListingID   *string
	SizeBytes   int64
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

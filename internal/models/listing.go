package models

import "time"

type Listing struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListingImage rows are replaced as a whole set whenever a listing's image
// list changes. sort_order is dense and zero-based; the cover is the row at
// sort_order 0.
type ListingImage struct {
	ListingID  string
	StorageKey string
	PublicURL  string
	IsCover    bool
	SortOrder  int
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estatehub/api/internal/models"
)

type ListingImageRepository struct {
	pool *pgxpool.Pool
}

func NewListingImageRepository(pool *pgxpool.Pool) *ListingImageRepository {
	return &ListingImageRepository{pool: pool}
}

// InsertBatch writes the full image set of one listing in a single batched
// round trip. Any row failing aborts the batch.
func (r *ListingImageRepository) InsertBatch(ctx context.Context, images []models.ListingImage) error {
	if len(images) == 0 {
		return nil
	}
	const query = `
		INSERT INTO listing_images (listing_id, storage_key, public_url, is_cover, sort_order)
		VALUES ($1, $2, $3, $4, $5)
	`
	batch := &pgx.Batch{}
	for _, img := range images {
		batch.Queue(query, img.ListingID, img.StorageKey, img.PublicURL, img.IsCover, img.SortOrder)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range images {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert image %d: %w", i, err)
		}
	}
	return nil
}

func (r *ListingImageRepository) ListByListing(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	const query = `
		SELECT listing_id, storage_key, public_url, is_cover, sort_order
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY sort_order
	`
	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.ListingImage
	for rows.Next() {
		var img models.ListingImage
		if err := rows.Scan(
			&img.ListingID,
			&img.StorageKey,
			&img.PublicURL,
			&img.IsCover,
			&img.SortOrder,
		); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *ListingImageRepository) DeleteByListing(ctx context.Context, listingID string) error {
	const query = `DELETE FROM listing_images WHERE listing_id = $1`
	_, err := r.pool.Exec(ctx, query, listingID)
	return err
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estatehub/api/internal/models"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, listing models.Listing) error {
	const query = `
		INSERT INTO listings (id, owner_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, listing.ID, listing.OwnerID, listing.Title)
	return err
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (models.Listing, error) {
	const query = `
		SELECT id, owner_id, title, created_at, updated_at
		FROM listings WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)
	var listing models.Listing
	if err := row.Scan(
		&listing.ID,
		&listing.OwnerID,
		&listing.Title,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Listing{}, ErrListingNotFound
		}
		return models.Listing{}, err
	}
	return listing, nil
}

// Delete is the create-path compensating action: a listing whose images
// failed to attach is removed again. listing_images rows go with it via
// cascade.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM listings WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

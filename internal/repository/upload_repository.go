package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estatehub/api/internal/models"
)

var ErrUploadNotFound = errors.New("upload record not found")

type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

func (r *UploadRepository) InsertTemp(ctx context.Context, rec models.UploadRecord) error {
	const query = `
		INSERT INTO upload_records (
			id, owner_id, session_id, storage_key, status, size_bytes, content_type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.SessionID,
		rec.StorageKey,
		models.UploadStatusTemp,
		rec.SizeBytes,
		rec.ContentType,
	)
	return err
}

func (r *UploadRepository) GetByKey(ctx context.Context, storageKey string) (models.UploadRecord, error) {
	const query = `
		SELECT id, owner_id, session_id, storage_key, status, listing_id, size_bytes,
		       content_type, created_at, updated_at
		FROM upload_records WHERE storage_key = $1
	`
	row := r.pool.QueryRow(ctx, query, storageKey)
	var rec models.UploadRecord
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.SessionID,
		&rec.StorageKey,
		&rec.Status,
		&rec.ListingID,
		&rec.SizeBytes,
		&rec.ContentType,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UploadRecord{}, ErrUploadNotFound
		}
		return models.UploadRecord{}, err
	}
	return rec, nil
}

// CountRecentByOwner backs the rate limiter's sliding window.
func (r *UploadRepository) CountRecentByOwner(ctx context.Context, ownerID string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM upload_records
		WHERE owner_id = $1 AND created_at > $2
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, ownerID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PromoteToAttached flips the matching temp rows of one session to attached.
// Rows already attached or not present are left alone, which is what makes
// finalize idempotent.
func (r *UploadRepository) PromoteToAttached(ctx context.Context, ownerID, sessionID, listingID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `
		UPDATE upload_records
		SET status = $1, listing_id = $2, updated_at = NOW()
		WHERE owner_id = $3 AND session_id = $4 AND status = $5 AND storage_key = ANY($6)
	`
	_, err := r.pool.Exec(ctx, query,
		models.UploadStatusAttached,
		listingID,
		ownerID,
		sessionID,
		models.UploadStatusTemp,
		keys,
	)
	return err
}

func (r *UploadRepository) ListTempKeys(ctx context.Context, ownerID, sessionID string) ([]string, error) {
	const query = `
		SELECT storage_key FROM upload_records
		WHERE owner_id = $1 AND session_id = $2 AND status = $3
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, ownerID, sessionID, models.UploadStatusTemp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *UploadRepository) DeleteByKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	const query = `DELETE FROM upload_records WHERE storage_key = ANY($1)`
	_, err := r.pool.Exec(ctx, query, keys)
	return err
}

// ListStaleTemp returns temp rows older than the cutoff across all sessions,
// oldest first, for the retention sweep.
func (r *UploadRepository) ListStaleTemp(ctx context.Context, cutoff time.Time, limit int) ([]models.UploadRecord, error) {
	const query = `
		SELECT id, owner_id, session_id, storage_key, status, listing_id, size_bytes,
		       content_type, created_at, updated_at
		FROM upload_records
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, models.UploadStatusTemp, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.SessionID,
			&rec.StorageKey,
			&rec.Status,
			&rec.ListingID,
			&rec.SizeBytes,
			&rec.ContentType,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

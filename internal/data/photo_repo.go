package data

import (
	"context"
	"errors"

	"restroom/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type photoRepo struct {
	data *Data
	log  *log.Helper
}

// NewPhotoRepo creates a new PhotoRepo.
func NewPhotoRepo(data *Data, logger log.Logger) biz.PhotoRepo {
	return &photoRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

const photoColumns = "id, review_id, storage_key, url, sort_order, status, created_at, updated_at"

// CreateBatch implements biz.PhotoRepo. All inserts share one transaction so
// the batch becomes visible atomically.
func (r *photoRepo) CreateBatch(ctx context.Context, photos []*biz.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	tx, err := r.data.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, p := range photos {
		_, err := tx.Exec(ctx,
			`INSERT INTO review_photos (id, review_id, storage_key, url, sort_order, status)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID.String(), p.ReviewID.String(), p.StorageKey, p.URL, p.SortOrder, string(p.Status))
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// FindByID implements biz.PhotoRepo.
func (r *photoRepo) FindByID(ctx context.Context, id uuid.UUID) (*biz.Photo, error) {
	row := r.data.Pool.QueryRow(ctx,
		`SELECT `+photoColumns+` FROM review_photos WHERE id = $1`, id.String())
	photo, err := scanPhoto(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return photo, nil
}

// ListByIDsForOwner implements biz.PhotoRepo.
func (r *photoRepo) ListByIDsForOwner(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*biz.Photo, error) {
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	rows, err := r.data.Pool.Query(ctx,
		`SELECT p.id, p.review_id, p.storage_key, p.url, p.sort_order, p.status, p.created_at, p.updated_at
		 FROM review_photos p
		 JOIN reviews rv ON rv.id = p.review_id
		 WHERE p.id = ANY($1::uuid[]) AND rv.owner_id = $2`,
		idStrs, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// ListByReview implements biz.PhotoRepo.
func (r *photoRepo) ListByReview(ctx context.Context, reviewID uuid.UUID) ([]*biz.Photo, error) {
	rows, err := r.data.Pool.Query(ctx,
		`SELECT `+photoColumns+` FROM review_photos WHERE review_id = $1 ORDER BY sort_order`,
		reviewID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPhotos(rows)
}

// CountByReview implements biz.PhotoRepo.
func (r *photoRepo) CountByReview(ctx context.Context, reviewID uuid.UUID) (int32, error) {
	var count int32
	err := r.data.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_photos WHERE review_id = $1`, reviewID.String()).Scan(&count)
	return count, err
}

// MarkTerminal implements biz.PhotoRepo. The status predicate makes the
// transition a single atomic write: a record leaves PENDING at most once.
func (r *photoRepo) MarkTerminal(ctx context.Context, id uuid.UUID, status biz.PhotoStatus) (bool, error) {
	tag, err := r.data.Pool.Exec(ctx,
		`UPDATE review_photos SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = 'PENDING'`,
		id.String(), string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByReview implements biz.PhotoRepo.
func (r *photoRepo) DeleteByReview(ctx context.Context, reviewID uuid.UUID) error {
	_, err := r.data.Pool.Exec(ctx,
		`DELETE FROM review_photos WHERE review_id = $1`, reviewID.String())
	return err
}

func scanPhoto(row pgx.Row) (*biz.Photo, error) {
	var p biz.Photo
	var id, reviewID, status string
	if err := row.Scan(&id, &reviewID, &p.StorageKey, &p.URL, &p.SortOrder, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if p.ReviewID, err = uuid.Parse(reviewID); err != nil {
		return nil, err
	}
	p.Status = biz.PhotoStatus(status)
	return &p, nil
}

func collectPhotos(rows pgx.Rows) ([]*biz.Photo, error) {
	var photos []*biz.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

package data

import (
	"context"
	"errors"

	"restroom/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type reviewRepo struct {
	data *Data
	log  *log.Helper
}

// NewReviewRepo creates a new ReviewRepo.
func NewReviewRepo(data *Data, logger log.Logger) biz.ReviewRepo {
	return &reviewRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

const reviewColumns = "id, toilet_id, owner_id, rating, comment, created_at, updated_at"

// Create implements biz.ReviewRepo.
func (r *reviewRepo) Create(ctx context.Context, review *biz.Review) (*biz.Review, error) {
	row := r.data.Pool.QueryRow(ctx,
		`INSERT INTO reviews (id, toilet_id, owner_id, rating, comment)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+reviewColumns,
		review.ID.String(), review.ToiletID.String(), review.OwnerID, review.Rating, review.Comment)
	return scanReview(row)
}

// FindByID implements biz.ReviewRepo.
func (r *reviewRepo) FindByID(ctx context.Context, id uuid.UUID) (*biz.Review, error) {
	row := r.data.Pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id.String())
	review, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return review, nil
}

// Delete implements biz.ReviewRepo.
func (r *reviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.data.Pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id.String())
	return err
}

// List implements biz.ReviewRepo.
func (r *reviewRepo) List(ctx context.Context, limit, offset int32) ([]*biz.Review, error) {
	rows, err := r.data.Pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []*biz.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

// Count implements biz.ReviewRepo.
func (r *reviewRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.data.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count)
	return count, err
}

// AverageRatingByToilet implements biz.ReviewRepo.
func (r *reviewRepo) AverageRatingByToilet(ctx context.Context, toiletID uuid.UUID) (float64, error) {
	var avg float64
	err := r.data.Pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE toilet_id = $1`,
		toiletID.String()).Scan(&avg)
	return avg, err
}

func scanReview(row pgx.Row) (*biz.Review, error) {
	var rv biz.Review
	var id, toiletID string
	if err := row.Scan(&id, &toiletID, &rv.OwnerID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if rv.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rv.ToiletID, err = uuid.Parse(toiletID); err != nil {
		return nil, err
	}
	return &rv, nil
}

package data

import (
	"context"
	"errors"

	"restroom/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
)

type badImageRepo struct {
	data *Data
	log  *log.Helper
}

// NewBadImageRepo creates a new BadImageRepo.
func NewBadImageRepo(data *Data, logger log.Logger) biz.BadImageRepo {
	return &badImageRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Save implements biz.BadImageRepo. Re-recording an existing hash keeps the
// original reason.
func (r *badImageRepo) Save(ctx context.Context, img *biz.BadImage) error {
	_, err := r.data.Pool.Exec(ctx,
		`INSERT INTO bad_images (phash, reason) VALUES ($1, $2)
		 ON CONFLICT (phash) DO NOTHING`,
		img.PHash, img.Reason)
	return err
}

// FindByPHash implements biz.BadImageRepo.
func (r *badImageRepo) FindByPHash(ctx context.Context, phash int64) (*biz.BadImage, error) {
	var img biz.BadImage
	err := r.data.Pool.QueryRow(ctx,
		`SELECT phash, reason, created_at FROM bad_images WHERE phash = $1`,
		phash).Scan(&img.PHash, &img.Reason, &img.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &img, nil
}

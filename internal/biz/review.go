package biz

import (
	"context"
	"time"

	"restroom/internal/pkg/hash"
	"restroom/internal/pkg/pagination"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

var ErrInvalidRating = errors.BadRequest("INVALID_RATING", "rating must be between 1 and 5")

// Review is a user's review of a toilet. Reviews own their photos: deleting
// a review cascades to its photo records and stored objects.
type Review struct {
	ID        uuid.UUID
	ToiletID  uuid.UUID
	OwnerID   string
	Rating    int32
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewRepo is a repository interface for reviews.
type ReviewRepo interface {
	Create(ctx context.Context, review *Review) (*Review, error)
	// FindByID returns nil when the review does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int32) ([]*Review, error)
	Count(ctx context.Context) (int64, error)
	AverageRatingByToilet(ctx context.Context, toiletID uuid.UUID) (float64, error)
}

// ReviewView is a review decorated for rendering.
type ReviewView struct {
	*Review
	PhotoURLs []string
}

// ReviewUsecase covers the review collaborator surface the photo pipeline
// depends on: existence and ownership checks, cascade deletion and the cached
// rating aggregate.
type ReviewUsecase struct {
	repo   ReviewRepo
	photos *PhotoUsecase
	rank   RankCache
	log    *log.Helper
}

// NewReviewUsecase creates a new ReviewUsecase.
func NewReviewUsecase(repo ReviewRepo, photos *PhotoUsecase, rank RankCache, logger log.Logger) *ReviewUsecase {
	return &ReviewUsecase{
		repo:   repo,
		photos: photos,
		rank:   rank,
		log:    log.NewHelper(logger),
	}
}

// Create validates and persists a review, invalidating the toilet's cached
// rating.
func (uc *ReviewUsecase) Create(ctx context.Context, ownerID string, toiletID uuid.UUID, rating int32, comment string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	review, err := uc.repo.Create(ctx, &Review{
		ID:       uuid.New(),
		ToiletID: toiletID,
		OwnerID:  ownerID,
		Rating:   rating,
		Comment:  comment,
	})
	if err != nil {
		return nil, err
	}
	if err := uc.rank.Invalidate(ctx, rankKey(toiletID)); err != nil {
		uc.log.Warnf("failed to invalidate rating cache for toilet %s: %v", toiletID, err)
	}
	return review, nil
}

// Delete removes an owned review, cascading to photo records and their
// stored objects.
func (uc *ReviewUsecase) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	review, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if review == nil {
		return ErrReviewNotFound
	}
	if review.OwnerID != ownerID {
		return ErrUnauthorized
	}
	if err := uc.photos.DeleteForReview(ctx, id); err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := uc.rank.Invalidate(ctx, rankKey(review.ToiletID)); err != nil {
		uc.log.Warnf("failed to invalidate rating cache for toilet %s: %v", review.ToiletID, err)
	}
	return nil
}

// List returns a page of reviews with their approved photo URLs attached.
func (uc *ReviewUsecase) List(ctx context.Context, page, size int) (*pagination.OffsetResponse[*ReviewView], error) {
	req := pagination.NewOffsetRequest(page, size)
	reviews, err := uc.repo.List(ctx, int32(req.GetPageSize()), int32(req.GetOffset()))
	if err != nil {
		return nil, err
	}
	total, err := uc.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*ReviewView, len(reviews))
	for i, review := range reviews {
		photos, err := uc.photos.ApprovedForReview(ctx, review.ID)
		if err != nil {
			return nil, err
		}
		urls := make([]string, len(photos))
		for j, p := range photos {
			urls[j] = p.URL
		}
		views[i] = &ReviewView{Review: review, PhotoURLs: urls}
	}
	return pagination.BuildOffsetResponse(views, req, total), nil
}

// ToiletRating returns the toilet's average rating through the rank cache.
func (uc *ReviewUsecase) ToiletRating(ctx context.Context, toiletID uuid.UUID) (float64, error) {
	return uc.rank.GetOrCompute(ctx, rankKey(toiletID), func(ctx context.Context) (float64, error) {
		return uc.repo.AverageRatingByToilet(ctx, toiletID)
	})
}

func rankKey(toiletID uuid.UUID) string {
	return "rank:toilet:" + hash.FastHashHex(toiletID.String())
}

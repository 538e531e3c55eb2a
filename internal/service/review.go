package service

import (
	"net/http"
	"strconv"
	"time"

	"restroom/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

var errBadToiletID = errors.BadRequest("BAD_TOILET_ID", "toilet id is not a valid uuid")

// ReviewService exposes the review endpoints the photo pipeline hangs off.
type ReviewService struct {
	uc *biz.ReviewUsecase
}

// NewReviewService creates a new ReviewService.
func NewReviewService(uc *biz.ReviewUsecase) *ReviewService {
	return &ReviewService{uc: uc}
}

// CreateReviewRequest is the request body for creating a review.
type CreateReviewRequest struct {
	ToiletID string `json:"toiletId"`
	Rating   int32  `json:"rating"`
	Comment  string `json:"comment"`
}

// ReviewReply is a review as rendered to clients.
type ReviewReply struct {
	ID        string   `json:"id"`
	ToiletID  string   `json:"toiletId"`
	Rating    int32    `json:"rating"`
	Comment   string   `json:"comment"`
	PhotoURLs []string `json:"photoUrls,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

// Create handles POST /v1/reviews.
func (s *ReviewService) Create(ctx khttp.Context) error {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return errMissingUser
	}
	var req CreateReviewRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	toiletID, err := uuid.Parse(req.ToiletID)
	if err != nil {
		return errBadToiletID
	}

	review, err := s.uc.Create(ctx, ownerID, toiletID, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusCreated, toReviewReply(review, nil))
}

// Delete handles DELETE /v1/reviews/{reviewID}.
func (s *ReviewService) Delete(ctx khttp.Context) error {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return errMissingUser
	}
	reviewID, err := uuid.Parse(ctx.Vars().Get("reviewID"))
	if err != nil {
		return errBadReviewID
	}
	if err := s.uc.Delete(ctx, ownerID, reviewID); err != nil {
		return err
	}
	return ctx.Result(http.StatusNoContent, nil)
}

// ListReply is a page of reviews.
type ListReply struct {
	Reviews  []*ReviewReply `json:"reviews"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// List handles GET /v1/reviews?page=&size=.
func (s *ReviewService) List(ctx khttp.Context) error {
	page := queryInt(ctx, "page", 1)
	size := queryInt(ctx, "size", 20)

	resp, err := s.uc.List(ctx, page, size)
	if err != nil {
		return err
	}
	reply := &ListReply{
		Reviews:  make([]*ReviewReply, len(resp.Items)),
		Total:    resp.TotalItems,
		Page:     resp.Page,
		PageSize: resp.PageSize,
	}
	for i, view := range resp.Items {
		reply.Reviews[i] = toReviewReply(view.Review, view.PhotoURLs)
	}
	return ctx.Result(http.StatusOK, reply)
}

// RatingReply is the cached average rating of a toilet.
type RatingReply struct {
	ToiletID string  `json:"toiletId"`
	Rating   float64 `json:"rating"`
}

// ToiletRating handles GET /v1/toilets/{toiletID}/rating.
func (s *ReviewService) ToiletRating(ctx khttp.Context) error {
	toiletID, err := uuid.Parse(ctx.Vars().Get("toiletID"))
	if err != nil {
		return errBadToiletID
	}
	rating, err := s.uc.ToiletRating(ctx, toiletID)
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, &RatingReply{ToiletID: toiletID.String(), Rating: rating})
}

func toReviewReply(review *biz.Review, photoURLs []string) *ReviewReply {
	return &ReviewReply{
		ID:        review.ID.String(),
		ToiletID:  review.ToiletID.String(),
		Rating:    review.Rating,
		Comment:   review.Comment,
		PhotoURLs: photoURLs,
		CreatedAt: review.CreatedAt.Format(time.RFC3339),
	}
}

func queryInt(ctx khttp.Context, key string, def int) int {
	n, err := strconv.Atoi(ctx.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// fakeRankCache records invalidations and always recomputes.
type fakeRankCache struct {
	invalidated []string
}

func (f *fakeRankCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (float64, error)) (float64, error) {
	return compute(ctx)
}

func (f *fakeRankCache) Invalidate(ctx context.Context, key string) error {
	f.invalidated = append(f.invalidated, key)
	return nil
}

func newReviewFixture() (*ReviewUsecase, *fakeReviewRepo, *fakePhotoRepo, *fakeObjectStore, *fakeRankCache) {
	reviews := newFakeReviewRepo()
	photos := newFakePhotoRepo()
	store := newFakeObjectStore()
	rank := &fakeRankCache{}
	photoUC := NewPhotoUsecase(photos, reviews, store, &fakeQueue{}, testLogger())
	uc := NewReviewUsecase(reviews, photoUC, rank, testLogger())
	return uc, reviews, photos, store, rank
}

func TestCreateReviewInvalidRating(t *testing.T) {
	uc, _, _, _, _ := newReviewFixture()
	for _, rating := range []int32{0, 6, -1} {
		if _, err := uc.Create(context.Background(), "user-1", uuid.New(), rating, "meh"); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("Create(rating=%d) error = %v, want ErrInvalidRating", rating, err)
		}
	}
}

func TestCreateReviewInvalidatesRatingCache(t *testing.T) {
	uc, _, _, _, rank := newReviewFixture()
	toiletID := uuid.New()

	review, err := uc.Create(context.Background(), "user-1", toiletID, 5, "spotless")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if review.ID == uuid.Nil {
		t.Error("Create() returned review without id")
	}
	if len(rank.invalidated) != 1 {
		t.Errorf("invalidated %d cache keys, want 1", len(rank.invalidated))
	}
}

func TestDeleteReviewCascades(t *testing.T) {
	uc, reviews, photos, store, rank := newReviewFixture()
	review := seedReview(reviews, "user-1")

	approved := &Photo{ID: uuid.New(), ReviewID: review.ID, StorageKey: "reviews/a.png", Status: PhotoStatusApproved}
	rejected := &Photo{ID: uuid.New(), ReviewID: review.ID, StorageKey: "reviews/b.png", Status: PhotoStatusRejected}
	photos.seed(approved)
	photos.seed(rejected)
	store.objects[approved.StorageKey] = []byte("x")

	if err := uc.Delete(context.Background(), "user-1", review.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if r, _ := reviews.FindByID(context.Background(), review.ID); r != nil {
		t.Error("review still exists after delete")
	}
	if n, _ := photos.CountByReview(context.Background(), review.ID); n != 0 {
		t.Errorf("%d photo records left, want 0", n)
	}
	if len(store.deleted) != 1 || store.deleted[0] != approved.StorageKey {
		t.Errorf("deleted objects = %v, want only %s", store.deleted, approved.StorageKey)
	}
	if len(rank.invalidated) != 1 {
		t.Errorf("invalidated %d cache keys, want 1", len(rank.invalidated))
	}
}

func TestDeleteReviewWrongOwner(t *testing.T) {
	uc, reviews, _, _, _ := newReviewFixture()
	review := seedReview(reviews, "user-1")

	if err := uc.Delete(context.Background(), "user-2", review.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Delete() error = %v, want ErrUnauthorized", err)
	}
	if r, _ := reviews.FindByID(context.Background(), review.ID); r == nil {
		t.Error("review was deleted despite ownership failure")
	}
}

func TestDeleteReviewNotFound(t *testing.T) {
	uc, _, _, _, _ := newReviewFixture()
	if err := uc.Delete(context.Background(), "user-1", uuid.New()); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("Delete() error = %v, want ErrReviewNotFound", err)
	}
}

func TestListAttachesApprovedPhotoURLs(t *testing.T) {
	uc, reviews, photos, _, _ := newReviewFixture()
	review := seedReview(reviews, "user-1")
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusApproved, URL: "https://cdn.example.com/a.png"})
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusPending, URL: "https://cdn.example.com/b.png"})

	resp, err := uc.List(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("List() returned %d reviews, want 1", len(resp.Items))
	}
	if len(resp.Items[0].PhotoURLs) != 1 {
		t.Errorf("review has %d photo URLs, want 1 (only approved)", len(resp.Items[0].PhotoURLs))
	}
	if resp.TotalItems != 1 {
		t.Errorf("TotalItems = %d, want 1", resp.TotalItems)
	}
}

func TestToiletRatingComputesAverage(t *testing.T) {
	uc, reviews, _, _, _ := newReviewFixture()
	toiletID := uuid.New()
	reviews.reviews[uuid.New()] = &Review{ID: uuid.New(), ToiletID: toiletID, OwnerID: "a", Rating: 4}
	reviews.reviews[uuid.New()] = &Review{ID: uuid.New(), ToiletID: toiletID, OwnerID: "b", Rating: 2}

	got, err := uc.ToiletRating(context.Background(), toiletID)
	if err != nil {
		t.Fatalf("ToiletRating() error = %v", err)
	}
	if got != 3 {
		t.Errorf("ToiletRating() = %v, want 3", got)
	}
}

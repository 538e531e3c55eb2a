package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

type fakeReviewRepo struct {
	reviews map[uuid.UUID]*Review
	deleted []uuid.UUID
}

func newFakeReviewRepo() *fakeReviewRepo {
	return &fakeReviewRepo{reviews: make(map[uuid.UUID]*Review)}
}

func (f *fakeReviewRepo) Create(ctx context.Context, review *Review) (*Review, error) {
	f.reviews[review.ID] = review
	return review, nil
}

func (f *fakeReviewRepo) FindByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	return f.reviews[id], nil
}

func (f *fakeReviewRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.reviews, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeReviewRepo) List(ctx context.Context, limit, offset int32) ([]*Review, error) {
	var out []*Review
	for _, r := range f.reviews {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReviewRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.reviews)), nil
}

func (f *fakeReviewRepo) AverageRatingByToilet(ctx context.Context, toiletID uuid.UUID) (float64, error) {
	var sum, n int32
	for _, r := range f.reviews {
		if r.ToiletID == toiletID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

type fakePhotoRepo struct {
	mu        sync.Mutex
	photos    map[uuid.UUID]*Photo
	createErr error
}

func newFakePhotoRepo() *fakePhotoRepo {
	return &fakePhotoRepo{photos: make(map[uuid.UUID]*Photo)}
}

func (f *fakePhotoRepo) CreateBatch(ctx context.Context, photos []*Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, p := range photos {
		cp := *p
		f.photos[p.ID] = &cp
	}
	return nil
}

func (f *fakePhotoRepo) FindByID(ctx context.Context, id uuid.UUID) (*Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePhotoRepo) ListByIDsForOwner(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Photo
	for _, id := range ids {
		if p, ok := f.photos[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePhotoRepo) ListByReview(ctx context.Context, reviewID uuid.UUID) ([]*Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Photo
	for _, p := range f.photos {
		if p.ReviewID == reviewID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePhotoRepo) CountByReview(ctx context.Context, reviewID uuid.UUID) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int32
	for _, p := range f.photos {
		if p.ReviewID == reviewID {
			n++
		}
	}
	return n, nil
}

func (f *fakePhotoRepo) MarkTerminal(ctx context.Context, id uuid.UUID, status PhotoStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.photos[id]
	if !ok || p.Status != PhotoStatusPending {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (f *fakePhotoRepo) DeleteByReview(ctx context.Context, reviewID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.photos {
		if p.ReviewID == reviewID {
			delete(f.photos, id)
		}
	}
	return nil
}

func (f *fakePhotoRepo) seed(p *Photo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos[p.ID] = p
}

type fakeObjectStore struct {
	objects   map[string][]byte
	puts      int
	failAfter int // fail the Nth put (1-based), 0 disables
	getErr    error
	deleteErr error
	deleted   []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.puts++
	if f.failAfter > 0 && f.puts >= f.failAfter {
		return "", errors.New("disk full")
	}
	f.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeQueue struct {
	ids []uuid.UUID
}

func (f *fakeQueue) Enqueue(id uuid.UUID) {
	f.ids = append(f.ids, id)
}

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

// testPNG returns an encoded gradient image.
func testPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func newUploadFixture() (*PhotoUsecase, *fakeReviewRepo, *fakePhotoRepo, *fakeObjectStore, *fakeQueue) {
	reviews := newFakeReviewRepo()
	photos := newFakePhotoRepo()
	store := newFakeObjectStore()
	queue := &fakeQueue{}
	uc := NewPhotoUsecase(photos, reviews, store, queue, testLogger())
	return uc, reviews, photos, store, queue
}

func seedReview(reviews *fakeReviewRepo, ownerID string) *Review {
	review := &Review{ID: uuid.New(), ToiletID: uuid.New(), OwnerID: ownerID, Rating: 4}
	reviews.reviews[review.ID] = review
	return review
}

func TestUploadEmptyBatch(t *testing.T) {
	uc, reviews, _, store, queue := newUploadFixture()
	review := seedReview(reviews, "user-1")

	got, err := uc.Upload(context.Background(), "user-1", review.ID, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Upload() returned %d photos, want 0", len(got))
	}
	if store.puts != 0 {
		t.Errorf("store.puts = %d, want 0", store.puts)
	}
	if len(queue.ids) != 0 {
		t.Errorf("enqueued %d photos, want 0", len(queue.ids))
	}
}

func TestUploadCreatesPendingRecords(t *testing.T) {
	uc, reviews, photos, store, queue := newUploadFixture()
	review := seedReview(reviews, "user-1")

	payloads := []UploadPayload{
		{Data: testPNG(8, 8), ContentType: "image/png"},
		{Data: testPNG(16, 16), ContentType: "image/jpeg"},
	}
	got, err := uc.Upload(context.Background(), "user-1", review.ID, payloads)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Upload() returned %d photos, want 2", len(got))
	}
	if len(store.objects) != 2 {
		t.Errorf("stored %d objects, want 2", len(store.objects))
	}
	if len(queue.ids) != 2 {
		t.Errorf("enqueued %d photos, want 2", len(queue.ids))
	}
	for i, up := range got {
		p, _ := photos.FindByID(context.Background(), up.ID)
		if p == nil {
			t.Fatalf("photo %s not persisted", up.ID)
		}
		if p.Status != PhotoStatusPending {
			t.Errorf("photo %d status = %s, want PENDING", i, p.Status)
		}
		if p.SortOrder != int32(i) {
			t.Errorf("photo %d sort order = %d, want %d", i, p.SortOrder, i)
		}
		if up.URL == "" {
			t.Errorf("photo %d has empty URL", i)
		}
	}
}

func TestUploadTooManyPhotos(t *testing.T) {
	uc, reviews, _, _, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")

	payloads := make([]UploadPayload, MaxPhotosPerReview+1)
	for i := range payloads {
		payloads[i] = UploadPayload{Data: testPNG(8, 8), ContentType: "image/png"}
	}
	if _, err := uc.Upload(context.Background(), "user-1", review.ID, payloads); !errors.Is(err, ErrTooManyPhotos) {
		t.Errorf("Upload() error = %v, want ErrTooManyPhotos", err)
	}
}

func TestUploadRespectsExistingCount(t *testing.T) {
	uc, reviews, photos, _, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusApproved})

	payloads := []UploadPayload{
		{Data: testPNG(8, 8), ContentType: "image/png"},
		{Data: testPNG(8, 8), ContentType: "image/png"},
	}
	if _, err := uc.Upload(context.Background(), "user-1", review.ID, payloads); !errors.Is(err, ErrTooManyPhotos) {
		t.Errorf("Upload() error = %v, want ErrTooManyPhotos", err)
	}
}

func TestUploadUnknownReview(t *testing.T) {
	uc, _, _, _, _ := newUploadFixture()
	payloads := []UploadPayload{{Data: testPNG(8, 8), ContentType: "image/png"}}
	if _, err := uc.Upload(context.Background(), "user-1", uuid.New(), payloads); !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("Upload() error = %v, want ErrReviewNotFound", err)
	}
}

func TestUploadWrongOwner(t *testing.T) {
	uc, reviews, _, _, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")
	payloads := []UploadPayload{{Data: testPNG(8, 8), ContentType: "image/png"}}
	if _, err := uc.Upload(context.Background(), "user-2", review.ID, payloads); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Upload() error = %v, want ErrUnauthorized", err)
	}
}

func TestUploadUnsupportedContentType(t *testing.T) {
	uc, reviews, _, store, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")
	payloads := []UploadPayload{{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"}}
	if _, err := uc.Upload(context.Background(), "user-1", review.ID, payloads); !errors.Is(err, ErrUnsupportedMedia) {
		t.Errorf("Upload() error = %v, want ErrUnsupportedMedia", err)
	}
	if store.puts != 0 {
		t.Errorf("store.puts = %d, want 0 (validation precedes writes)", store.puts)
	}
}

func TestUploadRollsBackOnWriteFailure(t *testing.T) {
	uc, reviews, photos, store, queue := newUploadFixture()
	review := seedReview(reviews, "user-1")
	store.failAfter = 2 // second write fails

	payloads := []UploadPayload{
		{Data: testPNG(8, 8), ContentType: "image/png"},
		{Data: testPNG(8, 8), ContentType: "image/png"},
	}
	_, err := uc.Upload(context.Background(), "user-1", review.ID, payloads)
	if err == nil {
		t.Fatal("Upload() error = nil, want storage failure")
	}
	if !errors.Is(err, ErrStorageWriteFailed) {
		t.Errorf("Upload() error = %v, want ErrStorageWriteFailed", err)
	}
	if len(store.objects) != 0 {
		t.Errorf("%d objects left after rollback, want 0", len(store.objects))
	}
	if n, _ := photos.CountByReview(context.Background(), review.ID); n != 0 {
		t.Errorf("%d records created after rollback, want 0", n)
	}
	if len(queue.ids) != 0 {
		t.Errorf("enqueued %d photos after rollback, want 0", len(queue.ids))
	}
}

func TestUploadRollsBackOnRecordFailure(t *testing.T) {
	uc, reviews, _, store, queue := newUploadFixture()
	review := seedReview(reviews, "user-1")
	repo := uc.repo.(*fakePhotoRepo)
	repo.createErr = errors.New("db down")

	payloads := []UploadPayload{{Data: testPNG(8, 8), ContentType: "image/png"}}
	if _, err := uc.Upload(context.Background(), "user-1", review.ID, payloads); err == nil {
		t.Fatal("Upload() error = nil, want record failure")
	}
	if len(store.objects) != 0 {
		t.Errorf("%d objects left after rollback, want 0", len(store.objects))
	}
	if len(queue.ids) != 0 {
		t.Errorf("enqueued %d photos after rollback, want 0", len(queue.ids))
	}
}

func TestStatusesPreservesOrderAndOmitsUnknown(t *testing.T) {
	uc, reviews, photos, _, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")

	first := &Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusApproved}
	second := &Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusPending}
	photos.seed(first)
	photos.seed(second)

	ids := []uuid.UUID{second.ID, uuid.New(), first.ID}
	entries, err := uc.Statuses(context.Background(), "user-1", ids)
	if err != nil {
		t.Fatalf("Statuses() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Statuses() returned %d entries, want 2", len(entries))
	}
	if entries[0].ID != second.ID || entries[0].Status != PhotoStatusPending {
		t.Errorf("entries[0] = %v, want pending photo first", entries[0])
	}
	if entries[1].ID != first.ID || entries[1].Status != PhotoStatusApproved {
		t.Errorf("entries[1] = %v, want approved photo second", entries[1])
	}
}

func TestStatusesEmpty(t *testing.T) {
	uc, _, _, _, _ := newUploadFixture()
	entries, err := uc.Statuses(context.Background(), "user-1", nil)
	if err != nil {
		t.Fatalf("Statuses() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Statuses() returned %d entries, want 0", len(entries))
	}
}

func TestDeleteForReviewSkipsRejectedObjects(t *testing.T) {
	uc, reviews, photos, store, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")

	kept := &Photo{ID: uuid.New(), ReviewID: review.ID, StorageKey: "reviews/a.png", Status: PhotoStatusApproved}
	rejected := &Photo{ID: uuid.New(), ReviewID: review.ID, StorageKey: "reviews/b.png", Status: PhotoStatusRejected}
	photos.seed(kept)
	photos.seed(rejected)
	store.objects[kept.StorageKey] = []byte("x")

	if err := uc.DeleteForReview(context.Background(), review.ID); err != nil {
		t.Fatalf("DeleteForReview() error = %v", err)
	}
	if n, _ := photos.CountByReview(context.Background(), review.ID); n != 0 {
		t.Errorf("%d records left, want 0", n)
	}
	if len(store.deleted) != 1 || store.deleted[0] != kept.StorageKey {
		t.Errorf("deleted objects = %v, want only %s", store.deleted, kept.StorageKey)
	}
}

func TestDeleteForReviewSurvivesObjectErrors(t *testing.T) {
	uc, reviews, photos, store, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, StorageKey: "reviews/c.png", Status: PhotoStatusApproved})
	store.deleteErr = fmt.Errorf("s3 unavailable")

	if err := uc.DeleteForReview(context.Background(), review.ID); err != nil {
		t.Fatalf("DeleteForReview() error = %v, want nil despite object error", err)
	}
	if n, _ := photos.CountByReview(context.Background(), review.ID); n != 0 {
		t.Errorf("%d records left, want 0", n)
	}
}

func TestApprovedForReview(t *testing.T) {
	uc, reviews, photos, _, _ := newUploadFixture()
	review := seedReview(reviews, "user-1")
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusApproved, URL: "u1"})
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusPending, URL: "u2"})
	photos.seed(&Photo{ID: uuid.New(), ReviewID: review.ID, Status: PhotoStatusRejected, URL: "u3"})

	approved, err := uc.ApprovedForReview(context.Background(), review.ID)
	if err != nil {
		t.Fatalf("ApprovedForReview() error = %v", err)
	}
	if len(approved) != 1 {
		t.Fatalf("ApprovedForReview() returned %d photos, want 1", len(approved))
	}
	if approved[0].URL != "u1" {
		t.Errorf("approved URL = %s, want u1", approved[0].URL)
	}
}

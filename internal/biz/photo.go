package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PhotoStatus is the moderation state of an uploaded photo. A photo starts
// PENDING and transitions exactly once to a terminal state.
type PhotoStatus string

const (
	PhotoStatusPending  PhotoStatus = "PENDING"
	PhotoStatusApproved PhotoStatus = "APPROVED"
	PhotoStatusRejected PhotoStatus = "REJECTED"
)

// Terminal reports whether no further transition occurs.
func (s PhotoStatus) Terminal() bool {
	return s == PhotoStatusApproved || s == PhotoStatusRejected
}

// MaxPhotosPerReview bounds how many photos a single review may own.
const MaxPhotosPerReview = 2

// storageKeyPrefix namespaces review photo objects in the object store.
const storageKeyPrefix = "reviews/"

var (
	ErrReviewNotFound     = errors.NotFound("REVIEW_NOT_FOUND", "review does not exist")
	ErrUnauthorized       = errors.Forbidden("UNAUTHORIZED", "caller may not modify this review")
	ErrTooManyPhotos      = errors.BadRequest("TOO_MANY_PHOTOS", "a review may have at most 2 photos")
	ErrUnsupportedMedia   = errors.BadRequest("UNSUPPORTED_MEDIA_TYPE", "unsupported image content type")
	ErrPayloadTooLarge    = errors.BadRequest("PAYLOAD_TOO_LARGE", "image payload exceeds the size limit")
	ErrStorageWriteFailed = errors.InternalServer("STORAGE_WRITE_FAILED", "failed to store photo")
	ErrObjectNotFound     = errors.NotFound("OBJECT_NOT_FOUND", "stored object does not exist")
)

// secureImageExtensions maps allowed upload MIME types to storage key
// extensions.
var secureImageExtensions = map[string]string{
	"image/jpeg": ".jpeg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/webp": ".webp",
}

// Photo is a moderation-tracked reference to one uploaded image.
type Photo struct {
	ID         uuid.UUID
	ReviewID   uuid.UUID
	StorageKey string
	URL        string
	SortOrder  int32
	Status     PhotoStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UploadPayload is one binary image in an upload batch.
type UploadPayload struct {
	Data        []byte
	ContentType string
}

// UploadedPhoto is the per-photo result returned to the uploader.
type UploadedPhoto struct {
	ID  uuid.UUID
	URL string
}

// PhotoStatusEntry is one row of a status poll result.
type PhotoStatusEntry struct {
	ID     uuid.UUID
	Status PhotoStatus
}

// PhotoRepo is a repository interface for photo records.
type PhotoRepo interface {
	// CreateBatch inserts all records in one transaction.
	CreateBatch(ctx context.Context, photos []*Photo) error
	FindByID(ctx context.Context, id uuid.UUID) (*Photo, error)
	// ListByIDsForOwner returns the photos among ids whose owning review
	// belongs to ownerID; unknown ids are omitted.
	ListByIDsForOwner(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*Photo, error)
	ListByReview(ctx context.Context, reviewID uuid.UUID) ([]*Photo, error)
	CountByReview(ctx context.Context, reviewID uuid.UUID) (int32, error)
	// MarkTerminal transitions a PENDING record to a terminal status.
	// Returns false when the record was already terminal or missing.
	MarkTerminal(ctx context.Context, id uuid.UUID, status PhotoStatus) (bool, error)
	DeleteByReview(ctx context.Context, reviewID uuid.UUID) error
}

// ObjectStore is a durable key-addressed blob store.
type ObjectStore interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get returns the stored bytes, or ErrObjectNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ModerationQueue dispatches newly created PENDING photos to the worker pool.
// Enqueue must never block the request path.
type ModerationQueue interface {
	Enqueue(id uuid.UUID)
}

// PhotoUsecase implements the upload and status-poll operations.
type PhotoUsecase struct {
	repo    PhotoRepo
	reviews ReviewRepo
	store   ObjectStore
	queue   ModerationQueue
	log     *log.Helper
}

// NewPhotoUsecase creates a new PhotoUsecase.
func NewPhotoUsecase(repo PhotoRepo, reviews ReviewRepo, store ObjectStore, queue ModerationQueue, logger log.Logger) *PhotoUsecase {
	return &PhotoUsecase{
		repo:    repo,
		reviews: reviews,
		store:   store,
		queue:   queue,
		log:     log.NewHelper(logger),
	}
}

// Upload stores up to MaxPhotosPerReview payloads for a review owned by
// ownerID and creates a PENDING record per stored object. The batch is
// all-or-nothing: if any write fails, objects already written in the same
// batch are deleted and no records are created.
func (uc *PhotoUsecase) Upload(ctx context.Context, ownerID string, reviewID uuid.UUID, payloads []UploadPayload) ([]UploadedPhoto, error) {
	if len(payloads) == 0 {
		return []UploadedPhoto{}, nil
	}
	if len(payloads) > MaxPhotosPerReview {
		return nil, ErrTooManyPhotos
	}

	review, err := uc.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	if review.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}

	existing, err := uc.repo.CountByReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if int(existing)+len(payloads) > MaxPhotosPerReview {
		return nil, ErrTooManyPhotos
	}

	for _, p := range payloads {
		if _, ok := secureImageExtensions[p.ContentType]; !ok {
			return nil, ErrUnsupportedMedia
		}
	}

	photos := make([]*Photo, 0, len(payloads))
	writtenKeys := make([]string, 0, len(payloads))
	for i, p := range payloads {
		key := storageKeyPrefix + uuid.NewString() + secureImageExtensions[p.ContentType]
		url, err := uc.store.Put(ctx, key, p.Data, p.ContentType)
		if err != nil {
			uc.rollbackObjects(ctx, writtenKeys)
			return nil, ErrStorageWriteFailed.WithCause(err)
		}
		writtenKeys = append(writtenKeys, key)
		photos = append(photos, &Photo{
			ID:         uuid.New(),
			ReviewID:   reviewID,
			StorageKey: key,
			URL:        url,
			SortOrder:  existing + int32(i),
			Status:     PhotoStatusPending,
		})
	}

	if err := uc.repo.CreateBatch(ctx, photos); err != nil {
		uc.rollbackObjects(ctx, writtenKeys)
		return nil, err
	}

	results := make([]UploadedPhoto, len(photos))
	for i, p := range photos {
		results[i] = UploadedPhoto{ID: p.ID, URL: p.URL}
		uc.queue.Enqueue(p.ID)
	}
	uc.log.Infof("uploaded %d photos for review %s", len(results), reviewID)
	return results, nil
}

// rollbackObjects deletes objects written before a batch failure. Failures
// here are logged, never escalated, so they cannot mask the original error.
func (uc *PhotoUsecase) rollbackObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := uc.store.Delete(ctx, key); err != nil {
			uc.log.Errorf("rollback failed for object %s: %v", key, err)
		}
	}
}

// Statuses returns the current status of each requested photo id the owner
// may see. Unknown ids are omitted; input order is preserved for the rest.
func (uc *PhotoUsecase) Statuses(ctx context.Context, ownerID string, ids []uuid.UUID) ([]PhotoStatusEntry, error) {
	if len(ids) == 0 {
		return []PhotoStatusEntry{}, nil
	}
	photos, err := uc.repo.ListByIDsForOwner(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]PhotoStatus, len(photos))
	for _, p := range photos {
		byID[p.ID] = p.Status
	}
	entries := make([]PhotoStatusEntry, 0, len(photos))
	for _, id := range ids {
		if status, ok := byID[id]; ok {
			entries = append(entries, PhotoStatusEntry{ID: id, Status: status})
		}
	}
	return entries, nil
}

// ApprovedForReview returns the review's photos that are safe to render.
func (uc *PhotoUsecase) ApprovedForReview(ctx context.Context, reviewID uuid.UUID) ([]*Photo, error) {
	photos, err := uc.repo.ListByReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	approved := make([]*Photo, 0, len(photos))
	for _, p := range photos {
		if p.Status == PhotoStatusApproved {
			approved = append(approved, p)
		}
	}
	return approved, nil
}

// DeleteForReview removes a review's photo records and their stored objects.
// Object deletions are compensating cleanup: failures are logged and do not
// block the record deletion.
func (uc *PhotoUsecase) DeleteForReview(ctx context.Context, reviewID uuid.UUID) error {
	photos, err := uc.repo.ListByReview(ctx, reviewID)
	if err != nil {
		return err
	}
	for _, p := range photos {
		// Rejected photos have no stored object anymore.
		if p.Status == PhotoStatusRejected {
			continue
		}
		if err := uc.store.Delete(ctx, p.StorageKey); err != nil {
			uc.log.Errorf("cleanup failed for object %s: %v", p.StorageKey, err)
		}
	}
	return uc.repo.DeleteByReview(ctx, reviewID)
}

package service

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"restroom/internal/biz"
	"restroom/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// multipartField is the form field carrying the uploaded images.
const multipartField = "photos"

var (
	errMissingUser = errors.Unauthorized("MISSING_USER", "missing X-User-Id header")
	errBadReviewID = errors.BadRequest("BAD_REVIEW_ID", "review id is not a valid uuid")
	errBadPhotoID  = errors.BadRequest("BAD_PHOTO_ID", "photo id is not a valid uuid")
)

// PhotoService exposes the photo upload and status-poll endpoints.
type PhotoService struct {
	uc             *biz.PhotoUsecase
	maxUploadBytes int64
}

// NewPhotoService creates a new PhotoService.
func NewPhotoService(uc *biz.PhotoUsecase, mc *conf.Moderation) *PhotoService {
	maxUploadBytes := int64(10 << 20)
	if mc != nil && mc.MaxUploadBytes > 0 {
		maxUploadBytes = mc.MaxUploadBytes
	}
	return &PhotoService{uc: uc, maxUploadBytes: maxUploadBytes}
}

// UploadedPhotoReply is the per-photo element of an upload response.
type UploadedPhotoReply struct {
	PhotoID  string `json:"photoId"`
	PhotoURL string `json:"photoUrl"`
}

// UploadReply is the response body of a photo upload.
type UploadReply struct {
	Photos []UploadedPhotoReply `json:"photos"`
}

// Upload handles POST /v1/reviews/{reviewID}/photos.
func (s *PhotoService) Upload(ctx khttp.Context) error {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return errMissingUser
	}
	reviewID, err := uuid.Parse(ctx.Vars().Get("reviewID"))
	if err != nil {
		return errBadReviewID
	}

	req := ctx.Request()
	// Cap the whole request body: per-photo limit times the batch bound,
	// plus slack for multipart framing.
	req.Body = http.MaxBytesReader(nil, req.Body, s.maxUploadBytes*biz.MaxPhotosPerReview+1<<20)
	if err := req.ParseMultipartForm(s.maxUploadBytes); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return biz.ErrPayloadTooLarge
		}
		return errors.BadRequest("BAD_MULTIPART", err.Error())
	}
	// Zero files is a legal no-op batch; it flows through as an empty
	// success rather than an error.
	files := req.MultipartForm.File[multipartField]

	payloads := make([]biz.UploadPayload, 0, len(files))
	for _, fh := range files {
		payload, err := readPayload(fh, s.maxUploadBytes)
		if err != nil {
			return err
		}
		payloads = append(payloads, *payload)
	}

	uploaded, err := s.uc.Upload(ctx, ownerID, reviewID, payloads)
	if err != nil {
		return err
	}

	reply := &UploadReply{Photos: make([]UploadedPhotoReply, len(uploaded))}
	for i, p := range uploaded {
		reply.Photos[i] = UploadedPhotoReply{PhotoID: p.ID.String(), PhotoURL: p.URL}
	}
	return ctx.Result(http.StatusAccepted, reply)
}

// PhotoStatusReply is one element of a status-poll response.
type PhotoStatusReply struct {
	PhotoID string `json:"photoId"`
	Status  string `json:"status"`
}

// StatusReply is the response body of a status poll.
type StatusReply struct {
	Photos []PhotoStatusReply `json:"photos"`
}

// Statuses handles GET /v1/photos/status?id=...&id=...
func (s *PhotoService) Statuses(ctx khttp.Context) error {
	ownerID := callerID(ctx)
	if ownerID == "" {
		return errMissingUser
	}
	rawIDs := ctx.Query()["id"]
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errBadPhotoID
		}
		ids = append(ids, id)
	}

	entries, err := s.uc.Statuses(ctx, ownerID, ids)
	if err != nil {
		return err
	}
	reply := &StatusReply{Photos: make([]PhotoStatusReply, len(entries))}
	for i, e := range entries {
		reply.Photos[i] = PhotoStatusReply{PhotoID: e.ID.String(), Status: string(e.Status)}
	}
	return ctx.Result(http.StatusOK, reply)
}

func readPayload(fh *multipart.FileHeader, limit int64) (*biz.UploadPayload, error) {
	if fh.Size > limit {
		return nil, biz.ErrPayloadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.BadRequest("BAD_MULTIPART", err.Error())
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.BadRequest("BAD_MULTIPART", err.Error())
	}
	if int64(len(data)) > limit {
		return nil, biz.ErrPayloadTooLarge
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &biz.UploadPayload{Data: data, ContentType: contentType}, nil
}

// callerID returns the authenticated user, propagated by the gateway.
func callerID(ctx khttp.Context) string {
	return ctx.Header().Get("X-User-Id")
}

package biz

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"restroom/internal/pkg/bloom"
	"restroom/internal/pkg/hash"
	"restroom/internal/pkg/imaging"
	pkgredis "restroom/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"
)

// Verdict is the classifier's decision for one photo.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Classifier evaluates a normalized image and returns a verdict. Transport
// failures are returned as errors and treated as an implicit reject.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*Verdict, error)
}

// BadImage is a previously rejected image recorded by its perceptual hash.
type BadImage struct {
	PHash     int64
	Reason    string
	CreatedAt time.Time
}

// BadImageRepo is a repository interface for rejected-image hashes.
type BadImageRepo interface {
	Save(ctx context.Context, img *BadImage) error
	// FindByPHash returns nil when the hash is unknown.
	FindByPHash(ctx context.Context, phash int64) (*BadImage, error)
}

// ModerationConfig holds tuning for the moderation worker pool.
type ModerationConfig struct {
	Workers        int
	StorageTimeout time.Duration // per ObjectStore call during moderation
	MaxImageEdge   uint          // longest edge after normalization
	BloomKey       string        // redis key for the rejected-image filter
	BloomBits      uint
	BloomHashFuncs uint
}

// DefaultModerationConfig returns default configuration.
func DefaultModerationConfig() ModerationConfig {
	return ModerationConfig{
		Workers:        4,
		StorageTimeout: 10 * time.Second,
		MaxImageEdge:   imaging.DefaultMaxEdge,
		BloomKey:       "restroom:bloom:rejected",
		BloomBits:      1 << 20,
		BloomHashFuncs: 7,
	}
}

// ModerationUsecase resolves PENDING photos to a terminal state. Photos are
// dispatched through an unbounded queue and processed by a fixed worker pool;
// it implements kratos transport.Server so the pool follows the app
// lifecycle.
type ModerationUsecase struct {
	config     ModerationConfig
	photos     PhotoRepo
	store      ObjectStore
	classifier Classifier
	badImages  BadImageRepo
	bloom      *bloom.Filter
	hasher     *hash.PerceptualHasher
	queue      *chanx.UnboundedChan[uuid.UUID]
	baseCtx    context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *log.Helper
}

// NewModerationUsecase creates a new ModerationUsecase.
func NewModerationUsecase(
	config ModerationConfig,
	photos PhotoRepo,
	store ObjectStore,
	classifier Classifier,
	badImages BadImageRepo,
	cache pkgredis.Cache,
	logger log.Logger,
) *ModerationUsecase {
	ctx, cancel := context.WithCancel(context.Background())
	return &ModerationUsecase{
		config:     config,
		photos:     photos,
		store:      store,
		classifier: classifier,
		badImages:  badImages,
		bloom:      bloom.NewBloomFilter(cache, config.BloomKey, config.BloomBits, config.BloomHashFuncs),
		hasher:     hash.NewPerceptualHasher(),
		queue:      chanx.NewUnboundedChan[uuid.UUID](ctx, 64),
		baseCtx:    ctx,
		cancel:     cancel,
		log:        log.NewHelper(logger),
	}
}

// Enqueue implements ModerationQueue. The queue is unbounded, so the upload
// path never blocks on a busy pool.
func (uc *ModerationUsecase) Enqueue(id uuid.UUID) {
	select {
	case <-uc.baseCtx.Done():
		uc.log.Warnf("moderation pool stopped, dropping photo %s", id)
	case uc.queue.In <- id:
	}
}

// Start implements transport.Server.
func (uc *ModerationUsecase) Start(ctx context.Context) error {
	workers := uc.config.Workers
	if workers <= 0 {
		workers = 4
	}
	uc.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go uc.worker()
	}
	uc.log.Infof("moderation worker pool started with %d workers", workers)
	return nil
}

// Stop implements transport.Server.
func (uc *ModerationUsecase) Stop(ctx context.Context) error {
	uc.cancel()
	done := make(chan struct{})
	go func() {
		uc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		uc.log.Info("moderation worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *ModerationUsecase) worker() {
	defer uc.wg.Done()
	for {
		select {
		case <-uc.baseCtx.Done():
			return
		case id, ok := <-uc.queue.Out:
			if !ok {
				return
			}
			if err := uc.Process(uc.baseCtx, id); err != nil {
				uc.log.Errorf("moderation of photo %s failed: %v", id, err)
			}
		}
	}
}

// Process resolves one photo to a terminal state. Re-invoking on an already
// terminal record is a no-op. A single attempt is final: every failure along
// the evaluation path resolves to REJECTED rather than leaving the record
// PENDING.
func (uc *ModerationUsecase) Process(ctx context.Context, id uuid.UUID) error {
	photo, err := uc.photos.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if photo == nil {
		uc.log.Warnf("photo %s vanished before moderation", id)
		return nil
	}
	if photo.Status.Terminal() {
		return nil
	}

	verdict := uc.evaluate(ctx, photo)

	if verdict.Accepted {
		ok, err := uc.photos.MarkTerminal(ctx, id, PhotoStatusApproved)
		if err != nil {
			return err
		}
		if ok {
			uc.log.Infof("photo %s approved", id)
		}
		return nil
	}

	// Delete before finalizing: a REJECTED record must not have a stored
	// object. A failed delete is logged and swallowed so the record still
	// reaches a terminal state.
	if err := uc.store.Delete(ctx, photo.StorageKey); err != nil {
		uc.log.Errorf("failed to delete rejected object %s: %v", photo.StorageKey, err)
	}
	ok, err := uc.photos.MarkTerminal(ctx, id, PhotoStatusRejected)
	if err != nil {
		return err
	}
	if ok {
		uc.log.Infof("photo %s rejected: %s", id, verdict.Reason)
	}
	return nil
}

// evaluate runs fetch, normalize, duplicate short-circuit and classification.
// Fail-closed: every error resolves to a reject verdict.
func (uc *ModerationUsecase) evaluate(ctx context.Context, photo *Photo) *Verdict {
	fetchCtx, cancel := context.WithTimeout(ctx, uc.config.StorageTimeout)
	defer cancel()
	data, err := uc.store.Get(fetchCtx, photo.StorageKey)
	if err != nil {
		uc.log.Warnf("failed to fetch object %s: %v", photo.StorageKey, err)
		return &Verdict{Reason: "storage fetch failed"}
	}

	normalized, err := imaging.Normalize(data, uc.config.MaxImageEdge)
	if err != nil {
		uc.log.Warnf("failed to normalize photo %s: %v", photo.ID, err)
		return &Verdict{Reason: "undecodable image"}
	}

	var phash uint64
	if h, err := uc.hasher.ComputePHashFromBytes(normalized); err == nil {
		phash = h.Hash
		if uc.knownBad(ctx, phash) {
			return &Verdict{Reason: "previously rejected image"}
		}
	} else {
		uc.log.Warnf("failed to compute pHash for photo %s: %v", photo.ID, err)
	}

	verdict, err := uc.classifier.Classify(ctx, normalized)
	if err != nil {
		uc.log.Warnf("classification unavailable for photo %s: %v", photo.ID, err)
		return &Verdict{Reason: "classification unavailable"}
	}

	if !verdict.Accepted && phash != 0 {
		uc.recordBadImage(ctx, phash, verdict.Reason)
	}
	return verdict
}

// knownBad checks the bloom filter and confirms against the database.
// Errors fall through to normal classification.
func (uc *ModerationUsecase) knownBad(ctx context.Context, phash uint64) bool {
	maybe, err := uc.bloom.Exists(ctx, phashToBytes(phash))
	if err != nil {
		uc.log.Warnf("bloom filter check failed: %v", err)
		return false
	}
	if !maybe {
		return false
	}
	img, err := uc.badImages.FindByPHash(ctx, int64(phash))
	if err != nil {
		uc.log.Warnf("bad image lookup failed: %v", err)
		return false
	}
	return img != nil
}

func (uc *ModerationUsecase) recordBadImage(ctx context.Context, phash uint64, reason string) {
	if err := uc.badImages.Save(ctx, &BadImage{PHash: int64(phash), Reason: reason}); err != nil {
		uc.log.Warnf("failed to save bad image: %v", err)
		return
	}
	if err := uc.bloom.Add(ctx, phashToBytes(phash)); err != nil {
		uc.log.Warnf("failed to add pHash to bloom filter: %v", err)
	}
}

func phashToBytes(phash uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, phash)
	return buf
}

// Package finalize turns a confirmed upload into exactly one Media row.
package finalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/metrics"
	"github.com/princekumarofficial/media-service/internal/objectstore"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/services/media"
	"github.com/princekumarofficial/media-service/internal/storage"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/princekumarofficial/media-service/internal/types/users"
	"golang.org/x/sync/singleflight"
)

// IntentStore is the subset of the upload intent store finalization needs.
type IntentStore interface {
	Get(ctx context.Context, handle string) (*types.UploadIntent, error)
	Delete(ctx context.Context, handle string) error
}

// JobSource reports the normalized status of a transcoding job.
type JobSource interface {
	Status(ctx context.Context, jobID string) (types.TranscodingJob, error)
}

type Publisher interface {
	PublishMediaFinalized(evt types.MediaFinalizedEvent)
}

// GallerySlots places finalized media into the owner's profile gallery.
type GallerySlots interface {
	PlaceMedia(ctx context.Context, ownerID string, slotIndex int, m types.Media) (users.Gallery, error)
}

type Finalizer struct {
	repo      storage.MediaRepository
	owners    storage.ProfileStore
	store     objectstore.Store
	jobs      JobSource
	intents   IntentStore
	selector  *media.Selector
	gallery   GallerySlots
	publisher Publisher
	policy    retry.Policy
	namespace string
	group     singleflight.Group
	now       func() time.Time
}

// New builds a Finalizer. store may be nil when object storage is not
// configured; image confirmations then answer storage_unconfigured.
func New(st storage.Storage, store objectstore.Store, jobs JobSource, intents IntentStore, mediaService *media.Service, gallery GallerySlots, policy retry.Policy, publisher Publisher) *Finalizer {
	return &Finalizer{
		repo:      st,
		owners:    st,
		store:     store,
		jobs:      jobs,
		intents:   intents,
		selector:  mediaService.Selector(),
		gallery:   gallery,
		publisher: publisher,
		policy:    policy,
		namespace: mediaService.Namespace(),
		now:       time.Now,
	}
}

// attributes are the owner-supplied fields of the resulting Media row.
type attributes struct {
	visibility  types.Visibility
	price       *int64
	description string
	slot        *int
}

// Finalize handles a client confirmation. Exactly one of req.JobID and
// req.StorageKey must be set.
func (f *Finalizer) Finalize(ctx context.Context, ownerID string, req mediaTypes.FinalizeRequest) (*mediaTypes.FinalizeResponse, error) {
	jobID := strings.TrimSpace(req.JobID)
	key := strings.TrimSpace(req.StorageKey)

	switch {
	case strings.TrimSpace(ownerID) == "":
		return nil, apperr.New(apperr.MissingParams, "owner is required")
	case jobID == "" && key == "":
		return nil, apperr.New(apperr.MissingParams, "jobId or storageKey is required")
	case jobID != "" && key != "":
		return nil, apperr.New(apperr.InvalidRequest, "send either jobId or storageKey, not both")
	}
	if req.Visibility != "" && !req.Visibility.Valid() {
		return nil, apperr.New(apperr.InvalidRequest, "unknown visibility")
	}
	if err := media.ValidateSlot(req.SlotIndex); err != nil {
		return nil, err
	}

	attrs := attributes{visibility: req.Visibility, price: req.Price, description: req.Description, slot: req.SlotIndex}

	if jobID != "" {
		return f.coalesce(ownerID, jobID, types.MediaVideo, func() (*mediaTypes.FinalizeResponse, error) {
			return f.finalizeVideo(ctx, ownerID, jobID, attrs, nil, nil)
		})
	}
	return f.coalesce(ownerID, key, types.MediaImage, func() (*mediaTypes.FinalizeResponse, error) {
		return f.finalizeImage(ctx, ownerID, key, attrs)
	})
}

// FinalizeJob finalizes a video on behalf of the owner recorded in intent.
// When job is nil the backend is polled; otherwise job must be the status
// already exposed by the tracker.
func (f *Finalizer) FinalizeJob(ctx context.Context, intent types.UploadIntent, job *types.TranscodingJob) (*mediaTypes.FinalizeResponse, error) {
	if intent.JobID == "" || intent.OwnerID == "" {
		return nil, apperr.New(apperr.MissingParams, "intent has no job or owner")
	}

	attrs := attributes{visibility: intent.Visibility, price: intent.Price, description: intent.Description, slot: intent.SlotIndex}
	return f.coalesce(intent.OwnerID, intent.JobID, types.MediaVideo, func() (*mediaTypes.FinalizeResponse, error) {
		return f.finalizeVideo(ctx, intent.OwnerID, intent.JobID, attrs, &intent, job)
	})
}

type shared struct {
	resp    mediaTypes.FinalizeResponse
	claimed atomic.Bool
}

// coalesce runs fn once for concurrent calls on the same asset. Only one
// of the coalesced callers sees the row as newly created.
func (f *Finalizer) coalesce(ownerID, handle string, mediaType types.MediaType, fn func() (*mediaTypes.FinalizeResponse, error)) (*mediaTypes.FinalizeResponse, error) {
	v, err, _ := f.group.Do(ownerID+"|"+handle, func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		return &shared{resp: *resp}, nil
	})
	if err != nil {
		metrics.Finalizations.WithLabelValues(string(mediaType), outcomeOf(err)).Inc()
		return nil, err
	}

	s := v.(*shared)
	resp := s.resp
	if !s.claimed.CompareAndSwap(false, true) {
		resp.AlreadyExists = true
	}

	outcome := "created"
	if resp.AlreadyExists {
		outcome = "existing"
	}
	metrics.Finalizations.WithLabelValues(string(mediaType), outcome).Inc()

	return &resp, nil
}

func outcomeOf(err error) string {
	switch apperr.CodeOf(err) {
	case apperr.NotReady:
		return "not_ready"
	case apperr.ProcessingFailed:
		return "failed"
	}
	return "error"
}

// finalizeVideo resolves ownership from intent, the stored intent or, once
// both are gone, the owner recorded on the backend job.
func (f *Finalizer) finalizeVideo(ctx context.Context, ownerID, jobID string, attrs attributes, intent *types.UploadIntent, observed *types.TranscodingJob) (*mediaTypes.FinalizeResponse, error) {
	ownerType, err := f.owners.ResolveOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if intent == nil {
		intent, err = f.intents.Get(ctx, jobID)
		if err != nil {
			slog.Warn("failed to load upload intent", slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
	}
	if intent != nil {
		if intent.OwnerID != ownerID {
			return nil, apperr.New(apperr.Forbidden, "job belongs to another owner")
		}
		attrs = attrs.withDefaults(*intent)
	}

	existing, err := f.repo.FindByExternalID(ctx, ownerType, ownerID, jobID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to look up media")
	}
	if existing != nil {
		if err := f.placeInGallery(ctx, ownerID, attrs, *existing); err != nil {
			return nil, err
		}
		f.forgetIntent(ctx, jobID)
		return f.respond(jobID, *existing, false), nil
	}

	var job types.TranscodingJob
	if observed != nil {
		job = *observed
	} else {
		job, err = f.jobs.Status(ctx, jobID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				f.forgetIntent(ctx, jobID)
			}
			return nil, err
		}
	}
	if intent == nil && job.OwnerID != ownerID {
		return nil, apperr.New(apperr.Forbidden, "job belongs to another owner")
	}

	switch job.Phase {
	case types.PhaseReady:
	case types.PhaseFailed:
		f.forgetIntent(ctx, jobID)
		msg := job.ErrorMessage
		if msg == "" {
			msg = "transcoding failed"
		}
		return nil, apperr.New(apperr.ProcessingFailed, msg)
	default:
		return nil, apperr.New(apperr.NotReady, fmt.Sprintf("job is %s", job.Phase))
	}

	stored, created, err := f.repo.InsertMedia(ctx, types.Media{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		Type:        types.MediaVideo,
		URL:         job.PlaybackURL,
		ThumbURL:    job.ThumbnailURL,
		Visibility:  attrs.visibilityOrDefault(),
		Price:       attrs.price,
		Description: attrs.description,
		ExternalID:  jobID,
		CreatedAt:   f.now().UTC(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to store media")
	}
	if err := f.placeInGallery(ctx, ownerID, attrs, stored); err != nil {
		return nil, err
	}

	f.forgetIntent(ctx, jobID)
	slog.Info("Video finalized",
		slog.String("owner_id", ownerID),
		slog.String("job_id", jobID),
		slog.String("media_id", stored.ID),
		slog.Bool("created", created))

	return f.respond(jobID, stored, created), nil
}

func (f *Finalizer) finalizeImage(ctx context.Context, ownerID, key string, attrs attributes) (*mediaTypes.FinalizeResponse, error) {
	if !strings.HasPrefix(key, media.KeyPrefix(f.namespace, ownerID)) || strings.Contains(key, "..") {
		return nil, apperr.New(apperr.Forbidden, "storage key does not belong to the caller")
	}

	ownerType, err := f.owners.ResolveOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	intent, err := f.intents.Get(ctx, key)
	if err != nil {
		slog.Warn("failed to load upload intent", slog.String("storage_key", key), slog.String("error", err.Error()))
	}
	if intent != nil {
		attrs = attrs.withDefaults(*intent)
	}

	existing, err := f.repo.FindByExternalID(ctx, ownerType, ownerID, key)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to look up media")
	}
	if existing != nil {
		if err := f.placeInGallery(ctx, ownerID, attrs, *existing); err != nil {
			return nil, err
		}
		f.forgetIntent(ctx, key)
		return f.respond("", *existing, false), nil
	}

	if f.store == nil {
		return nil, apperr.New(apperr.StorageUnconfigured, "object storage is not configured")
	}

	info, err := retry.DoValue(ctx, f.policy, "storage.stat", func(ctx context.Context) (*mediaTypes.ObjectInfo, error) {
		return f.store.Stat(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if info.Size > f.selector.ImageMaxBytes() {
		return nil, apperr.New(apperr.FileTooLarge, "uploaded object exceeds the image size limit")
	}
	if !f.selector.IsAllowedImage(info.ContentType) {
		return nil, apperr.New(apperr.UnsupportedType, "uploaded object has an unsupported content type")
	}

	stored, created, err := f.repo.InsertMedia(ctx, types.Media{
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		Type:        types.MediaImage,
		URL:         f.store.PublicURL(key),
		Visibility:  attrs.visibilityOrDefault(),
		Price:       attrs.price,
		Description: attrs.description,
		ExternalID:  key,
		CreatedAt:   f.now().UTC(),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to store media")
	}
	if err := f.placeInGallery(ctx, ownerID, attrs, stored); err != nil {
		return nil, err
	}

	f.forgetIntent(ctx, key)
	slog.Info("Image finalized",
		slog.String("owner_id", ownerID),
		slog.String("storage_key", key),
		slog.String("media_id", stored.ID),
		slog.Bool("created", created))

	return f.respond("", stored, created), nil
}

func (f *Finalizer) respond(jobID string, m types.Media, created bool) *mediaTypes.FinalizeResponse {
	resp := &mediaTypes.FinalizeResponse{
		MediaID:       m.ID,
		URL:           m.URL,
		ThumbURL:      m.ThumbURL,
		AlreadyExists: !created,
	}

	if f.publisher != nil {
		f.publisher.PublishMediaFinalized(types.MediaFinalizedEvent{
			JobID:         jobID,
			MediaID:       m.ID,
			URL:           m.URL,
			ThumbURL:      m.ThumbURL,
			AlreadyExists: !created,
			FinalizedAt:   f.now().UTC().Format(time.RFC3339),
		})
	}
	return resp
}

// placeInGallery fills the requested slot. The intent is kept until this
// succeeds, so a retried finalization finds the row and places it again.
func (f *Finalizer) placeInGallery(ctx context.Context, ownerID string, attrs attributes, m types.Media) error {
	if attrs.slot == nil {
		return nil
	}
	if f.gallery == nil {
		slog.Warn("gallery slot requested but no gallery is wired", slog.String("owner_id", ownerID))
		return nil
	}
	if _, err := f.gallery.PlaceMedia(ctx, ownerID, *attrs.slot, m); err != nil {
		return apperr.Wrap(apperr.CodeOf(err), err, "failed to place media in gallery")
	}
	return nil
}

// forgetIntent drops an intent that can no longer lead to a new row. A
// failure only delays cleanup until the intent's TTL.
func (f *Finalizer) forgetIntent(ctx context.Context, handle string) {
	if err := f.intents.Delete(ctx, handle); err != nil {
		slog.Warn("failed to delete upload intent", slog.String("handle", handle), slog.String("error", err.Error()))
	}
}

func (a attributes) withDefaults(intent types.UploadIntent) attributes {
	if a.visibility == "" {
		a.visibility = intent.Visibility
	}
	if a.price == nil {
		a.price = intent.Price
	}
	if a.description == "" {
		a.description = intent.Description
	}
	if a.slot == nil {
		a.slot = intent.SlotIndex
	}
	return a
}

func (a attributes) visibilityOrDefault() types.Visibility {
	if a.visibility == "" {
		return types.VisibilityPublic
	}
	return a.visibility
}

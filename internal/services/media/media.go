package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/objectstore"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/transcode"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

const (
	minCredentialTTL = time.Minute
	maxCredentialTTL = 30 * time.Minute
)

// IntentStore persists upload intents until they expire or are finalized.
type IntentStore interface {
	Save(ctx context.Context, intent types.UploadIntent) error
	Get(ctx context.Context, handle string) (*types.UploadIntent, error)
}

// StatusPublisher receives every normalized job status this service observes.
type StatusPublisher interface {
	PublishJobStatus(job types.TranscodingJob, source string)
}

type Service struct {
	selector  *Selector
	store     objectstore.Store
	tracker   *transcode.Tracker
	intents   IntentStore
	publisher StatusPublisher
	policy    retry.Policy
	namespace string
	credTTL   time.Duration
	intentTTL time.Duration
	now       func() time.Time
}

// NewService wires the upload paths. store may be nil when object storage
// is not configured; the image path then answers storage_unconfigured.
func NewService(cfg *config.Config, selector *Selector, store objectstore.Store, tracker *transcode.Tracker, intents IntentStore, publisher StatusPublisher) *Service {
	namespace := strings.Trim(cfg.Storage.Namespace, "/")
	if namespace == "" {
		namespace = "media"
	}

	return &Service{
		selector:  selector,
		store:     store,
		tracker:   tracker,
		intents:   intents,
		publisher: publisher,
		policy:    retry.FromConfig(cfg.Retry),
		namespace: namespace,
		credTTL:   clampTTL(cfg.Storage.CredentialTTL),
		intentTTL: cfg.Media.IntentTTL,
		now:       time.Now,
	}
}

func (s *Service) Selector() *Selector {
	return s.selector
}

func (s *Service) Namespace() string {
	return s.namespace
}

// Plan exposes the routing decision without issuing anything.
func (s *Service) Plan(req mediaTypes.PlanRequest) (*mediaTypes.PlanResponse, error) {
	if req.Visibility != "" && !req.Visibility.Valid() {
		return nil, apperr.New(apperr.InvalidRequest, "unknown visibility")
	}

	plan, err := s.selector.Select(req.MimeType, req.DeclaredSize)
	if err != nil {
		return nil, err
	}

	return &mediaTypes.PlanResponse{
		Provider:  plan.Provider,
		MediaType: plan.MediaType,
		MaxBytes:  plan.MaxBytes,
	}, nil
}

// IssueImageUpload returns a credential that can write exactly one object
// of the declared content type under a fresh key.
func (s *Service) IssueImageUpload(ctx context.Context, ownerID string, req mediaTypes.ImageUploadRequest) (*mediaTypes.ImageUploadResponse, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.MimeType) == "" || req.DeclaredSize <= 0 {
		return nil, apperr.New(apperr.MissingParams, "fileName, mimeType and declaredSize are required")
	}
	visibility, err := defaultVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	if err := ValidateSlot(req.SlotIndex); err != nil {
		return nil, err
	}

	plan, err := s.selector.Select(req.MimeType, req.DeclaredSize)
	if err != nil {
		return nil, err
	}
	if plan.Provider != types.ProviderObjectStorage {
		return nil, apperr.New(apperr.UnsupportedType, "videos must be uploaded through the transcoding path")
	}
	if s.store == nil {
		return nil, apperr.New(apperr.StorageUnconfigured, "object storage is not configured")
	}

	contentType := NormalizeMimeType(req.MimeType)
	key := GenerateObjectKey(s.namespace, ownerID, req.FileName, contentType, s.now())

	cred, err := retry.DoValue(ctx, s.policy, "storage.presign", func(ctx context.Context) (*objectstore.Credential, error) {
		return s.store.PresignUpload(ctx, objectstore.UploadSpec{
			Key:           key,
			ContentType:   contentType,
			MinBytes:      1,
			MaxBytes:      plan.MaxBytes,
			DeclaredBytes: req.DeclaredSize,
			TTL:           s.credTTL,
		})
	})
	if err != nil {
		return nil, err
	}

	intent := types.UploadIntent{
		OwnerID:        ownerID,
		MimeType:       contentType,
		DeclaredSize:   req.DeclaredSize,
		Visibility:     visibility,
		Price:          req.Price,
		Description:    req.Description,
		ChosenProvider: plan.Provider,
		StorageKey:     key,
		SlotIndex:      req.SlotIndex,
		ExpiresAt:      s.now().Add(s.intentTTL),
	}
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to record upload intent")
	}

	expiresIn := int64(cred.ExpiresAt.Sub(s.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	return &mediaTypes.ImageUploadResponse{
		UploadTarget: mediaTypes.UploadTarget{
			Method:  cred.Method,
			URL:     cred.URL,
			Fields:  cred.Fields,
			Headers: cred.Headers,
		},
		StorageKey:       key,
		PublicURL:        s.store.PublicURL(key),
		ExpiresInSeconds: expiresIn,
	}, nil
}

// CreateVideoJob registers a transcoding job the client uploads into.
func (s *Service) CreateVideoJob(ctx context.Context, ownerID string, req mediaTypes.VideoJobRequest) (*mediaTypes.VideoJobResponse, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperr.New(apperr.MissingParams, "owner is required")
	}
	visibility, err := defaultVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	if err := ValidateSlot(req.SlotIndex); err != nil {
		return nil, err
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = mimeFromFileName(req.FileName, "video/mp4")
	}
	plan, err := s.selector.Select(mimeType, req.DeclaredSize)
	if err != nil {
		return nil, err
	}
	if plan.Provider != types.ProviderTranscoding {
		return nil, apperr.New(apperr.UnsupportedType, "images must be uploaded through the object storage path")
	}

	meta := map[string]string{transcode.OwnerMetaKey: ownerID}
	if req.FileName != "" {
		meta["name"] = path.Base(req.FileName)
	}

	job, err := s.tracker.CreateJob(ctx, meta)
	if err != nil {
		return nil, err
	}

	intent := types.UploadIntent{
		OwnerID:        ownerID,
		MimeType:       NormalizeMimeType(mimeType),
		DeclaredSize:   req.DeclaredSize,
		Visibility:     visibility,
		Price:          req.Price,
		Description:    req.Description,
		ChosenProvider: plan.Provider,
		JobID:          job.JobID,
		SlotIndex:      req.SlotIndex,
		ExpiresAt:      s.now().Add(s.intentTTL),
	}
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to record upload intent")
	}

	s.publisher.PublishJobStatus(types.TranscodingJob{ExternalJobID: job.JobID, Phase: types.PhaseCreated}, "create")

	return &mediaTypes.VideoJobResponse{UploadTarget: job.UploadURL, JobID: job.JobID}, nil
}

// JobStatus polls a job on behalf of ownerID. Jobs whose intent, or once
// that is gone whose backend record, names someone else are forbidden.
func (s *Service) JobStatus(ctx context.Context, ownerID, jobID string) (*mediaTypes.JobStatusResponse, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apperr.New(apperr.MissingParams, "jobId is required")
	}

	intent, err := s.intents.Get(ctx, jobID)
	if err != nil {
		slog.Warn("failed to load upload intent", slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
	if intent != nil && intent.OwnerID != ownerID {
		return nil, apperr.New(apperr.Forbidden, "job belongs to another owner")
	}

	job, err := s.tracker.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if intent == nil && job.OwnerID != ownerID {
		return nil, apperr.New(apperr.Forbidden, "job belongs to another owner")
	}
	s.publisher.PublishJobStatus(job, "poll")

	return &mediaTypes.JobStatusResponse{
		Phase:        job.Phase,
		PlaybackURL:  job.PlaybackURL,
		ThumbnailURL: job.ThumbnailURL,
		ErrorMessage: job.ErrorMessage,
	}, nil
}

// KeyPrefix is the directory every key issued to ownerID lives under.
func KeyPrefix(namespace, ownerID string) string {
	return fmt.Sprintf("%s/%s/", namespace, escapeSegment(ownerID))
}

// GenerateObjectKey creates a key of the form
// <namespace>/<ownerId>/<unixMillis>-<random>.<ext>.
func GenerateObjectKey(namespace, ownerID, fileName, contentType string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s%d-%s%s", KeyPrefix(namespace, ownerID), now.UnixMilli(), random, extensionFor(fileName, contentType))
}

// extensionFor keeps the file name's extension when it matches the content
// type and otherwise picks one from the content type.
func extensionFor(fileName, contentType string) string {
	if ext := strings.ToLower(path.Ext(fileName)); ext != "" {
		if NormalizeMimeType(mime.TypeByExtension(ext)) == contentType {
			return ext
		}
	}

	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}

	if extensions, err := mime.ExtensionsByType(contentType); err == nil && len(extensions) > 0 {
		return extensions[0]
	}
	return ".bin"
}

func mimeFromFileName(fileName, fallback string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); t != "" {
		return t
	}
	return fallback
}

// escapeSegment keeps letters, digits and '-' and writes every other byte
// as _XX, so distinct owner IDs never share a key prefix.
func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02X", c)
		}
	}
	return b.String()
}

// ValidateSlot accepts an absent slot or one of the gallery's slots.
func ValidateSlot(slot *int) error {
	if slot != nil && (*slot < 0 || *slot >= users.SlotCount) {
		return apperr.New(apperr.InvalidSlot, fmt.Sprintf("slotIndex must be between 0 and %d", users.SlotCount-1))
	}
	return nil
}

func clampTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl < minCredentialTTL:
		return 10 * time.Minute
	case ttl > maxCredentialTTL:
		return maxCredentialTTL
	}
	return ttl
}

func defaultVisibility(v types.Visibility) (types.Visibility, error) {
	if v == "" {
		return types.VisibilityPublic, nil
	}
	if !v.Valid() {
		return "", apperr.New(apperr.InvalidRequest, "unknown visibility")
	}
	return v, nil
}

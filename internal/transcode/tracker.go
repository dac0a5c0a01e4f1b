// Package transcode creates and follows remote video transcoding jobs and
// reports their status in the canonical phase vocabulary.
package transcode

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/types"
)

// Backend is the remote transcoding service.
type Backend interface {
	CreateDirectUpload(ctx context.Context, maxDurationSeconds int, meta map[string]string) (*DirectUpload, error)
	GetVideo(ctx context.Context, uid string) (*Video, error)
}

// PhaseStore mirrors the last status exposed for each job and applies
// types.Advance atomically.
type PhaseStore interface {
	Observe(ctx context.Context, observed types.TranscodingJob) (types.TranscodingJob, error)
}

// OwnerMetaKey is the job metadata entry naming the owner that created it.
const OwnerMetaKey = "owner"

// Job is a freshly registered transcoding job.
type Job struct {
	JobID     string
	UploadURL string
}

type Tracker struct {
	backend     Backend
	phases      PhaseStore
	policy      retry.Policy
	maxDuration int
}

func NewTracker(backend Backend, phases PhaseStore, policy retry.Policy, maxDurationSeconds int) *Tracker {
	return &Tracker{
		backend:     backend,
		phases:      phases,
		policy:      policy,
		maxDuration: maxDurationSeconds,
	}
}

// CreateJob registers a job with the backend before any bytes are sent.
func (t *Tracker) CreateJob(ctx context.Context, meta map[string]string) (*Job, error) {
	if t.backend == nil {
		return nil, apperr.New(apperr.TranscodingUnconfigured, "no transcoding backend configured")
	}

	upload, err := retry.DoValue(ctx, t.policy, "transcode.create", func(ctx context.Context) (*DirectUpload, error) {
		return t.backend.CreateDirectUpload(ctx, t.maxDuration, meta)
	})
	if err != nil {
		return nil, err
	}

	if _, err := t.phases.Observe(ctx, types.TranscodingJob{ExternalJobID: upload.UID, Phase: types.PhaseCreated}); err != nil {
		return nil, err
	}

	return &Job{JobID: upload.UID, UploadURL: upload.UploadURL}, nil
}

// Status polls the backend. A job the backend no longer knows yields a
// not_found error.
func (t *Tracker) Status(ctx context.Context, jobID string) (types.TranscodingJob, error) {
	if t.backend == nil {
		return types.TranscodingJob{}, apperr.New(apperr.TranscodingUnconfigured, "no transcoding backend configured")
	}
	if strings.TrimSpace(jobID) == "" {
		return types.TranscodingJob{}, apperr.New(apperr.MissingParams, "jobId is required")
	}

	video, err := retry.DoValue(ctx, t.policy, "transcode.status", func(ctx context.Context) (*Video, error) {
		return t.backend.GetVideo(ctx, jobID)
	})
	if err != nil {
		return types.TranscodingJob{}, err
	}

	return t.observe(ctx, *video)
}

// WebhookEvent is the push-notification envelope. Deliveries that carry a
// bare video object are accepted too.
type WebhookEvent struct {
	EventType  string          `json:"eventType"`
	JobPayload json.RawMessage `json:"jobPayload"`
}

// ParseWebhook extracts the video object from a notification body.
func ParseWebhook(body []byte) (string, Video, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return "", Video{}, apperr.Wrap(apperr.InvalidRequest, err, "malformed webhook body")
	}

	payload := []byte(evt.JobPayload)
	if len(payload) == 0 || string(payload) == "null" {
		payload = body
	}

	var v Video
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", Video{}, apperr.Wrap(apperr.InvalidRequest, err, "malformed job payload")
	}
	if strings.TrimSpace(v.UID) == "" {
		return "", Video{}, apperr.New(apperr.MissingParams, "job payload has no uid")
	}
	return evt.EventType, v, nil
}

// Observe records a pushed status and returns what callers should see.
func (t *Tracker) Observe(ctx context.Context, v Video) (types.TranscodingJob, error) {
	return t.observe(ctx, v)
}

// observe applies the phase mirror. The owner comes from the job's
// metadata and is not part of the mirrored state.
func (t *Tracker) observe(ctx context.Context, v Video) (types.TranscodingJob, error) {
	job, err := t.phases.Observe(ctx, Normalize(v))
	if err != nil {
		return types.TranscodingJob{}, err
	}
	job.OwnerID = v.Meta[OwnerMetaKey]
	return job, nil
}

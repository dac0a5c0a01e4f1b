package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/events"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	"github.com/princekumarofficial/media-service/internal/metrics"
	"github.com/princekumarofficial/media-service/internal/transcode"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

const (
	SignatureHeader    = "Webhook-Signature"
	signatureTolerance = 5 * time.Minute
	maxBodyBytes       = 1 << 20
)

var (
	errMalformedSignature = errors.New("malformed webhook signature")
	errStaleSignature     = errors.New("webhook signature outside tolerance")
	errBadSignature       = errors.New("webhook signature mismatch")
)

// Deduper records the first delivery of an event id.
type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
}

type IntentStore interface {
	Get(ctx context.Context, handle string) (*types.UploadIntent, error)
	Delete(ctx context.Context, handle string) error
}

type Finalizer interface {
	FinalizeJob(ctx context.Context, intent types.UploadIntent, job *types.TranscodingJob) (*mediaTypes.FinalizeResponse, error)
}

type Handler struct {
	tracker   *transcode.Tracker
	deduper   Deduper
	intents   IntentStore
	finalizer Finalizer
	publisher events.Publisher
	secret    string
	now       func() time.Time
}

// NewHandler builds the transcoding webhook receiver. An empty secret
// disables signature verification.
func NewHandler(tracker *transcode.Tracker, deduper Deduper, intents IntentStore, finalizer Finalizer, publisher events.Publisher, secret string) *Handler {
	return &Handler{
		tracker:   tracker,
		deduper:   deduper,
		intents:   intents,
		finalizer: finalizer,
		publisher: publisher,
		secret:    secret,
		now:       time.Now,
	}
}

type ackResponse struct {
	Received  bool        `json:"received"`
	Duplicate bool        `json:"duplicate,omitempty"`
	JobID     string      `json:"jobId,omitempty"`
	Phase     types.Phase `json:"phase,omitempty"`
}

// Receive handles a transcoding status notification
// @Summary Transcoding webhook
// @Description Receives job status notifications. Deliveries are deduplicated per job and phase; once deduplicated the handler always acknowledges.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Webhook-Signature header string false "time=<unix>,sig1=<hex hmac-sha256>"
// @Success 200 {object} ackResponse
// @Failure 400 {object} response.Response "invalid_request"
// @Failure 401 {object} response.Response "unauthorized"
// @Failure 503 {object} response.Response "upstream_unavailable"
// @Router /webhooks/transcoding [post]
func (h *Handler) Receive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				apperr.Wrap(apperr.InvalidRequest, err, "unreadable body")))
			return
		}

		if h.secret != "" {
			if err := VerifySignature(r.Header.Get(SignatureHeader), body, h.secret, h.now()); err != nil {
				logger.Warn("Rejected webhook signature", "error", err.Error())
				metrics.WebhookEvents.WithLabelValues("rejected").Inc()
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
					apperr.New(apperr.Unauthorized, "invalid signature")))
				return
			}
		}

		eventType, video, err := transcode.ParseWebhook(body)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			response.WriteJSON(w, apperr.HTTPStatus(apperr.CodeOf(err)), response.GeneralError(err))
			return
		}

		observed := transcode.Normalize(video)
		first, err := h.deduper.First(r.Context(), video.UID+":"+string(observed.Phase))
		if err != nil {
			// not recorded yet, so let the backend redeliver
			logger.Error("Webhook dedup failed", "job_id", video.UID, "error", err.Error())
			metrics.WebhookEvents.WithLabelValues("error").Inc()
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(
				apperr.Wrap(apperr.UpstreamUnavailable, err, "dedup store unavailable")))
			return
		}
		if !first {
			metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
			response.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Duplicate: true, JobID: video.UID, Phase: observed.Phase})
			return
		}

		// From here on every outcome is acknowledged. Failures are picked up
		// by the reconcile worker.
		job, err := h.tracker.Observe(r.Context(), video)
		if err != nil {
			logger.Error("Failed to record webhook status", "job_id", video.UID, "error", err.Error())
			job = observed
		}
		h.publisher.PublishJobStatus(job, "webhook")

		result := h.settle(r.Context(), job)
		metrics.WebhookEvents.WithLabelValues(result).Inc()
		logger.Info("Webhook processed",
			"event_type", eventType,
			"job_id", job.ExternalJobID,
			"phase", string(job.Phase),
			"result", result)

		response.WriteJSON(w, http.StatusOK, ackResponse{Received: true, JobID: job.ExternalJobID, Phase: job.Phase})
	}
}

// settle finalizes ready jobs and forgets failed ones. It returns the
// metrics label for the delivery.
func (h *Handler) settle(ctx context.Context, job types.TranscodingJob) string {
	logger := middleware.LoggerFromContext(ctx)

	switch job.Phase {
	case types.PhaseReady:
		intent, err := h.intents.Get(ctx, job.ExternalJobID)
		if err != nil {
			logger.Error("Failed to load upload intent", "job_id", job.ExternalJobID, "error", err.Error())
			return "finalize_failed"
		}
		if intent == nil {
			// finalized already, or the owner context expired
			return "no_intent"
		}
		if _, err := h.finalizer.FinalizeJob(ctx, *intent, &job); err != nil {
			logger.Error("Webhook finalization failed", "job_id", job.ExternalJobID, "error", err.Error())
			return "finalize_failed"
		}
		return "finalized"

	case types.PhaseFailed:
		if err := h.intents.Delete(ctx, job.ExternalJobID); err != nil {
			logger.Warn("Failed to delete upload intent", "job_id", job.ExternalJobID, "error", err.Error())
		}
		return "failed"
	}
	return "accepted"
}

// VerifySignature checks a "time=<unix>,sig1=<hex>" header against
// HMAC-SHA256(secret, time + "." + body).
func VerifySignature(header string, body []byte, secret string, now time.Time) error {
	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "time":
			timestamp = value
		case "sig1":
			signature = value
		}
	}
	if timestamp == "" || signature == "" {
		return errMalformedSignature
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errMalformedSignature
	}
	if math.Abs(now.Sub(time.Unix(unix, 0)).Seconds()) > signatureTolerance.Seconds() {
		return errStaleSignature
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return errMalformedSignature
	}
	if !hmac.Equal(given, Sign(timestamp, body, secret)) {
		return errBadSignature
	}
	return nil
}

// Sign computes the raw signature for a timestamp and body.
func Sign(timestamp string, body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

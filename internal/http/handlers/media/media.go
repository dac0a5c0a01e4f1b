package media

import (
	"net/http"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	"github.com/princekumarofficial/media-service/internal/services/finalize"
	mediaService "github.com/princekumarofficial/media-service/internal/services/media"
	"github.com/princekumarofficial/media-service/internal/storage"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/princekumarofficial/media-service/internal/utils/request"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

type MediaHandlers struct {
	mediaService *mediaService.Service
	finalizer    *finalize.Finalizer
	storage      storage.Storage
	isProduction bool
}

func NewMediaHandlers(mediaService *mediaService.Service, finalizer *finalize.Finalizer, storage storage.Storage, isProduction bool) *MediaHandlers {
	return &MediaHandlers{
		mediaService: mediaService,
		finalizer:    finalizer,
		storage:      storage,
		isProduction: isProduction,
	}
}

func (h *MediaHandlers) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
			apperr.New(apperr.Unauthorized, "user not authenticated")))
	}
	return userID, ok
}

// Plan reports which backend an upload would go to
// @Summary Get an upload plan
// @Description Decide between the object storage path and the transcoding path for a MIME type and size
// @Tags media
// @Accept json
// @Produce json
// @Param request body mediaTypes.PlanRequest true "Upload description"
// @Success 200 {object} mediaTypes.PlanResponse
// @Failure 400 {object} response.Response "missing_params or invalid_request"
// @Failure 413 {object} response.Response "file_too_large"
// @Failure 415 {object} response.Response "unsupported_type"
// @Failure 503 {object} response.Response "storage_unconfigured or transcoding_unconfigured"
// @Security BearerAuth
// @Router /media/uploads/plan [post]
func (h *MediaHandlers) Plan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.caller(w, r); !ok {
			return
		}

		var req mediaTypes.PlanRequest
		if !request.DecodeJSON(w, r, &req) {
			return
		}

		plan, err := h.mediaService.Plan(req)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		response.WriteJSON(w, http.StatusOK, plan)
	}
}

// IssueImageUpload issues a signed object storage credential
// @Summary Request an image upload credential
// @Description Returns a short-lived credential scoped to one storage key and content type
// @Tags media
// @Accept json
// @Produce json
// @Param request body mediaTypes.ImageUploadRequest true "Image upload request"
// @Success 200 {object} mediaTypes.ImageUploadResponse
// @Failure 400 {object} response.Response "missing_params"
// @Failure 413 {object} response.Response "file_too_large"
// @Failure 415 {object} response.Response "unsupported_type"
// @Failure 429 {object} response.Response "rate_limited"
// @Failure 503 {object} response.Response "storage_unconfigured"
// @Security BearerAuth
// @Router /media/uploads/image [post]
func (h *MediaHandlers) IssueImageUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.caller(w, r)
		if !ok {
			return
		}

		var req mediaTypes.ImageUploadRequest
		if !request.DecodeJSON(w, r, &req) {
			return
		}

		resp, err := h.mediaService.IssueImageUpload(r.Context(), userID, req)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Image upload credential issued",
			"owner_id", userID, "storage_key", resp.StorageKey)
		response.WriteJSON(w, http.StatusOK, resp)
	}
}

// CreateVideoJob registers a transcoding job
// @Summary Create a video upload job
// @Description Registers a job with the transcoding backend and returns the URL to upload the video to
// @Tags media
// @Accept json
// @Produce json
// @Param request body mediaTypes.VideoJobRequest false "Video job request"
// @Success 201 {object} mediaTypes.VideoJobResponse
// @Failure 415 {object} response.Response "unsupported_type"
// @Failure 429 {object} response.Response "rate_limited"
// @Failure 503 {object} response.Response "transcoding_unconfigured or upstream_unavailable"
// @Security BearerAuth
// @Router /media/videos [post]
func (h *MediaHandlers) CreateVideoJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.caller(w, r)
		if !ok {
			return
		}

		var req mediaTypes.VideoJobRequest
		if r.ContentLength != 0 && !request.DecodeJSON(w, r, &req) {
			return
		}

		resp, err := h.mediaService.CreateVideoJob(r.Context(), userID, req)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Video job created", "owner_id", userID, "job_id", resp.JobID)
		response.WriteJSON(w, http.StatusCreated, resp)
	}
}

// JobStatus returns the normalized status of a video job
// @Summary Get video job status
// @Tags media
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} mediaTypes.JobStatusResponse
// @Failure 403 {object} response.Response "forbidden"
// @Failure 404 {object} response.Response "not_found"
// @Failure 503 {object} response.Response "upstream_unavailable"
// @Security BearerAuth
// @Router /media/videos/{jobId} [get]
func (h *MediaHandlers) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.caller(w, r)
		if !ok {
			return
		}

		resp, err := h.mediaService.JobStatus(r.Context(), userID, r.PathValue("jobId"))
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		response.WriteJSON(w, http.StatusOK, resp)
	}
}

// Finalize confirms an upload and records it
// @Summary Finalize an upload
// @Description Creates the media record for an uploaded image (storageKey) or a ready video (jobId). Repeated calls return the existing record.
// @Tags media
// @Accept json
// @Produce json
// @Param request body mediaTypes.FinalizeRequest true "Finalization request"
// @Success 200 {object} mediaTypes.FinalizeResponse "Existing record"
// @Success 201 {object} mediaTypes.FinalizeResponse "Created record"
// @Failure 400 {object} response.Response "missing_params"
// @Failure 403 {object} response.Response "forbidden or unknown_owner"
// @Failure 409 {object} response.Response "not_ready"
// @Failure 422 {object} response.Response "processing_failed"
// @Security BearerAuth
// @Router /media/finalize [post]
func (h *MediaHandlers) Finalize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.caller(w, r)
		if !ok {
			return
		}

		var req mediaTypes.FinalizeRequest
		if !request.DecodeJSON(w, r, &req) {
			return
		}

		resp, err := h.finalizer.Finalize(r.Context(), userID, req)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		status := http.StatusCreated
		if resp.AlreadyExists {
			status = http.StatusOK
		}
		response.WriteJSON(w, status, resp)
	}
}

// ListMedia lists the caller's finalized media
// @Summary List media
// @Tags media
// @Produce json
// @Success 200 {object} mediaTypes.MediaListResponse
// @Failure 403 {object} response.Response "unknown_owner"
// @Security BearerAuth
// @Router /media [get]
func (h *MediaHandlers) ListMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.caller(w, r)
		if !ok {
			return
		}

		ownerType, err := h.storage.ResolveOwner(r.Context(), userID)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		items, err := h.storage.ListMedia(r.Context(), ownerType, userID)
		if err != nil {
			response.Error(w, err, h.isProduction)
			return
		}

		response.WriteJSON(w, http.StatusOK, mediaTypes.MediaListResponse{Items: items})
	}
}

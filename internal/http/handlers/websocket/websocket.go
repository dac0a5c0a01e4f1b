package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/utils/jwt"
	"github.com/princekumarofficial/media-service/internal/utils/response"
	wsClient "github.com/princekumarofficial/media-service/internal/websocket"
)

type IntentLookup interface {
	Get(ctx context.Context, handle string) (*types.UploadIntent, error)
}

// JobLookup reports a job's backend record, which names its owner.
type JobLookup interface {
	Status(ctx context.Context, jobID string) (types.TranscodingJob, error)
}

// JobEventsHandler subscribes the caller to status events of one job
// @Summary Subscribe to job events
// @Description Upgrades to a websocket that receives job.status and media.finalized events for the job
// @Tags media
// @Param jobId path string true "Job ID"
// @Param token query string false "JWT, for clients that cannot set headers"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} response.Response "unauthorized"
// @Failure 403 {object} response.Response "forbidden"
// @Failure 404 {object} response.Response "not_found"
// @Router /ws/jobs/{jobId} [get]
func JobEventsHandler(hub *wsClient.Hub, intents IntentLookup, jobs JobLookup, jwtSecret string, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if token == "" {
			slog.Warn("WebSocket connection attempted without token")
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				apperr.New(apperr.Unauthorized, "token required")))
			return
		}

		userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
		if err != nil {
			slog.Warn("WebSocket connection attempted with invalid token", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				apperr.New(apperr.Unauthorized, "invalid token")))
			return
		}

		jobID := r.PathValue("jobId")
		if jobID == "" {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				apperr.New(apperr.MissingParams, "jobId is required")))
			return
		}

		intent, err := intents.Get(r.Context(), jobID)
		if err != nil {
			slog.Warn("Failed to load upload intent", slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
		var owner string
		if intent != nil {
			owner = intent.OwnerID
		} else {
			job, err := jobs.Status(r.Context(), jobID)
			if err != nil {
				response.Error(w, err, isProduction)
				return
			}
			owner = job.OwnerID
		}
		if owner != userID {
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(
				apperr.New(apperr.Forbidden, "job belongs to another owner")))
			return
		}

		if err := wsClient.Serve(hub, w, r, jobID, userID); err != nil {
			slog.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		slog.Info("WebSocket connection established", slog.String("user_id", userID), slog.String("job_id", jobID))
	}
}

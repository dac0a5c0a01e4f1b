package transcode

import (
	"strings"

	"github.com/princekumarofficial/media-service/internal/types"
)

// nativePhases translates the backend's status.state values.
var nativePhases = map[string]types.Phase{
	"pendingupload": types.PhaseCreated,
	"downloading":   types.PhaseUploaded,
	"queued":        types.PhaseQueued,
	"inprogress":    types.PhaseProcessing,
	"ready":         types.PhaseReady,
	"error":         types.PhaseFailed,
}

// Normalize converts a backend video object into the canonical job status.
// Unknown states map to processing. A ready state without both a playback
// and a thumbnail URL is not ready yet.
func Normalize(v Video) types.TranscodingJob {
	phase, ok := nativePhases[strings.ToLower(strings.TrimSpace(v.Status.State))]
	if !ok {
		phase = types.PhaseProcessing
	}

	job := types.TranscodingJob{
		ExternalJobID: v.UID,
		Phase:         phase,
	}

	switch phase {
	case types.PhaseReady:
		if v.Playback.HLS == "" || v.Thumbnail == "" {
			job.Phase = types.PhaseProcessing
			break
		}
		job.PlaybackURL = v.Playback.HLS
		job.ThumbnailURL = v.Thumbnail
	case types.PhaseFailed:
		job.ErrorMessage = v.Status.ErrReasonText
		if job.ErrorMessage == "" {
			job.ErrorMessage = v.Status.ErrReasonCode
		}
		if job.ErrorMessage == "" {
			job.ErrorMessage = "transcoding failed"
		}
	}

	return job
}

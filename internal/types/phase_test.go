package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvance(t *testing.T) {
	job := func(p Phase) TranscodingJob {
		j := TranscodingJob{ExternalJobID: "job-1", Phase: p}
		if p == PhaseReady {
			j.PlaybackURL = "https://video.example.com/job-1/manifest.m3u8"
			j.ThumbnailURL = "https://video.example.com/job-1/thumb.jpg"
		}
		if p == PhaseFailed {
			j.ErrorMessage = "codec not supported"
		}
		return j
	}
	ptr := func(j TranscodingJob) *TranscodingJob { return &j }

	cases := []struct {
		name        string
		prev        *TranscodingJob
		observed    TranscodingJob
		wantStored  Phase
		wantExposed Phase
	}{
		{"first observation", nil, job(PhaseQueued), PhaseQueued, PhaseQueued},
		{"forward", ptr(job(PhaseQueued)), job(PhaseProcessing), PhaseProcessing, PhaseProcessing},
		{"same phase", ptr(job(PhaseProcessing)), job(PhaseProcessing), PhaseProcessing, PhaseProcessing},
		{"skip ahead", ptr(job(PhaseCreated)), job(PhaseReady), PhaseReady, PhaseReady},
		{"regression kept back", ptr(job(PhaseProcessing)), job(PhaseQueued), PhaseProcessing, PhaseProcessing},
		{"regression after ready", ptr(job(PhaseReady)), job(PhaseProcessing), PhaseReady, PhaseReady},
		{"ready after failed", ptr(job(PhaseFailed)), job(PhaseReady), PhaseFailed, PhaseProcessing},
		{"failed after ready", ptr(job(PhaseReady)), job(PhaseFailed), PhaseReady, PhaseProcessing},
		{"repeat failed", ptr(job(PhaseFailed)), job(PhaseFailed), PhaseFailed, PhaseFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stored, exposed := Advance(tc.prev, tc.observed)
			assert.Equal(t, tc.wantStored, stored.Phase)
			assert.Equal(t, tc.wantExposed, exposed.Phase)
		})
	}
}

func TestAdvance_RegressionKeepsStoredURLs(t *testing.T) {
	prev := &TranscodingJob{ExternalJobID: "j", Phase: PhaseReady, PlaybackURL: "p", ThumbnailURL: "t"}
	_, exposed := Advance(prev, TranscodingJob{ExternalJobID: "j", Phase: PhaseQueued})
	assert.Equal(t, "p", exposed.PlaybackURL)
	assert.Equal(t, "t", exposed.ThumbnailURL)
}

func TestPhaseRank(t *testing.T) {
	order := []Phase{PhaseCreated, PhaseUploaded, PhaseQueued, PhaseProcessing, PhaseReady}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].Rank(), order[i].Rank())
	}
	assert.Equal(t, PhaseReady.Rank(), PhaseFailed.Rank())
	assert.Equal(t, -1, Phase("weird").Rank())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseQueued.Terminal())
}

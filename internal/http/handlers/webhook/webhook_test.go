package webhook

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/cache"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/transcode"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/princekumarofficial/media-service/internal/utils/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

type noBackend struct{}

func (noBackend) CreateDirectUpload(context.Context, int, map[string]string) (*transcode.DirectUpload, error) {
	return nil, errors.New("not used")
}

func (noBackend) GetVideo(context.Context, string) (*transcode.Video, error) {
	return nil, apperr.New(apperr.NotFound, "")
}

type recordingFinalizer struct {
	mu    sync.Mutex
	calls []types.TranscodingJob
	err   error
}

func (f *recordingFinalizer) FinalizeJob(_ context.Context, intent types.UploadIntent, job *types.TranscodingJob) (*mediaTypes.FinalizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, *job)
	if f.err != nil {
		return nil, f.err
	}
	return &mediaTypes.FinalizeResponse{MediaID: "m-" + intent.JobID, URL: job.PlaybackURL}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	phases []types.Phase
}

func (p *recordingPublisher) PublishJobStatus(job types.TranscodingJob, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, job.Phase)
}

func (p *recordingPublisher) PublishMediaFinalized(types.MediaFinalizedEvent) {}

type brokenDeduper struct{}

func (brokenDeduper) First(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

type fixture struct {
	handler   *Handler
	intents   *cache.MemoryIntentStore
	finalizer *recordingFinalizer
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T, deduper Deduper) *fixture {
	t.Helper()

	f := &fixture{
		intents:   cache.NewMemoryIntentStore(),
		finalizer: &recordingFinalizer{},
		publisher: &recordingPublisher{},
		now:       time.Unix(1_700_000_000, 0),
	}
	tracker := transcode.NewTracker(noBackend{}, cache.NewMemoryPhaseStore(), retry.Policy{MaxAttempts: 1}, 600)
	f.handler = NewHandler(tracker, deduper, f.intents, f.finalizer, f.publisher, testSecret)
	f.handler.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) deliver(t *testing.T, body []byte, header string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/transcoding", bytes.NewReader(body))
	if header != "" {
		req.Header.Set(SignatureHeader, header)
	}
	rec := httptest.NewRecorder()
	f.handler.Receive().ServeHTTP(rec, req)
	return rec
}

func signedHeader(body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "time=" + ts + ",sig1=" + hex.EncodeToString(Sign(ts, body, testSecret))
}

func videoBody(t *testing.T, v transcode.Video) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func readyVideo(uid string) transcode.Video {
	return transcode.Video{
		UID:           uid,
		ReadyToStream: true,
		Thumbnail:     "https://video.example.com/" + uid + "/thumb.jpg",
		Status:        transcode.VideoStatus{State: "ready"},
		Playback:      transcode.VideoPlayback{HLS: "https://video.example.com/" + uid + "/manifest.m3u8"},
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"uid":"abc"}`)
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)
	good := hex.EncodeToString(Sign(ts, body, testSecret))

	cases := []struct {
		name   string
		header string
		want   error
	}{
		{"valid", "time=" + ts + ",sig1=" + good, nil},
		{"valid with spaces", "time=" + ts + ", sig1=" + good, nil},
		{"missing signature", "time=" + ts, errMalformedSignature},
		{"empty", "", errMalformedSignature},
		{"non numeric time", "time=abc,sig1=" + good, errMalformedSignature},
		{"not hex", "time=" + ts + ",sig1=zz", errMalformedSignature},
		{"stale", "time=" + strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10) + ",sig1=" + good, errStaleSignature},
		{"wrong signature", "time=" + ts + ",sig1=" + hex.EncodeToString(Sign(ts, body, "other")), errBadSignature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.header, body, testSecret, now)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("tampered body", func(t *testing.T) {
		err := VerifySignature("time="+ts+",sig1="+good, []byte(`{"uid":"abd"}`), testSecret, now)
		assert.ErrorIs(t, err, errBadSignature)
	})
}

func TestReceive_ReadyFinalizesOnce(t *testing.T) {
	f := newFixture(t, cache.NewMemoryDeduper())
	require.NoError(t, f.intents.Save(context.Background(), types.UploadIntent{
		OwnerID:        "u1",
		ChosenProvider: types.ProviderTranscoding,
		JobID:          "job-1",
		Visibility:     types.VisibilityPublic,
		ExpiresAt:      time.Now().Add(time.Hour),
	}))

	body := videoBody(t, readyVideo("job-1"))

	rec := f.deliver(t, body, signedHeader(body, f.now))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ack ackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Received)
	assert.False(t, ack.Duplicate)
	assert.Equal(t, types.PhaseReady, ack.Phase)

	rec = f.deliver(t, body, signedHeader(body, f.now.Add(time.Second)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Duplicate)

	require.Len(t, f.finalizer.calls, 1)
	assert.Equal(t, "https://video.example.com/job-1/manifest.m3u8", f.finalizer.calls[0].PlaybackURL)
	assert.Equal(t, []types.Phase{types.PhaseReady}, f.publisher.phases)
}

func TestReceive_PhasesDeduplicatedIndependently(t *testing.T) {
	f := newFixture(t, cache.NewMemoryDeduper())

	processing := videoBody(t, transcode.Video{UID: "job-2", Status: transcode.VideoStatus{State: "inprogress"}})
	ready := videoBody(t, readyVideo("job-2"))

	for _, body := range [][]byte{processing, processing, ready} {
		rec := f.deliver(t, body, signedHeader(body, f.now))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, []types.Phase{types.PhaseProcessing, types.PhaseReady}, f.publisher.phases)
	// no intent, so nothing to finalize
	assert.Empty(t, f.finalizer.calls)
}

func TestReceive_FailedDropsIntent(t *testing.T) {
	f := newFixture(t, cache.NewMemoryDeduper())
	ctx := context.Background()
	require.NoError(t, f.intents.Save(ctx, types.UploadIntent{
		OwnerID: "u1", JobID: "job-3", ChosenProvider: types.ProviderTranscoding, ExpiresAt: time.Now().Add(time.Hour),
	}))

	body := videoBody(t, transcode.Video{UID: "job-3", Status: transcode.VideoStatus{State: "error", ErrReasonText: "codec"}})
	rec := f.deliver(t, body, signedHeader(body, f.now))
	require.Equal(t, http.StatusOK, rec.Code)

	intent, err := f.intents.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Nil(t, intent)
	assert.Empty(t, f.finalizer.calls)
}

func TestReceive_FinalizeErrorStillAcknowledged(t *testing.T) {
	f := newFixture(t, cache.NewMemoryDeduper())
	f.finalizer.err = apperr.New(apperr.UpstreamUnavailable, "database down")
	require.NoError(t, f.intents.Save(context.Background(), types.UploadIntent{
		OwnerID: "u1", JobID: "job-4", ChosenProvider: types.ProviderTranscoding, ExpiresAt: time.Now().Add(time.Hour),
	}))

	body := videoBody(t, readyVideo("job-4"))
	rec := f.deliver(t, body, signedHeader(body, f.now))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.finalizer.calls, 1)
}

func TestReceive_Rejections(t *testing.T) {
	body := videoBody(t, readyVideo("job-5"))

	t.Run("unsigned", func(t *testing.T) {
		f := newFixture(t, cache.NewMemoryDeduper())
		rec := f.deliver(t, body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("stale", func(t *testing.T) {
		f := newFixture(t, cache.NewMemoryDeduper())
		rec := f.deliver(t, body, signedHeader(body, f.now.Add(-10*time.Minute)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		f := newFixture(t, cache.NewMemoryDeduper())
		bad := []byte(`{"uid":`)
		rec := f.deliver(t, bad, signedHeader(bad, f.now))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no uid", func(t *testing.T) {
		f := newFixture(t, cache.NewMemoryDeduper())
		empty := []byte(`{"status":{"state":"ready"}}`)
		rec := f.deliver(t, empty, signedHeader(empty, f.now))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("dedup store down", func(t *testing.T) {
		f := newFixture(t, brokenDeduper{})
		rec := f.deliver(t, body, signedHeader(body, f.now))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp response.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(apperr.UpstreamUnavailable), resp.Error)
		assert.Empty(t, f.publisher.phases)
	})
}

func TestReceive_NoSecretSkipsVerification(t *testing.T) {
	f := newFixture(t, cache.NewMemoryDeduper())
	f.handler.secret = ""

	body := videoBody(t, transcode.Video{UID: "job-6", Status: transcode.VideoStatus{State: "queued"}})
	rec := f.deliver(t, body, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

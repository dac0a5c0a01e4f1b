package finalize

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/cache"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/objectstore"
	"github.com/princekumarofficial/media-service/internal/retry"
	"github.com/princekumarofficial/media-service/internal/services/gallery"
	"github.com/princekumarofficial/media-service/internal/services/media"
	"github.com/princekumarofficial/media-service/internal/storage/memory"
	"github.com/princekumarofficial/media-service/internal/types"
	mediaTypes "github.com/princekumarofficial/media-service/internal/types/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]mediaTypes.ObjectInfo
}

func (f *fakeObjects) PresignUpload(context.Context, objectstore.UploadSpec) (*objectstore.Credential, error) {
	return nil, apperr.New(apperr.Internal, "not used")
}

func (f *fakeObjects) Stat(_ context.Context, key string) (*mediaTypes.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.objects[key]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "object does not exist")
	}
	return &info, nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type fakeJobs struct {
	mu    sync.Mutex
	jobs  map[string]types.TranscodingJob
	polls int
}

func (f *fakeJobs) set(job types.TranscodingJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ExternalJobID] = job
}

func (f *fakeJobs) Status(_ context.Context, jobID string) (types.TranscodingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	job, ok := f.jobs[jobID]
	if !ok {
		return types.TranscodingJob{}, apperr.New(apperr.NotFound, "job not found")
	}
	return job, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.MediaFinalizedEvent
}

func (p *recordingPublisher) PublishMediaFinalized(evt types.MediaFinalizedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

type fixture struct {
	finalizer *Finalizer
	db        *memory.Memory
	objects   *fakeObjects
	jobs      *fakeJobs
	intents   *cache.MemoryIntentStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Storage: config.Storage{Namespace: "media"},
		Media: config.Media{
			ImageMaxBytes:     10 << 20,
			VideoMaxBytes:     2 << 30,
			AllowedImageTypes: []string{"image/jpeg", "image/png"},
			AllowedVideoTypes: []string{"video/mp4"},
			IntentTTL:         time.Hour,
		},
	}

	db := memory.New()
	db.AddProfile("u1", types.OwnerEscort)
	db.AddProfile("u2", types.OwnerClub)

	objects := &fakeObjects{objects: map[string]mediaTypes.ObjectInfo{}}
	jobs := &fakeJobs{jobs: map[string]types.TranscodingJob{}}
	intents := cache.NewMemoryIntentStore()
	publisher := &recordingPublisher{}

	selector := media.NewSelector(cfg.Media, true, true)
	svc := media.NewService(cfg, selector, objects, nil, intents, nil)
	policy := retry.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	return &fixture{
		finalizer: New(db, objects, jobs, intents, svc, gallery.NewService(db), policy, publisher),
		db:        db,
		objects:   objects,
		jobs:      jobs,
		intents:   intents,
		publisher: publisher,
	}
}

func (f *fixture) saveVideoIntent(t *testing.T, ownerID, jobID string) {
	t.Helper()
	require.NoError(t, f.intents.Save(context.Background(), types.UploadIntent{
		OwnerID:        ownerID,
		MimeType:       "video/mp4",
		Visibility:     types.VisibilityPremium,
		Description:    "intro",
		ChosenProvider: types.ProviderTranscoding,
		JobID:          jobID,
		ExpiresAt:      time.Now().Add(time.Hour),
	}))
}

func TestFinalize_Image(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key := "media/u1/1700000000000-abcdef0123456789.jpg"
	f.objects.objects[key] = mediaTypes.ObjectInfo{Key: key, Size: 2 << 20, ContentType: "image/jpeg"}

	resp, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{StorageKey: key})
	require.NoError(t, err)
	assert.False(t, resp.AlreadyExists)
	assert.Equal(t, "https://cdn.example.com/"+key, resp.URL)

	again, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{StorageKey: key})
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
	assert.Equal(t, resp.MediaID, again.MediaID)

	items, err := f.db.ListMedia(ctx, types.OwnerEscort, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.MediaImage, items[0].Type)
	assert.Equal(t, types.VisibilityPublic, items[0].Visibility)
}

func TestFinalize_ImageVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	big := "media/u1/1-big.jpg"
	pdf := "media/u1/2-doc.jpg"
	f.objects.objects[big] = mediaTypes.ObjectInfo{Key: big, Size: 11 << 20, ContentType: "image/jpeg"}
	f.objects.objects[pdf] = mediaTypes.ObjectInfo{Key: pdf, Size: 100, ContentType: "application/pdf"}

	cases := []struct {
		name  string
		owner string
		key   string
		code  apperr.Code
	}{
		{"foreign key", "u1", "media/u2/1-a.jpg", apperr.Forbidden},
		{"traversal", "u1", "media/u1/../u2/1-a.jpg", apperr.Forbidden},
		{"too large", "u1", big, apperr.FileTooLarge},
		{"wrong type", "u1", pdf, apperr.UnsupportedType},
		{"missing object", "u1", "media/u1/3-none.jpg", apperr.NotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.finalizer.Finalize(ctx, tc.owner, mediaTypes.FinalizeRequest{StorageKey: tc.key})
			assert.True(t, apperr.Is(err, tc.code), "got %v", err)
		})
	}

	items, _ := f.db.ListMedia(ctx, types.OwnerEscort, "u1")
	assert.Empty(t, items)
}

func TestFinalize_VideoLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveVideoIntent(t, "u1", "job-1")
	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-1", Phase: types.PhaseProcessing})

	_, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-1"})
	assert.True(t, apperr.Is(err, apperr.NotReady))

	f.jobs.set(types.TranscodingJob{
		ExternalJobID: "job-1",
		Phase:         types.PhaseReady,
		PlaybackURL:   "https://video.example.com/job-1/manifest.m3u8",
		ThumbnailURL:  "https://video.example.com/job-1/thumb.jpg",
	})

	resp, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-1"})
	require.NoError(t, err)
	assert.False(t, resp.AlreadyExists)
	assert.Equal(t, "https://video.example.com/job-1/manifest.m3u8", resp.URL)
	assert.Equal(t, "https://video.example.com/job-1/thumb.jpg", resp.ThumbURL)

	items, err := f.db.ListMedia(ctx, types.OwnerEscort, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.VisibilityPremium, items[0].Visibility)
	assert.Equal(t, "intro", items[0].Description)

	intent, err := f.intents.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, intent)

	polls := f.jobs.polls
	again, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
	assert.Equal(t, polls, f.jobs.polls)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, "job-1", f.publisher.events[0].JobID)
	assert.False(t, f.publisher.events[0].AlreadyExists)
	assert.True(t, f.publisher.events[1].AlreadyExists)
}

func TestFinalize_VideoFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveVideoIntent(t, "u1", "job-2")
	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-2", Phase: types.PhaseFailed, ErrorMessage: "ERR_DURATION_EXCEED_CONSTRAINT"})

	_, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-2"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ProcessingFailed))
	assert.Contains(t, err.Error(), "ERR_DURATION_EXCEED_CONSTRAINT")

	intent, _ := f.intents.Get(ctx, "job-2")
	assert.Nil(t, intent)
}

func TestFinalize_VideoOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveVideoIntent(t, "u1", "job-3")
	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-3", Phase: types.PhaseReady, PlaybackURL: "p", ThumbnailURL: "t"})

	_, err := f.finalizer.Finalize(ctx, "u2", mediaTypes.FinalizeRequest{JobID: "job-3"})
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	_, err = f.finalizer.Finalize(ctx, "ghost", mediaTypes.FinalizeRequest{JobID: "job-3"})
	assert.True(t, apperr.Is(err, apperr.UnknownOwner))
}

func TestFinalize_Params(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{})
	assert.True(t, apperr.Is(err, apperr.MissingParams))

	_, err = f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "a", StorageKey: "b"})
	assert.True(t, apperr.Is(err, apperr.InvalidRequest))

	_, err = f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "a", Visibility: "SECRET"})
	assert.True(t, apperr.Is(err, apperr.InvalidRequest))
}

func TestFinalizeJob_ConcurrentDeliveriesCreateOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveVideoIntent(t, "u1", "job-4")
	ready := types.TranscodingJob{ExternalJobID: "job-4", Phase: types.PhaseReady, PlaybackURL: "https://p", ThumbnailURL: "https://t"}
	f.jobs.set(ready)

	intent, err := f.intents.Get(ctx, "job-4")
	require.NoError(t, err)
	require.NotNil(t, intent)

	var wg sync.WaitGroup
	results := make(chan *mediaTypes.FinalizeResponse, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var resp *mediaTypes.FinalizeResponse
			var err error
			if i%2 == 0 {
				resp, err = f.finalizer.FinalizeJob(ctx, *intent, &ready)
			} else {
				resp, err = f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-4"})
			}
			if assert.NoError(t, err) {
				results <- resp
			}
		}(i)
	}
	wg.Wait()
	close(results)

	created := 0
	ids := map[string]bool{}
	for resp := range results {
		if !resp.AlreadyExists {
			created++
		}
		ids[resp.MediaID] = true
	}
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	items, err := f.db.ListMedia(ctx, types.OwnerEscort, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFinalize_VideoOwnershipAfterIntentIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveVideoIntent(t, "u1", "job-5")
	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-5", Phase: types.PhaseReady, PlaybackURL: "https://p", ThumbnailURL: "https://t", OwnerID: "u1"})

	_, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-5"})
	require.NoError(t, err)

	intent, _ := f.intents.Get(ctx, "job-5")
	require.Nil(t, intent)

	_, err = f.finalizer.Finalize(ctx, "u2", mediaTypes.FinalizeRequest{JobID: "job-5"})
	assert.True(t, apperr.Is(err, apperr.Forbidden), "got %v", err)

	items, err := f.db.ListMedia(ctx, types.OwnerClub, "u2")
	require.NoError(t, err)
	assert.Empty(t, items)

	again, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-5"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
}

func TestFinalize_VideoWithoutIntentUsesJobOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-6", Phase: types.PhaseReady, PlaybackURL: "https://p", ThumbnailURL: "https://t", OwnerID: "u2"})
	f.jobs.set(types.TranscodingJob{ExternalJobID: "job-7", Phase: types.PhaseReady, PlaybackURL: "https://p", ThumbnailURL: "https://t"})

	_, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-6"})
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	resp, err := f.finalizer.Finalize(ctx, "u2", mediaTypes.FinalizeRequest{JobID: "job-6"})
	require.NoError(t, err)
	assert.False(t, resp.AlreadyExists)

	// a job with no recorded owner cannot be claimed without its intent
	_, err = f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{JobID: "job-7"})
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

func intPtr(v int) *int { return &v }

func TestFinalize_ImageFillsGallerySlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key := "media/u1/1700000000000-0123456789abcdef.png"
	f.objects.objects[key] = mediaTypes.ObjectInfo{Key: key, Size: 1 << 20, ContentType: "image/png"}

	resp, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{StorageKey: key, SlotIndex: intPtr(0)})
	require.NoError(t, err)

	profile, err := f.db.GetProfile(ctx, "u1")
	require.NoError(t, err)
	g := gallery.View(*profile)
	require.NotNil(t, g.Slots[0])
	assert.Equal(t, resp.URL, g.Slots[0].URL)
	assert.Equal(t, types.MediaImage, g.Slots[0].Type)
	assert.Equal(t, resp.URL, profile.PrimaryPhotoURL)
	assert.True(t, profile.HasProfilePhoto)
	assert.Equal(t, 1, profile.PhotosCount)

	// a repeated confirmation keeps the slot as it is
	slotID := g.Slots[0].ID
	again, err := f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{StorageKey: key, SlotIndex: intPtr(0)})
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)

	profile, err = f.db.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, slotID, gallery.View(*profile).Slots[0].ID)

	_, err = f.finalizer.Finalize(ctx, "u1", mediaTypes.FinalizeRequest{StorageKey: key, SlotIndex: intPtr(6)})
	assert.True(t, apperr.Is(err, apperr.InvalidSlot))
}

func TestFinalizeJob_FillsSlotFromIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := types.UploadIntent{
		OwnerID:        "u1",
		MimeType:       "video/mp4",
		ChosenProvider: types.ProviderTranscoding,
		JobID:          "job-8",
		SlotIndex:      intPtr(2),
		ExpiresAt:      time.Now().Add(time.Hour),
	}
	require.NoError(t, f.intents.Save(ctx, intent))
	ready := types.TranscodingJob{ExternalJobID: "job-8", Phase: types.PhaseReady, PlaybackURL: "https://p/job-8.m3u8", ThumbnailURL: "https://t"}

	_, err := f.finalizer.FinalizeJob(ctx, intent, &ready)
	require.NoError(t, err)

	profile, err := f.db.GetProfile(ctx, "u1")
	require.NoError(t, err)
	g := gallery.View(*profile)
	require.NotNil(t, g.Slots[2])
	assert.Equal(t, "https://p/job-8.m3u8", g.Slots[2].URL)
	assert.Equal(t, types.MediaVideo, g.Slots[2].Type)
	assert.Equal(t, 1, profile.VideosCount)
	assert.Empty(t, profile.PrimaryPhotoURL)
}

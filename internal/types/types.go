package types

import "time"

type OwnerType string

const (
	OwnerEscort OwnerType = "ESCORT"
	OwnerClub   OwnerType = "CLUB"
)

func (o OwnerType) Valid() bool {
	return o == OwnerEscort || o == OwnerClub
}

type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPremium Visibility = "PREMIUM"
	VisibilityPrivate Visibility = "PRIVATE"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPremium, VisibilityPrivate:
		return true
	}
	return false
}

// Provider names the backend that receives the bytes of an upload.
type Provider string

const (
	ProviderObjectStorage Provider = "object_storage"
	ProviderTranscoding   Provider = "transcoding"
)

// Phase is the canonical transcoding job state. Backend vocabularies are
// translated into these values before anything outside internal/transcode
// sees them.
type Phase string

const (
	PhaseCreated    Phase = "created"
	PhaseUploaded   Phase = "uploaded"
	PhaseQueued     Phase = "queued"
	PhaseProcessing Phase = "processing"
	PhaseReady      Phase = "ready"
	PhaseFailed     Phase = "failed"
)

var phaseRank = map[Phase]int{
	PhaseCreated:    0,
	PhaseUploaded:   1,
	PhaseQueued:     2,
	PhaseProcessing: 3,
	PhaseReady:      4,
	PhaseFailed:     4,
}

// Rank orders phases; ready and failed share the terminal rank.
// Unknown phases rank below created.
func (p Phase) Rank() int {
	if r, ok := phaseRank[p]; ok {
		return r
	}
	return -1
}

func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// Media is the durable record of a finalized asset.
type Media struct {
	ID          string     `json:"id"`
	OwnerType   OwnerType  `json:"owner_type"`
	OwnerID     string     `json:"owner_id"`
	Type        MediaType  `json:"type"`
	URL         string     `json:"url"`
	ThumbURL    string     `json:"thumb_url,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Price       *int64     `json:"price,omitempty"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position"`
	ExternalID  string     `json:"external_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UploadIntent is the short-lived record of an issued credential or a
// created video job. It is replaced, never mutated.
type UploadIntent struct {
	OwnerID        string     `json:"owner_id"`
	MimeType       string     `json:"mime_type"`
	DeclaredSize   int64      `json:"declared_size"`
	Visibility     Visibility `json:"visibility"`
	Price          *int64     `json:"price,omitempty"`
	Description    string     `json:"description,omitempty"`
	ChosenProvider Provider   `json:"chosen_provider"`
	StorageKey     string     `json:"storage_key,omitempty"`
	JobID          string     `json:"job_id,omitempty"`
	SlotIndex      *int       `json:"slot_index,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
}

// Handle returns the storage key or job id the intent is keyed by.
func (u UploadIntent) Handle() string {
	if u.JobID != "" {
		return u.JobID
	}
	return u.StorageKey
}

// TranscodingJob mirrors the remote job status.
type TranscodingJob struct {
	ExternalJobID string `json:"job_id"`
	Phase         Phase  `json:"phase"`
	PlaybackURL   string `json:"playback_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	// OwnerID is the owner recorded on the backend job, never sent to clients.
	OwnerID string `json:"-"`
}

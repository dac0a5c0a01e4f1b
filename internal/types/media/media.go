package media

import (
	"time"

	"github.com/princekumarofficial/media-service/internal/types"
)

// PlanRequest asks which backend should receive an upload.
type PlanRequest struct {
	MimeType     string           `json:"mimeType" validate:"required"`
	DeclaredSize int64            `json:"declaredSize" validate:"gte=0"`
	Visibility   types.Visibility `json:"visibility"`
}

type PlanResponse struct {
	Provider  types.Provider  `json:"provider"`
	MediaType types.MediaType `json:"mediaType"`
	MaxBytes  int64           `json:"maxBytes"`
}

// ImageUploadRequest requests a signed object-storage credential.
type ImageUploadRequest struct {
	FileName     string           `json:"fileName" validate:"required"`
	MimeType     string           `json:"mimeType" validate:"required"`
	DeclaredSize int64            `json:"declaredSize" validate:"required,gt=0"`
	Visibility   types.Visibility `json:"visibility"`
	Price        *int64           `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description  string           `json:"description,omitempty" validate:"max=2000"`
	SlotIndex    *int             `json:"slotIndex,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type ImageUploadResponse struct {
	UploadTarget     UploadTarget `json:"uploadTarget"`
	StorageKey       string       `json:"storageKey"`
	PublicURL        string       `json:"publicUrl"`
	ExpiresInSeconds int64        `json:"expiresInSeconds"`
}

// UploadTarget describes how the client must send the bytes. For POST
// policies the form fields must precede the file part; for PUT the headers
// must be sent verbatim.
type UploadTarget struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Fields  map[string]string `json:"fields,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type VideoJobRequest struct {
	FileName     string           `json:"fileName,omitempty"`
	MimeType     string           `json:"mimeType,omitempty"`
	DeclaredSize int64            `json:"declaredSize,omitempty" validate:"gte=0"`
	Visibility   types.Visibility `json:"visibility"`
	Price        *int64           `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description  string           `json:"description,omitempty" validate:"max=2000"`
	SlotIndex    *int             `json:"slotIndex,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type VideoJobResponse struct {
	UploadTarget string `json:"uploadTarget"`
	JobID        string `json:"jobId"`
}

type JobStatusResponse struct {
	Phase        types.Phase `json:"phase"`
	PlaybackURL  string      `json:"playbackUrl,omitempty"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// FinalizeRequest confirms an upload. Exactly one of JobID and StorageKey
// must be set.
type FinalizeRequest struct {
	JobID       string           `json:"jobId,omitempty"`
	StorageKey  string           `json:"storageKey,omitempty"`
	Visibility  types.Visibility `json:"visibility"`
	Price       *int64           `json:"price,omitempty" validate:"omitempty,gte=0"`
	Description string           `json:"description,omitempty" validate:"max=2000"`
	// SlotIndex places the finalized asset into that gallery slot.
	SlotIndex *int `json:"slotIndex,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type FinalizeResponse struct {
	MediaID       string `json:"mediaId"`
	URL           string `json:"url"`
	ThumbURL      string `json:"thumbUrl,omitempty"`
	AlreadyExists bool   `json:"alreadyExists"`
}

type MediaListResponse struct {
	Items []types.Media `json:"items"`
}

// ObjectInfo is what object storage reports about an uploaded object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModifiedAt  time.Time
}

package users

import (
	"encoding/json"
	"time"

	"github.com/princekumarofficial/media-service/internal/types"
)

// SlotCount is the fixed number of gallery positions on a profile.
const SlotCount = 6

// GalleryEntry is the content of one occupied gallery slot.
type GalleryEntry struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Type       types.MediaType `json:"type"`
	IsPrivate  bool            `json:"isPrivate"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

// Gallery is the normalized six-slot structure plus the counters derived
// from it. Counters are only ever produced by the gallery normalizer.
type Gallery struct {
	Slots           [SlotCount]*GalleryEntry   `json:"slots"`
	PreferredTypes  [SlotCount]types.MediaType `json:"preferredTypes"`
	PhotosCount     int                        `json:"photosCount"`
	VideosCount     int                        `json:"videosCount"`
	HasProfilePhoto bool                       `json:"hasProfilePhoto"`
	PrimaryPhotoURL string                     `json:"primaryPhotoUrl,omitempty"`
}

// Profile is the part of an owner's profile this service reads and writes.
// Gallery holds the raw stored slot column, which may be malformed.
type Profile struct {
	OwnerID         string          `json:"owner_id"`
	OwnerType       types.OwnerType `json:"owner_type"`
	Gallery         json.RawMessage `json:"gallery"`
	PrimaryPhotoURL string          `json:"primary_photo_url"`
	PhotosCount     int             `json:"photos_count"`
	VideosCount     int             `json:"videos_count"`
	HasProfilePhoto bool            `json:"has_profile_photo"`
}

// SlotUpdateRequest replaces a single gallery slot.
type SlotUpdateRequest struct {
	SlotIndex *int   `json:"slotIndex" validate:"required"`
	PublicURL string `json:"publicUrl" validate:"required,url"`
	MimeType  string `json:"mimeType" validate:"required"`
	IsPrivate bool   `json:"isPrivate"`
}

package media

import (
	"mime"
	"strings"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/types"
)

// Plan is the routing decision for one upload.
type Plan struct {
	Provider  types.Provider
	MediaType types.MediaType
	MaxBytes  int64
}

// Selector decides which backend receives an upload. It has no side effects.
type Selector struct {
	imageMaxBytes    int64
	videoMaxBytes    int64
	imageTypes       map[string]bool
	videoTypes       map[string]bool
	storageReady     bool
	transcodingReady bool
}

func NewSelector(cfg config.Media, storageReady, transcodingReady bool) *Selector {
	return &Selector{
		imageMaxBytes:    cfg.ImageMaxBytes,
		videoMaxBytes:    cfg.VideoMaxBytes,
		imageTypes:       toSet(cfg.AllowedImageTypes),
		videoTypes:       toSet(cfg.AllowedVideoTypes),
		storageReady:     storageReady,
		transcodingReady: transcodingReady,
	}
}

// Select routes images within the image ceiling to object storage and
// videos within the hard maximum to the transcoding service. Validation
// errors take precedence over configuration errors.
func (s *Selector) Select(mimeType string, declaredSize int64) (Plan, error) {
	mt := NormalizeMimeType(mimeType)
	if mt == "" {
		return Plan{}, apperr.New(apperr.MissingParams, "mimeType is required")
	}
	if declaredSize < 0 {
		return Plan{}, apperr.New(apperr.InvalidRequest, "declaredSize must not be negative")
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		if !s.imageTypes[mt] {
			return Plan{}, apperr.New(apperr.UnsupportedType, mt)
		}
		if declaredSize > s.imageMaxBytes {
			return Plan{}, apperr.New(apperr.FileTooLarge, "image exceeds the size ceiling")
		}
		if !s.storageReady {
			return Plan{}, apperr.New(apperr.StorageUnconfigured, "object storage is not configured")
		}
		return Plan{Provider: types.ProviderObjectStorage, MediaType: types.MediaImage, MaxBytes: s.imageMaxBytes}, nil

	case strings.HasPrefix(mt, "video/"):
		if !s.videoTypes[mt] {
			return Plan{}, apperr.New(apperr.UnsupportedType, mt)
		}
		if declaredSize > s.videoMaxBytes {
			return Plan{}, apperr.New(apperr.FileTooLarge, "video exceeds the hard maximum")
		}
		if !s.transcodingReady {
			return Plan{}, apperr.New(apperr.TranscodingUnconfigured, "transcoding service is not configured")
		}
		return Plan{Provider: types.ProviderTranscoding, MediaType: types.MediaVideo, MaxBytes: s.videoMaxBytes}, nil
	}

	return Plan{}, apperr.New(apperr.UnsupportedType, mt)
}

// IsAllowedImage reports whether mimeType is on the image allow-list.
func (s *Selector) IsAllowedImage(mimeType string) bool {
	return s.imageTypes[NormalizeMimeType(mimeType)]
}

func (s *Selector) ImageMaxBytes() int64 {
	return s.imageMaxBytes
}

// NormalizeMimeType lower-cases a MIME type and strips its parameters.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(mimeType)
}

// MediaTypeOf derives the media type from a MIME type; anything that is not
// a video counts as an image.
func MediaTypeOf(mimeType string) types.MediaType {
	if strings.HasPrefix(NormalizeMimeType(mimeType), "video/") {
		return types.MediaVideo
	}
	return types.MediaImage
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = NormalizeMimeType(v); v != "" {
			set[v] = true
		}
	}
	return set
}

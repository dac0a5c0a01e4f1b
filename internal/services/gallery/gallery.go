package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/services/media"
	"github.com/princekumarofficial/media-service/internal/storage"
	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

// Update replaces one slot.
type Update struct {
	SlotIndex int
	URL       string
	Type      types.MediaType
	IsPrivate bool
	At        time.Time
}

// Apply writes update into the profile's gallery. The slot column, the
// counters and (for slot 0) the primary photo URL change together.
func Apply(current users.Profile, update Update) (users.Profile, users.Gallery, error) {
	if update.SlotIndex < 0 || update.SlotIndex >= users.SlotCount {
		return current, users.Gallery{}, apperr.New(apperr.InvalidSlot,
			fmt.Sprintf("slotIndex must be between 0 and %d", users.SlotCount-1))
	}

	g := Normalize(current.Gallery)
	g.Slots[update.SlotIndex] = &users.GalleryEntry{
		ID:         uuid.NewString(),
		URL:        update.URL,
		Type:       update.Type,
		IsPrivate:  update.IsPrivate,
		UploadedAt: update.At.UTC(),
	}
	recount(&g)

	raw, err := encode(g)
	if err != nil {
		return current, users.Gallery{}, err
	}

	next := current
	next.Gallery = raw
	next.PhotosCount = g.PhotosCount
	next.VideosCount = g.VideosCount
	next.HasProfilePhoto = g.HasProfilePhoto
	if update.SlotIndex == 0 {
		next.PrimaryPhotoURL = update.URL
	}
	g.PrimaryPhotoURL = next.PrimaryPhotoURL

	return next, g, nil
}

// View is the normalized gallery of a stored profile.
func View(p users.Profile) users.Gallery {
	g := Normalize(p.Gallery)
	g.PrimaryPhotoURL = p.PrimaryPhotoURL
	return g
}

type Service struct {
	profiles storage.ProfileStore
	now      func() time.Time
}

func NewService(profiles storage.ProfileStore) *Service {
	return &Service{profiles: profiles, now: time.Now}
}

func (s *Service) Get(ctx context.Context, ownerID string) (users.Gallery, error) {
	profile, err := s.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		return users.Gallery{}, err
	}
	return View(*profile), nil
}

func (s *Service) UpdateSlot(ctx context.Context, ownerID string, req users.SlotUpdateRequest) (users.Gallery, error) {
	if req.SlotIndex == nil {
		return users.Gallery{}, apperr.New(apperr.MissingParams, "slotIndex is required")
	}

	mimeType := media.NormalizeMimeType(req.MimeType)
	if !strings.HasPrefix(mimeType, "image/") && !strings.HasPrefix(mimeType, "video/") {
		return users.Gallery{}, apperr.New(apperr.UnsupportedType, "gallery slots hold images or videos")
	}

	update := Update{
		SlotIndex: *req.SlotIndex,
		URL:       req.PublicURL,
		Type:      media.MediaTypeOf(mimeType),
		IsPrivate: req.IsPrivate,
		At:        s.now(),
	}

	return s.apply(ctx, ownerID, update, false)
}

// PlaceMedia puts a finalized Media row into slotIndex. Placing the same URL
// into the same slot again leaves the gallery untouched, so repeated
// finalizations do not churn slot IDs.
func (s *Service) PlaceMedia(ctx context.Context, ownerID string, slotIndex int, m types.Media) (users.Gallery, error) {
	update := Update{
		SlotIndex: slotIndex,
		URL:       m.URL,
		Type:      m.Type,
		IsPrivate: m.Visibility == types.VisibilityPrivate,
		At:        s.now(),
	}
	return s.apply(ctx, ownerID, update, true)
}

func (s *Service) apply(ctx context.Context, ownerID string, update Update, keepSame bool) (users.Gallery, error) {
	var (
		result  users.Gallery
		changed = true
	)
	_, err := s.profiles.UpdateGallery(ctx, ownerID, func(current users.Profile) (users.Profile, error) {
		if keepSame && update.SlotIndex >= 0 && update.SlotIndex < users.SlotCount {
			g := View(current)
			if entry := g.Slots[update.SlotIndex]; entry != nil && entry.URL == update.URL {
				result, changed = g, false
				return current, nil
			}
		}

		next, g, err := Apply(current, update)
		if err != nil {
			return current, err
		}
		result = g
		return next, nil
	})
	if err != nil {
		return users.Gallery{}, err
	}

	if changed {
		slog.Info("Gallery slot updated",
			slog.String("owner_id", ownerID),
			slog.Int("slot_index", update.SlotIndex),
			slog.String("type", string(update.Type)))
	}

	return result, nil
}

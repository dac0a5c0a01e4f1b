package storage

import (
	"context"

	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

// MediaRepository persists finalized media. At most one row exists per
// (ownerType, ownerID, externalID) when externalID is set.
type MediaRepository interface {
	// FindByExternalID returns nil, nil when no row matches.
	FindByExternalID(ctx context.Context, ownerType types.OwnerType, ownerID, externalID string) (*types.Media, error)
	// InsertMedia stores m with the next feed position. When a row with the
	// same external id already exists it is returned with created false.
	InsertMedia(ctx context.Context, m types.Media) (stored types.Media, created bool, err error)
	ListMedia(ctx context.Context, ownerType types.OwnerType, ownerID string) ([]types.Media, error)
}

// GalleryMutation computes a new profile from the current one.
type GalleryMutation func(current users.Profile) (users.Profile, error)

// ProfileStore is the part of the external profile store this service uses.
type ProfileStore interface {
	// ResolveOwner returns an apperr.UnknownOwner error for unknown owners.
	ResolveOwner(ctx context.Context, ownerID string) (types.OwnerType, error)
	GetProfile(ctx context.Context, ownerID string) (*users.Profile, error)
	// UpdateGallery applies mutate under the profile's lock and writes the
	// slot column, counters and primary photo together.
	UpdateGallery(ctx context.Context, ownerID string, mutate GalleryMutation) (users.Profile, error)
}

type Storage interface {
	MediaRepository
	ProfileStore
	Ping(ctx context.Context) error
}

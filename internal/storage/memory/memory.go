// Package memory is an in-process Storage used by tests and local runs
// without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/storage"
	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

type Memory struct {
	mu       sync.Mutex
	media    []types.Media
	profiles map[string]users.Profile
}

func New() *Memory {
	return &Memory{profiles: make(map[string]users.Profile)}
}

// AddProfile registers an owner.
func (m *Memory) AddProfile(ownerID string, ownerType types.OwnerType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[ownerID] = users.Profile{OwnerID: ownerID, OwnerType: ownerType}
}

// SetRawGallery overwrites the stored slot column verbatim.
func (m *Memory) SetRawGallery(ownerID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profiles[ownerID]
	p.Gallery = append([]byte(nil), raw...)
	m.profiles[ownerID] = p
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) FindByExternalID(_ context.Context, ownerType types.OwnerType, ownerID, externalID string) (*types.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.findLocked(ownerType, ownerID, externalID); ok {
		return &existing, nil
	}
	return nil, nil
}

func (m *Memory) findLocked(ownerType types.OwnerType, ownerID, externalID string) (types.Media, bool) {
	if externalID == "" {
		return types.Media{}, false
	}
	for _, item := range m.media {
		if item.OwnerType == ownerType && item.OwnerID == ownerID && item.ExternalID == externalID {
			return item, true
		}
	}
	return types.Media{}, false
}

func (m *Memory) InsertMedia(_ context.Context, item types.Media) (types.Media, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.findLocked(item.OwnerType, item.OwnerID, item.ExternalID); ok {
		return existing, false, nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	item.Position = 0
	for _, other := range m.media {
		if other.OwnerType == item.OwnerType && other.OwnerID == item.OwnerID && other.Position >= item.Position {
			item.Position = other.Position + 1
		}
	}

	m.media = append(m.media, item)
	return item, true, nil
}

func (m *Memory) ListMedia(_ context.Context, ownerType types.OwnerType, ownerID string) ([]types.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := []types.Media{}
	for _, item := range m.media {
		if item.OwnerType == ownerType && item.OwnerID == ownerID {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (m *Memory) ResolveOwner(_ context.Context, ownerID string) (types.OwnerType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[ownerID]
	if !ok {
		return "", apperr.New(apperr.UnknownOwner, "no profile for owner")
	}
	return p.OwnerType, nil
}

func (m *Memory) GetProfile(_ context.Context, ownerID string) (*users.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[ownerID]
	if !ok {
		return nil, apperr.New(apperr.UnknownOwner, "no profile for owner")
	}
	return &p, nil
}

func (m *Memory) UpdateGallery(_ context.Context, ownerID string, mutate storage.GalleryMutation) (users.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.profiles[ownerID]
	if !ok {
		return users.Profile{}, apperr.New(apperr.UnknownOwner, "no profile for owner")
	}

	next, err := mutate(current)
	if err != nil {
		return users.Profile{}, err
	}
	m.profiles[ownerID] = next
	return next, nil
}

package gallery

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

// PreferredTypes is the per-slot type hint shown to clients. It is never
// enforced on writes.
var PreferredTypes = [users.SlotCount]types.MediaType{
	types.MediaImage,
	types.MediaImage,
	types.MediaVideo,
	types.MediaImage,
	types.MediaVideo,
	types.MediaImage,
}

// storedEntry is the lenient shape of one element of the stored slot column.
type storedEntry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Type       string    `json:"type"`
	IsPrivate  bool      `json:"isPrivate"`
	UploadedAt time.Time `json:"uploadedAt"`
	SlotIndex  *int      `json:"slotIndex"`
}

// Normalize turns whatever is stored in the slot column into a well-formed
// six-slot gallery. It never fails: unreadable input yields empty slots.
func Normalize(raw json.RawMessage) users.Gallery {
	g := users.Gallery{PreferredTypes: PreferredTypes}

	for i, element := range slotElements(raw) {
		entry, index, ok := parseEntry(element)
		if !ok {
			continue
		}
		if index < 0 {
			index = i
		}
		if index >= users.SlotCount {
			continue
		}
		g.Slots[index] = entry
	}

	recount(&g)
	return g
}

// slotElements accepts either a bare array or an object wrapping one under
// "slots".
func slotElements(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var elements []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil
		}
	case '{':
		var wrapper struct {
			Slots []json.RawMessage `json:"slots"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil
		}
		elements = wrapper.Slots
	}
	return elements
}

// parseEntry returns the entry and its explicit slot index, or -1 when the
// element does not carry one.
func parseEntry(element json.RawMessage) (*users.GalleryEntry, int, bool) {
	trimmed := bytes.TrimSpace(element)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, -1, false
	}

	// legacy rows stored a plain URL per slot
	if trimmed[0] == '"' {
		var url string
		if err := json.Unmarshal(trimmed, &url); err != nil || strings.TrimSpace(url) == "" {
			return nil, -1, false
		}
		return &users.GalleryEntry{URL: url, Type: typeFromURL(url)}, -1, true
	}

	var stored storedEntry
	if err := json.Unmarshal(trimmed, &stored); err != nil {
		return nil, -1, false
	}
	if strings.TrimSpace(stored.URL) == "" {
		return nil, -1, false
	}

	mediaType, ok := parseType(stored.Type, stored.URL)
	if !ok {
		return nil, -1, false
	}

	index := -1
	if stored.SlotIndex != nil {
		index = *stored.SlotIndex
		if index < 0 || index >= users.SlotCount {
			return nil, -1, false
		}
	}

	return &users.GalleryEntry{
		ID:         stored.ID,
		URL:        stored.URL,
		Type:       mediaType,
		IsPrivate:  stored.IsPrivate,
		UploadedAt: stored.UploadedAt,
	}, index, true
}

func parseType(value, url string) (types.MediaType, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return typeFromURL(url), true
	case string(types.MediaImage), "PHOTO":
		return types.MediaImage, true
	case string(types.MediaVideo):
		return types.MediaVideo, true
	}
	return "", false
}

func typeFromURL(url string) types.MediaType {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(path.Ext(url)) {
	case ".mp4", ".mov", ".webm", ".m3u8", ".mpd", ".mkv":
		return types.MediaVideo
	}
	return types.MediaImage
}

// recount derives the counters from the slots. Nothing else sets them.
func recount(g *users.Gallery) {
	g.PhotosCount, g.VideosCount = 0, 0
	for _, entry := range g.Slots {
		if entry == nil {
			continue
		}
		if entry.Type == types.MediaVideo {
			g.VideosCount++
		} else {
			g.PhotosCount++
		}
	}
	g.HasProfilePhoto = g.Slots[0] != nil
}

// encode writes the six slots back as a fixed-length array with nulls for
// empty positions.
func encode(g users.Gallery) (json.RawMessage, error) {
	return json.Marshal(g.Slots)
}

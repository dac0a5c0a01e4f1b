package gallery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/princekumarofficial/media-service/internal/http/middleware"
	galleryService "github.com/princekumarofficial/media-service/internal/services/gallery"
	"github.com/princekumarofficial/media-service/internal/storage/memory"
	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
	"github.com/princekumarofficial/media-service/internal/utils/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	method := http.MethodGet
	if body != "" {
		method = http.MethodPost
	}
	req := httptest.NewRequest(method, "/gallery", bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpdateSlotAndGet(t *testing.T) {
	db := memory.New()
	db.AddProfile("u1", types.OwnerEscort)
	svc := galleryService.NewService(db)

	// a video in slot 0 is allowed; the preferred type is only a hint
	rec := serve(t, UpdateSlot(svc, false), "u1",
		`{"slotIndex":0,"publicUrl":"https://cdn.example.com/a.mp4","mimeType":"video/mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var g users.Gallery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	require.NotNil(t, g.Slots[0])
	assert.Equal(t, types.MediaVideo, g.Slots[0].Type)
	assert.True(t, g.HasProfilePhoto)
	assert.Equal(t, 1, g.VideosCount)
	assert.Equal(t, "https://cdn.example.com/a.mp4", g.PrimaryPhotoURL)

	rec = serve(t, GetGallery(svc, false), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var read users.Gallery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &read))
	assert.Equal(t, g.Slots[0].ID, read.Slots[0].ID)
	assert.Equal(t, types.MediaImage, read.PreferredTypes[0])
}

func TestUpdateSlot_Errors(t *testing.T) {
	db := memory.New()
	db.AddProfile("u1", types.OwnerClub)
	svc := galleryService.NewService(db)

	cases := []struct {
		name   string
		userID string
		body   string
		status int
		code   string
	}{
		{"unauthenticated", "", `{"slotIndex":1}`, http.StatusUnauthorized, "unauthorized"},
		{"missing index", "u1", `{"publicUrl":"https://cdn.example.com/a.jpg","mimeType":"image/jpeg"}`, http.StatusBadRequest, "missing_params"},
		{"slot out of range", "u1", `{"slotIndex":6,"publicUrl":"https://cdn.example.com/a.jpg","mimeType":"image/jpeg"}`, http.StatusBadRequest, "invalid_slot"},
		{"negative slot", "u1", `{"slotIndex":-1,"publicUrl":"https://cdn.example.com/a.jpg","mimeType":"image/jpeg"}`, http.StatusBadRequest, "invalid_slot"},
		{"not media", "u1", `{"slotIndex":2,"publicUrl":"https://cdn.example.com/a.pdf","mimeType":"application/pdf"}`, http.StatusUnsupportedMediaType, "unsupported_type"},
		{"unknown owner", "ghost", `{"slotIndex":2,"publicUrl":"https://cdn.example.com/a.jpg","mimeType":"image/jpeg"}`, http.StatusForbidden, "unknown_owner"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, UpdateSlot(svc, false), tc.userID, tc.body)
			assert.Equal(t, tc.status, rec.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Error)
		})
	}
}

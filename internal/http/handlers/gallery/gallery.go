package gallery

import (
	"net/http"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/http/middleware"
	galleryService "github.com/princekumarofficial/media-service/internal/services/gallery"
	"github.com/princekumarofficial/media-service/internal/types/users"
	"github.com/princekumarofficial/media-service/internal/utils/request"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

// GetGallery returns the caller's normalized gallery
// @Summary Get gallery
// @Description Returns the six gallery slots with per-slot type hints and derived counters
// @Tags gallery
// @Produce json
// @Success 200 {object} users.Gallery
// @Failure 401 {object} response.Response "unauthorized"
// @Failure 403 {object} response.Response "unknown_owner"
// @Security BearerAuth
// @Router /gallery [get]
func GetGallery(service *galleryService.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				apperr.New(apperr.Unauthorized, "user not authenticated")))
			return
		}

		g, err := service.Get(r.Context(), userID)
		if err != nil {
			response.Error(w, err, isProduction)
			return
		}

		response.WriteJSON(w, http.StatusOK, g)
	}
}

// UpdateSlot replaces one gallery slot
// @Summary Update a gallery slot
// @Description Replaces the slot at slotIndex (0-5). Slot 0 is also the primary photo. The preferred slot type is a hint and is not enforced.
// @Tags gallery
// @Accept json
// @Produce json
// @Param request body users.SlotUpdateRequest true "Slot update"
// @Success 200 {object} users.Gallery
// @Failure 400 {object} response.Response "missing_params or invalid_slot"
// @Failure 415 {object} response.Response "unsupported_type"
// @Failure 429 {object} response.Response "rate_limited"
// @Security BearerAuth
// @Router /gallery/slots [post]
func UpdateSlot(service *galleryService.Service, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(
				apperr.New(apperr.Unauthorized, "user not authenticated")))
			return
		}

		var req users.SlotUpdateRequest
		if !request.DecodeJSON(w, r, &req) {
			return
		}

		g, err := service.UpdateSlot(r.Context(), userID, req)
		if err != nil {
			response.Error(w, err, isProduction)
			return
		}

		response.WriteJSON(w, http.StatusOK, g)
	}
}

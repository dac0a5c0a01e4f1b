package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/utils/response"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// DecodeJSON reads and validates a JSON body into v. On failure it writes
// the error response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	err := decoder.Decode(v)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest, response.Response{
			Status: response.StatusError,
			Error:  string(apperr.MissingParams),
			Detail: "request body cannot be empty",
		})
		return false
	} else if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.Response{
			Status: response.StatusError,
			Error:  string(apperr.InvalidRequest),
			Detail: "malformed JSON body",
		})
		return false
	}

	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
			return false
		}
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(apperr.Wrap(apperr.InvalidRequest, err, "")))
		return false
	}
	return true
}

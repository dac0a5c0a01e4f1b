package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/princekumarofficial/media-service/internal/apperr"
)

type Response struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Detail  string      `json:"detail,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

// GeneralError reports err under its code. The message is never exposed.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  string(apperr.CodeOf(err)),
	}
}

// ValidationError reports missing_params when a required field is absent
// and invalid_request otherwise.
func ValidationError(errs validator.ValidationErrors) Response {
	code := apperr.InvalidRequest
	var errorMessages string
	for _, err := range errs {
		if err.Tag() == "required" {
			code = apperr.MissingParams
		}
		errorMessages += err.Field() + ": " + err.Tag() + "; "
	}

	return Response{
		Status: StatusError,
		Error:  string(code),
		Detail: errorMessages,
	}
}

// Error writes err with the status of its code. Detail is included outside
// production, and always for processing failures, whose detail is the
// backend's own message.
func Error(w http.ResponseWriter, err error, isProduction bool) {
	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)

	resp := Response{Status: StatusError, Error: string(code)}
	if !isProduction || code == apperr.ProcessingFailed {
		resp.Detail = detailOf(err)
	}

	if status >= http.StatusInternalServerError {
		attrs := []any{slog.String("code", string(code)), slog.String("error", err.Error())}
		switch code {
		case apperr.StorageUnconfigured:
			attrs = append(attrs, slog.String("operator_action", "set the storage section of the config"))
		case apperr.TranscodingUnconfigured:
			attrs = append(attrs, slog.String("operator_action", "set the transcoding section of the config"))
		}
		slog.Error("Request failed", attrs...)
	}

	WriteJSON(w, status, resp)
}

func detailOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return err.Error()
}

func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}

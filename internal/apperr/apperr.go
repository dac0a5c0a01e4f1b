// Package apperr holds the small, stable set of error codes callers see.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

type Code string

const (
	MissingParams           Code = "missing_params"
	InvalidRequest          Code = "invalid_request"
	UnsupportedType         Code = "unsupported_type"
	FileTooLarge            Code = "file_too_large"
	StorageUnconfigured     Code = "storage_unconfigured"
	TranscodingUnconfigured Code = "transcoding_unconfigured"
	NotReady                Code = "not_ready"
	ProcessingFailed        Code = "processing_failed"
	InvalidSlot             Code = "invalid_slot"
	NotFound                Code = "not_found"
	UnknownOwner            Code = "unknown_owner"
	Forbidden               Code = "forbidden"
	Unauthorized            Code = "unauthorized"
	RateLimited             Code = "rate_limited"
	UpstreamUnavailable     Code = "upstream_unavailable"
	Internal                Code = "internal"
)

// Error is a coded failure. Detail is diagnostic text that is only shown
// outside production; Err is the underlying cause, never shown.
type Error struct {
	Code   Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func Wrap(code Code, err error, detail string) *Error {
	return &Error{Code: code, Detail: detail, Err: err}
}

// CodeOf returns the code carried by err, or Internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Retryable reports whether a failed upstream call may be attempted again.
// Coded errors are final except upstream_unavailable; uncoded errors are
// treated as transport failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == UpstreamUnavailable
	}
	return true
}

func HTTPStatus(code Code) int {
	switch code {
	case MissingParams, InvalidRequest, InvalidSlot:
		return http.StatusBadRequest
	case UnsupportedType:
		return http.StatusUnsupportedMediaType
	case FileTooLarge:
		return http.StatusRequestEntityTooLarge
	case StorageUnconfigured, TranscodingUnconfigured, UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case NotReady:
		return http.StatusConflict
	case ProcessingFailed:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	case UnknownOwner, Forbidden:
		return http.StatusForbidden
	case Unauthorized:
		return http.StatusUnauthorized
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

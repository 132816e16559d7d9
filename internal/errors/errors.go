package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"wxsync/internal/wechat"
	"wxsync/internal/wxsync"
)

// Error is the error type handlers return to the transport layer.
type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Details []Detail `json:"details"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(transport{
		Message: e.Err.Error(),
		Details: e.Details,
		Status:  e.Status,
	})
}

// E constructs an Error from its arguments: a string or error becomes the
// wrapped error, an int the status, and Detail values the detail list.
func E(args ...any) *Error {
	ret := &Error{
		Status: http.StatusInternalServerError,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// From maps domain errors onto transport errors. Anything unrecognized
// becomes a 500.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, wxsync.ErrNotFound):
		return E(http.StatusNotFound, err)
	case errors.Is(err, wxsync.ErrConflict):
		return E(http.StatusConflict, err)
	case errors.Is(err, wxsync.ErrNoCapacity):
		return E(http.StatusServiceUnavailable, err)
	}

	switch wechat.KindOf(err) {
	case wechat.KindNetwork, wechat.KindServer, wechat.KindRateLimited, wechat.KindUnauthorized:
		return E(http.StatusBadGateway, err)
	case wechat.KindBadRequest:
		return E(http.StatusBadRequest, err)
	case wechat.KindCredential:
		return E(http.StatusServiceUnavailable, err)
	}

	return E(http.StatusInternalServerError, err)
}

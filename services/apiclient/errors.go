package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

const (
	networkErrorMessage = "Cannot connect to server. Please check your internet connection."
	timeoutMessage      = "Request timed out. Please try again."
)

// ErrTimeout is returned when a call exceeds the client's fixed time bound.
var ErrTimeout = errors.New(timeoutMessage)

// NetworkError means the request never got a response.
type NetworkError struct {
	Err error
}

func (err *NetworkError) Error() string { return networkErrorMessage }
func (err *NetworkError) Unwrap() error { return err.Err }

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status  int
	Message string
	Body    string
}

func (err *HTTPError) Error() string {
	return err.Message
}

func (err *HTTPError) HTTPStatus() int { return err.Status }

func newHTTPError(status int, body string) *HTTPError {
	return &HTTPError{Status: status, Message: messageFor(status, body), Body: body}
}

// messageFor prefers the server provided message and falls back to one per status.
func messageFor(status int, body string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if body != "" && json.Unmarshal([]byte(body), &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return StatusMessage(status)
}

// StatusMessage is the generic user facing message for a status code.
func StatusMessage(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "Invalid request."
	case status == http.StatusUnauthorized:
		return "Your session has expired. Please log in again."
	case status == http.StatusForbidden:
		return "You do not have permission to perform this action."
	case status == http.StatusNotFound:
		return "The requested resource was not found."
	case status == http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	case status >= http.StatusInternalServerError:
		return "Server error. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return hErr.Status
	}
	return 0
}

// IsNetworkError reports whether err is a NetworkError or a timeout.
func IsNetworkError(err error) bool {
	var nErr *NetworkError
	return errors.As(err, &nErr) || errors.Is(err, ErrTimeout)
}

// Message returns the user facing message of err.
func Message(err error) string {
	var (
		hErr *HTTPError
		nErr *NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &hErr):
		return hErr.Message
	case errors.As(err, &nErr):
		return nErr.Error()
	case errors.Is(err, ErrTimeout):
		return timeoutMessage
	default:
		return fmt.Sprint(errors.Cause(err))
	}
}

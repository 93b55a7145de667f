package session

import (
	"net/http"

	"github.com/pkg/errors"
)

const (
	msgInvalidCredentials = "Invalid email or password. Please try again."
	msgPhoneNotRegistered = "Phone number not registered. Please contact your school administrator."
	msgNoAccess           = "Your account does not have access to this portal."
	msgTooManyAttempts    = "Too many login attempts. Please try again later."
	msgLoginFailed        = "Login failed. Please try again."
)

var ErrNoRefreshToken = errors.New("no refresh token available")

// AuthError is a failed login.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (err *AuthError) Error() string { return err.Message }
func (err *AuthError) Unwrap() error { return err.Err }

// statusError is implemented by backend client errors that carry an HTTP status.
type statusError interface {
	HTTPStatus() int
}

func statusOf(err error) int {
	var sErr statusError
	if errors.As(err, &sErr) {
		return sErr.HTTPStatus()
	}
	return 0
}

func newAuthError(err error, proof LoginProof) *AuthError {
	status := statusOf(err)
	aErr := &AuthError{Status: status, Err: err}
	switch status {
	case http.StatusUnauthorized:
		if proof.credentials() {
			aErr.Message = msgInvalidCredentials
		} else {
			aErr.Message = msgPhoneNotRegistered
		}
	case http.StatusForbidden:
		aErr.Message = msgNoAccess
	case http.StatusTooManyRequests:
		aErr.Message = msgTooManyAttempts
	default:
		aErr.Message = err.Error()
	}
	return aErr
}

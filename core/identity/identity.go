// Package identity describes the identity provider the session layer relies on to prove phone or email ownership.
package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidOTP         = errors.New("the verification code is invalid")
	ErrChallengeExpired   = errors.New("the verification code has expired")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrCaptchaCleared     = errors.New("captcha verifier has been cleared")
)

// OTPSendError means the provider refused to dispatch a code.
type OTPSendError struct {
	Reason string
}

func (err *OTPSendError) Error() string {
	if err.Reason == "" {
		return "failed to send verification code"
	}
	return "failed to send verification code: " + err.Reason
}

// Confirmation is the handle returned once a code has been sent.
type Confirmation struct {
	SessionInfo string
	PhoneNumber string
	SentAt      time.Time
	ExpiresAt   time.Time
}

func (c Confirmation) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Credential proves ownership of a phone number or an email address.
// It does not grant access to the backend on its own.
type Credential struct {
	IDToken      string
	RefreshToken string
	UID          string
	PhoneNumber  string
	Email        string
	ExpiresAt    time.Time
}

// Verifier is the invisible captcha guarding code dispatch.
type Verifier interface {
	Token(ctx context.Context) (string, error)
	Clear()
}

type Provider interface {
	SendOTP(ctx context.Context, phoneE164 string, verifier Verifier) (Confirmation, error)
	ConfirmOTP(ctx context.Context, confirmation Confirmation, code string) (Credential, error)
	SignInEmailPassword(ctx context.Context, email, password string) (Credential, error)
}

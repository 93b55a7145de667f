package firebase

import (
	"context"
	"strings"
	"sync"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
)

// Recaptcha is the invisible captcha verifier of one OTP flow.
// The widget posts its token through SetToken; Clear releases it for good.
type Recaptcha struct {
	mu      sync.Mutex
	token   string
	cleared bool
}

var _ identity.Verifier = (*Recaptcha)(nil)

func NewRecaptcha() *Recaptcha {
	return new(Recaptcha)
}

func (r *Recaptcha) SetToken(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cleared {
		return identity.ErrCaptchaCleared
	}
	r.token = strings.TrimSpace(token)
	return nil
}

func (r *Recaptcha) Token(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.cleared:
		return "", identity.ErrCaptchaCleared
	case r.token == "":
		return "", &identity.OTPSendError{Reason: "captcha challenge not completed"}
	}
	return r.token, nil
}

func (r *Recaptcha) Clear() {
	r.mu.Lock()
	r.token = ""
	r.cleared = true
	r.mu.Unlock()
}

func (r *Recaptcha) Cleared() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleared
}

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
)

var signingKey = []byte("test-signing-key")

// NewToken mints an HS256 token for sub that expires at exp.
func NewToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("NewToken() failed: %v", err)
	}
	return token
}

// UserJSON is a backend user payload.
func UserJSON(id, name, role string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"email":       name + "@school.test",
		"phoneNumber": "0761234567",
		"name":        name,
		"lastName":    "Doe",
		"role":        role,
	}
}

// LoginJSON is a backend login payload.
func LoginJSON(token, schoolID string, user map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"token":        token,
		"refreshToken": "refresh-" + token,
		"schoolId":     schoolID,
		"user":         user,
	}
}

// Verifier is a captcha verifier that always yields Value until cleared.
type Verifier struct {
	Value   string
	Cleared bool
}

var _ identity.Verifier = (*Verifier)(nil)

func (v *Verifier) Token(context.Context) (string, error) {
	if v.Cleared {
		return "", identity.ErrCaptchaCleared
	}
	return v.Value, nil
}

func (v *Verifier) Clear() { v.Cleared = true }

// Provider is a scripted identity provider.
type Provider struct {
	// Code is the only accepted verification code.
	Code        string
	SendErr     error
	ConfirmErr  error
	SignInErr   error
	TTL         time.Duration
	Sent        []string
	IDToken     string
	Credentials map[string]string
}

var _ identity.Provider = (*Provider)(nil)

func (p *Provider) SendOTP(ctx context.Context, phone string, verifier identity.Verifier) (identity.Confirmation, error) {
	if _, err := verifier.Token(ctx); err != nil {
		return identity.Confirmation{}, err
	}
	if p.SendErr != nil {
		return identity.Confirmation{}, p.SendErr
	}
	p.Sent = append(p.Sent, phone)
	ttl := p.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	return identity.Confirmation{
		SessionInfo: "session-" + phone,
		PhoneNumber: phone,
		SentAt:      now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

func (p *Provider) ConfirmOTP(_ context.Context, c identity.Confirmation, code string) (identity.Credential, error) {
	if p.ConfirmErr != nil {
		return identity.Credential{}, p.ConfirmErr
	}
	if c.Expired(time.Now()) {
		return identity.Credential{}, identity.ErrChallengeExpired
	}
	if code != p.Code {
		return identity.Credential{}, identity.ErrInvalidOTP
	}
	return identity.Credential{IDToken: p.idToken(), UID: "uid-" + c.PhoneNumber, PhoneNumber: c.PhoneNumber}, nil
}

func (p *Provider) SignInEmailPassword(_ context.Context, email, password string) (identity.Credential, error) {
	if p.SignInErr != nil {
		return identity.Credential{}, p.SignInErr
	}
	if pwd, ok := p.Credentials[email]; !ok || pwd != password {
		return identity.Credential{}, identity.ErrInvalidCredentials
	}
	return identity.Credential{IDToken: p.idToken(), UID: "uid-" + email, Email: email}, nil
}

func (p *Provider) idToken() string {
	if p.IDToken != "" {
		return p.IDToken
	}
	return "firebase-id-token"
}

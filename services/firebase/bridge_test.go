package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
)

type toolkitCall struct {
	method string
	key    string
	body   map[string]interface{}
}

// fakeToolkit answers Identity Toolkit methods with canned status/body pairs.
type fakeToolkit struct {
	*httptest.Server
	calls     []toolkitCall
	responses map[string]func() (int, interface{})
}

func newFakeToolkit(t *testing.T) *fakeToolkit {
	f := &fakeToolkit{responses: make(map[string]func() (int, interface{}))}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		method := r.URL.Path[len("/v1/"):]
		f.calls = append(f.calls, toolkitCall{method: method, key: r.URL.Query().Get("key"), body: body})

		status, payload := http.StatusNotFound, interface{}(nil)
		if respond, ok := f.responses[method]; ok {
			status, payload = respond()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeToolkit) respond(method string, status int, payload interface{}) {
	f.responses[method] = func() (int, interface{}) { return status, payload }
}

func (f *fakeToolkit) fail(method, message string) {
	f.respond(method, http.StatusBadRequest, map[string]interface{}{
		"error": map[string]interface{}{"code": 400, "message": message},
	})
}

func setup(t *testing.T, opts ...Option) (*Bridge, *fakeToolkit) {
	toolkit := newFakeToolkit(t)
	conf := &core.Config{}
	conf.Firebase.APIKey = "web-key"
	conf.Firebase.ProjectID = "thuto-test"
	conf.Firebase.StorageBucket = "thuto-test.appspot.com"
	conf.Firebase.IdentityURL = toolkit.URL + "/v1"
	conf.Firebase.OTPTimeout = time.Minute

	b, err := NewBridge(context.Background(), conf, nil, opts...)
	require.NoError(t, err)
	return b, toolkit
}

func solvedCaptcha(t *testing.T) *Recaptcha {
	r := NewRecaptcha()
	require.NoError(t, r.SetToken("captcha-ok"))
	return r
}

func TestBridge_SendOTP(t *testing.T) {
	b, toolkit := setup(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	toolkit.respond("accounts:sendVerificationCode", http.StatusOK, map[string]string{"sessionInfo": "sess-1"})

	conf, err := b.SendOTP(ctx, "+27761234567", solvedCaptcha(t))
	require.NoError(t, err)
	assert.Equal(t, "sess-1", conf.SessionInfo)
	assert.Equal(t, "+27761234567", conf.PhoneNumber)
	assert.Equal(t, now.Add(time.Minute), conf.ExpiresAt)

	call := toolkit.calls[len(toolkit.calls)-1]
	assert.Equal(t, "web-key", call.key)
	assert.Equal(t, "+27761234567", call.body["phoneNumber"])
	assert.Equal(t, "captcha-ok", call.body["recaptchaToken"])
}

func TestBridge_SendOTP_errors(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		wantReason string
	}{
		{name: "invalid phone", message: "INVALID_PHONE_NUMBER : Invalid format.", wantReason: "invalid phone number"},
		{name: "too many attempts", message: "TOO_MANY_ATTEMPTS_TRY_LATER", wantReason: "too many attempts, try again later"},
		{name: "captcha", message: "CAPTCHA_CHECK_FAILED", wantReason: "captcha check failed"},
		{name: "quota", message: "QUOTA_EXCEEDED", wantReason: "sms quota exceeded"},
		{name: "other", message: "MISSING_CLIENT_IDENTIFIER", wantReason: "missing client identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, toolkit := setup(t)
			toolkit.fail("accounts:sendVerificationCode", tt.message)

			_, err := b.SendOTP(context.Background(), "+27761234567", solvedCaptcha(t))
			var sErr *identity.OTPSendError
			require.ErrorAs(t, err, &sErr)
			assert.Equal(t, tt.wantReason, sErr.Reason)
		})
	}
}

func TestBridge_SendOTP_captcha(t *testing.T) {
	b, toolkit := setup(t)
	ctx := context.Background()

	unsolved := NewRecaptcha()
	_, err := b.SendOTP(ctx, "+27761234567", unsolved)
	var sErr *identity.OTPSendError
	assert.ErrorAs(t, err, &sErr)

	cleared := solvedCaptcha(t)
	cleared.Clear()
	_, err = b.SendOTP(ctx, "+27761234567", cleared)
	assert.Equal(t, identity.ErrCaptchaCleared, err)
	assert.Empty(t, toolkit.calls)
}

func TestBridge_ConfirmOTP(t *testing.T) {
	b, toolkit := setup(t)
	ctx := context.Background()
	confirmation := identity.Confirmation{SessionInfo: "sess-1", PhoneNumber: "+27761234567", ExpiresAt: time.Now().Add(time.Minute)}

	toolkit.respond("accounts:signInWithPhoneNumber", http.StatusOK, map[string]string{
		"idToken":      "id-1",
		"refreshToken": "ref-1",
		"expiresIn":    "3600",
		"localId":      "uid-1",
		"phoneNumber":  "+27761234567",
	})
	cred, err := b.ConfirmOTP(ctx, confirmation, " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, "id-1", cred.IDToken)
	assert.Equal(t, "uid-1", cred.UID)
	assert.Equal(t, "+27761234567", cred.PhoneNumber)
	assert.False(t, cred.ExpiresAt.IsZero())

	call := toolkit.calls[len(toolkit.calls)-1]
	assert.Equal(t, "sess-1", call.body["sessionInfo"])
	assert.Equal(t, "123456", call.body["code"])
}

func TestBridge_ConfirmOTP_errors(t *testing.T) {
	valid := identity.Confirmation{SessionInfo: "sess-1", PhoneNumber: "+27761234567", ExpiresAt: time.Now().Add(time.Minute)}

	tests := []struct {
		name         string
		confirmation identity.Confirmation
		code         string
		message      string
		wantErr      error
	}{
		{name: "invalid code", confirmation: valid, code: "000000", message: "INVALID_CODE", wantErr: identity.ErrInvalidOTP},
		{name: "invalid verification code", confirmation: valid, code: "000000", message: "INVALID_VERIFICATION_CODE", wantErr: identity.ErrInvalidOTP},
		{name: "session expired", confirmation: valid, code: "123456", message: "SESSION_EXPIRED", wantErr: identity.ErrChallengeExpired},
		{name: "code expired", confirmation: valid, code: "123456", message: "CODE_EXPIRED", wantErr: identity.ErrChallengeExpired},
		{name: "too many attempts", confirmation: valid, code: "123456", message: "TOO_MANY_ATTEMPTS_TRY_LATER : Try again later."},
		{name: "quota exceeded", confirmation: valid, code: "123456", message: "QUOTA_EXCEEDED"},
		{name: "empty code", confirmation: valid, code: " ", wantErr: identity.ErrInvalidOTP},
		{
			name:         "expired locally",
			confirmation: identity.Confirmation{SessionInfo: "sess-1", ExpiresAt: time.Now().Add(-time.Second)},
			code:         "123456",
			wantErr:      identity.ErrChallengeExpired,
		},
		{name: "no challenge", code: "123456", wantErr: identity.ErrChallengeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, toolkit := setup(t)
			if tt.message != "" {
				toolkit.fail("accounts:signInWithPhoneNumber", tt.message)
			}
			_, err := b.ConfirmOTP(context.Background(), tt.confirmation, tt.code)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			// the challenge stays usable
			require.Error(t, err)
			assert.NotErrorIs(t, err, identity.ErrInvalidOTP)
			assert.NotErrorIs(t, err, identity.ErrChallengeExpired)
		})
	}
}

type fakeVerifier struct {
	claims map[string]interface{}
	err    error
}

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Token{UID: "verified-" + idToken, Claims: f.claims}, nil
}

func TestBridge_ConfirmOTP_verifiesIDToken(t *testing.T) {
	confirmation := identity.Confirmation{SessionInfo: "sess-1", PhoneNumber: "+27761234567", ExpiresAt: time.Now().Add(time.Minute)}

	tests := []struct {
		name     string
		verifier   fakeVerifier
		wantUID    string
		wantErr    error
		wantErrStr string
	}{
		{name: "matching phone", verifier: fakeVerifier{claims: map[string]interface{}{"phone_number": "+27761234567"}}, wantUID: "verified-id-1"},
		{name: "other phone", verifier: fakeVerifier{claims: map[string]interface{}{"phone_number": "+27000000000"}}, wantErr: identity.ErrInvalidOTP},
		{name: "verifier unavailable", verifier: fakeVerifier{err: errors.New("fetching public keys: connection refused")}, wantErrStr: "verifying firebase id token: fetching public keys: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, toolkit := setup(t, withTokenVerifier(tt.verifier))
			toolkit.respond("accounts:signInWithPhoneNumber", http.StatusOK, map[string]string{"idToken": "id-1", "localId": "uid-1"})

			cred, err := b.ConfirmOTP(context.Background(), confirmation, "123456")
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				assert.NotErrorIs(t, err, identity.ErrInvalidOTP)
			} else {
				assert.Equal(t, tt.wantErr, err)
			}
			assert.Equal(t, tt.wantUID, cred.UID)
		})
	}
}

func TestBridge_SignInEmailPassword(t *testing.T) {
	b, toolkit := setup(t)
	ctx := context.Background()

	toolkit.respond("accounts:signInWithPassword", http.StatusOK, map[string]string{
		"idToken": "id-2", "email": "admin@school.test", "localId": "uid-2",
	})
	cred, err := b.SignInEmailPassword(ctx, " Admin@School.test ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "id-2", cred.IDToken)
	assert.Equal(t, "admin@school.test", cred.Email)

	call := toolkit.calls[len(toolkit.calls)-1]
	assert.Equal(t, "admin@school.test", call.body["email"])
	assert.Equal(t, true, call.body["returnSecureToken"])

	for _, msg := range []string{"EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED"} {
		toolkit.fail("accounts:signInWithPassword", msg)
		_, err = b.SignInEmailPassword(ctx, "admin@school.test", "wrong")
		assert.Equal(t, identity.ErrInvalidCredentials, err, msg)
	}

	toolkit.fail("accounts:signInWithPassword", "OPERATION_NOT_ALLOWED")
	_, err = b.SignInEmailPassword(ctx, "admin@school.test", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPERATION_NOT_ALLOWED")
}

func TestBridge_unexpectedStatus(t *testing.T) {
	b, toolkit := setup(t)
	toolkit.respond("accounts:signInWithPassword", http.StatusBadGateway, nil)

	_, err := b.SignInEmailPassword(context.Background(), "a@b.c", "secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestBridge_UploadAvatar(t *testing.T) {
	b, _ := setup(t)
	ctx := context.Background()

	_, err := b.UploadAvatar(ctx, "uid-1", bytes.NewReader([]byte("png")), "image/png")
	assert.Equal(t, ErrStorageUnavailable, err)

	var gotName, gotType string
	var gotData []byte
	b, _ = setup(t, withObjectWriter(func(_ context.Context, name, contentType string, r io.Reader) error {
		gotName, gotType = name, contentType
		gotData, _ = io.ReadAll(r)
		return nil
	}))
	url, err := b.UploadAvatar(ctx, "uid-1", bytes.NewReader([]byte("png")), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "avatars/uid-1", gotName)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, []byte("png"), gotData)
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/thuto-test.appspot.com/o/avatars%2Fuid-1?alt=media", url)

	_, err = b.UploadAvatar(ctx, "", bytes.NewReader(nil), "image/png")
	assert.Error(t, err)
}

func TestRecaptcha(t *testing.T) {
	r := NewRecaptcha()
	ctx := context.Background()

	require.NoError(t, r.SetToken(" tok "))
	tok, err := r.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	r.Clear()
	assert.True(t, r.Cleared())
	_, err = r.Token(ctx)
	assert.Equal(t, identity.ErrCaptchaCleared, err)
	assert.Equal(t, identity.ErrCaptchaCleared, r.SetToken("again"))
}

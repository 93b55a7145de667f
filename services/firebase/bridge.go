// Package firebase bridges the Firebase identity and storage services.
//
// Phone and email sign-in go through the Identity Toolkit REST API with the web API key,
// the same calls the web SDK makes. Service credentials, when configured, add ID token
// verification and avatar uploads through the Admin SDK.
package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"google.golang.org/api/option"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
)

const (
	defaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"
	defaultOTPTimeout  = 5 * time.Minute
)

var (
	nowFunc = time.Now // mockable

	ErrStorageUnavailable = errors.New("avatar storage requires firebase service credentials")
)

type (
	// tokenVerifier is the part of auth.Client the bridge needs.
	tokenVerifier interface {
		VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	}

	objectWriter func(ctx context.Context, name, contentType string, r io.Reader) error

	Option func(*Bridge)

	// Bridge is the identity.Provider backed by Firebase. Build it once per process.
	Bridge struct {
		apiKey      string
		identityURL string
		bucket      string
		otpTimeout  time.Duration
		timeout     time.Duration

		rest     *rest.Client
		verifier tokenVerifier
		writer   objectWriter
		logger   core.Logger
	}
)

var _ identity.Provider = (*Bridge)(nil)

// WithHTTPClient replaces the client used for Identity Toolkit calls.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.rest.HTTPClient = c }
}

func WithIdentityURL(u string) Option {
	return func(b *Bridge) { b.identityURL = strings.TrimRight(u, "/") }
}

func withTokenVerifier(v tokenVerifier) Option {
	return func(b *Bridge) { b.verifier = v }
}

func withObjectWriter(w objectWriter) Option {
	return func(b *Bridge) { b.writer = w }
}

// NewBridge initializes the Firebase app from the configuration.
func NewBridge(ctx context.Context, conf *core.Config, logger core.Logger, opts ...Option) (*Bridge, error) {
	fc := conf.Firebase
	b := &Bridge{
		apiKey:      fc.APIKey,
		identityURL: strings.TrimRight(fc.IdentityURL, "/"),
		bucket:      fc.StorageBucket,
		otpTimeout:  fc.OTPTimeout,
		timeout:     conf.API.Timeout,
		rest:        &rest.Client{HTTPClient: &http.Client{Timeout: core.APITimeout}},
		logger:      logger,
	}
	if b.identityURL == "" {
		b.identityURL = defaultIdentityURL
	}
	if b.otpTimeout <= 0 {
		b.otpTimeout = defaultOTPTimeout
	}
	if b.timeout <= 0 || b.timeout > core.APITimeout {
		b.timeout = core.APITimeout
	}
	if b.logger == nil {
		b.logger = core.NopLogger{}
	}

	var clientOpts []option.ClientOption
	if fc.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(fc.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     fc.ProjectID,
		StorageBucket: fc.StorageBucket,
	}, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firebase app")
	}

	if fc.CredentialsFile != "" {
		authClient, err := app.Auth(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "initializing firebase auth")
		}
		b.verifier = authClient

		if fc.StorageBucket != "" {
			storageClient, err := app.Storage(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "initializing firebase storage")
			}
			bucket, err := storageClient.DefaultBucket()
			if err != nil {
				return nil, errors.Wrap(err, "opening default bucket")
			}
			b.writer = func(ctx context.Context, name, contentType string, r io.Reader) error {
				w := bucket.Object(name).NewWriter(ctx)
				w.ContentType = contentType
				if _, err := io.Copy(w, r); err != nil {
					_ = w.Close()
					return err
				}
				return w.Close()
			}
		}
	}

	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// SendOTP dispatches a verification code by SMS.
func (b *Bridge) SendOTP(ctx context.Context, phoneE164 string, verifier identity.Verifier) (identity.Confirmation, error) {
	captcha, err := verifier.Token(ctx)
	if err != nil {
		return identity.Confirmation{}, err
	}

	var res struct {
		SessionInfo string `json:"sessionInfo"`
	}
	body := map[string]string{"phoneNumber": phoneE164, "recaptchaToken": captcha}
	code, err := b.call(ctx, "accounts:sendVerificationCode", body, &res)
	if err != nil {
		return identity.Confirmation{}, err
	}
	if code != "" {
		b.logger.Warn(fmt.Sprintf("sending verification code failed: %s", code))
		return identity.Confirmation{}, sendError(code)
	}

	now := nowFunc()
	return identity.Confirmation{
		SessionInfo: res.SessionInfo,
		PhoneNumber: phoneE164,
		SentAt:      now,
		ExpiresAt:   now.Add(b.otpTimeout),
	}, nil
}

// ConfirmOTP proves ownership of the phone number. The app session is not established here.
func (b *Bridge) ConfirmOTP(ctx context.Context, confirmation identity.Confirmation, code string) (identity.Credential, error) {
	if confirmation.SessionInfo == "" || confirmation.Expired(nowFunc()) {
		return identity.Credential{}, identity.ErrChallengeExpired
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return identity.Credential{}, identity.ErrInvalidOTP
	}

	var res signInResponse
	body := map[string]string{"sessionInfo": confirmation.SessionInfo, "code": code}
	errCode, err := b.call(ctx, "accounts:signInWithPhoneNumber", body, &res)
	if err != nil {
		return identity.Credential{}, err
	}
	if errCode != "" {
		return identity.Credential{}, confirmError(errCode)
	}

	cred := res.credential()
	if cred.PhoneNumber == "" {
		cred.PhoneNumber = confirmation.PhoneNumber
	}
	if b.verifier != nil {
		token, err := b.verifier.VerifyIDToken(ctx, cred.IDToken)
		if err != nil {
			if auth.IsIDTokenInvalid(err) || auth.IsIDTokenExpired(err) {
				b.logger.Warn("rejected firebase id token", err)
				return identity.Credential{}, identity.ErrInvalidOTP
			}
			return identity.Credential{}, errors.Wrap(err, "verifying firebase id token")
		}
		if phone, _ := token.Claims["phone_number"].(string); phone != confirmation.PhoneNumber {
			b.logger.Warn(fmt.Sprintf("id token phone %q does not match %q", phone, confirmation.PhoneNumber))
			return identity.Credential{}, identity.ErrInvalidOTP
		}
		cred.UID = token.UID
	}
	return cred, nil
}

// SignInEmailPassword signs in with an email and a password.
func (b *Bridge) SignInEmailPassword(ctx context.Context, email, password string) (identity.Credential, error) {
	var res signInResponse
	body := map[string]interface{}{
		"email":             core.CleanString(email, true),
		"password":          password,
		"returnSecureToken": true,
	}
	code, err := b.call(ctx, "accounts:signInWithPassword", body, &res)
	if err != nil {
		return identity.Credential{}, err
	}
	if code != "" {
		if sErr := signInError(code); sErr != nil {
			return identity.Credential{}, sErr
		}
		return identity.Credential{}, errors.Errorf("firebase sign in: %s", code)
	}
	return res.credential(), nil
}

// UploadAvatar stores the picture as avatars/<uid> and returns its download URL.
func (b *Bridge) UploadAvatar(ctx context.Context, uid string, r io.Reader, contentType string) (string, error) {
	if b.writer == nil {
		return "", ErrStorageUnavailable
	}
	if uid == "" {
		return "", errors.New("no uid provided")
	}
	name := "avatars/" + uid
	if err := b.writer(ctx, name, contentType, r); err != nil {
		return "", errors.Wrap(err, "uploading avatar")
	}
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media",
		b.bucket, url.PathEscape(name)), nil
}

// call posts to an Identity Toolkit method. A provider error comes back as its code with a nil error.
func (b *Bridge) call(ctx context.Context, method string, body, out interface{}) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "encoding identity toolkit request")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.rest.SendWithContext(ctx, rest.Request{
		Method:      rest.Post,
		BaseURL:     b.identityURL + "/" + method,
		Headers:     map[string]string{"Content-Type": "application/json"},
		QueryParams: map[string]string{"key": b.apiKey},
		Body:        data,
	})
	if err != nil {
		return "", errors.Wrapf(err, "calling %s", method)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		code := errorCode(res.Body)
		if code == "" {
			return "", errors.Errorf("%s: unexpected status %d", method, res.StatusCode)
		}
		return code, nil
	}
	if err = json.Unmarshal([]byte(res.Body), out); err != nil {
		return "", errors.Wrapf(err, "decoding %s response", method)
	}
	return "", nil
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	PhoneNumber  string `json:"phoneNumber"`
	Email        string `json:"email"`
}

func (r signInResponse) credential() identity.Credential {
	cred := identity.Credential{
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		UID:          r.LocalID,
		PhoneNumber:  r.PhoneNumber,
		Email:        r.Email,
	}
	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil {
		cred.ExpiresAt = nowFunc().Add(time.Duration(secs) * time.Second)
	}
	return cred
}

// Package session holds the signed in user and owns the persisted token, school scope and profile.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
)

const (
	msgLoginSuccess    = "Login successful!"
	msgLoggedOut       = "You have been logged out."
	msgRegistered      = "Registration successful! Please log in."
	msgProfileUpdated  = "Profile updated successfully!"
	msgResetLinkSent   = "If an account exists for this email, a password reset link has been sent."
	msgPasswordChanged = "Password reset successful! Please log in."
	msgNothingToUpdate = "nothing to update"
)

var nowFunc = time.Now // mockable

// API is the backend client the store talks through.
type API interface {
	Get(ctx context.Context, path string, params map[string]string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	Put(ctx context.Context, path string, body, out interface{}) error
}

type Deps struct {
	Conf       *core.Config
	API        API
	Storage    storage.Store
	Notifier   core.Notifier
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
}

// Store is the single owner of the session. Operations are serialised;
// accessors may be called while one is running.
type Store struct {
	op sync.Mutex // serialises operations

	mu      sync.RWMutex
	state   State
	user    *Profile
	lastErr error

	api           API
	storage       storage.Store
	notifier      core.Notifier
	logger        core.Logger
	validate      *validator.Validate
	translator    ut.Translator
	refreshLeeway time.Duration
}

func NewStore(deps Deps) *Store {
	s := &Store{
		api:        deps.API,
		storage:    deps.Storage,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
	if deps.Conf != nil {
		s.refreshLeeway = deps.Conf.Session.RefreshLeeway
	}
	if s.logger == nil {
		s.logger = core.NopLogger{}
	}
	if s.validate == nil || s.translator == nil {
		s.validate, s.translator = validator.New(), core.NewTranslator()
		core.InitValidators(s.validate, s.translator)
		InitValidators(s.validate, s.translator)
	}
	return s
}

// =========================================================================
// Accessors

// State reports the session state. A session whose token was removed by the
// backend client (after a 401) reads as anonymous.
func (s *Store) State() State {
	s.reconcile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Loading() bool {
	st := s.State()
	return st == Loading || st == Uninitialized
}

func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// User returns a copy of the current profile, or nil.
func (s *Store) User() *Profile {
	s.reconcile()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	p := *s.user
	return &p
}

func (s *Store) Role() string {
	if p := s.User(); p != nil {
		return p.Role
	}
	return ""
}

// LastError is the error of the last operation, for inline rendering.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Token returns the persisted bearer token.
func (s *Store) Token(ctx context.Context) string {
	return storage.GetString(ctx, s.storage, storage.KeyToken)
}

func (s *Store) SchoolID(ctx context.Context) string {
	return storage.GetString(ctx, s.storage, storage.KeySchoolID)
}

func (s *Store) reconcile() {
	s.mu.RLock()
	authenticated := s.state == Authenticated
	s.mu.RUnlock()
	if !authenticated || s.Token(context.Background()) != "" {
		return
	}
	s.mu.Lock()
	if s.state == Authenticated {
		s.state = Anonymous
		s.user = nil
	}
	s.mu.Unlock()
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// =========================================================================
// Operations

// Init restores the persisted session. It never fails: a profile fetch error leaves the session anonymous.
func (s *Store) Init(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	s.setState(Loading)

	if s.Token(ctx) == "" {
		s.clearUser()
		s.setState(Anonymous)
		return
	}

	p, err := s.fetchMe(ctx)
	if err != nil || p == nil {
		s.logger.Warn("restoring session: fetching current user", err)
		s.clearUser()
		s.setState(Anonymous)
		return
	}
	s.storeUser(ctx, p)
	s.setState(Authenticated)
}

// Login exchanges a proven identity for an application token and loads the profile.
func (s *Store) Login(ctx context.Context, proof LoginProof) (Profile, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := core.ValidateStruct(s.validate, s.translator, proof); err != nil {
		return Profile{}, s.fail(err)
	}

	var res loginResponse
	if err := s.api.Post(ctx, proof.endpoint(), proof, &res); err != nil {
		s.logger.Info(fmt.Sprintf("login via %s failed", proof.endpoint()), err)
		return Profile{}, s.fail(newAuthError(err, proof))
	}
	if res.Token == "" {
		return Profile{}, s.fail(&AuthError{Message: msgLoginFailed, Err: errors.New("no token in login response")})
	}

	if err := s.persist(ctx, res.Token, res.RefreshToken, string(res.SchoolID)); err != nil {
		return Profile{}, s.fail(err)
	}

	p, err := s.fetchMe(ctx)
	if err != nil || p == nil {
		if err != nil {
			s.logger.Warn("login: fetching current user", err)
		}
		// a 401 here has already torn the session down
		if statusOf(err) == http.StatusUnauthorized || s.Token(ctx) == "" {
			s.clearUser()
			s.setState(Anonymous)
			return Profile{}, s.fail(&AuthError{Status: statusOf(err), Message: msgLoginFailed, Err: errors.Wrap(err, "fetching current user")})
		}
		if p, err = decodeProfile(res.User); err != nil || p == nil {
			if dErr := s.storage.Delete(context.WithoutCancel(ctx), storage.SessionKeys...); dErr != nil {
				s.logger.Error("login: clearing session", dErr)
			}
			return Profile{}, s.fail(&AuthError{Message: msgLoginFailed, Err: errors.Wrap(err, "decoding login user")})
		}
	}
	p = s.storeUser(ctx, p)
	s.setState(Authenticated)
	s.succeed(msgLoginSuccess)
	return *p, nil
}

// Logout always succeeds; the server side invalidation is best effort.
func (s *Store) Logout(ctx context.Context) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Token(ctx) != "" {
		if err := s.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
			s.logger.Warn("logout: server invalidation failed", err)
		}
	}
	// the teardown must survive a cancelled request
	if err := s.storage.Delete(context.WithoutCancel(ctx), storage.SessionKeys...); err != nil {
		s.logger.Error("logout: clearing session", err)
	}

	s.mu.Lock()
	s.user = nil
	s.state = Anonymous
	s.lastErr = nil
	s.mu.Unlock()
	s.notify(func(n core.Notifier) { n.Info(msgLoggedOut) })
}

// SetUser stores a normalized copy of p; nil clears the user.
func (s *Store) SetUser(ctx context.Context, p *Profile) {
	s.op.Lock()
	defer s.op.Unlock()

	if p == nil {
		s.clearUser()
		_ = s.storage.Delete(ctx, storage.KeyUser)
		s.setState(Anonymous)
		return
	}
	s.storeUser(ctx, p)
	if s.Token(ctx) != "" {
		s.setState(Authenticated)
	}
}

// UpdateUserProfile validates the patch before sending it and stores the server's profile.
func (s *Store) UpdateUserProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	s.op.Lock()
	defer s.op.Unlock()

	patch = patch.clean()
	if patch.empty() {
		return Profile{}, s.fail(core.NewValidationError(errors.New(msgNothingToUpdate)))
	}
	if err := core.ValidateStruct(s.validate, s.translator, patch); err != nil {
		return Profile{}, s.fail(err)
	}

	var raw json.RawMessage
	if err := s.api.Put(ctx, "/auth/profile", patch, &raw); err != nil {
		return Profile{}, s.fail(err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return Profile{}, s.fail(errors.Wrap(err, "decoding profile"))
	}
	if p == nil {
		// server acknowledged without a body: apply the patch locally
		p = s.User()
		if p == nil {
			p = new(Profile)
		}
		applyPatch(p, patch)
	}
	p = s.storeUser(ctx, p)
	s.succeed(msgProfileUpdated)
	return *p, nil
}

// Register creates an account. It does not sign the user in.
func (s *Store) Register(ctx context.Context, acc NewAccount) error {
	s.op.Lock()
	defer s.op.Unlock()

	acc = acc.clean()
	if err := core.ValidateStruct(s.validate, s.translator, acc); err != nil {
		return s.fail(err)
	}
	body := map[string]string{
		"name":        acc.Name,
		"lastName":    acc.LastName,
		"email":       acc.Email,
		"phoneNumber": acc.PhoneNumber,
		"password":    acc.Password,
		"role":        acc.Role,
	}
	if err := s.api.Post(ctx, "/auth/register", body, nil); err != nil {
		return s.fail(err)
	}
	s.succeed(msgRegistered)
	return nil
}

// RequestPasswordReset asks the backend to send a reset link. Whether the email
// is known is never revealed: only transport failures are reported.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	s.op.Lock()
	defer s.op.Unlock()

	req := forgotPassword{Email: core.CleanString(email, true)}
	if err := core.ValidateStruct(s.validate, s.translator, req); err != nil {
		return s.fail(err)
	}
	if err := s.api.Post(ctx, "/auth/forgot-password", req, nil); err != nil {
		if statusOf(err) == 0 {
			return s.fail(err)
		}
		s.logger.Info("forgot password", err)
	}
	s.succeed(msgResetLinkSent)
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, rp ResetPassword) error {
	s.op.Lock()
	defer s.op.Unlock()

	rp.Token = core.CleanString(rp.Token)
	if err := core.ValidateStruct(s.validate, s.translator, rp); err != nil {
		return s.fail(err)
	}
	body := map[string]string{"token": rp.Token, "password": rp.Password}
	if err := s.api.Post(ctx, "/auth/reset-password", body, nil); err != nil {
		return s.fail(err)
	}
	s.succeed(msgPasswordChanged)
	return nil
}

// RefreshToken trades the persisted refresh token for a new bearer token.
func (s *Store) RefreshToken(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()
	return s.refresh(ctx)
}

// EnsureFresh refreshes the token when it is a JWT expiring within the configured leeway.
// Opaque tokens are left alone.
func (s *Store) EnsureFresh(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	token := s.Token(ctx)
	if token == "" {
		return nil
	}
	exp, ok := tokenExpiry(token)
	if !ok || exp.Sub(nowFunc()) > s.refreshLeeway {
		return nil
	}
	if storage.GetString(ctx, s.storage, storage.KeyRefreshToken) == "" {
		return nil
	}
	return s.refresh(ctx)
}

func (s *Store) refresh(ctx context.Context) error {
	refreshToken := storage.GetString(ctx, s.storage, storage.KeyRefreshToken)
	if refreshToken == "" {
		return s.record(ErrNoRefreshToken)
	}

	var res refreshResponse
	if err := s.api.Post(ctx, "/auth/refresh-token", map[string]string{"refreshToken": refreshToken}, &res); err != nil {
		s.logger.Warn("refreshing token", err)
		return s.record(errors.Wrap(err, "refreshing token"))
	}
	if res.Token == "" {
		return s.record(errors.New("no token in refresh response"))
	}
	if err := s.persist(ctx, res.Token, res.RefreshToken, ""); err != nil {
		return s.record(err)
	}
	return s.record(nil)
}

// =========================================================================
// Helpers

func (s *Store) fetchMe(ctx context.Context) (*Profile, error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, "/auth/me", nil, &raw); err != nil {
		return nil, err
	}
	return decodeProfile(raw)
}

func (s *Store) persist(ctx context.Context, token, refreshToken, schoolID string) error {
	if err := s.storage.Set(ctx, storage.KeyToken, token); err != nil {
		return errors.Wrap(err, "persisting token")
	}
	if refreshToken != "" {
		if err := s.storage.Set(ctx, storage.KeyRefreshToken, refreshToken); err != nil {
			return errors.Wrap(err, "persisting refresh token")
		}
	}
	if schoolID != "" {
		if err := s.storage.Set(ctx, storage.KeySchoolID, schoolID); err != nil {
			return errors.Wrap(err, "persisting school id")
		}
	}
	return nil
}

// storeUser normalizes p, keeps it in memory and persists it.
func (s *Store) storeUser(ctx context.Context, p *Profile) *Profile {
	np := p.normalize()
	s.mu.Lock()
	s.user = &np
	s.mu.Unlock()

	if data, err := json.Marshal(np); err == nil {
		if err = s.storage.Set(ctx, storage.KeyUser, string(data)); err != nil {
			s.logger.Error("persisting user", err)
		}
	}
	out := np
	return &out
}

func (s *Store) clearUser() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

func (s *Store) record(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// fail records err and toasts its user facing message.
func (s *Store) fail(err error) error {
	s.record(err)
	msg := err.Error()
	if vErr, ok := core.AsValidationError(err); ok && len(vErr.Fields) > 0 {
		msg = vErr.Fields[0].Error
	}
	s.notify(func(n core.Notifier) { n.Error(msg) })
	return err
}

func (s *Store) succeed(msg string) {
	s.record(nil)
	s.notify(func(n core.Notifier) { n.Success(msg) })
}

func (s *Store) notify(fn func(core.Notifier)) {
	if s.notifier != nil {
		fn(s.notifier)
	}
}

func applyPatch(p *Profile, patch ProfilePatch) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Name, patch.Name)
	set(&p.LastName, patch.LastName)
	set(&p.DisplayName, patch.DisplayName)
	set(&p.Email, patch.Email)
	set(&p.PhoneNumber, patch.PhoneNumber)
	set(&p.PhotoURL, patch.PhotoURL)
}

// tokenExpiry reads the exp claim of a JWT without verifying it.
func tokenExpiry(token string) (time.Time, bool) {
	claims := new(jwt.RegisteredClaims)
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

package echoportal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/apiclient"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/inmem"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/tests"
)

type fixture struct {
	server   *Server
	backend  *testutil.Backend
	provider *testutil.Provider
	store    storage.Store
	sess     *session.Store
	nav      *routes.Redirector
	avatars  *fakeAvatars
}

type fakeAvatars struct {
	uid         string
	contentType string
	data        []byte
	err         error
}

func (f *fakeAvatars) UploadAvatar(_ context.Context, uid string, r io.Reader, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uid, f.contentType = uid, contentType
	f.data, _ = io.ReadAll(r)
	return "https://cdn.school.test/avatars/" + uid, nil
}

func setup(t *testing.T, skipInit ...bool) *fixture {
	f := &fixture{
		backend:  testutil.NewBackend(t),
		provider: &testutil.Provider{Code: "123456"},
		store:    inmem.NewStore(),
		nav:      routes.NewRedirector(),
		avatars:  new(fakeAvatars),
	}
	conf := &core.Config{AppName: "Thuto", TestMode: true}
	api := apiclient.New(apiclient.Options{BaseURL: f.backend.BaseURL()}, f.store, f.nav, nil)
	toasts := notify.NewToasts(nil)
	f.sess = session.NewStore(session.Deps{Conf: conf, API: api, Storage: f.store, Notifier: toasts})
	f.backend.JSON(http.MethodGet, "/notifications/unread-count", http.StatusOK, map[string]int{"unreadCount": 3})

	var err error
	f.server, err = NewServer(ServerDeps{
		Conf:       conf,
		Session:    f.sess,
		Identity:   f.provider,
		Redirector: f.nav,
		Toasts:     toasts,
		Poller:     notify.NewPoller(api, f.sess, time.Hour, nil),
		Avatars:    f.avatars,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.server.Shutdown(context.Background()) })

	if len(skipInit) == 0 || !skipInit[0] {
		f.sess.Init(context.Background())
	}
	return f
}

// signIn stubs a session for role on the backend and signs in through the admin form.
func (f *fixture) signIn(t *testing.T, role string) {
	user := testutil.UserJSON("7", "thandi", role)
	f.backend.JSON(http.MethodPost, "/admin/login", http.StatusOK, testutil.LoginJSON("tok", "42", user))
	f.backend.JSON(http.MethodGet, "/auth/me", http.StatusOK, user)

	rec := f.do(newForm(http.MethodPost, routes.AdminLoginPath, url.Values{
		"email":    {"thandi@school.test"},
		"password": {"secret-pass"},
	}))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.True(t, f.sess.IsAuthenticated())
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func newForm(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

type httpTest struct {
	name         string
	method       string
	path         string
	wantCode     int
	wantLocation string
	wantBody     string
}

func checkResponse(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantLocation != "" {
		assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
	}
	if tt.wantBody != "" {
		assert.Contains(t, rec.Body.String(), tt.wantBody)
	}
}

func TestServer_anonymousPages(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{name: "protected redirects to login", path: "/dashboard", wantCode: http.StatusFound, wantLocation: routes.LoginPath},
		{name: "protected screen", path: "/teacher/classes", wantCode: http.StatusFound, wantLocation: routes.LoginPath},
		{name: "root redirect", path: "/", wantCode: http.StatusFound, wantLocation: routes.DashboardPath},
		{name: "legacy redirect", path: "/grades", wantCode: http.StatusFound, wantLocation: "/teacher/grades"},
		{name: "trailing slash", path: "/users/", wantCode: http.StatusFound, wantLocation: "/admin/users"},
		{name: "login", path: routes.LoginPath, wantCode: http.StatusOK, wantBody: "Send code"},
		{name: "admin login", path: routes.AdminLoginPath, wantCode: http.StatusOK, wantBody: `action="/admin/login"`},
		{name: "superadmin login", path: routes.SuperAdminLoginPath, wantCode: http.StatusOK, wantBody: `action="/superadmin/login"`},
		{name: "register", path: routes.RegisterPath, wantCode: http.StatusOK, wantBody: `<option value="parent"`},
		{name: "forgot password", path: routes.ForgotPasswordPath, wantCode: http.StatusOK, wantBody: "Send reset link"},
		{name: "reset password keeps token", path: routes.ResetPasswordPath + "?token=abc", wantCode: http.StatusOK, wantBody: `value="abc"`},
		{name: "not found", path: "/nowhere", wantCode: http.StatusNotFound, wantBody: "Page not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResponse(t, tt, f.do(newRequest(http.MethodGet, tt.path)))
		})
	}
}

func TestServer_loadingBoundary(t *testing.T) {
	f := setup(t, true)

	for _, path := range []string{routes.LoginPath, "/dashboard"} {
		rec := f.do(newRequest(http.MethodGet, path))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
		assert.Contains(t, rec.Body.String(), "Loading")
	}

	f.sess.Init(context.Background())
	rec := f.do(newRequest(http.MethodGet, "/dashboard"))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestServer_phoneLogin(t *testing.T) {
	f := setup(t)
	user := testutil.UserJSON("7", "thandi", "Teacher")
	f.backend.JSON(http.MethodPost, "/auth/login", http.StatusOK, testutil.LoginJSON("tok", "42", user))
	f.backend.JSON(http.MethodGet, "/auth/me", http.StatusOK, user)

	rec := f.do(newRequest(http.MethodGet, routes.LoginPath))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{
		"action":         {"send"},
		"phoneNumber":    {"0761234567"},
		"recaptchaToken": {"captcha"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "076 123 4567")
	assert.Contains(t, rec.Body.String(), `name="otp"`)
	assert.Equal(t, []string{"+27761234567"}, f.provider.Sent)

	rec = f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{"action": {"verify"}, "otp": {"123456"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, routes.DashboardPath, rec.Header().Get(echo.HeaderLocation))

	body := f.backend.Last(t, http.MethodPost, "/auth/login").JSON(t)
	assert.Equal(t, "+27761234567", body["phoneNumber"])
	assert.Equal(t, "firebase-id-token", body["firebaseToken"])

	rec = f.do(newRequest(http.MethodGet, "/dashboard"))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "Login successful!")
	assert.Contains(t, page, "Welcome, thandi")
	assert.Contains(t, page, `href="/teacher/classes"`)
	assert.Contains(t, page, "My Classes")

	// signed in: the login page is not shown again
	rec = f.do(newRequest(http.MethodGet, routes.LoginPath))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, routes.DashboardPath, rec.Header().Get(echo.HeaderLocation))
}

func TestServer_phoneLoginErrors(t *testing.T) {
	tests := []struct {
		name     string
		phone    string
		code     string
		wantBody string
		wantOTP  bool
	}{
		{name: "invalid phone", phone: "07612", wantBody: "Please enter a valid 10-digit phone number."},
		{name: "short code", phone: "0761234567", code: "123", wantBody: "Please enter the 6-digit code.", wantOTP: true},
		{name: "wrong code", phone: "0761234567", code: "654321", wantBody: "Invalid OTP. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.do(newRequest(http.MethodGet, routes.LoginPath))

			rec := f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{
				"action": {"send"}, "phoneNumber": {tt.phone}, "recaptchaToken": {"captcha"},
			}))
			if tt.code != "" {
				require.Equal(t, http.StatusOK, rec.Code)
				rec = f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{"action": {"verify"}, "otp": {tt.code}}))
			}

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Equal(t, tt.wantOTP, strings.Contains(rec.Body.String(), `name="otp"`))
			assert.False(t, f.sess.IsAuthenticated())
			assert.Zero(t, f.backend.Count(http.MethodPost, "/auth/login"))
		})
	}
}

func TestServer_phoneLoginBack(t *testing.T) {
	f := setup(t)
	f.do(newRequest(http.MethodGet, routes.LoginPath))
	f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{
		"action": {"send"}, "phoneNumber": {"0761234567"}, "recaptchaToken": {"captcha"},
	}))

	rec := f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{"action": {"back"}}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="phoneNumber"`)
	assert.Contains(t, rec.Body.String(), `value="076 123 4567"`)

	rec = f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{"action": {"dance"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_phoneNotRegistered(t *testing.T) {
	f := setup(t)
	f.backend.JSON(http.MethodPost, "/auth/login", http.StatusUnauthorized, nil)

	f.do(newRequest(http.MethodGet, routes.LoginPath))
	f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{
		"action": {"send"}, "phoneNumber": {"0761234567"}, "recaptchaToken": {"captcha"},
	}))
	rec := f.do(newForm(http.MethodPost, routes.LoginPath, url.Values{"action": {"verify"}, "otp": {"123456"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Phone number not registered. Please contact your school administrator.")
	assert.Contains(t, rec.Body.String(), `name="phoneNumber"`)
	assert.Empty(t, f.nav.Peek())
}

func TestServer_credentialsLogin(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		endpoint string
		status   int
		email    string
		wantBody string
		wantHits int
	}{
		{
			name: "admin invalid credentials", path: routes.AdminLoginPath, endpoint: "/admin/login",
			status: http.StatusUnauthorized, email: "admin@school.test",
			wantBody: "Invalid email or password. Please try again.", wantHits: 1,
		},
		{
			name: "superadmin forbidden", path: routes.SuperAdminLoginPath, endpoint: "/superadmins/auth/login",
			status: http.StatusForbidden, email: "root@thuto.test",
			wantBody: "Your account does not have access to this portal.", wantHits: 1,
		},
		{
			name: "too many attempts", path: routes.AdminLoginPath, endpoint: "/admin/login",
			status: http.StatusTooManyRequests, email: "admin@school.test",
			wantBody: "Too many login attempts. Please try again later.", wantHits: 1,
		},
		{
			name: "invalid email never reaches the backend", path: routes.AdminLoginPath, endpoint: "/admin/login",
			status: http.StatusOK, email: "not-an-email",
			wantBody: "enter a valid email address",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.backend.JSON(http.MethodPost, tt.endpoint, tt.status, nil)

			rec := f.do(newForm(http.MethodPost, tt.path, url.Values{
				"email":    {tt.email},
				"password": {"secret-pass"},
			}))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Contains(t, rec.Body.String(), `value="`+tt.email+`"`)
			assert.Equal(t, tt.wantHits, f.backend.Count(http.MethodPost, tt.endpoint))
			assert.False(t, f.sess.IsAuthenticated())

			// the rejected login stays on its own form
			rec = f.do(newRequest(http.MethodGet, tt.path))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestServer_authenticatedPages(t *testing.T) {
	f := setup(t)
	f.signIn(t, "student")

	tests := []httpTest{
		{name: "dashboard variant", path: "/dashboard", wantCode: http.StatusOK, wantBody: `href="/student/grades"`},
		{name: "screen placeholder", path: "/student/subjects", wantCode: http.StatusOK, wantBody: "<h2>Subjects</h2>"},
		{name: "profile form", path: "/profile", wantCode: http.StatusOK, wantBody: `value="thandi@school.test"`},
		{name: "sign in pages redirect", path: routes.AdminLoginPath, wantCode: http.StatusFound, wantLocation: routes.DashboardPath},
		{name: "not found", path: "/nowhere", wantCode: http.StatusNotFound, wantBody: "Page not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkResponse(t, tt, f.do(newRequest(http.MethodGet, tt.path)))
		})
	}

	// students have no calendar
	rec := f.do(newRequest(http.MethodGet, "/dashboard"))
	assert.NotContains(t, rec.Body.String(), `href="/calendar"`)
	assert.Contains(t, rec.Body.String(), `href="/messages"`)
}

func TestServer_sessionInfo(t *testing.T) {
	f := setup(t)

	getSession := func() map[string]interface{} {
		rec := f.do(newRequest(http.MethodGet, "/session"))
		require.Equal(t, http.StatusOK, rec.Code)
		var res map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		return res
	}

	res := getSession()
	assert.Equal(t, "anonymous", res["state"])
	assert.Nil(t, res["user"])
	assert.Empty(t, res["nav"])

	f.signIn(t, "Administrator")
	res = getSession()
	assert.Equal(t, "authenticated", res["state"])
	assert.Equal(t, "admin", res["dashboard"])
	usr, ok := res["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "administrator", usr["role"])
	assert.Len(t, res["nav"], 9)

	assert.Eventually(t, func() bool {
		return getSession()["unread"] == float64(3)
	}, time.Second, 10*time.Millisecond)
}

func TestServer_logout(t *testing.T) {
	f := setup(t)
	f.signIn(t, "parent")
	f.backend.JSON(http.MethodPost, "/auth/logout", http.StatusOK, nil)

	rec := f.do(newRequest(http.MethodPost, "/logout"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 1, f.backend.Count(http.MethodPost, "/auth/logout"))
	assert.False(t, f.sess.IsAuthenticated())
	assert.Equal(t, "", storage.GetString(context.Background(), f.store, storage.KeyToken))

	rec = f.do(newRequest(http.MethodGet, routes.LoginPath))
	assert.Contains(t, rec.Body.String(), "You have been logged out.")

	rec = f.do(newRequest(http.MethodGet, "/dashboard"))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestServer_sessionExpired(t *testing.T) {
	f := setup(t)
	f.signIn(t, "teacher")
	f.backend.JSON(http.MethodPut, "/auth/profile", http.StatusUnauthorized, nil)

	rec := f.do(newForm(http.MethodPost, routes.ProfilePath, url.Values{"name": {"Thandi"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))
	assert.False(t, f.sess.IsAuthenticated())

	// the forced navigation is honoured by the next page request
	rec = f.do(newRequest(http.MethodGet, "/teacher/classes"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))
	assert.Empty(t, f.nav.Peek())
}

func TestServer_pageAfterTeardown(t *testing.T) {
	f := setup(t)

	for _, path := range []string{routes.DashboardPath, routes.ProfilePath} {
		t.Run(path, func(t *testing.T) {
			route, _ := f.server.deps.Routes.Resolve(path)
			require.True(t, route.Protected)

			// the route was resolved for a session that is gone by render time
			rec := httptest.NewRecorder()
			ctx := f.server.app.NewContext(httptest.NewRequest(http.MethodGet, path, nil), rec)
			ctx.Set(ctxRouteKey, route)

			require.NoError(t, f.server.page(ctx))
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))
		})
	}
}

func TestServer_updateProfile(t *testing.T) {
	f := setup(t)
	f.signIn(t, "teacher")

	updated := testutil.UserJSON("7", "Thandeka", "teacher")
	f.backend.JSON(http.MethodPut, "/auth/profile", http.StatusOK, updated)

	rec := f.do(newForm(http.MethodPost, routes.ProfilePath, url.Values{"name": {" Thandeka "}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.ProfilePath, rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "Thandeka", f.backend.Last(t, http.MethodPut, "/auth/profile").JSON(t)["name"])
	assert.Equal(t, "Thandeka", f.sess.User().Name)

	rec = f.do(newForm(http.MethodPost, routes.ProfilePath, url.Values{"email": {"nope"}}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "enter a valid email address")
	assert.Equal(t, 1, f.backend.Count(http.MethodPut, "/auth/profile"))
}

func TestServer_uploadAvatar(t *testing.T) {
	f := setup(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())
	newUpload := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, routes.ProfilePath+"/avatar", bytes.NewReader(body.Bytes()))
		req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
		return req
	}

	// anonymous
	rec := f.do(newUpload())
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))

	f.signIn(t, "teacher")
	f.backend.JSON(http.MethodPut, "/auth/profile", http.StatusNoContent, nil)

	rec = f.do(newUpload())
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "7", f.avatars.uid)
	assert.Equal(t, []byte("png-bytes"), f.avatars.data)

	wantURL := "https://cdn.school.test/avatars/7"
	assert.Equal(t, wantURL, f.backend.Last(t, http.MethodPut, "/auth/profile").JSON(t)["photoURL"])
	assert.Equal(t, wantURL, f.sess.User().PhotoURL)
}

func TestServer_registerAndReset(t *testing.T) {
	f := setup(t)
	f.backend.JSON(http.MethodPost, "/auth/register", http.StatusCreated, nil)
	f.backend.JSON(http.MethodPost, "/auth/forgot-password", http.StatusNotFound, nil)
	f.backend.JSON(http.MethodPost, "/auth/reset-password", http.StatusOK, nil)

	account := url.Values{
		"name":            {"Lerato"},
		"lastName":        {"Mokoena"},
		"email":           {"lerato@school.test"},
		"phoneNumber":     {"082 555 1234"},
		"password":        {"Kx9!plm2Q"},
		"confirmPassword": {"Kx9!plm2Q-typo"},
		"role":            {"parent"},
	}
	rec := f.do(newForm(http.MethodPost, routes.RegisterPath, account))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "passwords do not match")
	assert.Contains(t, rec.Body.String(), `value="Lerato"`)
	assert.Zero(t, f.backend.Count(http.MethodPost, "/auth/register"))

	account.Set("confirmPassword", "Kx9!plm2Q")
	rec = f.do(newForm(http.MethodPost, routes.RegisterPath, account))
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, routes.LoginPath, rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "0825551234", f.backend.Last(t, http.MethodPost, "/auth/register").JSON(t)["phoneNumber"])
	assert.False(t, f.sess.IsAuthenticated())

	// unknown emails get the same answer
	rec = f.do(newForm(http.MethodPost, routes.ForgotPasswordPath, url.Values{"email": {"ghost@school.test"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = f.do(newRequest(http.MethodGet, routes.ForgotPasswordPath))
	assert.Contains(t, rec.Body.String(), "If an account exists for this email, a password reset link has been sent.")

	rec = f.do(newForm(http.MethodPost, routes.ResetPasswordPath, url.Values{
		"token": {"reset-tok"}, "password": {"Kx9!plm2Q"}, "confirmPassword": {"Kx9!plm2Q"},
	}))
	assert.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "reset-tok", f.backend.Last(t, http.MethodPost, "/auth/reset-password").JSON(t)["token"])
}

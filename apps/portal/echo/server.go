// Package echoportal is the portal chrome: it renders the route table around the session store.
package echoportal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/identity"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/otp"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/fs"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/firebase"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
)

type (
	// AvatarUploader stores a profile picture and returns its public URL.
	AvatarUploader interface {
		UploadAvatar(ctx context.Context, uid string, r io.Reader, contentType string) (string, error)
	}

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Session    *session.Store
		Identity   identity.Provider
		Routes     *routes.Table
		Redirector *routes.Redirector
		Toasts     *notify.Toasts
		Poller     *notify.Poller
		Avatars    AvatarUploader // optional
	}

	Server struct {
		*http.Server
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal

		ctx    context.Context // outlives requests; cancelled by Shutdown
		cancel context.CancelFunc

		flowMu  sync.Mutex
		flow    *otp.Flow
		captcha *firebase.Recaptcha

		pollMu   sync.Mutex
		pollStop context.CancelFunc
	}
)

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}
	if deps.Routes == nil {
		deps.Routes = routes.Default()
	}
	if deps.Redirector == nil {
		deps.Redirector = routes.NewRedirector()
	}
	if deps.Toasts == nil {
		deps.Toasts = notify.NewToasts(deps.Logger)
	}

	r, err := newRenderer(fs.Templates())
	if err != nil {
		return nil, errors.Wrap(err, "loading templates")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.Server = &http.Server{Addr: deps.Conf.Server.Host, Handler: s.app}
	s.app.Renderer = r
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
				s.deps.Logger.Info(fmt.Sprintf("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency))
				return nil
			},
		}))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.followNavigation, s.syncPoller)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/session", s.sessionInfo)

	// auth forms
	s.app.POST(routes.LoginPath, s.phoneLogin)
	s.app.POST(routes.AdminLoginPath, s.adminLogin)
	s.app.POST(routes.SuperAdminLoginPath, s.superAdminLogin)
	s.app.POST(routes.RegisterPath, s.register)
	s.app.POST(routes.ForgotPasswordPath, s.forgotPassword)
	s.app.POST(routes.ResetPasswordPath, s.resetPassword)
	s.app.POST("/logout", s.logout)

	// authed forms
	s.app.POST(routes.ProfilePath, s.updateProfile, s.requireSession)
	s.app.POST(routes.ProfilePath+"/avatar", s.uploadAvatar, s.requireSession)

	// every page goes through the route table
	s.app.GET("/*", s.page, s.guard)
}

// Start restores the persisted session in the background and serves until shut down.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	go s.deps.Session.Init(s.ctx)

	s.deps.Logger.Info(fmt.Sprintf("portal listening on %s", s.Addr))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// Shutdown stops the poller and the current OTP flow, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	s.stopPoller()
	s.closeFlow()
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

package echoportal

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/nav"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
)

const (
	ctxRouteKey = "route"
	ctxUserKey  = "user"

	loadingRefresh = 1 // seconds
)

// followNavigation honours a navigation forced by the backend client (the 401 teardown).
// A page request is redirected; anything else sees it on its next page request.
func (s *Server) followNavigation(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if ctx.Request().Method == http.MethodGet && !wantsJSON(ctx) {
			if to, ok := s.deps.Redirector.Take(); ok && !samePath(to, ctx.Request().URL.Path) {
				return ctx.Redirect(http.StatusFound, to)
			}
		}
		return next(ctx)
	}
}

// syncPoller runs the unread count poller exactly while the session is authenticated.
func (s *Server) syncPoller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		err := next(ctx)
		if s.deps.Poller == nil {
			return err
		}
		if s.deps.Session.IsAuthenticated() {
			s.startPoller()
		} else {
			s.stopPoller()
		}
		return err
	}
}

func (s *Server) startPoller() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.pollStop != nil || s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.pollStop = cancel
	s.deps.Poller.Start(ctx)
}

func (s *Server) stopPoller() {
	s.pollMu.Lock()
	stop := s.pollStop
	s.pollStop = nil
	s.pollMu.Unlock()

	if stop != nil {
		stop()
		s.deps.Poller.Wait()
	}
}

// guard resolves the route and enforces what its layout requires:
// the loading view while the session is restored, a session for protected routes
// and none for the sign-in pages.
func (s *Server) guard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		route, redirect := s.deps.Routes.Resolve(ctx.Request().URL.Path)
		if redirect != "" {
			return ctx.Redirect(http.StatusFound, redirect)
		}

		sess := s.deps.Session
		if sess.Loading() {
			v := s.view(ctx, route)
			v.Title = "Loading"
			v.Layout = routes.LayoutAuth
			v.Refresh = loadingRefresh
			return ctx.Render(http.StatusOK, pageLoading, v)
		}

		authed := sess.IsAuthenticated()
		switch {
		case route.Protected && !authed:
			return ctx.Redirect(http.StatusFound, routes.LoginPath)
		case isSignInPage(route.Path) && authed:
			return ctx.Redirect(http.StatusFound, routes.DashboardPath)
		}

		if route.Protected {
			if err := sess.EnsureFresh(ctx.Request().Context()); err != nil {
				s.deps.Logger.Warn("refreshing session token", err)
			}
			// a refresh answered with 401 ends the session
			if !sess.IsAuthenticated() {
				s.deps.Redirector.Take()
				return ctx.Redirect(http.StatusFound, routes.LoginPath)
			}
			ctx.Set(ctxUserKey, sess.User())
		}

		ctx.Set(ctxRouteKey, route)
		return next(ctx)
	}
}

// requireSession protects form endpoints; pages are protected by guard.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !s.deps.Session.IsAuthenticated() {
			return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
		}
		ctx.Set(ctxUserKey, s.deps.Session.User())
		return next(ctx)
	}
}

// view builds the common page data. Toasts are drained: each is shown once.
func (s *Server) view(ctx echo.Context, route routes.Route) *View {
	v := &View{
		AppName: s.deps.Conf.AppName,
		Title:   route.Title,
		Path:    strings.ToLower(ctx.Request().URL.Path),
		Layout:  route.Layout,
		Toasts:  s.deps.Toasts.Drain(),
		Fields:  map[string]string{},
		Form:    map[string]string{},
	}
	if v.Layout == "" {
		v.Layout = routes.LayoutAuth
	}
	if route.Protected {
		v.User = s.deps.Session.User()
		v.Nav = nav.ItemsFor(v.User)
		if s.deps.Poller != nil {
			v.Unread = s.deps.Poller.Unread()
		}
	}
	return v
}

func isSignInPage(path string) bool {
	switch path {
	case routes.LoginPath, routes.AdminLoginPath, routes.SuperAdminLoginPath:
		return true
	}
	return false
}

func samePath(a, b string) bool {
	norm := func(p string) string { return "/" + strings.Trim(strings.ToLower(p), "/") }
	return norm(a) == norm(b)
}

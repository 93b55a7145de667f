package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/nav"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
)

type (
	credentialsPage struct {
		Action string
	}

	registerPage struct {
		Roles []string
	}

	dashboardPage struct {
		Variant nav.Dashboard
	}

	// sessionJSON is the body of GET /session.
	sessionJSON struct {
		State     session.State    `json:"state"`
		User      *session.Profile `json:"user"`
		Nav       []nav.NavItem    `json:"nav"`
		Dashboard nav.Dashboard    `json:"dashboard,omitempty"`
		Unread    int              `json:"unread"`
	}
)

// page renders the route resolved by guard.
func (s *Server) page(ctx echo.Context) error {
	route, ok := ctx.Get(ctxRouteKey).(routes.Route)
	if !ok {
		return echo.ErrNotFound
	}
	v := s.view(ctx, route)
	if route.Protected && v.User == nil {
		// torn down since guard ran
		s.deps.Redirector.Take()
		return ctx.Redirect(http.StatusFound, routes.LoginPath)
	}

	switch route.Path {
	case routes.LoginPath:
		// a fresh visit starts a new sign-in
		s.resetFlow()
		return s.renderLogin(ctx, v)
	case routes.AdminLoginPath, routes.SuperAdminLoginPath:
		v.Data = credentialsPage{Action: route.Path}
		return ctx.Render(http.StatusOK, pageCredentialsLogin, v)
	case routes.RegisterPath:
		v.Data = registerPage{Roles: session.RegistrationRoles}
		return ctx.Render(http.StatusOK, pageRegister, v)
	case routes.ForgotPasswordPath:
		return ctx.Render(http.StatusOK, pageForgotPassword, v)
	case routes.ResetPasswordPath:
		v.Form["token"] = ctx.QueryParam("token")
		return ctx.Render(http.StatusOK, pageResetPassword, v)
	case routes.CatchAll:
		return ctx.Render(http.StatusNotFound, pageNotFound, v)
	case routes.DashboardPath:
		v.Data = dashboardPage{Variant: nav.DashboardFor(v.User.Role)}
		return ctx.Render(http.StatusOK, pageDashboard, v)
	case routes.ProfilePath:
		v.Form = profileForm(v.User)
		return ctx.Render(http.StatusOK, pageProfile, v)
	default:
		return ctx.Render(http.StatusOK, pageScreen, v)
	}
}

func (s *Server) sessionInfo(ctx echo.Context) error {
	sess := s.deps.Session
	usr := sess.User()
	res := sessionJSON{
		State: sess.State(),
		User:  usr,
		Nav:   nav.ItemsFor(usr),
	}
	if usr != nil {
		res.Dashboard = nav.DashboardFor(usr.Role)
	}
	if s.deps.Poller != nil {
		res.Unread = s.deps.Poller.Unread()
	}
	return ctx.JSON(http.StatusOK, res)
}

func profileForm(p *session.Profile) map[string]string {
	if p == nil {
		return map[string]string{}
	}
	return map[string]string{
		"name":        p.Name,
		"lastName":    p.LastName,
		"displayName": p.DisplayName,
		"email":       p.Email,
		"phoneNumber": p.PhoneNumber,
	}
}

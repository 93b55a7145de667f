package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/otp"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/firebase"
)

type loginPage struct {
	Step  otp.Step
	Phone string
}

// =========================================================================
// Phone sign-in

// currentFlow returns the sign-in in progress, starting one if needed.
func (s *Server) currentFlow() (*otp.Flow, *firebase.Recaptcha) {
	s.flowMu.Lock()
	defer s.flowMu.Unlock()
	if s.flow == nil {
		s.captcha = firebase.NewRecaptcha()
		s.flow = otp.NewFlow(s.deps.Identity, s.captcha, s.deps.Logger)
	}
	return s.flow, s.captcha
}

// closeFlow releases the current flow and its captcha verifier.
func (s *Server) closeFlow() {
	s.flowMu.Lock()
	flow := s.flow
	s.flow, s.captcha = nil, nil
	s.flowMu.Unlock()

	if flow != nil {
		flow.Close()
	}
}

func (s *Server) resetFlow() {
	s.closeFlow()
	s.currentFlow()
}

func (s *Server) phoneLogin(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	flow, captcha := s.currentFlow()

	switch ctx.FormValue("action") {
	case "send":
		flow.SetPhone(ctx.FormValue("phoneNumber"))
		if token := ctx.FormValue("recaptchaToken"); token != "" {
			if err := captcha.SetToken(token); err != nil {
				s.deps.Logger.Warn("setting captcha token", err)
			}
		}
		_ = flow.SendCode(reqCtx) // the flow keeps the message to show

	case "verify":
		flow.SetCode(ctx.FormValue("otp"))
		if _, err := flow.Verify(reqCtx); err != nil {
			break
		}
		proof, _ := flow.Proof()
		if _, err := s.deps.Session.Login(reqCtx, proof); err != nil {
			// the login form shows the failure itself
			s.deps.Redirector.Take()
			flow.Fail(userMessage(err))
			break
		}
		s.closeFlow()
		return ctx.Redirect(http.StatusSeeOther, routes.DashboardPath)

	case "back":
		flow.Back()

	default:
		return errUnknownAction
	}

	route, _ := s.deps.Routes.Resolve(routes.LoginPath)
	return s.renderLogin(ctx, s.view(ctx, route))
}

func (s *Server) renderLogin(ctx echo.Context, v *View) error {
	flow, _ := s.currentFlow()
	v.Data = loginPage{Step: flow.Step(), Phone: flow.Phone()}
	v.Error = flow.Error()
	code := http.StatusOK
	if v.Error != "" {
		code = http.StatusUnprocessableEntity
	}
	return ctx.Render(code, pageLogin, v)
}

// =========================================================================
// Email and password sign-in

func (s *Server) adminLogin(ctx echo.Context) error {
	creds := session.AdminCredentials{
		Email:    ctx.FormValue("email"),
		Password: ctx.FormValue("password"),
	}
	return s.credentialsLogin(ctx, routes.AdminLoginPath, creds, creds.Email)
}

func (s *Server) superAdminLogin(ctx echo.Context) error {
	creds := session.SuperAdminCredentials{
		Email:    ctx.FormValue("email"),
		Password: ctx.FormValue("password"),
	}
	return s.credentialsLogin(ctx, routes.SuperAdminLoginPath, creds, creds.Email)
}

func (s *Server) credentialsLogin(ctx echo.Context, path string, proof session.LoginProof, email string) error {
	if _, err := s.deps.Session.Login(ctx.Request().Context(), proof); err != nil {
		// a rejected login must stay on its own form
		s.deps.Redirector.Take()

		route, _ := s.deps.Routes.Resolve(path)
		v := s.view(ctx, route)
		v.Data = credentialsPage{Action: path}
		v.Error = userMessage(err)
		v.Fields = fieldErrors(err)
		v.Form["email"] = email
		return ctx.Render(http.StatusUnprocessableEntity, pageCredentialsLogin, v)
	}
	return ctx.Redirect(http.StatusSeeOther, routes.DashboardPath)
}

func (s *Server) logout(ctx echo.Context) error {
	s.deps.Session.Logout(ctx.Request().Context())
	s.deps.Redirector.Take()
	return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
}

// =========================================================================
// Registration and password reset

func (s *Server) register(ctx echo.Context) error {
	acc := session.NewAccount{
		Name:            ctx.FormValue("name"),
		LastName:        ctx.FormValue("lastName"),
		Email:           ctx.FormValue("email"),
		PhoneNumber:     ctx.FormValue("phoneNumber"),
		Password:        ctx.FormValue("password"),
		ConfirmPassword: ctx.FormValue("confirmPassword"),
		Role:            ctx.FormValue("role"),
	}
	if err := s.deps.Session.Register(ctx.Request().Context(), acc); err != nil {
		route, _ := s.deps.Routes.Resolve(routes.RegisterPath)
		v := s.view(ctx, route)
		v.Data = registerPage{Roles: session.RegistrationRoles}
		v.Error = userMessage(err)
		v.Fields = fieldErrors(err)
		v.Form = map[string]string{
			"name":        acc.Name,
			"lastName":    acc.LastName,
			"email":       acc.Email,
			"phoneNumber": acc.PhoneNumber,
			"role":        acc.Role,
		}
		return ctx.Render(http.StatusUnprocessableEntity, pageRegister, v)
	}
	return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
}

func (s *Server) forgotPassword(ctx echo.Context) error {
	email := ctx.FormValue("email")
	if err := s.deps.Session.RequestPasswordReset(ctx.Request().Context(), email); err != nil {
		route, _ := s.deps.Routes.Resolve(routes.ForgotPasswordPath)
		v := s.view(ctx, route)
		v.Error = userMessage(err)
		v.Fields = fieldErrors(err)
		v.Form["email"] = email
		return ctx.Render(http.StatusUnprocessableEntity, pageForgotPassword, v)
	}
	return ctx.Redirect(http.StatusSeeOther, routes.ForgotPasswordPath)
}

func (s *Server) resetPassword(ctx echo.Context) error {
	rp := session.ResetPassword{
		Token:           ctx.FormValue("token"),
		Password:        ctx.FormValue("password"),
		ConfirmPassword: ctx.FormValue("confirmPassword"),
	}
	if err := s.deps.Session.ResetPassword(ctx.Request().Context(), rp); err != nil {
		route, _ := s.deps.Routes.Resolve(routes.ResetPasswordPath)
		v := s.view(ctx, route)
		v.Error = userMessage(err)
		v.Fields = fieldErrors(err)
		v.Form["token"] = rp.Token
		return ctx.Render(http.StatusUnprocessableEntity, pageResetPassword, v)
	}
	return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
}

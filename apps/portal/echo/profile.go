package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
)

const maxAvatarSize = 5 << 20

func (s *Server) updateProfile(ctx echo.Context) error {
	patch := session.ProfilePatch{
		Name:        ctx.FormValue("name"),
		LastName:    ctx.FormValue("lastName"),
		DisplayName: ctx.FormValue("displayName"),
		Email:       ctx.FormValue("email"),
		PhoneNumber: ctx.FormValue("phoneNumber"),
	}
	if _, err := s.deps.Session.UpdateUserProfile(ctx.Request().Context(), patch); err != nil {
		if !s.deps.Session.IsAuthenticated() {
			return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
		}
		return s.renderProfileError(ctx, err, map[string]string{
			"name":        patch.Name,
			"lastName":    patch.LastName,
			"displayName": patch.DisplayName,
			"email":       patch.Email,
			"phoneNumber": patch.PhoneNumber,
		})
	}
	return ctx.Redirect(http.StatusSeeOther, routes.ProfilePath)
}

// uploadAvatar stores the picture and saves its URL on the profile.
func (s *Server) uploadAvatar(ctx echo.Context) error {
	if s.deps.Avatars == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "profile pictures are not available")
	}
	fh, err := ctx.FormFile("avatar")
	if err != nil {
		return errNoAvatar
	}
	if fh.Size > maxAvatarSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "picture must be smaller than 5MB")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded avatar")
	}
	defer f.Close()

	usr := s.deps.Session.User()
	if usr == nil {
		return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
	}

	reqCtx := ctx.Request().Context()
	url, err := s.deps.Avatars.UploadAvatar(reqCtx, string(usr.ID), f, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		s.deps.Logger.Error("uploading avatar", err, usr)
		s.deps.Toasts.Error("Failed to upload picture. Please try again.")
		return ctx.Redirect(http.StatusSeeOther, routes.ProfilePath)
	}
	if _, err = s.deps.Session.UpdateUserProfile(reqCtx, session.ProfilePatch{PhotoURL: url}); err != nil {
		if !s.deps.Session.IsAuthenticated() {
			return ctx.Redirect(http.StatusSeeOther, routes.LoginPath)
		}
		return s.renderProfileError(ctx, err, profileForm(usr))
	}
	return ctx.Redirect(http.StatusSeeOther, routes.ProfilePath)
}

func (s *Server) renderProfileError(ctx echo.Context, err error, form map[string]string) error {
	route, _ := s.deps.Routes.Resolve(routes.ProfilePath)
	v := s.view(ctx, route)
	v.Error = userMessage(err)
	v.Fields = fieldErrors(err)
	v.Form = form
	return ctx.Render(http.StatusUnprocessableEntity, pageProfile, v)
}

package echoportal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/apiclient"
)

var (
	errUnknownAction = echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	errNoAvatar      = echo.NewHTTPError(http.StatusBadRequest, "no picture uploaded")
)

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler that renders the error page, or JSON for JSON clients.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = fmt.Sprint(origErr.Message)
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = userMessage(origErr)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)

			args := []interface{}{errors.Wrap(err, message)}
			if usr, ok := ctx.Get(ctxUserKey).(*session.Profile); ok && usr != nil {
				args = append(args, usr)
			}
			logger.Error(message, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		switch {
		case ctx.Request().Method == http.MethodHead: // Issue #608
			err = ctx.NoContent(code)
		case wantsJSON(ctx):
			err = ctx.JSON(code, echo.Map{"error": message})
		case code == http.StatusNotFound:
			err = ctx.Render(code, pageNotFound, &View{Title: "Not Found", Layout: routes.LayoutAuth})
		default:
			err = ctx.Render(code, pageError, &View{Title: "Error", Layout: routes.LayoutAuth, Error: message})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

func wantsJSON(ctx echo.Context) bool {
	return strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		ctx.Request().URL.Path == "/session"
}

// userMessage is the text shown next to a form for err.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	if vErr, ok := core.AsValidationError(err); ok {
		if vErr.Err != nil {
			return vErr.Err.Error()
		}
		if len(vErr.Fields) > 0 {
			return vErr.Fields[0].Error
		}
	}
	var aErr *session.AuthError
	if errors.As(err, &aErr) {
		return aErr.Message
	}
	return apiclient.Message(err)
}

// fieldErrors is the per-field messages of a validation error, if any.
func fieldErrors(err error) map[string]string {
	if vErr, ok := core.AsValidationError(err); ok {
		return vErr.FieldMap()
	}
	return map[string]string{}
}

package echoportal

import (
	"html/template"
	"io"
	iofs "io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/nav"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/fs"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
)

// page template names (file names under pages/ without the extension)
const (
	pageLogin            = "login"
	pageCredentialsLogin = "credentials_login"
	pageRegister         = "register"
	pageForgotPassword   = "forgot_password"
	pageResetPassword    = "reset_password"
	pageNotFound         = "not_found"
	pageError            = "error"
	pageLoading          = "loading"
	pageDashboard        = "dashboard"
	pageProfile          = "profile"
	pageScreen           = "screen"
)

// View is what every page template receives.
type View struct {
	AppName string
	Title   string
	Path    string
	Layout  routes.Layout
	Refresh int // seconds; 0 disables the meta refresh

	User   *session.Profile
	Nav    []nav.NavItem
	Unread int
	Toasts []notify.Toast

	Error  string
	Fields map[string]string
	Form   map[string]string
	Data   interface{}
}

// renderer executes a page inside the layout named by its View.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer(files iofs.FS) (*renderer, error) {
	base, err := template.ParseFS(files, fs.LayoutsGlob)
	if err != nil {
		return nil, errors.Wrap(err, "parsing layouts")
	}

	entries, err := iofs.ReadDir(files, fs.PagesDir)
	if err != nil {
		return nil, errors.Wrap(err, "listing pages")
	}
	r := &renderer{pages: make(map[string]*template.Template, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".html" {
			continue
		}
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if t, err = t.ParseFS(files, path.Join(fs.PagesDir, entry.Name())); err != nil {
			return nil, errors.Wrapf(err, "parsing page %s", entry.Name())
		}
		r.pages[strings.TrimSuffix(entry.Name(), ".html")] = t
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	v, ok := data.(*View)
	if !ok {
		return errors.Errorf("template %q: unexpected data %T", name, data)
	}
	layout := v.Layout
	if layout == "" {
		layout = routes.LayoutAuth
	}
	return t.ExecuteTemplate(w, string(layout), v)
}

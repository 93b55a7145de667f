// Package routes declares which paths are public or protected, the layout that wraps them and the legacy redirects.
package routes

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

type Layout string

const (
	LayoutAuth Layout = "auth"
	LayoutMain Layout = "main"
)

const (
	LoginPath           = "/login"
	AdminLoginPath      = "/admin/login"
	SuperAdminLoginPath = "/superadmin/login"
	RegisterPath        = "/register"
	ForgotPasswordPath  = "/forgot-password"
	ResetPasswordPath   = "/reset-password"
	DashboardPath       = "/dashboard"
	ProfilePath         = "/profile"
	CatchAll            = "*"
)

type Route struct {
	Path      string
	Title     string
	Layout    Layout
	Protected bool
}

// Table is the immutable route declaration. Access control is not its concern.
type Table struct {
	routes    map[string]Route
	redirects map[string]string
	ordered   []Route
}

var (
	publicRoutes = []Route{
		{Path: LoginPath, Title: "Login"},
		{Path: AdminLoginPath, Title: "Admin Login"},
		{Path: SuperAdminLoginPath, Title: "Super Admin Login"},
		{Path: RegisterPath, Title: "Register"},
		{Path: ForgotPasswordPath, Title: "Forgot Password"},
		{Path: ResetPasswordPath, Title: "Reset Password"},
		{Path: CatchAll, Title: "Not Found"},
	}

	protectedRoutes = []Route{
		{Path: DashboardPath, Title: "Dashboard"},
		{Path: ProfilePath, Title: "Profile"},
		{Path: "/calendar", Title: "Calendar"},
		{Path: "/messages", Title: "Messages"},
		{Path: "/announcements", Title: "Announcements"},

		{Path: "/admin/users", Title: "Users"},
		{Path: "/admin/grades", Title: "Grades"},
		{Path: "/admin/subjects", Title: "Subjects"},
		{Path: "/admin/attendance", Title: "Attendance"},
		{Path: "/admin/reports", Title: "Reports"},

		{Path: "/teacher/classes", Title: "My Classes"},
		{Path: "/teacher/attendance", Title: "Attendance"},
		{Path: "/teacher/grades", Title: "Grades"},
		{Path: "/teacher/resources", Title: "Resources"},

		{Path: "/parent/children", Title: "My Children"},
		{Path: "/parent/grades", Title: "Grades"},
		{Path: "/parent/attendance", Title: "Attendance"},

		{Path: "/student/grades", Title: "My Grades"},
		{Path: "/student/subjects", Title: "Subjects"},
		{Path: "/student/resources", Title: "Resources"},

		{Path: "/superadmin/schools", Title: "Schools"},
		{Path: "/superadmin/admins", Title: "Administrators"},
	}

	legacyRedirects = map[string]string{
		"/":           DashboardPath,
		"/attendance": "/teacher/attendance",
		"/grades":     "/teacher/grades",
		"/resources":  "/teacher/resources",
		"/users":      "/admin/users",
		"/subjects":   "/admin/subjects",
	}
)

// NewTable builds a table from disjoint public and protected sets.
func NewTable(public, protected []Route, redirects map[string]string) (*Table, error) {
	t := &Table{
		routes:    make(map[string]Route, len(public)+len(protected)),
		redirects: make(map[string]string, len(redirects)),
	}
	add := func(r Route, protectedRoute bool) error {
		r.Path = normalize(r.Path)
		if prev, ok := t.routes[r.Path]; ok {
			if prev.Protected != protectedRoute {
				return errors.Errorf("path %q is both public and protected", r.Path)
			}
			return errors.Errorf("path %q declared twice", r.Path)
		}
		r.Protected = protectedRoute
		if protectedRoute {
			r.Layout = LayoutMain
		} else {
			r.Layout = LayoutAuth
		}
		t.routes[r.Path] = r
		t.ordered = append(t.ordered, r)
		return nil
	}
	for _, r := range public {
		if err := add(r, false); err != nil {
			return nil, err
		}
	}
	for _, r := range protected {
		if err := add(r, true); err != nil {
			return nil, err
		}
	}
	for from, to := range redirects {
		from, to = normalize(from), normalize(to)
		if _, ok := t.routes[from]; ok {
			return nil, errors.Errorf("redirect source %q is also a route", from)
		}
		if _, ok := t.routes[to]; !ok {
			return nil, errors.Errorf("redirect target %q is not a route", to)
		}
		t.redirects[from] = to
	}
	return t, nil
}

// Default returns the portal's route table.
func Default() *Table {
	t, err := NewTable(publicRoutes, protectedRoutes, legacyRedirects)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve finds the route for path. Unknown paths resolve to the catch-all.
// A non-empty redirect means the caller must navigate there instead.
func (t *Table) Resolve(path string) (r Route, redirect string) {
	path = normalize(path)
	if to, ok := t.redirects[path]; ok {
		return t.routes[to], to
	}
	if r, ok := t.routes[path]; ok && r.Path != CatchAll {
		return r, ""
	}
	return t.routes[CatchAll], ""
}

func (t *Table) IsProtected(path string) bool {
	r, _ := t.Resolve(path)
	return r.Protected
}

// Routes returns the declared routes, public first.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Redirects returns the redirect sources in lexical order.
func (t *Table) Redirects() []string {
	out := make([]string, 0, len(t.redirects))
	for from := range t.redirects {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

func (t *Table) RedirectTarget(from string) (string, bool) {
	to, ok := t.redirects[normalize(from)]
	return to, ok
}

func normalize(path string) string {
	if path == CatchAll {
		return path
	}
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	return strings.ToLower(path)
}

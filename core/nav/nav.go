// Package nav maps a role to its sidebar items and dashboard.
package nav

import (
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
)

type Role int

const (
	Unknown Role = iota
	Admin
	Teacher
	Parent
	Student
	SuperAdmin
)

var roleNames = map[string]Role{
	"admin":         Admin,
	"administrator": Admin,
	"teacher":       Teacher,
	"parent":        Parent,
	"student":       Student,
	"superadmin":    SuperAdmin,
}

// ParseRole accepts the normalized role strings; anything else is Unknown.
func ParseRole(s string) Role {
	return roleNames[core.CleanString(s, true)]
}

func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Teacher:
		return "teacher"
	case Parent:
		return "parent"
	case Student:
		return "student"
	case SuperAdmin:
		return "superadmin"
	default:
		return "unknown"
	}
}

type NavItem struct {
	Path  string `json:"path"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
}

var (
	dashboardItem     = NavItem{Path: "/dashboard", Icon: "dashboard", Label: "Dashboard"}
	calendarItem      = NavItem{Path: "/calendar", Icon: "calendar", Label: "Calendar"}
	messagesItem      = NavItem{Path: "/messages", Icon: "mail", Label: "Messages"}
	announcementsItem = NavItem{Path: "/announcements", Icon: "campaign", Label: "Announcements"}

	roleItems = map[Role][]NavItem{
		Admin: {
			{Path: "/admin/users", Icon: "people", Label: "Users"},
			{Path: "/admin/grades", Icon: "grade", Label: "Grades"},
			{Path: "/admin/subjects", Icon: "book", Label: "Subjects"},
			{Path: "/admin/attendance", Icon: "check", Label: "Attendance"},
			{Path: "/admin/reports", Icon: "assessment", Label: "Reports"},
		},
		Teacher: {
			{Path: "/teacher/classes", Icon: "class", Label: "My Classes"},
			{Path: "/teacher/attendance", Icon: "check", Label: "Attendance"},
			{Path: "/teacher/grades", Icon: "grade", Label: "Grades"},
			{Path: "/teacher/resources", Icon: "folder", Label: "Resources"},
		},
		Parent: {
			{Path: "/parent/children", Icon: "family", Label: "My Children"},
			{Path: "/parent/grades", Icon: "grade", Label: "Grades"},
			{Path: "/parent/attendance", Icon: "check", Label: "Attendance"},
		},
		Student: {
			{Path: "/student/grades", Icon: "grade", Label: "My Grades"},
			{Path: "/student/subjects", Icon: "book", Label: "Subjects"},
			{Path: "/student/resources", Icon: "folder", Label: "Resources"},
		},
		SuperAdmin: {
			{Path: "/superadmin/schools", Icon: "school", Label: "Schools"},
			{Path: "/superadmin/admins", Icon: "admin", Label: "Administrators"},
		},
	}
)

// Items returns the ordered sidebar for role: the common items (students do not get the calendar)
// followed by the role's own items.
func Items(role string) []NavItem {
	r := ParseRole(role)

	items := make([]NavItem, 0, 4+len(roleItems[r]))
	items = append(items, dashboardItem)
	if r != Student {
		items = append(items, calendarItem)
	}
	items = append(items, messagesItem, announcementsItem)
	return append(items, roleItems[r]...)
}

// ItemsFor returns the sidebar of p; nothing when nobody is signed in.
func ItemsFor(p *session.Profile) []NavItem {
	if p == nil {
		return []NavItem{}
	}
	return Items(p.Role)
}

type Dashboard string

const (
	AdminDashboard      Dashboard = "admin"
	TeacherDashboard    Dashboard = "teacher"
	ParentDashboard     Dashboard = "parent"
	StudentDashboard    Dashboard = "student"
	SuperAdminDashboard Dashboard = "superadmin"
	DefaultDashboard    Dashboard = "default"
)

// DashboardFor picks the dashboard variant rendered at /dashboard.
func DashboardFor(role string) Dashboard {
	switch ParseRole(role) {
	case Admin:
		return AdminDashboard
	case Teacher:
		return TeacherDashboard
	case Parent:
		return ParentDashboard
	case Student:
		return StudentDashboard
	case SuperAdmin:
		return SuperAdminDashboard
	default:
		return DefaultDashboard
	}
}

// Package view defines the closed set of screens a portal can display and the
// role-based routing table that maps an authorization level to a screen.
package view

import (
	"fmt"
	"strings"

	"github.com/target/hotelease-portal/internal/domain/auth"
)

// State is the single enumerated value describing which screen is current.
type State string

const (
	Home                State = "home"
	Housekeeping        State = "housekeeping"
	Restaurant          State = "restaurant"
	Travel              State = "travel"
	AdminLogin          State = "admin-login"
	SuperadminDashboard State = "superadmin-dashboard"
	AdminDashboard      State = "admin-dashboard"
	StaffDashboard      State = "staff-dashboard"
	SignUp              State = "signup"
)

// All lists every valid state in display order.
var All = []State{
	Home, Housekeeping, Restaurant, Travel, AdminLogin,
	SuperadminDashboard, AdminDashboard, StaffDashboard, SignUp,
}

// Parse converts a client-supplied name into a State.
func Parse(s string) (State, error) {
	v := State(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown view: %q", s)
	}
	return v, nil
}

// Valid reports whether s is a member of the closed enumeration.
func (s State) Valid() bool {
	for _, v := range All {
		if v == s {
			return true
		}
	}
	return false
}

// IsDashboard reports whether s requires a valid session and role.
func (s State) IsDashboard() bool {
	switch s {
	case SuperadminDashboard, AdminDashboard, StaffDashboard:
		return true
	default:
		return false
	}
}

// IsAdminSurface reports whether s belongs to the administrative area.
// Logging out from an admin surface lands on AdminLogin under the auto policy.
func (s State) IsAdminSurface() bool {
	return s == AdminLogin || s.IsDashboard()
}

// DashboardRole returns the role a dashboard state is bound to.
// ok is false for non-dashboard states.
func (s State) DashboardRole() (auth.Role, bool) {
	switch s {
	case SuperadminDashboard:
		return auth.RoleSuperadmin, true
	case AdminDashboard:
		return auth.RoleAdmin, true
	case StaffDashboard:
		return auth.RoleStaff, true
	default:
		return "", false
	}
}

// ForRole routes an authenticated identity's role to its landing view.
// An unauthorized role lands on AdminLogin; guests go Home.
func ForRole(r auth.Role) State {
	switch r {
	case auth.RoleSuperadmin:
		return SuperadminDashboard
	case auth.RoleAdmin:
		return AdminDashboard
	case auth.RoleStaff:
		return StaffDashboard
	case auth.RoleUnauthorized:
		return AdminLogin
	default:
		return Home
	}
}

func (s State) String() string { return string(s) }

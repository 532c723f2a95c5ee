package guard

import (
	"strings"

	"github.com/agentstation/queuelink/pkg/session"
)

// Access is the kind of protection a route has.
type Access int

const (
	// Public routes render for everyone.
	Public Access = iota
	// GuestOnly routes render only for signed-out users, such as the login page.
	GuestOnly
	// Protected routes need a signed-in user holding one of Roles, if any.
	Protected
	// Unknown marks paths that match no route; they redirect home.
	Unknown
)

// Well-known paths.
const (
	HomePath  = "/"
	LoginPath = "/login"
)

// Route is one entry of the route table. A Pattern ending in "/*" matches
// the prefix and everything below it.
type Route struct {
	Pattern string
	Access  Access
	Roles   []session.Role
}

// Decide evaluates the route for s.
func (r Route) Decide(s session.Session) Decision {
	switch r.Access {
	case Public:
		return Allow
	case GuestOnly:
		if signedIn(s) {
			return RedirectToHome
		}
		return Allow
	case Protected:
		return Evaluate(s, r.Roles)
	default:
		return RedirectToHome
	}
}

func (r Route) matches(path string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Pattern
}

// Routes is an ordered route table. The first match wins.
type Routes struct {
	routes []Route
}

// NewRoutes builds a table from routes in match order.
func NewRoutes(routes ...Route) Routes {
	return Routes{routes: append([]Route(nil), routes...)}
}

// Staff is the role set allowed into the admin area.
var Staff = []session.Role{session.RoleStaff, session.RoleAdmin, session.RoleSuperAdmin}

// DefaultRoutes returns the citizen portal's route table.
func DefaultRoutes() Routes {
	return NewRoutes(
		Route{Pattern: "/", Access: Public},
		Route{Pattern: "/queue-status", Access: Public},
		Route{Pattern: "/login", Access: GuestOnly},
		Route{Pattern: "/register", Access: GuestOnly},
		Route{Pattern: "/book-appointment", Access: Protected},
		Route{Pattern: "/my-appointments", Access: Protected},
		Route{Pattern: "/profile", Access: Protected},
		Route{Pattern: "/admin/*", Access: Protected, Roles: Staff},
	)
}

// Match returns the route for path, or an Unknown route when none matches.
// Query strings and trailing slashes are ignored.
func (rs Routes) Match(path string) Route {
	path = normalize(path)
	for _, r := range rs.routes {
		if r.matches(path) {
			return r
		}
	}
	return Route{Pattern: path, Access: Unknown}
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

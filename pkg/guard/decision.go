// Package guard decides whether a view may render for the current session
// and keeps that decision current as the session changes.
package guard

import "github.com/agentstation/queuelink/pkg/session"

// Decision is the outcome of evaluating a route.
type Decision int

const (
	// Allow lets the view render.
	Allow Decision = iota
	// RedirectToLogin sends the user to sign in, remembering the requested path.
	RedirectToLogin
	// RedirectToHome sends the user home.
	RedirectToHome
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToHome:
		return "redirect_to_home"
	default:
		return "unknown"
	}
}

// Evaluate decides access to a protected view. An empty required set means
// any signed-in user; otherwise the session needs at least one of required.
//
// A session whose token is being refreshed keeps its access, so a
// proactive refresh does not bounce the user to the login page.
func Evaluate(s session.Session, required []session.Role) Decision {
	if !signedIn(s) {
		return RedirectToLogin
	}
	if len(required) == 0 || s.HasAnyRole(required...) {
		return Allow
	}
	return RedirectToHome
}

func signedIn(s session.Session) bool {
	return s.IsAuthenticated() || (s.Status == session.Refreshing && s.Token != "")
}

package queuelink

import (
	"github.com/agentstation/queuelink/pkg/guard"
)

// Compile-time interface check to ensure proper implementation.
var _ Navigation = (*client)(nil)

// Navigation gates views by session.
type Navigation interface {
	// Navigate requests a view. A refused request redirects through the
	// configured navigator and returns the reason
	Navigate(path string) guard.Decision

	// CurrentView returns the view being shown and the decision that put it there
	CurrentView() (string, guard.Decision)
}

// Navigate requests a view.
func (c *client) Navigate(path string) guard.Decision {
	return c.guard.Navigate(path)
}

// CurrentView returns the view being shown.
func (c *client) CurrentView() (string, guard.Decision) {
	return c.guard.Current()
}

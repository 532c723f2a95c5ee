package queuelink

import (
	"context"
	stderrors "errors"

	"github.com/agentstation/queuelink/internal/schedule"
	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/session"
)

// Compile-time interface check to ensure proper implementation.
var _ AutoRefresher = (*client)(nil)

// AutoRefresher provides controls for proactive token refresh.
type AutoRefresher interface {
	// AutoRefreshOn refreshes tokens shortly before they expire
	AutoRefreshOn() error

	// AutoRefreshOff stops proactive refresh
	AutoRefreshOff() error
}

// AutoRefreshOn schedules a refresh RefreshLead before the current token
// expires, and again after every sign-in or refresh.
func (c *client) AutoRefreshOn() error {
	if c.closed.Load() {
		return errors.ErrClosed
	}

	c.refreshMu.Lock()
	c.refreshEnabled = true
	c.refreshMu.Unlock()

	c.reschedule(c.Session())
	return nil
}

// AutoRefreshOff cancels any scheduled refresh.
func (c *client) AutoRefreshOff() error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.refreshEnabled = false
	c.refreshTask.Cancel()
	c.refreshTask = nil
	return nil
}

// reschedule follows the session: every authenticated snapshot replaces
// the pending refresh, anything else cancels it.
func (c *client) reschedule(s session.Session) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.refreshTask.Cancel()
	c.refreshTask = nil

	if !c.refreshEnabled || !s.IsAuthenticated() || s.TokenExpiry.IsZero() {
		return
	}

	delay := s.TokenExpiry.Sub(c.clock.Now()) - c.options.refreshLead
	if delay < constants.MinRefreshDelay {
		delay = constants.MinRefreshDelay
	}
	c.refreshTask = schedule.After(c.clock, delay, c.autoRefresh)

	c.logger.Debug().
		Dur("delay", delay).
		Time("expires_at", s.TokenExpiry).
		Msg("Token refresh scheduled")
}

// autoRefresh runs a scheduled refresh.
func (c *client) autoRefresh() {
	if c.closed.Load() {
		return
	}

	_, err := c.gateway.Refresh(context.Background())
	switch {
	case err == nil:
		c.logger.Debug().Msg("Token refreshed ahead of expiry")
	case stderrors.Is(err, errors.ErrSuperseded), stderrors.Is(err, errors.ErrNotAuthenticated):
		// signed out meanwhile
	default:
		c.logger.Warn().Err(err).Msg("Scheduled token refresh failed")
	}
}

package queuelink

import (
	"context"

	"github.com/agentstation/queuelink/pkg/session"
)

// Compile-time interface check to ensure proper implementation.
var _ Persistence = (*client)(nil)

// Persistence resumes a session saved by an earlier run.
type Persistence interface {
	// Restore re-validates the saved session and signs in with it
	Restore(ctx context.Context) (session.Session, error)
}

// Restore re-validates the saved session with the backend. A saved token
// that is expired or refused is discarded and the client stays Anonymous;
// only a failure to reach the backend or to read the file is returned, in
// which case the file is kept for the next attempt.
func (c *client) Restore(ctx context.Context) (session.Session, error) {
	if c.file == nil {
		return c.Session(), nil
	}

	persisted, ok, err := c.file.Load()
	if err != nil {
		return c.Session(), err
	}
	if !ok {
		return c.Session(), nil
	}

	s, err := c.gateway.Restore(ctx, persisted)
	if err != nil {
		return s, err
	}
	if !s.IsAuthenticated() {
		c.logger.Info().Str("path", c.file.Path()).Msg("Saved session is no longer valid")
		if err := c.file.Clear(); err != nil {
			return s, err
		}
	}
	return s, nil
}

// persist mirrors the session into the file: signed-in snapshots are
// saved, and the file is removed once a saved session ends.
func (c *client) persist(s session.Session) {
	switch {
	case s.IsAuthenticated():
		if err := c.file.Save(s); err != nil {
			c.logger.Warn().Err(err).Str("path", c.file.Path()).Msg("Failed to save session")
			return
		}
		c.saved.Store(true)
	case s.Status == session.Anonymous && c.saved.Load():
		if err := c.file.Clear(); err != nil {
			c.logger.Warn().Err(err).Str("path", c.file.Path()).Msg("Failed to remove saved session")
			return
		}
		c.saved.Store(false)
	}
}

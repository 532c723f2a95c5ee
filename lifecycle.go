package queuelink

// Close tears down the client: the event stream is closed, any scheduled
// refresh is cancelled and every observer is removed. The session itself is
// left as it is, so a saved session can be resumed later. Close is
// idempotent.
func (c *client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	_ = c.AutoRefreshOff()

	var err error
	if c.channel != nil {
		err = c.channel.Close()
	}
	c.guard.Close()
	for _, stop := range c.stops {
		stop()
	}
	c.stops = nil

	c.logger.Debug().Msg("Client closed")
	return err
}

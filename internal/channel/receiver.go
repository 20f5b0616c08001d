package channel

import (
	"errors"
	"time"
)

// receiveLoop owns the connection lifecycle: handshake, read and dispatch
// until the socket fails, back off on handshake failure, repeat until
// Disconnect.
func (c *Connection) receiveLoop() error {
	defer func() {
		c.bridge.Close()
		c.setState(StateClosed)
		c.logger.Info("channel closed")
	}()

	for c.running() {
		if !c.bridge.Connected() {
			if !c.handshake() {
				continue
			}
		}

		frame, err := c.bridge.Receive()
		if err != nil {
			if !c.running() {
				return nil
			}
			c.logger.Warn("connection lost", "error", err)
			c.bridge.Drop()
			continue
		}

		c.dispatch(frame)
	}
	return nil
}

// handshake dials once. On failure it sleeps for the next backoff delay
// (or until Disconnect) and returns false.
func (c *Connection) handshake() bool {
	c.setState(StateConnecting)

	err := c.bridge.Handshake(c.ctx, c.url, c.headerSnapshot())
	if err == nil {
		if !c.running() {
			return false
		}
		c.handshakes.Add(1)
		c.metrics.handshakesOK.Inc()
		c.backoff.Reset()
		c.logger.Info("channel connected")
		return true
	}

	if !c.running() || errors.Is(err, ErrClosed) {
		return false
	}

	c.handshakeFailures.Add(1)
	c.metrics.handshakesFailed.Inc()

	delay := c.backoff.Next()
	c.lastBackoff.Store(int64(delay))
	c.setState(StateBackoff)
	c.logger.Warn("handshake failed",
		"error", err,
		"attempt", c.backoff.Failures(),
		"retry_in", delay,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
	case <-timer.C:
	}
	return false
}

// dispatch decodes one frame and hands it to its callback. Malformed frames
// and failing callbacks are logged and skipped.
func (c *Connection) dispatch(frame []byte) {
	c.framesReceived.Add(1)
	c.metrics.framesReceived.Inc()

	env, err := Decode(frame)
	if err != nil {
		c.decodeFailures.Add(1)
		c.metrics.decodeFailures.Inc()
		c.logger.Warn("dropping malformed frame", "error", err, "size", len(frame))
		return
	}

	handled, err := c.registry.Dispatch(env)
	if err != nil {
		c.handlerFailures.Add(1)
		c.metrics.handlerFailures.Inc()
		c.logger.Error("callback failed",
			"type", env.Type,
			"action", env.Action,
			"error", err,
		)
		return
	}
	if !handled {
		c.unhandled.Add(1)
		c.logger.Debug("no callback for frame", "type", env.Type)
	}
}

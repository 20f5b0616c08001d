package channel

import (
	"errors"
	"time"
)

// sendLoop drains the outbound queue into the socket until Disconnect,
// then flushes what it can and closes the socket.
func (c *Connection) sendLoop() error {
	for c.running() {
		if !c.bridge.Connected() {
			// Leave frames queued until the receiver re-establishes the socket.
			select {
			case <-c.ctx.Done():
			case <-time.After(c.cfg.RetryInterval):
			}
			continue
		}

		frame, ok := c.queue.Pop(c.ctx, c.cfg.PollInterval)
		if !ok {
			continue
		}
		c.transmit(frame)
	}

	c.drain()
	return nil
}

// transmit writes one frame and applies the delivery mode on failure.
// A failed write also retires the socket, so the loop then waits for the
// receiver to redial before touching the queue again.
func (c *Connection) transmit(frame []byte) {
	defer c.metrics.queueDepth.Set(float64(c.queue.Len()))

	err := c.bridge.Send(frame)
	if err == nil {
		c.framesSent.Add(1)
		c.metrics.framesSent.Inc()
		return
	}

	// The socket went away while Pop was waiting. Nothing was written, so
	// the frame keeps its place at the head.
	if errors.Is(err, ErrNotConnected) {
		if !c.queue.PushFront(frame) {
			c.dropFrames(1)
		}
		return
	}

	c.sendFailures.Add(1)
	c.metrics.sendFailures.Inc()

	if c.cfg.Delivery == AtLeastOnce && c.queue.Push(frame) {
		c.logger.Warn("send failed, frame requeued",
			"error", err,
			"queued", c.queue.Len(),
		)
		return
	}

	c.dropFrames(1)
	c.logger.Warn("send failed, frame dropped", "error", err)
}

// drain flushes queued frames over the current socket for up to
// DrainTimeout, discards the rest, and closes the socket.
func (c *Connection) drain() {
	deadline := time.Now().Add(c.cfg.DrainTimeout)

	sent := 0
	for c.bridge.Connected() && time.Now().Before(deadline) {
		frame, ok := c.queue.TryPop()
		if !ok {
			break
		}
		if err := c.bridge.Send(frame); err != nil {
			if errors.Is(err, ErrNotConnected) {
				c.queue.PushFront(frame)
				break
			}
			c.sendFailures.Add(1)
			c.metrics.sendFailures.Inc()
			c.dropFrames(1)
			c.logger.Warn("send failed during drain", "error", err)
			break
		}
		c.framesSent.Add(1)
		c.metrics.framesSent.Inc()
		sent++
	}

	if rest := c.queue.Close(); len(rest) > 0 {
		c.dropFrames(len(rest))
		c.logger.Warn("discarding undelivered frames", "count", len(rest))
	}
	c.metrics.queueDepth.Set(0)

	if err := c.bridge.Close(); err != nil {
		c.logger.Debug("close socket", "error", err)
	}
	c.logger.Debug("sender stopped", "drained", sent)
}

func (c *Connection) dropFrames(n int) {
	c.framesDropped.Add(int64(n))
	c.metrics.framesDropped.Add(float64(n))
}

package playback

import (
	"github.com/osa030/crowdbox/internal/app/notification"
)

// startTickerLocked (re)starts the progress ticker and emits one progress
// message immediately. The ticker never calls the provider.
func (c *Controller) startTickerLocked() {
	c.stopTickerLocked()

	ticker := c.clock.Ticker(c.config.TickInterval)
	done := make(chan struct{})
	c.ticker = ticker
	c.tickerDone = done

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.tick(done)
			}
		}
	}()

	c.publishProgressLocked()
}

func (c *Controller) stopTickerLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickerDone)
	c.ticker = nil
	c.tickerDone = nil
}

func (c *Controller) tick(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A tick that raced with a restart belongs to the old ticker
	if c.tickerDone != done {
		return
	}
	c.publishProgressLocked()
}

// publishProgressLocked sends a progress-only message. Nothing is sent while
// idle, mid-transition or with no track.
func (c *Controller) publishProgressLocked() {
	if c.state != StatePlaying || c.session.Track == nil || c.closed {
		return
	}
	c.notifier.Publish(notification.ProgressNotification(c.session.Snapshot(c.clock.Now())))
}

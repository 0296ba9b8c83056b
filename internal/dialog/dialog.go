// Single-slot progress/result indicator shared by install, update and batch
// operations. Exactly one dialog exists; opening a new operation overwrites
// the previous state.

package dialog

import (
	"sync"
	"time"

	"github.com/astrbot-devs/console-go/internal/botapi"
)

// Status codes carried in dialog snapshots.
const (
	StatusLoading = 0
	StatusSuccess = 1
	StatusError   = 2
)

// Sticky disables the auto-reset timer; the user dismisses the dialog.
const Sticky = -1

// DefaultCloseMs is the auto-reset delay applied when a result is reported
// without an explicit timeout.
const DefaultCloseMs = 2000

// Snapshot is the externally visible dialog state.
type Snapshot struct {
	Show       bool   `json:"show"`
	Title      string `json:"title"`
	StatusCode int    `json:"status_code"`
	Result     string `json:"result"`
}

type publisher interface {
	Publish(eventType string, payload any)
}

// Controller owns the loading-dialog slot.
type Controller struct {
	mu    sync.Mutex
	state Snapshot
	timer *time.Timer
	hub   publisher
}

// New creates a controller. hub may be nil in tests.
func New(hub publisher) *Controller {
	return &Controller{hub: hub}
}

// SetLoading opens the dialog in the loading state with the given title,
// clearing any previous result.
func (c *Controller) SetLoading(title string) {
	c.mu.Lock()
	c.stopTimerLocked()
	c.state = Snapshot{Show: true, Title: title, StatusCode: StatusLoading}
	c.mu.Unlock()
	c.publish()
}

// SetTitle updates the title in place; batch checkout uses this to report
// progress after every item.
func (c *Controller) SetTitle(title string) {
	c.mu.Lock()
	c.state.Title = title
	c.mu.Unlock()
	c.publish()
}

// Result records the outcome of the running operation. A timeToCloseMs of
// Sticky leaves the dialog up until Reset is called; 0 uses the default.
func (c *Controller) Result(statusCode int, result any, timeToCloseMs int) {
	if timeToCloseMs == 0 {
		timeToCloseMs = DefaultCloseMs
	}

	c.mu.Lock()
	c.stopTimerLocked()
	c.state.StatusCode = statusCode
	c.state.Result = botapi.NormalizeMessage(result)
	if timeToCloseMs != Sticky {
		c.timer = time.AfterFunc(time.Duration(timeToCloseMs)*time.Millisecond, c.Reset)
	}
	c.mu.Unlock()
	c.publish()
}

// Reset clears the dialog back to the hidden idle state.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.state = Snapshot{}
	c.mu.Unlock()
	c.publish()
}

// Snapshot returns a copy of the current dialog state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) publish() {
	if c.hub != nil {
		c.hub.Publish("loading_dialog", c.Snapshot())
	}
}

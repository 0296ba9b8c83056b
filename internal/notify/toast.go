package notify

import (
	"sync"

	"github.com/astrbot-devs/console-go/internal/botapi"
)

// Toast severities understood by the frontend.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastPrimary = "primary"
	ToastInfo    = "info"
	ToastWarning = "warning"
)

// DefaultToastTimeout is applied when a caller passes no explicit timeout.
const DefaultToastTimeout = 3000

// Notifier is the toast sink boundary. Message may be anything; it is
// normalized to a displayable string before queueing.
type Notifier interface {
	Toast(message any, color string, timeToCloseMs int)
}

// Toast is one queued notification.
type Toast struct {
	Message   string `json:"message"`
	Color     string `json:"color"`
	TimeoutMs int    `json:"timeout_ms"`
	Closable  bool   `json:"closable"`
}

// Toaster queues toasts FIFO and mirrors each one to the websocket hub. The
// queue lets a late-connecting dashboard drain what it missed.
type Toaster struct {
	mu    sync.Mutex
	queue []Toast
	hub   *Hub
}

// NewToaster creates a toaster. A nil hub is allowed (queue only), which
// keeps tests free of websocket plumbing.
func NewToaster(hub *Hub) *Toaster {
	return &Toaster{hub: hub}
}

// Toast normalizes and enqueues a notification. A timeToCloseMs of 0 uses
// the default; negative means sticky (closable only by the user).
func (t *Toaster) Toast(message any, color string, timeToCloseMs int) {
	if timeToCloseMs == 0 {
		timeToCloseMs = DefaultToastTimeout
	}
	item := Toast{
		Message:   botapi.NormalizeMessage(message),
		Color:     color,
		TimeoutMs: timeToCloseMs,
		Closable:  true,
	}

	t.mu.Lock()
	t.queue = append(t.queue, item)
	t.mu.Unlock()

	if t.hub != nil {
		t.hub.Publish("toast", item)
	}
}

// Current returns the head of the queue without removing it.
func (t *Toaster) Current() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return Toast{}, false
	}
	return t.queue[0], true
}

// Shift removes the head of the queue.
func (t *Toaster) Shift() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) > 0 {
		t.queue = t.queue[1:]
	}
}

// Pending returns the number of queued toasts.
func (t *Toaster) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Package notify surfaces operation outcomes as toasts and polls the unread notification count.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
)

const defaultCapacity = 20

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Toast struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Toasts is a bounded queue of toasts drained by whoever renders them.
// When full, the oldest toast is dropped.
type Toasts struct {
	mu       sync.Mutex
	queue    []Toast
	capacity int
	logger   core.Logger
}

var _ core.Notifier = (*Toasts)(nil)

func NewToasts(logger core.Logger, capacity ...int) *Toasts {
	c := defaultCapacity
	if len(capacity) > 0 && capacity[0] > 0 {
		c = capacity[0]
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Toasts{capacity: c, logger: logger}
}

func (t *Toasts) Success(msg string) { t.push(KindSuccess, msg) }
func (t *Toasts) Error(msg string)   { t.push(KindError, msg) }
func (t *Toasts) Info(msg string)    { t.push(KindInfo, msg) }

func (t *Toasts) push(kind Kind, msg string) {
	t.logger.Debug(fmt.Sprintf("toast %s: %s", kind, msg))

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == t.capacity {
		t.queue = t.queue[1:]
	}
	t.queue = append(t.queue, Toast{Kind: kind, Message: msg, At: time.Now()})
}

// Drain returns the queued toasts, oldest first, and empties the queue.
func (t *Toasts) Drain() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.queue
	t.queue = nil
	return out
}

// Peek returns the queued toasts without consuming them.
func (t *Toasts) Peek() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.queue))
	copy(out, t.queue)
	return out
}

func (t *Toasts) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

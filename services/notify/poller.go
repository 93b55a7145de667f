package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
)

const (
	defaultPollInterval = 30 * time.Second
	unreadCountPath     = "/notifications/unread-count"
)

type (
	Getter interface {
		Get(ctx context.Context, path string, params map[string]string, out interface{}) error
	}

	// Session tells the poller whether there is anyone to poll for.
	Session interface {
		IsAuthenticated() bool
	}

	// Poller refreshes the unread notification count at a fixed interval while the session is authenticated.
	Poller struct {
		api      Getter
		session  Session
		interval time.Duration
		logger   core.Logger

		mu     sync.RWMutex
		unread int
		wg     sync.WaitGroup
	}
)

func NewPoller(api Getter, session Session, interval time.Duration, logger core.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Poller{api: api, session: session, interval: interval, logger: logger}
}

// Start polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.Poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll(ctx)
			}
		}
	}()
}

// Wait blocks until the polling goroutine has stopped.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// Poll fetches the unread count once. Anonymous sessions reset it to zero.
func (p *Poller) Poll(ctx context.Context) {
	if !p.session.IsAuthenticated() {
		p.setUnread(0)
		return
	}

	var res struct {
		Count       *int `json:"count"`
		UnreadCount *int `json:"unreadCount"`
	}
	if err := p.api.Get(ctx, unreadCountPath, nil, &res); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("polling unread notifications", err)
		}
		return
	}
	switch {
	case res.UnreadCount != nil:
		p.setUnread(*res.UnreadCount)
	case res.Count != nil:
		p.setUnread(*res.Count)
	}
}

func (p *Poller) Unread() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unread
}

func (p *Poller) setUnread(n int) {
	p.mu.Lock()
	p.unread = n
	p.mu.Unlock()
}

package telegram

import (
	"context"
	"log/slog"
	"time"
)

// Poller drives the long-poll intake loop, handing each decoded update to a
// sink. The sink runs on the poller goroutine; it is expected to dispatch
// work and return quickly.
type Poller struct {
	api         *API
	log         *slog.Logger
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewPoller builds a poller over api.
func NewPoller(api *API, log *slog.Logger) *Poller {
	return &Poller{
		api:         api,
		log:         log,
		pollTimeout: 30 * time.Second,
		retryDelay:  3 * time.Second,
	}
}

// Run polls until ctx is canceled. Transient transport errors back off and
// retry; poll timeouts are the normal idle case and loop immediately.
func (p *Poller) Run(ctx context.Context, sink func(context.Context, Update)) {
	var offset int64
	for {
		if ctx.Err() != nil {
			p.log.Info("poller stopped")
			return
		}
		updates, next, err := p.api.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("poller stopped")
				return
			}
			if IsPollTimeout(err) {
				continue
			}
			p.log.Warn("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				p.log.Info("poller stopped")
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}
		offset = next
		for _, u := range updates {
			sink(ctx, u)
		}
	}
}

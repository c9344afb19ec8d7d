package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ProbeMonitor derives connectivity by periodically issuing a HEAD
// request against a known endpoint. It exists for hosts without native
// connectivity events; hosts that have them should drive a
// ManualMonitor instead.
type ProbeMonitor struct {
	*ManualMonitor

	url      string
	interval time.Duration
	client   *http.Client

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewProbeMonitor creates a stopped ProbeMonitor probing url every
// interval. Call Start to begin probing.
func NewProbeMonitor(url string, interval time.Duration) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ProbeMonitor{
		ManualMonitor: NewManualMonitor(false),
		url:           url,
		interval:      interval,
		client:        &http.Client{Timeout: 10 * time.Second},
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the probe loop. An immediate probe runs before the
// first tick.
func (p *ProbeMonitor) Start(ctx context.Context) {
	go func() {
		defer close(p.done)

		p.SetOnline(p.probe(ctx))

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.SetOnline(p.probe(ctx))
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (p *ProbeMonitor) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

package connectivity

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Prober decides reachability by sending HEAD requests to a URL. Any HTTP
// response counts as online; only a failed exchange means offline.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	monitor  *Monitor
	log      zerolog.Logger
}

// NewProber creates a Prober feeding monitor. The probe timeout is the
// smaller of interval and five seconds.
func NewProber(url string, interval time.Duration, monitor *Monitor, log zerolog.Logger) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		monitor:  monitor,
		log:      log.With().Str("component", "prober").Logger(),
	}
}

// Probe performs a single check and records the result on the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	online := p.check(ctx)
	if online != p.monitor.Online() {
		p.log.Info().Bool("online", online).Str("url", p.url).Msg("connectivity changed")
	}
	p.monitor.Set(online)
	return online
}

func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.log.Error().Err(err).Msg("building probe request")
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Msg("probe failed")
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

// Run probes immediately and then on every interval until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

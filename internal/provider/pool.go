package provider

import (
	"log/slog"
	"sync"
	"time"
)

// Pool rotates round-robin over the configured endpoints. An endpoint
// that keeps failing is benched for a cooldown instead of being retried
// immediately; with a single endpoint the pool degenerates to always
// returning it.
type Pool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	current   int

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

type endpoint struct {
	url      string
	failures int
	benchedT time.Time
}

func NewPool(urls []string) *Pool {
	p := &Pool{
		maxFailures: 3,
		cooldown:    30 * time.Second,
		now:         time.Now,
	}
	for _, u := range urls {
		p.endpoints = append(p.endpoints, &endpoint{url: u})
	}
	return p
}

// Next returns the next usable endpoint. If every endpoint is benched
// the rotation continues anyway rather than failing the call outright.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.endpoints) == 0 {
		return ""
	}

	now := p.now()
	for range p.endpoints {
		e := p.endpoints[p.current%len(p.endpoints)]
		p.current++

		if e.failures < p.maxFailures || now.Sub(e.benchedT) > p.cooldown {
			return e.url
		}
	}

	e := p.endpoints[p.current%len(p.endpoints)]
	p.current++
	return e.url
}

func (p *Pool) ReportFailure(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.endpoints {
		if e.url != url {
			continue
		}
		e.failures++
		if e.failures >= p.maxFailures {
			e.benchedT = p.now()
			if e.failures == p.maxFailures {
				slog.Warn("provider endpoint benched", "endpoint", url, "failures", e.failures)
			}
		}
		return
	}
}

func (p *Pool) ReportSuccess(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.endpoints {
		if e.url == url {
			e.failures = 0
			return
		}
	}
}

// Package pool implements the Connection Pool (spec.md §4.1): per-URL
// cached handles for the three database families, with a single-flight
// preflight liveness probe on first insertion. Grounded on the
// teacher's pkg/database/client.go connection-setup style and on
// skeema-skeema's flavor-per-driver separation, generalized from "one
// Postgres connection" to three interchangeable kinds coalesced by
// golang.org/x/sync/singleflight.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
	"golang.org/x/sync/singleflight"
)

// Handle is a live connection to a target database. Concrete
// implementations live in mongo.go, sqla.go, sqlb.go.
type Handle interface {
	Kind() dbendpoint.Kind
	// Close releases the handle. The Pool contract does not require
	// callers to ever call this (spec.md §4.1 "Teardown is implicit");
	// it exists for tests and graceful shutdown.
	Close() error
}

// Dialer opens and preflights a new Handle for a raw URL.
type Dialer interface {
	Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error)
}

// ConnectionFailed wraps a preflight failure (spec.md §4.1, §7).
type ConnectionFailed struct {
	Reason error
}

func (e *ConnectionFailed) Error() string {
	return fmt.Sprintf("ConnectionFailed: %v", e.Reason)
}

func (e *ConnectionFailed) Unwrap() error { return e.Reason }

// Pool caches live handles keyed by raw URL string, one cache per kind.
// Concurrent first-acquisitions for the same URL are coalesced via
// singleflight so only one preflight probe runs (spec.md §4.1, §5, §9).
type Pool struct {
	dialers map[dbendpoint.Kind]Dialer
	mu      sync.RWMutex
	cache   map[dbendpoint.Kind]map[string]Handle
	group   singleflight.Group

	preflightTimeout time.Duration
}

// New creates a Pool with one Dialer registered per kind.
func New(dialers map[dbendpoint.Kind]Dialer, preflightTimeout time.Duration) *Pool {
	return &Pool{
		dialers:          dialers,
		cache:            make(map[dbendpoint.Kind]map[string]Handle),
		preflightTimeout: preflightTimeout,
	}
}

// Acquire returns a live handle for the endpoint, inferring kind from
// the URL scheme when ep.Kind is empty. Subsequent calls for an equal
// URL return the cached handle without re-probing (spec.md §4.1 "Reuse").
func (p *Pool) Acquire(ctx context.Context, ep dbendpoint.Endpoint) (Handle, error) {
	if ep.Kind == "" {
		resolved, err := dbendpoint.New(ep.URL, "")
		if err != nil {
			return nil, err
		}
		ep = resolved
	}

	if h, ok := p.lookup(ep.Kind, ep.URL); ok {
		return h, nil
	}

	dialer, ok := p.dialers[ep.Kind]
	if !ok {
		return nil, &dbendpoint.ErrUnsupportedEndpoint{Scheme: string(ep.Kind)}
	}

	key := string(ep.Kind) + "|" + ep.URL
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		if h, ok := p.lookup(ep.Kind, ep.URL); ok {
			return h, nil
		}
		h, err := dialer.Dial(ctx, ep.URL, p.preflightTimeout)
		if err != nil {
			return nil, &ConnectionFailed{Reason: err}
		}
		p.store(ep.Kind, ep.URL, h)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handle), nil
}

func (p *Pool) lookup(kind dbendpoint.Kind, rawURL string) (Handle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	byURL, ok := p.cache[kind]
	if !ok {
		return nil, false
	}
	h, ok := byURL[rawURL]
	return h, ok
}

func (p *Pool) store(kind dbendpoint.Kind, rawURL string, h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cache[kind] == nil {
		p.cache[kind] = make(map[string]Handle)
	}
	p.cache[kind][rawURL] = h
}

// Size returns the number of cached handles for a kind, for tests and
// diagnostics.
func (p *Pool) Size(kind dbendpoint.Kind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache[kind])
}

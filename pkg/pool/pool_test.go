package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nlquery/dbagent/pkg/dbendpoint"
)

type fakeHandle struct {
	kind dbendpoint.Kind
}

func (f *fakeHandle) Kind() dbendpoint.Kind { return f.kind }
func (f *fakeHandle) Close() error          { return nil }

type countingDialer struct {
	kind  dbendpoint.Kind
	calls int32
	delay time.Duration
}

func (d *countingDialer) Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return &fakeHandle{kind: d.kind}, nil
}

func TestAcquireCachesByURL(t *testing.T) {
	dialer := &countingDialer{kind: dbendpoint.KindSQLA}
	p := New(map[dbendpoint.Kind]Dialer{dbendpoint.KindSQLA: dialer}, time.Second)

	ep := dbendpoint.Endpoint{URL: "postgres://host/db", Kind: dbendpoint.KindSQLA}
	h1, err := p.Acquire(context.Background(), ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := p.Acquire(context.Background(), ep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Error("expected identical handle on second acquire")
	}
	if dialer.calls != 1 {
		t.Errorf("expected exactly one dial, got %d", dialer.calls)
	}
}

func TestAcquireCoalescesConcurrentDials(t *testing.T) {
	dialer := &countingDialer{kind: dbendpoint.KindSQLB, delay: 50 * time.Millisecond}
	p := New(map[dbendpoint.Kind]Dialer{dbendpoint.KindSQLB: dialer}, time.Second)
	ep := dbendpoint.Endpoint{URL: "mysql://host/db", Kind: dbendpoint.KindSQLB}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Acquire(context.Background(), ep); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if dialer.calls != 1 {
		t.Errorf("expected single-flight to coalesce to one dial, got %d", dialer.calls)
	}
}

func TestAcquireUnsupportedScheme(t *testing.T) {
	p := New(map[dbendpoint.Kind]Dialer{}, time.Second)
	ep := dbendpoint.Endpoint{URL: "redis://host/db"}
	_, err := p.Acquire(context.Background(), ep)
	if err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestAcquireConnectionFailedNotCached(t *testing.T) {
	dialer := &failingDialer{}
	p := New(map[dbendpoint.Kind]Dialer{dbendpoint.KindDocument: dialer}, time.Second)
	ep := dbendpoint.Endpoint{URL: "mongodb://host/db", Kind: dbendpoint.KindDocument}

	if _, err := p.Acquire(context.Background(), ep); err == nil {
		t.Fatal("expected ConnectionFailed error")
	}
	if p.Size(dbendpoint.KindDocument) != 0 {
		t.Error("failed preflight must not populate the cache")
	}
}

type failingDialer struct{}

func (failingDialer) Dial(ctx context.Context, rawURL string, preflightTimeout time.Duration) (Handle, error) {
	return nil, context.DeadlineExceeded
}

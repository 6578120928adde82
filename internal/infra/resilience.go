// Package infra provides shared infrastructure for the bot's read paths:
// a TTL/LRU cache and request deduplication for wiki lookups triggered by
// IRC commands.
package infra

import (
	"context"
	"sync"

	"github.com/olgasafonova/wikibot/metrics"
)

// RequestDeduplicator coalesces identical in-flight requests to reduce API load.
// When several IRC users ask for the same page at once, only one wiki request
// is made and all waiters receive the same result.
type RequestDeduplicator struct {
	mu       sync.Mutex
	inflight map[string]*inflightRequest
}

// inflightRequest tracks a request in progress with waiters
type inflightRequest struct {
	done   chan struct{}
	result interface{}
	err    error
	count  int // Number of waiters for metrics
}

// NewRequestDeduplicator creates a new request deduplicator
func NewRequestDeduplicator() *RequestDeduplicator {
	return &RequestDeduplicator{
		inflight: make(map[string]*inflightRequest),
	}
}

// Do executes fn only if no identical request (by key) is in flight.
// If a request with the same key is already running, waits for its result.
// Returns the result, whether it was shared from another request, and any error.
func (d *RequestDeduplicator) Do(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, bool, error) {
	d.mu.Lock()

	// Check if request is already in flight
	if req, ok := d.inflight[key]; ok {
		req.count++
		d.mu.Unlock()

		// Wait for the in-flight request to complete
		select {
		case <-req.done:
			metrics.DedupedRequests.Inc()
			return req.result, true, req.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	// Create new in-flight request
	req := &inflightRequest{
		done:  make(chan struct{}),
		count: 1,
	}
	d.inflight[key] = req
	d.mu.Unlock()

	// Execute the actual request
	req.result, req.err = fn()

	// Signal completion and cleanup
	close(req.done)

	d.mu.Lock()
	delete(d.inflight, key)
	d.mu.Unlock()

	return req.result, false, req.err
}

// Stats returns the current number of in-flight requests
func (d *RequestDeduplicator) Stats() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

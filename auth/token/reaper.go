package token

import (
	"context"
	"time"

	"github.com/stephnangue/notary/helper"
	"github.com/stephnangue/notary/logger"
)

const (
	// reapTimeout bounds each delete round-trip so a hung store call
	// cannot pin a worker forever.
	reapTimeout = 10 * time.Second
)

// Reaper deletes expired tokens in the background. Cleanup is best-effort
// and never sits on a request's critical path: callers hand expired tokens
// to Schedule and move on. Failures are logged and counted, not surfaced.
type Reaper struct {
	backend Backend
	logger  logger.Logger
	metrics *Metrics
	jobs    chan *Token
	done    chan struct{}
	workers int
}

// NewReaper starts a reaper with the given worker count and queue depth.
func NewReaper(backend Backend, log logger.Logger, metrics *Metrics, workers, queueSize int) *Reaper {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	r := &Reaper{
		backend: backend,
		logger:  log,
		metrics: metrics,
		jobs:    make(chan *Token, queueSize),
		done:    make(chan struct{}),
		workers: workers,
	}

	for i := 0; i < workers; i++ {
		go r.worker()
	}

	return r
}

// Schedule enqueues tokens for deletion without blocking. When the queue
// is full the token is dropped; its own expiry already makes it inert, so
// dropping only delays the storage cleanup until a later pass sees it.
func (r *Reaper) Schedule(tokens ...*Token) {
	for _, t := range tokens {
		select {
		case r.jobs <- t:
		case <-r.done:
			return
		default:
			r.metrics.IncrementReapDropped()
			r.logger.Warn("reaper queue full, dropping expired token",
				logger.String("token_hash", helper.Get8BytesHash(t.Value)),
				logger.String("owner", t.Owner))
		}
	}
}

func (r *Reaper) worker() {
	for {
		select {
		case <-r.done:
			return
		case t := <-r.jobs:
			r.reap(t)
		}
	}
}

func (r *Reaper) reap(t *Token) {
	ctx, cancel := context.WithTimeout(context.Background(), reapTimeout)
	defer cancel()

	if _, err := r.backend.DeleteToken(ctx, t.Value); err != nil {
		r.metrics.IncrementReapFailures()
		r.logger.Warn("failed to delete expired token",
			logger.String("token_hash", helper.Get8BytesHash(t.Value)),
			logger.String("owner", t.Owner),
			logger.Err(err))
		return
	}

	r.metrics.IncrementTokensReaped()
	r.logger.Debug("expired token deleted",
		logger.String("token_hash", helper.Get8BytesHash(t.Value)),
		logger.String("owner", t.Owner))
}

// Close stops the workers. Queued tokens that were not processed yet are
// abandoned; they are expired anyway.
func (r *Reaper) Close() {
	close(r.done)
}

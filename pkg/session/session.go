package session

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/domain"
)

// Session is the handle of one batch.
type Session struct {
	id     string
	req    domain.BatchRequest
	gen    *runtime.Generator
	cancel context.CancelFunc
	done   chan struct{}
	notify func(domain.Progress)

	mu        sync.RWMutex
	progress  domain.Progress
	cancelled bool
	stopped   bool
}

func newSession(id string, req domain.BatchRequest, gen *runtime.Generator, cancel context.CancelFunc) *Session {
	return &Session{
		id:     id,
		req:    req,
		gen:    gen,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: domain.Progress{
			BatchID:      id,
			Status:       domain.BatchRunning,
			Total:        req.Count,
			IsGenerating: true,
			Seed:         req.Seed,
			StartedAt:    time.Now(),
		},
	}
}

// ID returns the batch id.
func (s *Session) ID() string { return s.id }

// Request returns the request the batch runs with, defaults applied.
func (s *Session) Request() domain.BatchRequest { return s.req }

// Done is closed once the batch reaches a terminal status.
func (s *Session) Done() <-chan struct{} { return s.done }

// Cancel requests cooperative cancellation. Tokens already persisted stay.
func (s *Session) Cancel() {
	s.mu.Lock()
	if !s.progress.Status.Terminal() {
		s.cancelled = true
	}
	s.mu.Unlock()
	s.cancel()
}

// Progress returns a snapshot of the batch state.
func (s *Session) Progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Session) snapshot() domain.Progress {
	p := s.progress
	p.Warnings = append([]string(nil), s.progress.Warnings...)
	p.Failures = append([]domain.TokenFailure(nil), s.progress.Failures...)
	return p
}

// Wait blocks until the batch finishes or ctx is done and returns the last snapshot.
func (s *Session) Wait(ctx context.Context) (domain.Progress, error) {
	select {
	case <-s.done:
		return s.Progress(), nil
	case <-ctx.Done():
		return s.Progress(), ctx.Err()
	}
}

func (s *Session) update(fn func(p *domain.Progress)) {
	s.mu.Lock()
	fn(&s.progress)
	snap := s.snapshot()
	s.mu.Unlock()
	if s.notify != nil {
		s.notify(snap)
	}
}

func (s *Session) markDone() {
	s.update(func(p *domain.Progress) { p.Done++ })
}

func (s *Session) markFailed(f domain.TokenFailure) {
	s.update(func(p *domain.Progress) {
		p.Failed++
		p.LastError = f.Message
		p.Failures = append(p.Failures, f)
	})
}

// stop cancels the remaining tokens after a failure.
func (s *Session) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) finish(err error) domain.Progress {
	s.mu.Lock()
	switch {
	case err != nil:
		s.progress.Status = domain.BatchFailed
		s.progress.LastError = err.Error()
	case s.stopped:
		s.progress.Status = domain.BatchFailed
	case s.cancelled:
		s.progress.Status = domain.BatchCancelled
	default:
		s.progress.Status = domain.BatchCompleted
	}
	s.progress.IsGenerating = false
	s.progress.FinishedAt = time.Now()
	snap := s.snapshot()
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(snap)
	}
	close(s.done)
	return snap
}

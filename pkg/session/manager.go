package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/google/uuid"
)

// Defaults for batch execution.
const (
	DefaultConcurrency = 5
	DefaultLockWait    = 250 * time.Millisecond
	DefaultLockTTL     = 30 * time.Minute
)

// lockKey names the distributed lock guarding batch execution.
const lockKey = "batch"

// Manager runs generation batches, one at a time.
type Manager struct {
	store  ports.ArtifactStore
	seen   ports.SeenSet
	ledger ports.Ledger
	locker ports.DistributedLocker
	files  fs.FS

	concurrency int
	lockWait    time.Duration
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	mu       sync.Mutex
	current  *Session
	watchers map[chan domain.Progress]struct{}
}

// Option configures the Manager.
type Option func(*Manager)

// WithConcurrency bounds the number of tokens generated in parallel.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithLocker enables distributed locking so replicas never run two batches at once.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTiming sets how long Start waits for the distributed lock and how
// long the lock lives before it expires on its own.
func WithLockTiming(wait, ttl time.Duration) Option {
	return func(m *Manager) {
		if wait > 0 {
			m.lockWait = wait
		}
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLedger records every emitted token.
func WithLedger(ledger ports.Ledger) Option {
	return func(m *Manager) {
		m.ledger = ledger
	}
}

// WithCustomFiles sets the filesystem custom token files are read from.
func WithCustomFiles(fsys fs.FS) Option {
	return func(m *Manager) {
		m.files = fsys
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a batch Manager persisting into store and checking
// uniqueness against seen.
func NewManager(store ports.ArtifactStore, seen ports.SeenSet, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		seen:        seen,
		concurrency: DefaultConcurrency,
		lockWait:    DefaultLockWait,
		lockTTL:     DefaultLockTTL,
		logger:      logging.NewNop(), // Default to no-op
		watchers:    make(map[chan domain.Progress]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the artifact store.
func (m *Manager) Store() ports.ArtifactStore {
	return m.store
}

// Ledger returns the configured ledger, if any.
func (m *Manager) Ledger() ports.Ledger {
	return m.ledger
}

// Start launches a batch in the background and returns its handle.
// It fails with domain.ErrBatchRunning while another batch is in flight.
// The batch is detached from ctx cancellation; use Session.Cancel to stop it.
func (m *Manager) Start(ctx context.Context, gen *runtime.Generator, req domain.BatchRequest) (*Session, error) {
	if req.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", req.Count)
	}
	if req.StartID == 0 {
		req.StartID = 1
	}
	if req.Seed == 0 {
		req.Seed = rand.Int64()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Progress().Status.Terminal() {
		return nil, domain.ErrBatchRunning
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, m.lockWait)
		defer cancel()
		var err error
		unlock, err = m.locker.Lock(lockCtx, lockKey, m.lockTTL)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, domain.ErrBatchRunning
			}
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(uuid.NewString(), req, gen, cancel)
	for _, w := range gen.Project().Warnings() {
		s.progress.Warnings = append(s.progress.Warnings, w.Error())
	}
	s.notify = m.broadcast
	m.current = s

	go func() {
		defer cancel()
		m.run(runCtx, s)
		if unlock != nil {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"batch_id", s.id,
					"err", err,
				)
			}
		}
	}()

	return s, nil
}

// Current returns the latest batch, or nil if none was started.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Progress returns the state of the latest batch.
func (m *Manager) Progress() domain.Progress {
	if s := m.Current(); s != nil {
		return s.Progress()
	}
	return domain.Progress{Status: domain.BatchIdle}
}

// Cancel requests cancellation of the running batch.
func (m *Manager) Cancel() error {
	s := m.Current()
	if s == nil || s.Progress().Status.Terminal() {
		return domain.ErrNoBatch
	}
	s.Cancel()
	return nil
}

// Subscribe returns a channel receiving progress snapshots as the batch
// advances, and a function to stop receiving. Slow readers only ever see the
// latest snapshot.
func (m *Manager) Subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 1)
	m.mu.Lock()
	m.watchers[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers, ch)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) broadcast(p domain.Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.watchers {
		select {
		case ch <- p:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

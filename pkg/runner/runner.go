package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/session"
)

// Controller is the batch control surface the runner drives.
type Controller interface {
	Start(ctx context.Context, req domain.BatchRequest) (*session.Session, error)
	Cancel() error
	Subscribe() (<-chan domain.Progress, func())
}

// Runner starts a batch and relays its progress until it finishes.
type Runner struct {
	// Handler presents progress. Defaults to a TextHandler on stderr.
	Handler ProgressHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// InterruptSource replaces OS signals when set.
	InterruptSource <-chan struct{}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts req on c and blocks until the batch reaches a terminal status.
// The first interrupt cancels the batch and keeps waiting for the workers;
// a second one returns immediately with domain.ErrCancelled.
func (r *Runner) Run(ctx context.Context, c Controller, req domain.BatchRequest) (domain.Progress, error) {
	handler := r.resolveHandler()
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tags, err := SanitizeTags(req.BaseContext)
	if err != nil {
		return domain.Progress{}, err
	}
	req.BaseContext = tags

	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	sess, err := c.Start(ctx, req)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("start batch: %w", err)
	}
	logger.Debug("batch started", "batch_id", sess.ID())

	var signals *SignalManager
	if r.InterruptSource == nil {
		signals = NewSignalManager()
		defer signals.Stop()
	}
	interrupts := 0

	for {
		var interrupted <-chan struct{}
		if signals != nil {
			interrupted = signals.Context().Done()
		} else {
			interrupted = r.InterruptSource
		}

		select {
		case p := <-updates:
			if p.BatchID != sess.ID() || p.Status.Terminal() {
				continue
			}
			if err := handler.Progress(ctx, p); err != nil {
				logger.Warn("progress output failed", "err", err)
			}

		case <-sess.Done():
			final := sess.Progress()
			if err := handler.Finish(ctx, final); err != nil {
				return final, fmt.Errorf("output error: %w", err)
			}
			return final, nil

		case <-interrupted:
			interrupts++
			if signals != nil {
				signals.Reset()
			}
			if interrupts > 1 {
				handler.SystemOutput(ctx, "Stopped waiting; workers may still be finishing.")
				return sess.Progress(), domain.ErrCancelled
			}
			handler.SystemOutput(ctx, "Cancelling batch... press Ctrl+C again to stop waiting.")
			if err := c.Cancel(); err != nil {
				logger.Debug("cancel ignored", "err", err)
			}

		case <-ctx.Done():
			sess.Cancel()
			return sess.Progress(), ctx.Err()
		}
	}
}

// resolveHandler ensures a valid ProgressHandler is set.
func (r *Runner) resolveHandler() ProgressHandler {
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stderr)
	}
	return r.Handler
}

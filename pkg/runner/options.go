package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithHandler configures the progress presentation.
func WithHandler(handler ProgressHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithInterruptSource sets a channel that signals the runner to cancel the
// batch, replacing OS signal handling.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}

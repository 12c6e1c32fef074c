package runner

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// ProgressHandler defines the strategy for presenting a batch.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type ProgressHandler interface {
	// Progress presents an intermediate snapshot.
	Progress(ctx context.Context, p domain.Progress) error

	// Finish presents the final snapshot of the batch.
	Finish(ctx context.Context, p domain.Progress) error

	// SystemOutput presents a meta-message to the user (e.g. cancellation notices).
	// This is distinct from progress rendering.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer is a function that transforms the content before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

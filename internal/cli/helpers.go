package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/runner"
	"golang.org/x/term"
)

// Options are the settings shared by every command.
type Options struct {
	Dir        string
	ConfigPath string
	LogLevel   string
	Debug      bool
	// Override mutates the loaded configuration, e.g. with explicit flags.
	Override func(*config.Config)
}

// load resolves the configuration and the logger of a command.
func (o Options) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.Dir, o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.Override != nil {
		o.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	level := cfg.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	logger, err := createLogger(level, o.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// createLogger configures the application logger.
// Logs go to Stderr so they never mix with the command output on Stdout.
func createLogger(level string, debug bool) (*slog.Logger, error) {
	if debug {
		return logging.New(slog.LevelDebug), nil
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// printSystemMessage prints a standardized system message to stderr.
func printSystemMessage(format string, args ...any) {
	fmt.Fprintf(os.Stderr, ">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBatchStart: func(ctx context.Context, e *domain.BatchEvent) {
			logger.Debug("Batch Start", "batch_id", e.BatchID, "total", e.Total)
		},
		OnBatchEnd: func(ctx context.Context, e *domain.BatchEvent) {
			logger.Debug("Batch End", "batch_id", e.BatchID, "status", e.Status, "done", e.Done, "failed", e.Failed)
		},
		OnTokenReroll: func(ctx context.Context, e *domain.TokenEvent) {
			logger.Debug("Token Reroll", "token_id", e.TokenID, "attempt", e.Attempt, "reason", e.Reason)
		},
		OnTokenDone: func(ctx context.Context, e *domain.TokenEvent) {
			logger.Debug("Token Done", "token_id", e.TokenID, "combo_key", e.Key, "attempt", e.Attempt)
		},
		OnTokenFailed: func(ctx context.Context, e *domain.TokenEvent) {
			logger.Debug("Token Failed", "token_id", e.TokenID, "attempt", e.Attempt, "err", e.Err)
		},
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// createRenderer picks glamour for terminals and plain markdown otherwise.
func createRenderer(w io.Writer) runner.ContentRenderer {
	if !isTerminal(w) {
		return tui.Plain
	}
	r, err := tui.NewRenderer(0)
	if err != nil {
		return tui.Plain
	}
	return r
}

// writeMarkdown renders md for w and writes it.
func writeMarkdown(w io.Writer, md string) error {
	out, err := createRenderer(w)(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(out, "\n"))
	return err
}

func handleExecutionError(err error) error {
	if err == nil || domain.IsCancelled(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}

// parseContext cleans --context values; each may hold several comma
// separated tags.
func parseContext(raw []string) ([]string, error) {
	tags, err := runner.SanitizeTags(raw)
	if err != nil {
		return nil, fmt.Errorf("error parsing --context: %w", err)
	}
	return tags, nil
}

var errBatchFailed = errors.New("batch failed")

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
)

// PreviewOptions configures `strata preview`.
type PreviewOptions struct {
	Options
	Context []string
	Seed    int64
	Size    int
	// Out is where the raster is written; empty means <dir>/preview.png.
	Out   string
	Watch bool
}

// RunPreview renders one token without persisting it. In watch mode the
// preview is rendered again whenever a rule document changes, until ctx ends.
func RunPreview(ctx context.Context, opts PreviewOptions, stdout, stderr io.Writer) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	tags, err := parseContext(opts.Context)
	if err != nil {
		return err
	}
	if opts.Out == "" {
		opts.Out = filepath.Join(opts.Dir, "preview.png")
	}
	size := opts.Size
	if size <= 0 {
		size, _ = cfg.OutputSize()
	}
	req := domain.PreviewRequest{BaseContext: tags, Seed: opts.Seed, Size: size}

	st, err := createStack(ctx, opts.Dir, cfg, logger, stackOptions{debug: opts.Debug, offline: true})
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	if !opts.Watch {
		return renderPreview(ctx, st.Engine, req, opts.Out, stdout)
	}

	tui.PrintBanner(stderr)
	watchCh, err := st.Engine.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Starting Watcher", "path", opts.Dir)
	for {
		if err := renderPreview(ctx, st.Engine, req, opts.Out, stdout); err != nil {
			// Keep watching: the next save may fix it.
			logger.Error("Preview failed", "err", err)
		}
		printSystemMessage("Waiting for changes...")

		if !waitForChange(ctx, watchCh, logger) {
			printSystemMessage("Watcher stopped.")
			return nil
		}
	}
}

// waitForChange blocks until a document changes, then drains the burst of
// events an editor save usually produces. It returns false once ctx ends.
func waitForChange(ctx context.Context, watchCh <-chan string, logger *slog.Logger) bool {
	select {
	case <-ctx.Done():
		return false
	case id, ok := <-watchCh:
		if !ok {
			return false
		}
		logger.Info("Change detected, triggering reload", "event", id)
		printSystemMessage("Change detected in '%s'.", id)
	}

	settle := time.NewTimer(100 * time.Millisecond)
	defer settle.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-watchCh:
			if !ok {
				return false
			}
		case <-settle.C:
			return true
		}
	}
}

func renderPreview(ctx context.Context, engine *strata.Engine, req domain.PreviewRequest, out string, stdout io.Writer) error {
	tok, err := engine.Preview(ctx, req)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, tok.Image, 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Preview\n\n`%s`\n\n| Trait | Value |\n|---|---|\n", tok.Key)
	for _, a := range tok.Metadata.Attributes {
		fmt.Fprintf(&sb, "| %s | %s |\n", a.TraitType, a.Value)
	}
	fmt.Fprintf(&sb, "\nWritten to %s after %d attempt(s).\n", out, tok.Attempts)
	return writeMarkdown(stdout, sb.String())
}

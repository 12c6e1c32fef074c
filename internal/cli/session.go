package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/runner"
)

// GenerateOptions configures one batch run from the command line.
type GenerateOptions struct {
	Options
	Count       int
	StartID     int64
	Context     []string
	Width       int
	Height      int
	Seed        int64
	StopOnError bool
	KeepOutput  bool
	JSON        bool
}

// RunGenerate runs a batch to completion, presenting progress on stderr
// (or NDJSON on stdout with JSON set).
func RunGenerate(ctx context.Context, opts GenerateOptions, stdout, stderr io.Writer) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	tags, err := parseContext(opts.Context)
	if err != nil {
		return err
	}

	if !opts.JSON && isTerminal(stderr) {
		tui.PrintBanner(stderr)
	}

	st, err := createStack(ctx, opts.Dir, cfg, logger, stackOptions{debug: opts.Debug})
	if err != nil {
		return err
	}
	defer st.Close(context.WithoutCancel(ctx))

	var handler runner.ProgressHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(stdout)
	} else {
		handler = runner.NewTextHandler(stderr, runner.WithTextHandlerRenderer(createRenderer(stderr)))
	}
	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithHandler(handler),
	)

	w, h := cfg.OutputSize()
	if opts.Width > 0 {
		w = domain.ClampOutputSize(opts.Width)
	}
	if opts.Height > 0 {
		h = domain.ClampOutputSize(opts.Height)
	}
	req := domain.BatchRequest{
		Count:       opts.Count,
		StartID:     opts.StartID,
		BaseContext: tags,
		OutWidth:    w,
		OutHeight:   h,
		Seed:        opts.Seed,
		StopOnError: opts.StopOnError,
		KeepOutput:  opts.KeepOutput || !cfg.ResetOutput,
	}

	logger.Info("Generating", "project", st.Engine.Name, "count", req.Count)
	final, runErr := r.Run(ctx, st.Engine, req)
	if runErr != nil {
		if domain.IsCancelled(runErr) && !opts.JSON {
			printSystemMessage("Interrupted after %d of %d tokens.", final.Done, final.Total)
		}
		return handleExecutionError(runErr)
	}
	if final.Status == domain.BatchFailed {
		return fmt.Errorf("%w: %s", errBatchFailed, final.LastError)
	}
	return nil
}

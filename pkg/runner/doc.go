/*
Package runner drives a generation batch from a terminal.

It starts a batch on a Controller (usually *strata.Engine), relays progress
snapshots to a pluggable ProgressHandler and translates OS signals into
cooperative cancellation: the first Ctrl+C cancels the batch and waits for the
workers to wind down, a second one stops waiting.

# Key Components

  - Runner: starts the batch and pumps progress until it finishes.
  - ProgressHandler: decouples how progress is presented.
  - TextHandler: human readable progress, rewritten in place on a terminal.
  - JSONHandler: one JSON object per line for scripts.

# Usage

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithHandler(runner.NewTextHandler(os.Stderr)),
	)

	progress, err := r.Run(ctx, engine, domain.BatchRequest{Count: 100})
*/
package runner

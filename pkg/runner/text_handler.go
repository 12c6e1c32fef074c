package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// maxListedFailures bounds the failures shown in the summary.
const maxListedFailures = 10

// TextHandler prints human readable progress.
// On a terminal the progress line is rewritten in place; otherwise a line is
// printed every tenth of the batch.
type TextHandler struct {
	Writer   io.Writer
	Renderer ContentRenderer

	out     *termenv.Output
	inPlace bool

	mu         sync.Mutex
	lastDecile int
	dirty      bool
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the renderer of the final summary.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerProfile forces a color profile (termenv.Ascii disables colors).
func WithTextHandlerProfile(profile termenv.Profile) TextHandlerOption {
	return func(h *TextHandler) {
		h.out = termenv.NewOutput(h.Writer, termenv.WithProfile(profile))
	}
}

// NewTextHandler creates a handler writing to w (stderr when nil).
func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if w == nil {
		w = os.Stderr
	}
	h := &TextHandler{
		Writer:     w,
		out:        termenv.NewOutput(w),
		lastDecile: -1,
	}
	if f, ok := w.(*os.File); ok {
		h.inPlace = term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Progress(ctx context.Context, p domain.Progress) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line := h.progressLine(p)
	if h.inPlace {
		h.out.ClearLine()
		fmt.Fprint(h.Writer, "\r"+line)
		h.dirty = true
		return nil
	}

	decile := 0
	if p.Total > 0 {
		decile = (p.Done + p.Failed) * 10 / p.Total
	}
	if decile == h.lastDecile {
		return nil
	}
	h.lastDecile = decile
	_, err := fmt.Fprintln(h.Writer, line)
	return err
}

func (h *TextHandler) Finish(ctx context.Context, p domain.Progress) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dirty {
		h.out.ClearLine()
		fmt.Fprint(h.Writer, "\r")
		h.dirty = false
	}

	summary := Summary(p)
	if h.Renderer != nil {
		if rendered, err := h.Renderer(summary); err == nil {
			summary = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(summary))
	return err
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dirty {
		fmt.Fprintln(h.Writer)
		h.dirty = false
	}
	_, err := fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return err
}

func (h *TextHandler) progressLine(p domain.Progress) string {
	status := h.out.String(string(p.Status)).Foreground(statusColor(h.out, p.Status)).String()
	line := fmt.Sprintf("[%s] %d/%d done", status, p.Done, p.Total)
	if p.Failed > 0 {
		line += fmt.Sprintf(", %d failed", p.Failed)
	}
	return line
}

func statusColor(out *termenv.Output, s domain.BatchStatus) termenv.Color {
	switch s {
	case domain.BatchCompleted:
		return out.Color("2")
	case domain.BatchFailed:
		return out.Color("1")
	case domain.BatchCancelled:
		return out.Color("3")
	default:
		return out.Color("6")
	}
}

// Summary renders the final state of a batch as markdown.
func Summary(p domain.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Batch %s\n\n", p.BatchID)
	b.WriteString("| Status | Total | Done | Failed | Seed |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", p.Status, p.Total, p.Done, p.Failed, p.Seed)
	if !p.StartedAt.IsZero() && !p.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "\nFinished in %s.\n", p.FinishedAt.Sub(p.StartedAt).Round(time.Millisecond))
	}
	if p.LastError != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", p.LastError)
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n### Warnings\n\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	if len(p.Failures) > 0 {
		b.WriteString("\n### Failures\n\n")
		for i, f := range p.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "- ... and %d more\n", len(p.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "- token %d: `%s` %s\n", f.TokenID, f.Code, f.Message)
		}
	}
	return b.String()
}

package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, store ports.ArtifactStore) *strata.Engine {
	t.Helper()
	eng, err := strata.New("",
		strata.WithLayersFS(testutils.LayerFS(t,
			"Background/Red.png", "Background/Blue.png", "Background/Green.png",
			"Hat/Crown.png", "Hat/Cap.png",
		)),
		strata.WithLayerOrder("Hat", "Background"),
		strata.WithLoader(memory.NewLoader(&domain.RuleSet{})),
		strata.WithStore(store),
		strata.WithConcurrency(1),
	)
	require.NoError(t, err)
	return eng
}

// gatedStore holds every image write until the batch is cancelled.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
}

func (g *gatedStore) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunner_Run_Completes(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRunner(WithHandler(NewTextHandler(out, WithTextHandlerProfile(termenv.Ascii))),
		WithInterruptSource(make(chan struct{})))

	final, err := r.Run(context.Background(), newEngine(t, memory.NewStore()), domain.BatchRequest{
		Count: 6, OutWidth: 64, OutHeight: 64, BaseContext: []string{"male, "},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, final.Status)
	assert.Equal(t, 6, final.Done)

	text := out.String()
	assert.Contains(t, text, "## Batch "+final.BatchID)
	assert.Contains(t, text, "| completed | 6 | 6 | 0 |")
}

func TestRunner_Run_InterruptCancels(t *testing.T) {
	store := &gatedStore{Store: memory.NewStore(), entered: make(chan struct{}, 1)}
	interrupts := make(chan struct{}, 2)
	out := &bytes.Buffer{}
	r := NewRunner(WithHandler(NewJSONHandler(out)), WithInterruptSource(interrupts))

	go func() {
		<-store.entered
		interrupts <- struct{}{}
	}()

	final, err := r.Run(context.Background(), newEngine(t, store), domain.BatchRequest{Count: 4, OutWidth: 64, OutHeight: 64})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCancelled, final.Status)
	assert.Zero(t, final.Failed, "cancelled tokens are not failures")
	assert.Contains(t, out.String(), `"type":"system"`)
	assert.Contains(t, out.String(), `"type":"finished"`)
}

func TestRunner_Run_SecondInterruptStopsWaiting(t *testing.T) {
	interrupts := make(chan struct{}, 2)
	interrupts <- struct{}{}
	interrupts <- struct{}{}

	// Cancel is a no-op, so the batch would wait on the gate forever
	ctrl := &stubbornController{Engine: newEngine(t, &gatedStore{Store: memory.NewStore(), entered: make(chan struct{}, 1)})}
	r := NewRunner(WithHandler(NewJSONHandler(&bytes.Buffer{})), WithInterruptSource(interrupts))

	_, err := r.Run(context.Background(), ctrl, domain.BatchRequest{Count: 2, OutWidth: 64, OutHeight: 64})
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NoError(t, ctrl.Engine.Cancel())
}

type stubbornController struct {
	*strata.Engine
}

func (*stubbornController) Cancel() error { return nil }

func TestRunner_Run_RejectsBadTags(t *testing.T) {
	r := NewRunner(WithHandler(NewJSONHandler(&bytes.Buffer{})), WithInterruptSource(make(chan struct{})))
	_, err := r.Run(context.Background(), newEngine(t, memory.NewStore()), domain.BatchRequest{
		Count: 1, BaseContext: []string{strings.Repeat("x", DefaultMaxInputSize+1)},
	})
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestRunner_Run_ContextCancel(t *testing.T) {
	store := &gatedStore{Store: memory.NewStore(), entered: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-store.entered
		cancel()
	}()

	eng := newEngine(t, store)
	r := NewRunner(WithHandler(NewJSONHandler(&bytes.Buffer{})), WithInterruptSource(make(chan struct{})))
	_, err := r.Run(ctx, eng, domain.BatchRequest{Count: 2, OutWidth: 64, OutHeight: 64})
	assert.ErrorIs(t, err, context.Canceled)

	waitCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	final, err := eng.Wait(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCancelled, final.Status)
}

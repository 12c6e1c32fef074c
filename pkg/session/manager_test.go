package session_test

import (
	"context"
	"fmt"
	"image"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/compositor"
	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/redis"
	"github.com/aretw0/strata/pkg/adapters/sqlite"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/session"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var layerPaths = []string{
	"Hat/crown.png",
	"Hat/cap.png",
	"Hair/bald.png",
	"Hair/short.png",
	"Background/red.png",
	"Background/blue.png",
}

// newGenerator builds a generator over a small layer library (8 combinations).
func newGenerator(t *testing.T, set *domain.RuleSet, opts ...runtime.Option) *runtime.Generator {
	t.Helper()
	fsys := testutils.LayerFS(t, layerPaths...)
	idx, err := assets.Build(fsys, []string{"Hat", "Hair", "Background"})
	require.NoError(t, err)
	if set == nil {
		set = &domain.RuleSet{}
	}
	p := runtime.NewProject(idx, set)
	comp, err := compositor.OpenFS(fsys, 16, compositor.WithCanvas(image.Pt(2, 2)))
	require.NoError(t, err)
	return runtime.NewGenerator(p, comp, metadata.New(set.Global, p.Tags), opts...)
}

func small(count int) domain.BatchRequest {
	return domain.BatchRequest{Count: count, OutWidth: 4, OutHeight: 4, Seed: 42}
}

func wait(t *testing.T, s *session.Session) domain.Progress {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := s.Wait(ctx)
	require.NoError(t, err)
	return p
}

// blockingStore holds every image write until released or cancelled.
type blockingStore struct {
	*memory.Store
	release chan struct{}
	entered chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{Store: memory.NewStore(), release: make(chan struct{}), entered: make(chan struct{}, 64)}
}

func (b *blockingStore) SaveImage(ctx context.Context, tokenID int64, ext string, data []byte) (string, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return b.Store.SaveImage(ctx, tokenID, ext, data)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestManager_CompletesBatch(t *testing.T) {
	store := memory.NewStore()
	seen := memory.NewSeenSet()
	mgr := session.NewManager(store, seen, session.WithConcurrency(3))

	gen := newGenerator(t, nil)
	s, err := mgr.Start(context.Background(), gen, small(8))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	p := wait(t, s)
	assert.Equal(t, domain.BatchCompleted, p.Status)
	assert.Equal(t, 8, p.Done)
	assert.Zero(t, p.Failed)
	assert.False(t, p.IsGenerating)
	assert.Equal(t, int64(42), p.Seed)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, ids)

	signatures := map[string]bool{}
	for _, id := range ids {
		md, err := store.LoadMetadata(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d.png", id), md.Image)
		sig := ""
		for _, a := range md.Attributes {
			sig += a.TraitType + "=" + a.Value + ";"
		}
		assert.False(t, signatures[sig], "duplicate attributes for token %d", id)
		signatures[sig] = true
	}

	n, err := seen.Len(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Zero(t, n, "seen-set is released at batch end")
}

func TestManager_UniqueExhaustedDoesNotAbortSiblings(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet(), session.WithConcurrency(2))
	gen := newGenerator(t, nil)

	p := wait(t, must(mgr.Start(context.Background(), gen, small(10))))
	assert.Equal(t, domain.BatchCompleted, p.Status)
	assert.Equal(t, 8, p.Done, "only 8 combinations exist")
	assert.Equal(t, 2, p.Failed)
	for _, f := range p.Failures {
		assert.Equal(t, domain.CodeUniqueExhausted, f.Code)
		assert.Equal(t, runtime.DefaultMaxRerolls, f.Attempts)
	}
	assert.NotEmpty(t, p.LastError)
}

func TestManager_StopOnError(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet(), session.WithConcurrency(1))
	gen := newGenerator(t, nil, runtime.WithMaxRerolls(20))

	req := small(20)
	req.StopOnError = true
	p := wait(t, must(mgr.Start(context.Background(), gen, req)))
	assert.Equal(t, domain.BatchFailed, p.Status)
	assert.Equal(t, 1, p.Failed)
	assert.Less(t, p.Done+p.Failed, 20)
}

func TestManager_SingleBatchInFlight(t *testing.T) {
	store := newBlockingStore()
	mgr := session.NewManager(store, memory.NewSeenSet())
	gen := newGenerator(t, nil)

	s, err := mgr.Start(context.Background(), gen, small(4))
	require.NoError(t, err)
	<-store.entered

	_, err = mgr.Start(context.Background(), gen, small(1))
	assert.ErrorIs(t, err, domain.ErrBatchRunning)

	close(store.release)
	assert.Equal(t, domain.BatchCompleted, wait(t, s).Status)

	// a finished batch frees the slot
	s2, err := mgr.Start(context.Background(), gen, domain.BatchRequest{Count: 1, KeepOutput: true})
	require.NoError(t, err)
	assert.Equal(t, 1, wait(t, s2).Done)
}

func TestManager_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newBlockingStore()
	mgr := session.NewManager(store, memory.NewSeenSet(), session.WithConcurrency(2))
	gen := newGenerator(t, nil)

	assert.ErrorIs(t, mgr.Cancel(), domain.ErrNoBatch)

	s, err := mgr.Start(context.Background(), gen, small(8))
	require.NoError(t, err)
	<-store.entered

	require.NoError(t, mgr.Cancel())
	p := wait(t, s)
	assert.Equal(t, domain.BatchCancelled, p.Status)
	assert.Zero(t, p.Done)
	assert.Zero(t, p.Failed, "cancelled tokens are not failures")
	assert.Equal(t, domain.BatchCancelled, mgr.Progress().Status)
}

func TestManager_ProgressIdle(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet())
	assert.Equal(t, domain.BatchIdle, mgr.Progress().Status)
	assert.Nil(t, mgr.Current())
}

func TestManager_CustomTokensComeFirst(t *testing.T) {
	store := memory.NewStore()
	files := fstest.MapFS{"custom/ghost.gif": &fstest.MapFile{Data: []byte("GIF89a")}}
	mgr := session.NewManager(store, memory.NewSeenSet(), session.WithCustomFiles(files))

	gen := newGenerator(t, nil)
	gen.Project().Custom = []domain.CustomToken{{ID: "ghost", File: "/custom/ghost.gif", Name: "Ghost", Include: true}}

	req := small(3)
	req.StartID = 10
	p := wait(t, must(mgr.Start(context.Background(), gen, req)))
	assert.Equal(t, 3, p.Done)

	md, err := store.LoadMetadata(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "Ghost", md.Name)
	assert.Equal(t, "10.gif", md.Image)
	assert.Equal(t, "10.gif", md.AnimationURL)

	data, ok := store.Image(10)
	require.True(t, ok)
	assert.Equal(t, []byte("GIF89a"), data)

	ids, _ := store.List(context.Background())
	assert.Equal(t, []int64{10, 11, 12}, ids)
}

func TestManager_ResetOutput(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.SaveMetadata(context.Background(), &domain.TokenMetadata{TokenID: 99}))
	mgr := session.NewManager(store, memory.NewSeenSet())
	gen := newGenerator(t, nil)

	wait(t, must(mgr.Start(context.Background(), gen, small(1))))
	ids, _ := store.List(context.Background())
	assert.Equal(t, []int64{1}, ids)

	req := small(1)
	req.StartID = 2
	req.KeepOutput = true
	wait(t, must(mgr.Start(context.Background(), gen, req)))
	ids, _ = store.List(context.Background())
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestManager_HooksAndLedger(t *testing.T) {
	ledger, err := sqlite.Open(t.TempDir() + "/ledger.db")
	require.NoError(t, err)
	defer ledger.Close()

	events := make(chan domain.EventType, 64)
	hooks := domain.LifecycleHooks{
		OnBatchStart: func(_ context.Context, e *domain.BatchEvent) { events <- e.Type },
		OnBatchEnd:   func(_ context.Context, e *domain.BatchEvent) { events <- e.Type },
		OnTokenDone:  func(_ context.Context, e *domain.TokenEvent) { events <- e.Type },
	}
	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet(),
		session.WithLedger(ledger),
		session.WithLifecycleHooks(hooks),
	)
	s := must(mgr.Start(context.Background(), newGenerator(t, nil), small(3)))
	wait(t, s)

	var got []domain.EventType
	timeout := time.After(5 * time.Second)
	for len(got) == 0 || got[len(got)-1] != domain.EventBatchEnd {
		select {
		case e := <-events:
			got = append(got, e)
		case <-timeout:
			t.Fatalf("batch end not observed, got %v", got)
		}
	}
	require.Len(t, got, 5)
	assert.Equal(t, domain.EventBatchStart, got[0])
	assert.Equal(t, domain.EventBatchEnd, got[4])

	entries, err := ledger.Entries(context.Background(), s.ID())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotEmpty(t, e.Key)
		assert.GreaterOrEqual(t, e.Attempts, 1)
	}
}

func TestManager_Subscribe(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet())
	updates, stop := mgr.Subscribe()
	defer stop()

	s := must(mgr.Start(context.Background(), newGenerator(t, nil), small(2)))
	wait(t, s)

	var last domain.Progress
	timeout := time.After(5 * time.Second)
	for !last.Status.Terminal() {
		select {
		case last = <-updates:
		case <-timeout:
			t.Fatal("no terminal snapshot received")
		}
	}
	assert.Equal(t, domain.BatchCompleted, last.Status)
	assert.Equal(t, 2, last.Done)
}

func TestManager_DistributedLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	other := redis.NewLocker(client, "test:")
	unlock, err := other.Lock(context.Background(), "batch", time.Minute)
	require.NoError(t, err)

	mgr := session.NewManager(memory.NewStore(), memory.NewSeenSet(),
		session.WithLocker(redis.NewLocker(client, "test:")),
		session.WithLockTiming(150*time.Millisecond, time.Minute),
	)
	_, err = mgr.Start(context.Background(), newGenerator(t, nil), small(1))
	assert.ErrorIs(t, err, domain.ErrBatchRunning)

	require.NoError(t, unlock(context.Background()))
	s, err := mgr.Start(context.Background(), newGenerator(t, nil), small(1))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, wait(t, s).Status)
	assert.Eventually(t, func() bool { return !mr.Exists("test:lock:batch") }, 2*time.Second, 20*time.Millisecond,
		"lock released at batch end")
}

func must(s *session.Session, err error) *session.Session {
	if err != nil {
		panic(err)
	}
	return s
}

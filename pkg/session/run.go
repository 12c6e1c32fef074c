package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/aretw0/strata/pkg/session")

// run executes the batch: custom tokens first, generated tokens on the pool.
func (m *Manager) run(ctx context.Context, s *Session) {
	started := time.Now()
	logger := m.logger.With("batch_id", s.id)
	req := s.req

	ctx, span := tracer.Start(ctx, "strata.batch", trace.WithAttributes(
		attribute.String("batch.id", s.id),
		attribute.Int("batch.count", req.Count),
		attribute.Int64("batch.seed", req.Seed),
	))
	defer span.End()

	m.emitBatch(ctx, domain.EventBatchStart, s, 0)
	logger.Info("Batch started", "count", req.Count, "start_id", req.StartID, "seed", req.Seed)

	guard := runtime.NewDuplicateGuard(m.seen, s.id)
	defer func() {
		if err := guard.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release seen-set", "err", err)
		}
	}()

	err := m.execute(ctx, s, guard)
	final := s.finish(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Batch failed", "err", err)
	}
	m.emitBatch(ctx, domain.EventBatchEnd, s, time.Since(started))
	logger.Info("Batch finished",
		"status", final.Status,
		"done", final.Done,
		"failed", final.Failed,
		"duration", time.Since(started),
	)
}

func (m *Manager) execute(ctx context.Context, s *Session, guard *runtime.DuplicateGuard) error {
	req := s.req
	if !req.KeepOutput {
		if err := m.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset output: %w", err)
		}
	}

	custom := s.gen.Project().Custom
	used := min(len(custom), req.Count)
	for i := range used {
		if ctx.Err() != nil {
			return nil
		}
		id := req.StartID + int64(i)
		if err := m.emitCustom(ctx, s, id, custom[i]); err != nil {
			m.fail(ctx, s, id, 1, err)
			if req.StopOnError {
				s.stop()
				return nil
			}
			continue
		}
		s.markDone()
	}

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i := used; i < req.Count; i++ {
		if ctx.Err() != nil {
			break
		}
		id := req.StartID + int64(i)
		g.Go(func() error {
			m.runToken(ctx, s, guard, id)
			return nil // siblings are never aborted by a token failure
		})
	}
	return g.Wait()
}

func (m *Manager) runToken(ctx context.Context, s *Session, guard *runtime.DuplicateGuard, id int64) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	ctx, span := tracer.Start(ctx, "strata.token", trace.WithAttributes(attribute.Int64("token.id", id)))
	defer span.End()

	m.emitToken(ctx, domain.EventTokenStart, s.id, &domain.TokenEvent{TokenID: id, Phase: domain.PhaseSelecting})

	rng := rand.New(rand.NewPCG(uint64(s.req.Seed), uint64(id)))
	tok, err := s.gen.Generate(ctx, runtime.Job{
		BatchID:     s.id,
		TokenID:     id,
		BaseContext: s.req.BaseContext,
		Output:      s.req.OutputSize(),
		Rand:        rng,
		Guard:       guard,
	})
	if err == nil {
		err = m.persist(ctx, s, tok)
	}
	if err != nil {
		if domain.IsCancelled(err) {
			span.SetAttributes(attribute.Bool("token.cancelled", true))
			return
		}
		attempts := 0
		var te *domain.TokenError
		if errors.As(err, &te) {
			attempts = te.Attempts
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.fail(ctx, s, id, attempts, err)
		if s.req.StopOnError {
			s.stop()
		}
		return
	}

	span.SetAttributes(attribute.Int("token.attempts", tok.Attempts))
	s.markDone()
	m.emitToken(ctx, domain.EventTokenDone, s.id, &domain.TokenEvent{
		TokenID:  id,
		Phase:    domain.PhasePersisted,
		Attempt:  tok.Attempts,
		Key:      tok.Key,
		Duration: time.Since(started),
	})
}

// persist stores the raster, then the metadata referencing it.
func (m *Manager) persist(ctx context.Context, s *Session, tok *domain.Token) error {
	if ctx.Err() != nil {
		return domain.ErrCancelled
	}
	ref, err := m.store.SaveImage(ctx, tok.ID, ".png", tok.Image)
	if err != nil {
		return &domain.TokenError{TokenID: tok.ID, Code: domain.CodePersistFailed, Attempts: tok.Attempts, Err: err}
	}
	tok.Metadata = s.gen.Builder().Build(tok.ID, ref, tok.Layers)
	if err := m.store.SaveMetadata(ctx, &tok.Metadata); err != nil {
		return &domain.TokenError{TokenID: tok.ID, Code: domain.CodePersistFailed, Attempts: tok.Attempts, Err: err}
	}
	m.record(ctx, s.id, tok.ID, tok.Key, ref, tok.Attempts)
	return nil
}

// emitCustom copies a hand-made token into the store.
func (m *Manager) emitCustom(ctx context.Context, s *Session, id int64, ct domain.CustomToken) error {
	if m.files == nil {
		return fmt.Errorf("custom token %q: no custom file source configured", ct.ID)
	}
	name := strings.TrimLeft(path.Clean("/"+ct.File), "/")
	data, err := fs.ReadFile(m.files, name)
	if err != nil {
		return &domain.TokenError{TokenID: id, Code: domain.CodePersistFailed, Attempts: 1, Err: fmt.Errorf("read custom file: %w", err)}
	}
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".png"
	}
	ref, err := m.store.SaveImage(ctx, id, ext, data)
	if err != nil {
		return &domain.TokenError{TokenID: id, Code: domain.CodePersistFailed, Attempts: 1, Err: err}
	}
	md := s.gen.Builder().Custom(id, ref, ct)
	if err := m.store.SaveMetadata(ctx, &md); err != nil {
		return &domain.TokenError{TokenID: id, Code: domain.CodePersistFailed, Attempts: 1, Err: err}
	}
	m.record(ctx, s.id, id, "", ref, 1)
	m.emitToken(ctx, domain.EventTokenDone, s.id, &domain.TokenEvent{TokenID: id, Phase: domain.PhasePersisted, Attempt: 1})
	return nil
}

func (m *Manager) record(ctx context.Context, batchID string, id int64, key domain.ComboKey, ref string, attempts int) {
	if m.ledger == nil {
		return
	}
	err := m.ledger.Record(context.WithoutCancel(ctx), ports.LedgerEntry{
		BatchID:   batchID,
		TokenID:   id,
		Key:       key,
		Image:     ref,
		Attempts:  attempts,
		CreatedAt: time.Now(),
	})
	if err != nil {
		m.logger.Warn("Failed to record token in ledger", "batch_id", batchID, "token_id", id, "err", err)
	}
}

func (m *Manager) fail(ctx context.Context, s *Session, id int64, attempts int, err error) {
	code := domain.CodeOf(err)
	m.logger.Warn("Token failed", "batch_id", s.id, "token_id", id, "code", code, "err", err)
	s.markFailed(domain.TokenFailure{TokenID: id, Code: code, Message: err.Error(), Attempts: attempts})
	m.emitToken(ctx, domain.EventTokenFailed, s.id, &domain.TokenEvent{
		TokenID: id,
		Phase:   domain.PhaseFailed,
		Attempt: attempts,
		Err:     err,
	})
}

func (m *Manager) emitBatch(ctx context.Context, typ domain.EventType, s *Session, d time.Duration) {
	hook := m.hooks.OnBatchStart
	if typ == domain.EventBatchEnd {
		hook = m.hooks.OnBatchEnd
	}
	if hook == nil {
		return
	}
	p := s.Progress()
	hook(ctx, &domain.BatchEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: typ, BatchID: s.id},
		Status:    p.Status,
		Total:     p.Total,
		Done:      p.Done,
		Failed:    p.Failed,
		Duration:  d,
	})
}

func (m *Manager) emitToken(ctx context.Context, typ domain.EventType, batchID string, e *domain.TokenEvent) {
	var hook func(context.Context, *domain.TokenEvent)
	switch typ {
	case domain.EventTokenStart:
		hook = m.hooks.OnTokenStart
	case domain.EventTokenDone:
		hook = m.hooks.OnTokenDone
	case domain.EventTokenFailed:
		hook = m.hooks.OnTokenFailed
	}
	if hook == nil {
		return
	}
	e.EventBase = domain.EventBase{Timestamp: time.Now(), Type: typ, BatchID: batchID}
	hook(ctx, e)
}

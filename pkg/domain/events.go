package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventBatchStart  EventType = "batch_start"
	EventBatchEnd    EventType = "batch_end"
	EventTokenStart  EventType = "token_start"
	EventTokenReroll EventType = "token_reroll"
	EventTokenDone   EventType = "token_done"
	EventTokenFailed EventType = "token_failed"
)

// RerollReason explains why an attempt was discarded.
type RerollReason string

const (
	RerollRuleViolation RerollReason = "rule_violation"
	RerollDuplicate     RerollReason = "duplicate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	BatchID   string    `json:"batch_id"`
}

// BatchEvent marks batch boundaries.
type BatchEvent struct {
	EventBase
	Status   BatchStatus   `json:"status"`
	Total    int           `json:"total"`
	Done     int           `json:"done"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration,omitempty"`
}

// TokenEvent reports progress of one token through the pipeline.
type TokenEvent struct {
	EventBase
	TokenID  int64         `json:"token_id"`
	Phase    TokenPhase    `json:"phase"`
	Attempt  int           `json:"attempt,omitempty"`
	Reason   RerollReason  `json:"reason,omitempty"`
	Key      ComboKey      `json:"combo_key,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for generation observability.
// Hooks run on worker goroutines and must be safe for concurrent use.
type LifecycleHooks struct {
	OnBatchStart  func(context.Context, *BatchEvent)
	OnBatchEnd    func(context.Context, *BatchEvent)
	OnTokenStart  func(context.Context, *TokenEvent)
	OnTokenReroll func(context.Context, *TokenEvent)
	OnTokenDone   func(context.Context, *TokenEvent)
	OnTokenFailed func(context.Context, *TokenEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnBatchStart:  chainBatch(h.OnBatchStart, other.OnBatchStart),
		OnBatchEnd:    chainBatch(h.OnBatchEnd, other.OnBatchEnd),
		OnTokenStart:  chainToken(h.OnTokenStart, other.OnTokenStart),
		OnTokenReroll: chainToken(h.OnTokenReroll, other.OnTokenReroll),
		OnTokenDone:   chainToken(h.OnTokenDone, other.OnTokenDone),
		OnTokenFailed: chainToken(h.OnTokenFailed, other.OnTokenFailed),
	}
}

func chainBatch(a, b func(context.Context, *BatchEvent)) func(context.Context, *BatchEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *BatchEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainToken(a, b func(context.Context, *TokenEvent)) func(context.Context, *TokenEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *TokenEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

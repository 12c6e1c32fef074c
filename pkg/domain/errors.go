package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled signals cooperative cancellation. It is not counted as a failure.
var ErrCancelled = errors.New("generation cancelled")

// ErrUniqueExhausted is returned when a token could not find an unused,
// rule-valid combination within the reroll budget.
var ErrUniqueExhausted = errors.New("unique combination budget exhausted")

// ErrBatchRunning is returned when a batch is started while another is in flight.
var ErrBatchRunning = errors.New("a batch is already running")

// ErrNoBatch is returned when cancelling or waiting without a batch.
var ErrNoBatch = errors.New("no batch has been started")

// ErrAssetRootMissing is returned when the asset library root does not exist.
var ErrAssetRootMissing = errors.New("asset root not found")

// ErrTokenNotFound is returned when a token has no persisted metadata.
var ErrTokenNotFound = errors.New("token not found")

// ErrMalformedConfiguration wraps rule configuration problems.
var ErrMalformedConfiguration = errors.New("malformed configuration")

// Code is a stable, machine readable failure classification.
type Code string

const (
	CodeCancelled         Code = "CANCELLED"
	CodeUniqueExhausted   Code = "UNIQUE_EXHAUSTED"
	CodeAssetRootMissing  Code = "ASSET_ROOT_MISSING"
	CodeMalformedConfig   Code = "MALFORMED_CONFIGURATION"
	CodeCompositionFailed Code = "COMPOSITION_FAILED"
	CodePersistFailed     Code = "PERSIST_FAILED"
	CodeInternal          Code = "INTERNAL"
)

// CodeOf classifies err.
func CodeOf(err error) Code {
	var te *TokenError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te) && te.Code != "":
		return te.Code
	case IsCancelled(err):
		return CodeCancelled
	case errors.Is(err, ErrUniqueExhausted):
		return CodeUniqueExhausted
	case errors.Is(err, ErrAssetRootMissing):
		return CodeAssetRootMissing
	case errors.Is(err, ErrMalformedConfiguration):
		return CodeMalformedConfig
	default:
		return CodeInternal
	}
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// TokenError is a per-token failure.
type TokenError struct {
	TokenID  int64
	Code     Code
	Attempts int
	Err      error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %d: %s: %v", e.TokenID, e.Code, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

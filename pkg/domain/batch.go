package domain

import (
	"image"
	"time"
)

// Output size bounds applied to externally requested raster sizes.
const (
	DefaultOutputSize = 1080
	MinOutputSize     = 64
	MaxOutputSize     = 8192
)

// ClampOutputSize bounds a requested edge length; non-positive means default.
func ClampOutputSize(n int) int {
	if n <= 0 {
		return DefaultOutputSize
	}
	return max(MinOutputSize, min(MaxOutputSize, n))
}

// BatchRequest describes one generation batch.
type BatchRequest struct {
	Count       int      `json:"count"`
	StartID     int64    `json:"start_id"`
	BaseContext []string `json:"context,omitempty"`
	OutWidth    int      `json:"out_width,omitempty"`
	OutHeight   int      `json:"out_height,omitempty"`
	// Seed fixes the random streams; zero picks a random seed.
	Seed int64 `json:"seed,omitempty"`
	// StopOnError cancels the rest of the batch after the first token failure.
	StopOnError bool `json:"stop_on_error,omitempty"`
	// KeepOutput preserves previously emitted artifacts.
	KeepOutput bool `json:"keep_output,omitempty"`
}

// OutputSize returns the requested raster size with defaults applied.
func (r BatchRequest) OutputSize() image.Point {
	w, h := r.OutWidth, r.OutHeight
	if w <= 0 {
		w = DefaultOutputSize
	}
	if h <= 0 {
		h = DefaultOutputSize
	}
	return image.Pt(w, h)
}

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

const (
	BatchIdle      BatchStatus = "idle"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchCancelled BatchStatus = "cancelled"
	BatchFailed    BatchStatus = "failed"
)

// Terminal reports whether the batch has finished.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchCancelled || s == BatchFailed
}

// TokenPhase is the state of a single token inside the pipeline.
type TokenPhase string

const (
	PhaseSelecting          TokenPhase = "selecting"
	PhaseGloballyValidating TokenPhase = "globally_validating"
	PhaseDuplicateChecking  TokenPhase = "duplicate_checking"
	PhaseComposing          TokenPhase = "composing"
	PhasePersisted          TokenPhase = "persisted"
	PhaseFailed             TokenPhase = "failed"
)

// TokenFailure records a token that could not be produced.
type TokenFailure struct {
	TokenID  int64  `json:"token_id"`
	Code     Code   `json:"code"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

// Progress is the observable state of the current batch.
type Progress struct {
	BatchID      string         `json:"batch_id,omitempty"`
	Status       BatchStatus    `json:"status"`
	Total        int            `json:"total"`
	Done         int            `json:"done"`
	Failed       int            `json:"failed"`
	IsGenerating bool           `json:"isGenerating"`
	LastError    string         `json:"lastError,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Failures     []TokenFailure `json:"failures,omitempty"`
	Seed         int64          `json:"seed,omitempty"`
	StartedAt    time.Time      `json:"started_at,omitzero"`
	FinishedAt   time.Time      `json:"finished_at,omitzero"`
}

// PreviewRequest asks for one token rendered without persistence or
// duplicate checking.
type PreviewRequest struct {
	BaseContext []string `json:"context,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
	// Size is the edge length of the square raster; clamped by the caller.
	Size int `json:"size,omitempty"`
}

package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/aretw0/strata/pkg/domain"
)

// Message is one line of JSONHandler output.
type Message struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Progress  *domain.Progress `json:"progress,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// JSONHandler implements the ProgressHandler interface with JSON-Lines output.
type JSONHandler struct {
	Writer io.Writer

	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONHandler creates a handler writing to w (stdout when nil).
func NewJSONHandler(w io.Writer) *JSONHandler {
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Writer:  w,
		encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Progress(ctx context.Context, p domain.Progress) error {
	return h.emit(Message{Type: "progress", Progress: &p})
}

func (h *JSONHandler) Finish(ctx context.Context, p domain.Progress) error {
	return h.emit(Message{Type: "finished", Progress: &p})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(Message{Type: "system", Message: msg})
}

func (h *JSONHandler) emit(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m.Timestamp = time.Now().UTC()
	return h.encoder.Encode(m)
}

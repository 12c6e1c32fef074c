package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalManager turns SIGINT/SIGTERM into context cancellation and can be
// re-armed after each signal, so repeated interrupts are observed one by one.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	count  int
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager() *SignalManager {
	sm := &SignalManager{}
	sm.arm()
	return sm
}

// Context returns the current signal context. It is cancelled by the next signal.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset records the observed signal and re-arms the listener.
func (sm *SignalManager) Reset() {
	if sm.ctx.Err() != nil {
		sm.count++
	}
	sm.arm()
}

// Count reports how many signals were observed through Reset.
func (sm *SignalManager) Count() int {
	return sm.count
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	if sm.cancel != nil {
		sm.cancel()
	}
}

func (sm *SignalManager) arm() {
	if sm.cancel != nil {
		sm.cancel()
	}
	sm.ctx, sm.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

package icsp

import "sync"

// Session is the scoped resource returned by Engine.EnterProgramming. Its
// Close method restores the target to normal operation on every exit path,
// including error, and is idempotent.
type Session struct {
	engine *Engine
	mu     sync.Mutex
	closed bool
}

// Close releases the session: MCLR high, PROG_EN low, CLK=0, DATA=0. Safe
// to call more than once, and safe to call after a prior operation failed
// (including with ErrInterrupted) — the release sequence runs with
// interruption suppressed on backends that support InterruptSuppressor.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if suppressor, ok := s.engine.gpio.(InterruptSuppressor); ok {
		suppressor.SuppressInterrupt(true)
		defer suppressor.SuppressInterrupt(false)
	}
	return s.engine.exitProgramming()
}

// Engine exposes the underlying Engine's read/write/erase primitives for
// the duration of the session.
func (s *Session) Engine() *Engine { return s.engine }

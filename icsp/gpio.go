package icsp

import (
	"time"

	"github.com/pkg/errors"
)

// Mode is a pin's electrical direction.
type Mode int

const (
	Input Mode = iota
	Output
)

// ErrInterrupted is returned by a GPIO capability call made after an
// asynchronous termination signal (e.g. a process signal on the host) has
// been observed. The engine aborts the in-flight operation; the session's
// scoped release still runs.
var ErrInterrupted = errors.New("icsp: interrupted")

// ErrUnsupported is returned when the GPIO backend cannot satisfy a
// requested mode or operation.
var ErrUnsupported = errors.New("icsp: unsupported by GPIO backend")

// GPIO is the minimal capability the ICSP engine drives CLK/DATA/MCLR/PROG_EN
// through. Implementations carry no ordering guarantees beyond per-call
// completion; the engine sequences writes and delays to realize protocol
// timing. A GPIO value is single-owner during a Session's lifetime.
type GPIO interface {
	// SetMode configures pin's direction. initial, if given, is driven
	// immediately after the pin is set to Output; it is ignored for
	// Input. Returns ErrInterrupted if termination has been observed, or
	// ErrUnsupported if mode cannot be satisfied.
	SetMode(pin int, mode Mode, initial ...int) error

	// Write drives pin to level (0 or 1). pin must currently be Output.
	Write(pin int, level int) error

	// Read samples pin's current level. pin must currently be Input.
	Read(pin int) (int, error)

	// Delay blocks for at least d. Actual delay may exceed d. Delay never
	// fails: suspension only happens here, never mid-transaction.
	Delay(d time.Duration)
}

// InterruptSuppressor is an optional extension a GPIO backend may implement
// to let a Session's scoped release drive pins even after termination has
// been observed — leaving the target mid-programming is worse than ignoring
// one late termination signal. Session.Close calls SuppressInterrupt(true)
// before running the exit sequence and SuppressInterrupt(false) after.
type InterruptSuppressor interface {
	SuppressInterrupt(suppress bool)
}

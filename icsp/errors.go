package icsp

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/region"
)

// ErrUnaligned is returned when an address is not a multiple of its
// region's word size.
var ErrUnaligned = errors.New("icsp: address not aligned to word size")

// ErrOutOfRange is returned when an address falls outside the 22-bit device
// address space or outside its declared region.
var ErrOutOfRange = errors.New("icsp: address out of range")

// ErrNotWritable is returned when a write or write-verify targets a region
// whose Writable flag is false.
var ErrNotWritable = errors.New("icsp: region is not writable")

// VerifyMismatchError is returned by WriteVerify when a readback differs
// from the word just written.
type VerifyMismatchError struct {
	Addr     uint32
	Region   region.Name
	Expected uint32
	Actual   uint32
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("icsp: verify mismatch in %s at %#06x: expected %#x, got %#x", e.Region, e.Addr, e.Expected, e.Actual)
}

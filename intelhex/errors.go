package intelhex

import "github.com/pkg/errors"

// Error kinds returned by Decode. Wrap with errors.Wrap for context; test
// with errors.Is against these sentinels.
var (
	// ErrInvalidLine is returned for a line that does not match the Intel
	// HEX line grammar (":LLAAAATT...CC").
	ErrInvalidLine = errors.New("intelhex: invalid line")

	// ErrBadChecksum is returned when a line's checksum byte does not sum
	// to zero modulo 256 with the rest of the line.
	ErrBadChecksum = errors.New("intelhex: bad checksum")

	// ErrTruncatedFile is returned when the stream ends without an EOF
	// record.
	ErrTruncatedFile = errors.New("intelhex: truncated file, missing EOF record")

	// ErrUnknownRecordType is returned for a record type other than DATA,
	// EOF, or EXTENDED_LINEAR_ADDRESS.
	ErrUnknownRecordType = errors.New("intelhex: unknown record type")

	// ErrOutOfBounds is returned when a DATA record's linear address does
	// not map to any region in the supplied region map.
	ErrOutOfBounds = errors.New("intelhex: linear address out of bounds")
)

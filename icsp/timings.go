package icsp

import "time"

// Protocol timing constants, named as in the device's programming
// specification.
const (
	tENTH = 1100 * time.Microsecond // MCLR-low hold time around LVP key entry
	tCLK  = 2 * time.Microsecond    // clock half-period
	tDS   = 1 * time.Microsecond    // data setup time
	tDLY  = 4 * time.Microsecond    // command-to-payload delay
	tCO   = 1 * time.Microsecond    // clock-out delay
	tLZD  = 1 * time.Microsecond    // data line low-Z delay after turnaround
	tERAB = 11 * time.Millisecond   // bulk erase settle time
)

// halfCycle is the minimum hold time of each clock half-cycle during
// bit-serial I/O.
func halfCycle() time.Duration {
	if tCLK > tDS {
		return tCLK
	}
	return tDS
}

// turnaroundDelay is the minimum wait after switching DATA to Input before
// the device's response is valid to sample.
func turnaroundDelay() time.Duration {
	if tDLY > tLZD {
		return tDLY
	}
	return tLZD
}

// lvpKey is the four-byte Low-Voltage-Programming entry key, shifted out
// MSB-first immediately after MCLR is driven low.
var lvpKey = [4]byte{0x4D, 0x43, 0x48, 0x50}

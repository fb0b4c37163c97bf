// Package icsp implements the half-duplex, two-wire (CLK+DATA) ICSP master
// that drives a PIC18F-Q20's programming dialog: LVP entry, the command
// set, and the region-aware read/write/erase primitives built on top of it.
//
// The engine depends on nothing but the GPIO capability (see gpio.go); it
// knows nothing about transports, CLI surfaces, or signal handling.
package icsp

import (
	"time"

	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/internal/pkglog"
	"github.com/effective-range/picicsp/region"
)

// Pins names the GPIO pins the engine drives. ProgEn is optional: some
// boards lack an external enable buffer.
type Pins struct {
	CLK    int
	DATA   int
	MCLR   int
	ProgEn *int
}

// ProgressFunc is called after each word of a read_n/write/write_verify
// operation, reporting done out of total words.
type ProgressFunc func(done, total int)

// Engine drives the ICSP wire protocol against a single GPIO capability.
// Engine values are not safe for concurrent use; at most one Session may be
// active per GPIO set at a time.
type Engine struct {
	gpio GPIO
	pins Pins
}

// New returns an Engine that will drive gpio through pins. It does not
// enter programming mode; call EnterProgramming for that.
func New(gpio GPIO, pins Pins) *Engine {
	return &Engine{gpio: gpio, pins: pins}
}

func (e *Engine) log() pkglog.Logger { return pkglog.Get() }

// shiftBitsMSBFirst shifts out n bits of value (MSB first), toggling CLK
// around each bit: rising edge clocks the bit in, falling edge ends it,
// each half held for halfCycle().
func (e *Engine) shiftBitsMSBFirst(value uint32, n int) error {
	hc := halfCycle()
	for i := n - 1; i >= 0; i-- {
		bit := int((value >> uint(i)) & 1)
		if err := e.gpio.Write(e.pins.DATA, bit); err != nil {
			return err
		}
		if err := e.gpio.Write(e.pins.CLK, 1); err != nil {
			return err
		}
		e.gpio.Delay(hc)
		if err := e.gpio.Write(e.pins.CLK, 0); err != nil {
			return err
		}
		e.gpio.Delay(hc)
	}
	return nil
}

// readBitsMSBFirst drives CLK for n cycles, sampling DATA on each high
// phase, and assembles the bits MSB-first into the returned value.
func (e *Engine) readBitsMSBFirst(n int) (uint32, error) {
	var raw uint32
	for i := 0; i < n; i++ {
		if err := e.gpio.Write(e.pins.CLK, 1); err != nil {
			return 0, err
		}
		e.gpio.Delay(tCLK)
		bit, err := e.gpio.Read(e.pins.DATA)
		if err != nil {
			return 0, err
		}
		raw = (raw << 1) | uint32(bit&1)
		if err := e.gpio.Write(e.pins.CLK, 0); err != nil {
			return 0, err
		}
		e.gpio.Delay(tCLK)
	}
	return raw, nil
}

// writeTransaction shifts out an 8-bit command followed by a 24-bit
// payload: the payload's data bits left-shifted by one to append a
// trailing stop bit of 0.
func (e *Engine) writeTransaction(cmd byte, data uint32) error {
	if err := e.shiftBitsMSBFirst(uint32(cmd), 8); err != nil {
		return err
	}
	e.gpio.Delay(tDLY)
	payload := (data << 1) & 0xFFFFFF
	return e.shiftBitsMSBFirst(payload, 24)
}

// readTransaction shifts out an 8-bit command, turns DATA around to Input,
// and clocks in a 24-bit response.
func (e *Engine) readTransaction(cmd byte) (uint32, error) {
	if err := e.shiftBitsMSBFirst(uint32(cmd), 8); err != nil {
		return 0, err
	}
	if err := e.gpio.SetMode(e.pins.DATA, Input); err != nil {
		return 0, err
	}
	e.gpio.Delay(turnaroundDelay())

	raw, err := e.readBitsMSBFirst(24)

	if serr := e.gpio.SetMode(e.pins.DATA, Output, 0); serr != nil && err == nil {
		err = serr
	}
	if werr := e.gpio.Write(e.pins.CLK, 0); werr != nil && err == nil {
		err = werr
	}
	return raw, err
}

// decodeWord masks raw to the region's word width, then discards the
// trailing stop bit.
func decodeWord(raw uint32, wordSize uint32) uint32 {
	mask := uint32(0x1FF) // 9 bits: 8-bit data + stop bit
	if wordSize == 2 {
		mask = 0x1FFFF // 17 bits: 16-bit data + stop bit
	}
	return (raw & mask) >> 1
}

// EnterProgramming drives the LVP entry sequence and returns an active
// Session. The caller must Close the Session on every exit path.
func (e *Engine) EnterProgramming() (*Session, error) {
	if err := e.gpio.SetMode(e.pins.MCLR, Output, 1); err != nil {
		return nil, err
	}
	if err := e.gpio.SetMode(e.pins.CLK, Output, 0); err != nil {
		return nil, err
	}
	if err := e.gpio.SetMode(e.pins.DATA, Output, 0); err != nil {
		return nil, err
	}
	if e.pins.ProgEn != nil {
		if err := e.gpio.SetMode(*e.pins.ProgEn, Output, 0); err != nil {
			return nil, err
		}
	}

	if e.pins.ProgEn != nil {
		if err := e.gpio.Write(*e.pins.ProgEn, 1); err != nil {
			return nil, err
		}
	}
	e.gpio.Delay(time.Millisecond)

	if err := e.gpio.Write(e.pins.MCLR, 0); err != nil {
		return nil, err
	}
	e.gpio.Delay(2 * tENTH)

	e.log().Debugf("icsp: shifting LVP key")
	for _, b := range lvpKey {
		if err := e.shiftBitsMSBFirst(uint32(b), 8); err != nil {
			return nil, err
		}
	}
	e.gpio.Delay(2 * tENTH)

	e.log().Debugf("icsp: programming session active")
	return &Session{engine: e}, nil
}

// exitProgramming drives the release sequence. It is idempotent and must be
// permitted to run even if termination has been observed (Session.Close
// suppresses it via InterruptSuppressor when the backend supports that).
func (e *Engine) exitProgramming() error {
	e.gpio.Delay(tENTH + tCLK)
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	record(e.gpio.Write(e.pins.MCLR, 1))
	if e.pins.ProgEn != nil {
		record(e.gpio.Write(*e.pins.ProgEn, 0))
	}
	record(e.gpio.Write(e.pins.CLK, 0))
	record(e.gpio.Write(e.pins.DATA, 0))
	e.log().Debugf("icsp: programming session released")
	return firstErr
}

// LoadPC sets the target's program counter.
func (e *Engine) LoadPC(addr uint32) error {
	if addr > 0x3FFFFF {
		return errors.Wrapf(ErrOutOfRange, "PC %#06x", addr)
	}
	return e.writeTransaction(opLoadPC, addr)
}

// incPC advances PC by one word, without reading or writing data.
func (e *Engine) incPC() error {
	return e.shiftBitsMSBFirst(uint32(opIncPC), 8)
}

// BulkErase erases every region named in names that participates in bulk
// erase (EEPROM, PROGRAM, USER, CONFIG). An empty or non-participating set
// is a no-op.
func (e *Engine) BulkErase(names region.Name) error {
	mask := uint32(0)
	if names.Has(region.EEPROM) {
		mask |= bulkEraseBitEEPROM
	}
	if names.Has(region.PROGRAM) {
		mask |= bulkEraseBitPROGRAM
	}
	if names.Has(region.USER) {
		mask |= bulkEraseBitUSER
	}
	if names.Has(region.CONFIG) {
		mask |= bulkEraseBitCONFIG
	}
	if mask == 0 {
		return nil
	}
	e.log().Debugf("icsp: bulk erase mask %#x", mask)
	if err := e.writeTransaction(opBulkErase, mask); err != nil {
		return err
	}
	e.gpio.Delay(tERAB)
	return nil
}

// ReadN reads n bytes starting at addr, which must be a region's word-
// aligned address. progress, if non-nil, is called after each word.
func (e *Engine) ReadN(regions *region.Map, addr uint32, n int, progress ProgressFunc) ([]byte, error) {
	r, err := regions.Lookup(addr)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfRange, "address %#06x", addr)
	}
	if addr%r.WordSize != 0 {
		return nil, errors.Wrapf(ErrUnaligned, "address %#06x, word size %d", addr, r.WordSize)
	}

	if err := e.LoadPC(addr); err != nil {
		return nil, err
	}

	words := (n + int(r.WordSize) - 1) / int(r.WordSize)
	out := make([]byte, 0, words*int(r.WordSize))
	for i := 0; i < words; i++ {
		var raw uint32
		var rerr error
		if r.AutoIncrement {
			raw, rerr = e.readTransaction(opReadInc)
		} else {
			raw, rerr = e.readTransaction(opRead)
		}
		if rerr != nil {
			return nil, rerr
		}
		word := decodeWord(raw, r.WordSize)
		out = appendLittleEndian(out, word, r.WordSize)

		if !r.AutoIncrement {
			if err := e.incPC(); err != nil {
				return nil, err
			}
		}
		if progress != nil {
			progress(i+1, words)
		}
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Write programs bytes starting at addr, chunked into the region's word
// size and right-padded with 0xFF on a short trailing group. addr must be
// word-aligned; the region must be Writable.
func (e *Engine) Write(regions *region.Map, addr uint32, data []byte, progress ProgressFunc) error {
	r, err := regions.Lookup(addr)
	if err != nil {
		return errors.Wrapf(ErrOutOfRange, "address %#06x", addr)
	}
	if !r.Writable {
		return errors.Wrapf(ErrNotWritable, "region %s", r.Name)
	}
	if addr%r.WordSize != 0 {
		return errors.Wrapf(ErrUnaligned, "address %#06x, word size %d", addr, r.WordSize)
	}

	if err := e.LoadPC(addr); err != nil {
		return err
	}

	words := chunkWords(data, r.WordSize)
	for i, w := range words {
		if r.AutoIncrement {
			if err := e.writeTransaction(opWriteInc, w); err != nil {
				return err
			}
		} else {
			if err := e.writeTransaction(opWrite, w); err != nil {
				return err
			}
		}
		e.gpio.Delay(r.ProgDelay)
		if !r.AutoIncrement {
			if err := e.incPC(); err != nil {
				return err
			}
		}
		if progress != nil {
			progress(i+1, len(words))
		}
	}
	return nil
}

// WriteVerify programs bytes with the same chunking, padding and checks as
// Write, but programs each word with the non-incrementing WRITE, then
// issues a non-incrementing READ to compare against the word just written,
// then an explicit INC_PC — regardless of the region's AutoIncrement flag.
// This mirrors the source implementation's write_verify, which never uses
// the auto-incrementing WRITE_INC/READ_INC opcodes.
func (e *Engine) WriteVerify(regions *region.Map, addr uint32, data []byte, progress ProgressFunc) error {
	r, err := regions.Lookup(addr)
	if err != nil {
		return errors.Wrapf(ErrOutOfRange, "address %#06x", addr)
	}
	if !r.Writable {
		return errors.Wrapf(ErrNotWritable, "region %s", r.Name)
	}
	if addr%r.WordSize != 0 {
		return errors.Wrapf(ErrUnaligned, "address %#06x, word size %d", addr, r.WordSize)
	}

	if err := e.LoadPC(addr); err != nil {
		return err
	}

	words := chunkWords(data, r.WordSize)
	wordAddr := addr
	for i, w := range words {
		if err := e.writeTransaction(opWrite, w); err != nil {
			return err
		}
		e.gpio.Delay(r.ProgDelay)

		raw, err := e.readTransaction(opRead)
		if err != nil {
			return err
		}
		actual := decodeWord(raw, r.WordSize)
		if actual != w {
			return &VerifyMismatchError{Addr: wordAddr, Region: r.Name, Expected: w, Actual: actual}
		}

		if err := e.incPC(); err != nil {
			return err
		}
		wordAddr += r.WordSize
		if progress != nil {
			progress(i+1, len(words))
		}
	}
	return nil
}

// chunkWords groups data into r.WordSize-byte little-endian words,
// right-padding a short trailing group with 0xFF.
func chunkWords(data []byte, wordSize uint32) []uint32 {
	n := (len(data) + int(wordSize) - 1) / int(wordSize)
	words := make([]uint32, n)
	for i := 0; i < n; i++ {
		var w uint32
		for b := 0; b < int(wordSize); b++ {
			idx := i*int(wordSize) + b
			var v byte = 0xFF
			if idx < len(data) {
				v = data[idx]
			}
			w |= uint32(v) << (8 * b)
		}
		words[i] = w
	}
	return words
}

func appendLittleEndian(out []byte, word uint32, wordSize uint32) []byte {
	for b := 0; b < int(wordSize); b++ {
		out = append(out, byte(word>>(8*b)))
	}
	return out
}

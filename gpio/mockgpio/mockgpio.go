// Package mockgpio implements icsp.GPIO against an in-memory simulation of
// a PIC18F-Q20 target, modelled after the original source's
// MockGPIO/MockPIC18Q20 pair: pin writes raise edge events that drive a
// tagged-variant state machine {Idle, ProgEn, Mclr, Programming} with its
// own backing memory buffer, so the ICSP engine and programmer can be
// exercised without hardware.
package mockgpio

import (
	"time"

	"github.com/pkg/errors"

	"github.com/effective-range/picicsp/icsp"
	"github.com/effective-range/picicsp/region"
)

// device-side opcodes, mirroring the host's icsp package command set
// (spec §4.2). Kept as a private copy: the device decodes bits off the
// wire independently of how the host encodes them.
const (
	opLoadPC    byte = 0x80
	opReadInc   byte = 0xFE
	opRead      byte = 0xFC
	opWriteInc  byte = 0xE0
	opWrite     byte = 0xC0
	opBulkErase byte = 0x18
	opIncPC     byte = 0xF8
)

var lvpKey = uint32(0x4D434850)

// Pins names the pins the simulated target listens on. Matches icsp.Pins.
type Pins struct {
	CLK    int
	DATA   int
	MCLR   int
	ProgEn *int
}

type targetState int

const (
	stIdle targetState = iota
	stProgEn
	stMclr
	stProgramming
)

// phase describes what the Programming state is currently doing: waiting
// for a fresh 8-bit command, or mid-flight on one of the per-command
// payload/response phases.
type phase int

const (
	phaseCommand phase = iota
	phasePayload
	phaseReadResponse
	phaseIncPC
)

// GPIO implements icsp.GPIO while simulating the target device's ICSP
// state machine. It is not safe for concurrent use.
type GPIO struct {
	pins    Pins
	regions *region.Map

	modes  map[int]icsp.Mode
	levels map[int]int

	buf    map[uint32]byte
	stuck  map[uint32]byte

	state targetState
	ph    phase
	cmd   byte

	accum uint32
	bits  int

	pc         uint32
	readValue  uint32
	readRemain int

	interrupted bool
	suppressed  bool
}

// New returns a GPIO simulating a PIC18F-Q20 against regions, with every
// byte in the erased state (0xFF).
func New(pins Pins, regions *region.Map) *GPIO {
	g := &GPIO{
		pins:    pins,
		regions: regions,
		modes:   make(map[int]icsp.Mode),
		levels:  make(map[int]int),
		buf:     make(map[uint32]byte),
	}
	if pins.ProgEn == nil {
		// Boards without a PROG_EN line have nothing to drive that
		// transition: treat the target as permanently past it.
		g.state = stProgEn
	}
	return g
}

// Interrupt marks termination as observed; the next call fails with
// icsp.ErrInterrupted unless interruption is currently suppressed.
func (g *GPIO) Interrupt() { g.interrupted = true }

// SuppressInterrupt implements icsp.InterruptSuppressor.
func (g *GPIO) SuppressInterrupt(suppress bool) { g.suppressed = suppress }

func (g *GPIO) checkInterrupt() error {
	if g.interrupted && !g.suppressed {
		return icsp.ErrInterrupted
	}
	return nil
}

// SetMode implements icsp.GPIO.
func (g *GPIO) SetMode(pin int, mode icsp.Mode, initial ...int) error {
	if err := g.checkInterrupt(); err != nil {
		return err
	}
	g.modes[pin] = mode
	if mode == icsp.Output && len(initial) > 0 {
		return g.Write(pin, initial[0])
	}
	return nil
}

// Write implements icsp.GPIO, driving pin and, for CLK/MCLR/ProgEn, feeding
// the resulting edge to the target's state machine.
func (g *GPIO) Write(pin int, level int) error {
	if err := g.checkInterrupt(); err != nil {
		return err
	}
	if g.modes[pin] != icsp.Output {
		return errors.Wrapf(icsp.ErrUnsupported, "mockgpio: write to pin %d not in Output mode", pin)
	}
	prev := g.levels[pin]
	g.levels[pin] = level

	switch {
	case pin == g.pins.CLK:
		if prev == 0 && level == 1 {
			g.clkRising()
		} else if prev == 1 && level == 0 {
			g.clkFalling()
		}
	case pin == g.pins.MCLR:
		if prev == 1 && level == 0 {
			g.mclrFalling()
		} else if prev == 0 && level == 1 {
			g.mclrRising()
		}
	case g.pins.ProgEn != nil && pin == *g.pins.ProgEn:
		if prev == 0 && level == 1 {
			g.progEnRising()
		} else if prev == 1 && level == 0 {
			g.progEnFalling()
		}
	}
	return nil
}

// Read implements icsp.GPIO.
func (g *GPIO) Read(pin int) (int, error) {
	if err := g.checkInterrupt(); err != nil {
		return 0, err
	}
	if g.modes[pin] != icsp.Input {
		return 0, errors.Wrapf(icsp.ErrUnsupported, "mockgpio: read from pin %d not in Input mode", pin)
	}
	return g.levels[pin], nil
}

// Delay implements icsp.GPIO. The simulated target has no real electrical
// timing to respect, so Delay is a no-op.
func (g *GPIO) Delay(time.Duration) {}

func (g *GPIO) progEnRising() {
	if g.state == stIdle {
		g.state = stProgEn
	}
}

func (g *GPIO) progEnFalling() {
	if g.state == stProgEn {
		g.state = stIdle
	}
}

func (g *GPIO) mclrFalling() {
	if g.state == stProgEn {
		g.state = stMclr
		g.accum, g.bits = 0, 0
	}
}

func (g *GPIO) mclrRising() {
	if g.state == stProgramming || g.state == stMclr {
		g.state = stProgEn
	}
}

// clkFalling samples DATA to accumulate the host-driven bits of the LVP
// key, a command byte, or a command's 24-bit payload.
func (g *GPIO) clkFalling() {
	switch g.state {
	case stMclr:
		g.accumulate()
		if g.bits == 32 {
			if g.accum == lvpKey {
				g.state = stProgramming
				g.ph = phaseCommand
			}
			g.accum, g.bits = 0, 0
		}
	case stProgramming:
		switch g.ph {
		case phaseCommand:
			g.accumulate()
			if g.bits == 8 {
				g.cmd = byte(g.accum)
				g.accum, g.bits = 0, 0
				g.dispatchCommand()
			}
		case phasePayload:
			g.accumulate()
			if g.bits == 24 {
				g.completePayload()
			}
		case phaseReadResponse:
			// The falling edge of the last response bit ends the read.
			if g.readRemain == 0 {
				g.ph = phaseCommand
			}
		}
	}
}

// clkRising drives DATA during the device-driven read-response phase.
func (g *GPIO) clkRising() {
	if g.state != stProgramming || g.ph != phaseReadResponse {
		return
	}
	if g.readRemain == 0 {
		return
	}
	g.readRemain--
	bit := (g.readValue >> uint(g.readRemain)) & 1
	g.levels[g.pins.DATA] = int(bit)
}

func (g *GPIO) accumulate() {
	bit := g.levels[g.pins.DATA] & 1
	g.accum = (g.accum << 1) | uint32(bit)
	g.bits++
}

// dispatchCommand acts on a freshly received command byte.
func (g *GPIO) dispatchCommand() {
	switch g.cmd {
	case opLoadPC, opWrite, opWriteInc, opBulkErase:
		g.ph = phasePayload
	case opRead, opReadInc:
		g.beginRead(g.cmd == opReadInc)
	case opIncPC:
		g.incPC()
		g.ph = phaseCommand
	}
}

func (g *GPIO) completePayload() {
	payload := (g.accum >> 1) & 0xFFFFFF
	g.accum, g.bits = 0, 0
	switch g.cmd {
	case opLoadPC:
		g.pc = payload & 0x3FFFFF
	case opWrite, opWriteInc:
		g.writeWord(payload, g.cmd == opWriteInc)
	case opBulkErase:
		g.bulkErase(payload)
	}
	g.ph = phaseCommand
}

func (g *GPIO) currentRegion() (region.Region, bool) {
	r, err := g.regions.Lookup(g.pc)
	if err != nil {
		return region.Region{}, false
	}
	return r, true
}

func (g *GPIO) writeWord(word uint32, autoInc bool) {
	r, ok := g.currentRegion()
	if !ok {
		return
	}
	for b := uint32(0); b < r.WordSize; b++ {
		addr := g.pc + b
		if stuck, ok := g.stuck[addr]; ok {
			g.buf[addr] = stuck
			continue
		}
		g.buf[addr] = byte(word >> (8 * b))
	}
	if autoInc && r.AutoIncrement {
		g.pc += r.WordSize
	}
}

func (g *GPIO) beginRead(autoInc bool) {
	r, ok := g.currentRegion()
	if !ok {
		g.readValue, g.readRemain = 0, 24
		g.ph = phaseReadResponse
		return
	}
	var word uint32
	for b := uint32(0); b < r.WordSize; b++ {
		word |= uint32(g.GetByte(g.pc+b)) << (8 * b)
	}
	g.readValue = (word << 1) & 0xFFFFFF
	g.readRemain = 24
	g.ph = phaseReadResponse
	if autoInc && r.AutoIncrement {
		g.pc += r.WordSize
	}
}

func (g *GPIO) incPC() {
	r, ok := g.currentRegion()
	if !ok {
		return
	}
	g.pc += r.WordSize
}

func (g *GPIO) bulkErase(mask uint32) {
	const (
		bitEEPROM  = 1 << 0
		bitPROGRAM = 1 << 1
		bitUSER    = 1 << 2
		bitCONFIG  = 1 << 3
	)
	names := map[uint32]region.Name{
		bitEEPROM:  region.EEPROM,
		bitPROGRAM: region.PROGRAM,
		bitUSER:    region.USER,
		bitCONFIG:  region.CONFIG,
	}
	for bit, name := range names {
		if mask&bit == 0 {
			continue
		}
		r, err := g.regions.ByName(name)
		if err != nil {
			continue
		}
		for a := r.Start; a < r.End; a++ {
			g.buf[a] = 0xFF
		}
	}
}

// GetByte returns the simulated byte at addr, 0xFF (erased) if never
// written.
func (g *GPIO) GetByte(addr uint32) byte {
	if v, ok := g.buf[addr]; ok {
		return v
	}
	return 0xFF
}

// SetByte seeds the simulated byte at addr, for test setup.
func (g *GPIO) SetByte(addr uint32, v byte) { g.buf[addr] = v }

// StickByte simulates a stuck memory cell: every future write to addr is
// silently replaced by v, regardless of what the host programs. Used to
// exercise the WriteVerify mismatch path without hardware.
func (g *GPIO) StickByte(addr uint32, v byte) {
	if g.stuck == nil {
		g.stuck = make(map[uint32]byte)
	}
	g.stuck[addr] = v
	g.buf[addr] = v
}

// GetBytes reads n bytes starting at addr.
func (g *GPIO) GetBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = g.GetByte(addr + uint32(i))
	}
	return out
}

// SetBytes seeds data starting at addr, for test setup.
func (g *GPIO) SetBytes(addr uint32, data []byte) {
	for i, b := range data {
		g.SetByte(addr+uint32(i), b)
	}
}

// MCLRLevel, ProgEnLevel and CLKLevel report the current electrical level
// of the pin named, for asserting the session-release invariant.
func (g *GPIO) MCLRLevel() int { return g.levels[g.pins.MCLR] }
func (g *GPIO) CLKLevel() int  { return g.levels[g.pins.CLK] }
func (g *GPIO) DATALevel() int { return g.levels[g.pins.DATA] }
func (g *GPIO) ProgEnLevel() int {
	if g.pins.ProgEn == nil {
		return 0
	}
	return g.levels[*g.pins.ProgEn]
}

// TargetState reports the simulated device's current coarse state, for
// assertions such as "the target returned to Idle".
func (g *GPIO) TargetState() string {
	switch g.state {
	case stIdle:
		return "Idle"
	case stProgEn:
		return "ProgEn"
	case stMclr:
		return "Mclr"
	case stProgramming:
		return "Programming"
	default:
		return "Unknown"
	}
}

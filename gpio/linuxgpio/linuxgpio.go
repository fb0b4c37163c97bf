// +build linux

// Package linuxgpio implements icsp.GPIO against a Linux GPIO character
// device (/dev/gpiochipN), using the kernel's gpio-cdev ABI v1 ioctls
// directly rather than a higher-level library, so the only dependency this
// backend needs is golang.org/x/sys/unix.
package linuxgpio

import (
	"os"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/effective-range/picicsp/icsp"
)

// ioctl request codes for the gpio-cdev ABI v1 (linux/gpio.h). Encoded as
// _IOWR(0xB4, n, size): direction 3 (R|W), magic 0xB4.
const (
	gpioGetLineIOCTL        = 0xc16cb403
	gpioHandleGetLineValues = 0xc040b408
	gpioHandleSetLineValues = 0xc040b409
)

const (
	handleRequestInput  = 1 << 0
	handleRequestOutput = 1 << 1
)

type handleRequest struct {
	lineOffsets   [64]uint32
	flags         uint32
	defaultValues [64]uint8
	consumerLabel [32]byte
	lines         uint32
	fd            int32
}

type handleData struct {
	values [64]uint8
}

// line is one requested GPIO line, held open as its own file descriptor for
// the session's lifetime.
type line struct {
	fd   int
	mode icsp.Mode
}

// GPIO drives the named lines on a single /dev/gpiochipN through the
// character-device ABI. Each pin number passed to SetMode/Write/Read is the
// chip-relative line offset.
type GPIO struct {
	chip  *os.File
	lines map[int]*line
}

// Open opens chipPath (e.g. "/dev/gpiochip0") for subsequent line requests.
func Open(chipPath string) (*GPIO, error) {
	f, err := os.OpenFile(chipPath, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "linuxgpio: open %s", chipPath)
	}
	return &GPIO{chip: f, lines: make(map[int]*line)}, nil
}

// Close releases every requested line and the chip handle.
func (g *GPIO) Close() error {
	for _, l := range g.lines {
		unix.Close(l.fd)
	}
	return g.chip.Close()
}

func (g *GPIO) requestLine(offset uint32, flags uint32, initial uint8) (int, error) {
	req := handleRequest{flags: flags, lines: 1}
	req.lineOffsets[0] = offset
	req.defaultValues[0] = initial
	copy(req.consumerLabel[:], "picicsp")

	if err := ioctl(g.chip.Fd(), gpioGetLineIOCTL, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, errors.Wrapf(err, "linuxgpio: request line %d", offset)
	}
	return int(req.fd), nil
}

// SetMode implements icsp.GPIO, requesting pin as a fresh input or output
// line handle (the cdev ABI does not allow changing direction in place).
func (g *GPIO) SetMode(pin int, mode icsp.Mode, initial ...int) error {
	if l, ok := g.lines[pin]; ok {
		unix.Close(l.fd)
		delete(g.lines, pin)
	}

	flags := uint32(handleRequestInput)
	var def uint8
	if mode == icsp.Output {
		flags = handleRequestOutput
		if len(initial) > 0 {
			def = uint8(initial[0])
		}
	}

	fd, err := g.requestLine(uint32(pin), flags, def)
	if err != nil {
		return err
	}
	g.lines[pin] = &line{fd: fd, mode: mode}
	return nil
}

// Write implements icsp.GPIO.
func (g *GPIO) Write(pin int, level int) error {
	l, ok := g.lines[pin]
	if !ok || l.mode != icsp.Output {
		return errors.Wrapf(icsp.ErrUnsupported, "linuxgpio: pin %d not requested as output", pin)
	}
	var data handleData
	data.values[0] = uint8(level & 1)
	return ioctl(uintptr(l.fd), gpioHandleSetLineValues, uintptr(unsafe.Pointer(&data)))
}

// Read implements icsp.GPIO.
func (g *GPIO) Read(pin int) (int, error) {
	l, ok := g.lines[pin]
	if !ok || l.mode != icsp.Input {
		return 0, errors.Wrapf(icsp.ErrUnsupported, "linuxgpio: pin %d not requested as input", pin)
	}
	var data handleData
	if err := ioctl(uintptr(l.fd), gpioHandleGetLineValues, uintptr(unsafe.Pointer(&data))); err != nil {
		return 0, err
	}
	return int(data.values[0]), nil
}

// Delay implements icsp.GPIO by sleeping, since there is no finer-grained
// timer available from user space for sub-microsecond ICSP timings.
func (g *GPIO) Delay(d time.Duration) { time.Sleep(d) }

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

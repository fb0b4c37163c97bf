// Package region describes the PIC18F-Q20's 22-bit address space as a set of
// named, non-overlapping regions, each carrying its own word size, program
// delay, writability and auto-increment behaviour.
package region

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Name is a bit-flag set over the seven base regions, so a caller can form
// unions such as PROGRAM|CONFIG for a multi-region bulk erase.
type Name uint8

const (
	PROGRAM Name = 1 << iota
	USER
	DIA
	CONFIG
	EEPROM
	DCI
	ID
)

var names = []struct {
	bit  Name
	text string
}{
	{PROGRAM, "PROGRAM"},
	{USER, "USER"},
	{DIA, "DIA"},
	{CONFIG, "CONFIG"},
	{EEPROM, "EEPROM"},
	{DCI, "DCI"},
	{ID, "ID"},
}

// String renders n as a '|'-joined list of its set bits, e.g. "PROGRAM|CONFIG".
func (n Name) String() string {
	if n == 0 {
		return "NONE"
	}
	s := ""
	for _, e := range names {
		if n&e.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += e.text
		}
	}
	if s == "" {
		return fmt.Sprintf("Name(%#x)", uint8(n))
	}
	return s
}

// Has reports whether n carries every bit set in mask.
func (n Name) Has(mask Name) bool { return n&mask == mask }

// ParseName parses a single region name such as "PROGRAM".
func ParseName(s string) (Name, error) {
	for _, e := range names {
		if e.text == s {
			return e.bit, nil
		}
	}
	return 0, errors.Errorf("region: unknown name %q", s)
}

// ParseNames parses a '|'-separated list of region names, e.g.
// "PROGRAM|CONFIG", into their union. An empty string yields the zero Name.
func ParseNames(s string) (Name, error) {
	if s == "" {
		return 0, nil
	}
	var out Name
	for _, part := range strings.Split(s, "|") {
		n, err := ParseName(strings.TrimSpace(part))
		if err != nil {
			return 0, err
		}
		out |= n
	}
	return out, nil
}

// Region is an immutable descriptor of one address-space partition.
type Region struct {
	Name       Name
	Start      uint32 // inclusive
	End        uint32 // exclusive
	WordSize   uint32 // bytes: 1 or 2
	ProgDelay  time.Duration
	Writable   bool
	AutoIncrement bool
}

// Size returns End-Start in bytes.
func (r Region) Size() uint32 { return r.End - r.Start }

// WordCount returns the number of words the region holds.
func (r Region) WordCount() uint32 { return r.Size() / r.WordSize }

// Contains reports whether addr lies within [Start, End).
func (r Region) Contains(addr uint32) bool { return addr >= r.Start && addr < r.End }

// RelAddr returns addr's offset from Start, failing if addr is outside the region.
func (r Region) RelAddr(addr uint32) (uint32, error) {
	if !r.Contains(addr) {
		return 0, errors.Errorf("address %#06x out of range for region %s [%#06x,%#06x)", addr, r.Name, r.Start, r.End)
	}
	return addr - r.Start, nil
}

func (r Region) validate() error {
	if r.WordSize != 1 && r.WordSize != 2 {
		return errors.Errorf("region %s: word size must be 1 or 2, got %d", r.Name, r.WordSize)
	}
	if r.Start >= r.End {
		return errors.Errorf("region %s: start %#06x must be < end %#06x", r.Name, r.Start, r.End)
	}
	if r.Size()%r.WordSize != 0 {
		return errors.Errorf("region %s: size %#x not a multiple of word size %d", r.Name, r.Size(), r.WordSize)
	}
	if r.Start%r.WordSize != 0 {
		return errors.Errorf("region %s: start %#06x not aligned to word size %d", r.Name, r.Start, r.WordSize)
	}
	return nil
}

// String implements the dump banner format of the textual dumper:
// "Region name:<NAME> address:[<start>h,<end>h)  word size: <ws>".
func (r Region) String() string {
	return fmt.Sprintf("Region name:%s address:[%06xh,%06xh)  word size: %d", r.Name, r.Start, r.End, r.WordSize)
}

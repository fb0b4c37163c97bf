// Package dump renders RegionImages as the classic address/hex/ascii
// listing, one region banner followed by 16-bytes-per-line rows, with
// programmed (non-erased) bytes optionally highlighted in color.
package dump

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/effective-range/picicsp/firmware"
)

const bytesPerLine = 16

// erasedByte is the value every unwritten flash/EEPROM cell reads as.
const erasedByte = 0xFF

// Writer renders RegionImages to an io.Writer. The zero value writes
// without color; set Color to highlight non-erased bytes.
type Writer struct {
	W     io.Writer
	Color bool
}

// New returns a Writer targeting w. If color is true, bytes that differ
// from the erased value 0xFF are highlighted.
func New(w io.Writer, enableColor bool) *Writer {
	return &Writer{W: w, Color: enableColor}
}

// Region writes ri's banner line followed by its memory listing.
func (dw *Writer) Region(ri *firmware.RegionImage) error {
	if _, err := fmt.Fprintln(dw.W, ri.Region.String()); err != nil {
		return err
	}
	for _, elem := range ri.Elements {
		if err := dw.memory(elem.BaseAddr, elem.Bytes); err != nil {
			return err
		}
	}
	return nil
}

func (dw *Writer) memory(addr uint32, data []byte) error {
	for len(data) > 0 {
		n := bytesPerLine
		if n > len(data) {
			n = len(data)
		}
		if err := dw.line(addr, data[:n]); err != nil {
			return err
		}
		addr += uint32(n)
		data = data[n:]
	}
	return nil
}

func (dw *Writer) line(addr uint32, data []byte) error {
	highlight := color.New(color.FgYellow)

	hex := ""
	ascii := ""
	for i := 0; i < bytesPerLine; i++ {
		if i >= len(data) {
			hex += "   "
			ascii += " "
			continue
		}
		b := data[i]
		if dw.Color && b != erasedByte {
			hex += highlight.Sprintf("%02x ", b)
			ascii += highlight.Sprintf("%c", printable(b))
		} else {
			hex += fmt.Sprintf("%02x ", b)
			ascii += fmt.Sprintf("%c", printable(b))
		}
	}
	_, err := fmt.Fprintf(dw.W, "0x%06x | %s| %s |\n", addr, hex, ascii)
	return err
}

func printable(b byte) byte {
	if b < 0x20 || b > 0x7E {
		return '.'
	}
	return b
}
